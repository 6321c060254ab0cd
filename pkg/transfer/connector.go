package transfer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/transport"
	"github.com/quarrybuild/quarry/pkg/trust"
)

// ArtifactDownload describes one artifact to fetch. Error is the per-item
// result slot; a batch never fails as a whole.
type ArtifactDownload struct {
	Artifact artifact.Artifact
	// File is the local destination path.
	File     string
	Listener Listener
	Error    error
}

// ArtifactUpload describes one artifact to deploy from its local file.
type ArtifactUpload struct {
	Artifact artifact.Artifact
	File     string
	Listener Listener
	Error    error
}

// MetadataDownload describes one metadata file to fetch.
type MetadataDownload struct {
	Metadata artifact.Metadata
	File     string
	Listener Listener
	Error    error
}

// MetadataUpload describes one metadata file to deploy.
type MetadataUpload struct {
	Metadata artifact.Metadata
	File     string
	Listener Listener
	Error    error
}

// Connector moves batches of artifacts and metadata between the local
// machine and one remote repository.
type Connector interface {
	Get(ctx context.Context, artifacts []*ArtifactDownload, metadatas []*MetadataDownload)
	Put(ctx context.Context, artifacts []*ArtifactUpload, metadatas []*MetadataUpload)
}

// defaultAlgorithms are the digests computed for every transfer.
var defaultAlgorithms = []string{"sha256", "sha1"}

// Options configures a connector beyond its repository and transport.
type Options struct {
	Layout     repo.Layout    // nil means the standard layout
	Trusted    []trust.Source // out-of-band checksum sources, artifact downloads only
	Algorithms []string       // nil means sha256+sha1
	Logger     *log.Logger    // nil discards
}

// DefaultConnector implements Connector over one transport. Downloads are
// written to a temp file next to the destination and renamed into place
// only after checksum validation, so a crashed or corrupted transfer never
// leaves a half-written artifact behind.
type DefaultConnector struct {
	remote     repo.Remote
	transport  transport.Transport
	layout     repo.Layout
	runner     *Runner
	trusted    []trust.Source
	algorithms []string
	logger     *log.Logger
}

// NewConnector creates a connector for the repository over the transport,
// running transfers on the given runner.
func NewConnector(remote repo.Remote, t transport.Transport, runner *Runner, opts Options) *DefaultConnector {
	layout := opts.Layout
	if layout == nil {
		layout = repo.DefaultLayout{}
	}
	algorithms := opts.Algorithms
	if len(algorithms) == 0 {
		algorithms = defaultAlgorithms
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DefaultConnector{
		remote:     remote,
		transport:  t,
		layout:     layout,
		runner:     runner,
		trusted:    opts.Trusted,
		algorithms: algorithms,
		logger:     logger,
	}
}

// Get implements Connector. It blocks until every requested download has
// finished; failures are recorded per item.
func (c *DefaultConnector) Get(ctx context.Context, artifacts []*ArtifactDownload, metadatas []*MetadataDownload) {
	tasks := make([]func(context.Context), 0, len(artifacts)+len(metadatas))
	for _, dl := range artifacts {
		tasks = append(tasks, func(ctx context.Context) {
			path := c.layout.ArtifactPath(dl.Artifact)
			dl.Error = c.download(ctx, path, dl.File, dl.Artifact, listenerOf(dl.Listener))
		})
	}
	for _, dl := range metadatas {
		tasks = append(tasks, func(ctx context.Context) {
			path := c.layout.MetadataPath(dl.Metadata, "")
			dl.Error = c.download(ctx, path, dl.File, artifact.Artifact{}, listenerOf(dl.Listener))
		})
	}
	c.runner.Run(ctx, tasks)
}

// Put implements Connector.
func (c *DefaultConnector) Put(ctx context.Context, artifacts []*ArtifactUpload, metadatas []*MetadataUpload) {
	tasks := make([]func(context.Context), 0, len(artifacts)+len(metadatas))
	for _, up := range artifacts {
		tasks = append(tasks, func(ctx context.Context) {
			path := c.layout.ArtifactPath(up.Artifact)
			up.Error = c.upload(ctx, path, up.File, listenerOf(up.Listener))
		})
	}
	for _, up := range metadatas {
		tasks = append(tasks, func(ctx context.Context) {
			path := c.layout.MetadataPath(up.Metadata, "")
			up.Error = c.upload(ctx, path, up.File, listenerOf(up.Listener))
		})
	}
	c.runner.Run(ctx, tasks)
}

func listenerOf(l Listener) Listener {
	if l == nil {
		return NopListener{}
	}
	return l
}

// download fetches one resource into dest. Checksum validation compares the
// computed digests against trusted sources (for artifacts) and the digests
// the transport reported, escalating per the repository's checksum policy.
func (c *DefaultConnector) download(ctx context.Context, path, dest string, art artifact.Artifact, listener Listener) error {
	event := Event{Name: path}
	listener.Started(event)

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		err = errors.Wrap(errors.ErrCodeTransfer, err, "create %s", filepath.Dir(dest))
		listener.Failed(event, err)
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".quarry-*")
	if err != nil {
		err = errors.Wrap(errors.ErrCodeTransfer, err, "temp file for %s", dest)
		listener.Failed(event, err)
		return err
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	dig := newDigester(tmp, c.algorithms)
	reported, err := c.transport.Get(ctx, path, dig, func(written int64) bool {
		event.Transferred = written
		return listener.Progressed(event)
	})
	if err != nil {
		cleanup()
		listener.Failed(event, err)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		err = errors.Wrap(errors.ErrCodeTransfer, err, "flush %s", dest)
		listener.Failed(event, err)
		return err
	}

	computed := dig.sums()
	if err := c.validate(art, computed, reported); err != nil {
		// The ignore policy is silent: no listener notification either.
		switch c.remote.Policy.EffectiveChecksum() {
		case repo.ChecksumFail:
			listener.Corrupted(event, err)
			os.Remove(tmp.Name())
			listener.Failed(event, err)
			return err
		case repo.ChecksumWarn:
			listener.Corrupted(event, err)
			c.logger.Warn("checksum mismatch accepted", "path", path, "err", err)
		}
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		err = errors.Wrap(errors.ErrCodeTransfer, err, "move %s into place", dest)
		listener.Failed(event, err)
		return err
	}
	c.writeSideFiles(dest, computed)
	listener.Succeeded(event)
	return nil
}

// validate returns a CHECKSUM_FAILURE when a computed digest disagrees with
// a trusted or transport-reported one. Preference order per algorithm:
// trusted source first, then the transport's report. Resources with no
// expectation at all pass.
func (c *DefaultConnector) validate(art artifact.Artifact, computed map[string]string, reported transport.Checksums) error {
	for _, algo := range c.algorithms {
		got, ok := computed[algo]
		if !ok {
			continue
		}
		want, source := "", ""
		if art.Coordinate.Name != "" {
			sum, ok, err := trust.FirstTrusted(c.trusted, art, algo)
			if err != nil {
				return errors.Wrap(errors.ErrCodeChecksum, err, "trusted checksum lookup for %s", art.Coordinate)
			}
			if ok {
				want, source = sum, "trusted"
			}
		}
		if want == "" {
			if sum, ok := reported[algo]; ok {
				want, source = sum, "remote"
			}
		}
		if want != "" && want != got {
			return errors.New(errors.ErrCodeChecksum,
				"%s digest mismatch: %s source expects %s, content has %s", algo, source, want, got)
		}
	}
	return nil
}

// writeSideFiles stores the computed digests next to the content. Failures
// are logged, not fatal: the side files are an optimization for later
// verification.
func (c *DefaultConnector) writeSideFiles(dest string, computed map[string]string) {
	for _, algo := range c.algorithms {
		sum, ok := computed[algo]
		if !ok {
			continue
		}
		if err := os.WriteFile(dest+"."+algo, []byte(sum), 0644); err != nil {
			c.logger.Warn("write checksum side file", "file", dest+"."+algo, "err", err)
		}
	}
}

// upload deploys one local file, followed by its checksum side resources.
func (c *DefaultConnector) upload(ctx context.Context, path, src string, listener Listener) error {
	event := Event{Name: path, Upload: true}
	listener.Started(event)

	info, err := os.Stat(src)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeTransfer, err, "stat %s", src)
		listener.Failed(event, err)
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeTransfer, err, "open %s", src)
		listener.Failed(event, err)
		return err
	}

	dig := newDigester(io.Discard, c.algorithms)
	if _, err := io.Copy(dig, f); err != nil {
		f.Close()
		err = errors.Wrap(errors.ErrCodeTransfer, err, "digest %s", src)
		listener.Failed(event, err)
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		err = errors.Wrap(errors.ErrCodeTransfer, err, "rewind %s", src)
		listener.Failed(event, err)
		return err
	}

	err = c.transport.Put(ctx, path, f, info.Size())
	f.Close()
	if err != nil {
		listener.Failed(event, err)
		return err
	}
	for algo, sum := range dig.sums() {
		if err := c.transport.Put(ctx, path+"."+algo, strings.NewReader(sum), int64(len(sum))); err != nil {
			c.logger.Warn("upload checksum side resource", "path", path+"."+algo, "err", err)
		}
	}
	event.Transferred = info.Size()
	listener.Succeeded(event)
	return nil
}

var _ Connector = (*DefaultConnector)(nil)
