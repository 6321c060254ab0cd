package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/transport"
	"github.com/quarrybuild/quarry/pkg/trust"
)

func lib(version string) artifact.Artifact {
	return artifact.New(artifact.Coordinate{
		Group: "org.example", Name: "lib", Extension: "jar", Version: version,
	})
}

// seedRemote writes artifact content into a directory laid out like a
// repository and returns a file transport over it.
func seedRemote(t *testing.T, files map[string][]byte) *transport.FileTransport {
	t.Helper()
	base := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(base, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, content, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return transport.NewFileTransport(base)
}

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newConnector(t *testing.T, tr transport.Transport, policy string, trusted ...trust.Source) *DefaultConnector {
	t.Helper()
	remote := repo.Remote{ID: "central", URL: "file:///unused", Policy: repo.Policy{Checksum: policy}}
	return NewConnector(remote, tr, NewRunner(2), Options{Trusted: trusted})
}

func TestRunnerExecutesAllTasks(t *testing.T) {
	var count atomic.Int32
	tasks := make([]func(context.Context), 20)
	for i := range tasks {
		tasks[i] = func(context.Context) { count.Add(1) }
	}
	NewRunner(4).Run(context.Background(), tasks)
	if count.Load() != 20 {
		t.Errorf("ran %d tasks, want 20", count.Load())
	}
}

func TestRunnerSizeOneIsSynchronousAndOrdered(t *testing.T) {
	var order []int
	tasks := make([]func(context.Context), 5)
	for i := range tasks {
		tasks[i] = func(context.Context) { order = append(order, i) }
	}
	NewRunner(1).Run(context.Background(), tasks)
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestConnectorDownloadsBatch(t *testing.T) {
	content := []byte("lib one zero")
	tr := seedRemote(t, map[string][]byte{
		"org/example/lib/1.0/lib-1.0.jar": content,
	})
	local := t.TempDir()
	c := newConnector(t, tr, repo.ChecksumWarn)

	ok := &ArtifactDownload{Artifact: lib("1.0"), File: filepath.Join(local, "lib-1.0.jar")}
	missing := &ArtifactDownload{Artifact: lib("9.9"), File: filepath.Join(local, "lib-9.9.jar")}
	c.Get(context.Background(), []*ArtifactDownload{ok, missing}, nil)

	if ok.Error != nil {
		t.Fatalf("download failed: %v", ok.Error)
	}
	got, err := os.ReadFile(ok.File)
	if err != nil || string(got) != string(content) {
		t.Errorf("downloaded content = %q, err %v", got, err)
	}
	// Side files hold the computed digests.
	side, err := os.ReadFile(ok.File + ".sha256")
	if err != nil || string(side) != sha256hex(content) {
		t.Errorf("side file = %q, err %v", side, err)
	}

	if !errors.Is(missing.Error, errors.ErrCodeNotFound) {
		t.Errorf("missing item error = %v, want NOT_FOUND per item", missing.Error)
	}
	if _, err := os.Stat(missing.File); !os.IsNotExist(err) {
		t.Error("failed download must leave no destination file")
	}
}

func TestConnectorChecksumFailPolicyRejectsMismatch(t *testing.T) {
	content := []byte("tampered bytes")
	tr := seedRemote(t, map[string][]byte{
		"org/example/lib/1.0/lib-1.0.jar": content,
	})
	trustDir := t.TempDir()
	pinned := "0000000000000000000000000000000000000000000000000000000000000000"
	if err := os.WriteFile(filepath.Join(trustDir, "sha256.checksums"),
		[]byte(pinned+" org.example:lib::jar:1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src := trust.NewSummaryFileSource(trustDir, nil)

	local := t.TempDir()
	c := newConnector(t, tr, repo.ChecksumFail, src)
	dl := &ArtifactDownload{Artifact: lib("1.0"), File: filepath.Join(local, "lib-1.0.jar")}
	c.Get(context.Background(), []*ArtifactDownload{dl}, nil)

	if !errors.Is(dl.Error, errors.ErrCodeChecksum) {
		t.Fatalf("error = %v, want CHECKSUM_FAILURE", dl.Error)
	}
	entries, _ := os.ReadDir(local)
	if len(entries) != 0 {
		t.Errorf("failed download must clean up, found %v", entries)
	}
}

func TestConnectorChecksumWarnPolicyKeepsContent(t *testing.T) {
	content := []byte("tampered bytes")
	tr := seedRemote(t, map[string][]byte{
		"org/example/lib/1.0/lib-1.0.jar": content,
	})
	trustDir := t.TempDir()
	pinned := "1111111111111111111111111111111111111111111111111111111111111111"
	if err := os.WriteFile(filepath.Join(trustDir, "sha256.checksums"),
		[]byte(pinned+" org.example:lib::jar:1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src := trust.NewSummaryFileSource(trustDir, nil)

	local := t.TempDir()
	c := newConnector(t, tr, repo.ChecksumWarn, src)
	dl := &ArtifactDownload{Artifact: lib("1.0"), File: filepath.Join(local, "lib-1.0.jar")}
	c.Get(context.Background(), []*ArtifactDownload{dl}, nil)

	if dl.Error != nil {
		t.Fatalf("warn policy must keep the transfer: %v", dl.Error)
	}
	if _, err := os.Stat(dl.File); err != nil {
		t.Errorf("content missing after warn-accepted mismatch: %v", err)
	}
}

// corruptionListener records checksum-mismatch notifications.
type corruptionListener struct {
	NopListener
	mu        sync.Mutex
	corrupted int
}

func (l *corruptionListener) Corrupted(Event, error) {
	l.mu.Lock()
	l.corrupted++
	l.mu.Unlock()
}

func TestConnectorChecksumIgnorePolicyIsSilent(t *testing.T) {
	content := []byte("tampered bytes")
	tr := seedRemote(t, map[string][]byte{
		"org/example/lib/1.0/lib-1.0.jar": content,
	})
	trustDir := t.TempDir()
	pinned := "2222222222222222222222222222222222222222222222222222222222222222"
	if err := os.WriteFile(filepath.Join(trustDir, "sha256.checksums"),
		[]byte(pinned+" org.example:lib::jar:1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src := trust.NewSummaryFileSource(trustDir, nil)
	local := t.TempDir()

	ignore := &corruptionListener{}
	c := newConnector(t, tr, repo.ChecksumIgnore, src)
	dl := &ArtifactDownload{Artifact: lib("1.0"), File: filepath.Join(local, "lib-1.0.jar"), Listener: ignore}
	c.Get(context.Background(), []*ArtifactDownload{dl}, nil)

	if dl.Error != nil {
		t.Fatalf("ignore policy must keep the transfer: %v", dl.Error)
	}
	if ignore.corrupted != 0 {
		t.Error("ignore policy must not notify the listener of the mismatch")
	}

	// Same mismatch under warn does notify.
	warned := &corruptionListener{}
	cw := newConnector(t, tr, repo.ChecksumWarn, src)
	dlw := &ArtifactDownload{Artifact: lib("1.0"), File: filepath.Join(local, "lib-1.0-warn.jar"), Listener: warned}
	cw.Get(context.Background(), []*ArtifactDownload{dlw}, nil)

	if dlw.Error != nil {
		t.Fatalf("warn policy must keep the transfer: %v", dlw.Error)
	}
	if warned.corrupted != 1 {
		t.Errorf("warn policy must notify once, got %d", warned.corrupted)
	}
}

func TestConnectorMatchingTrustedChecksumPasses(t *testing.T) {
	content := []byte("genuine bytes")
	tr := seedRemote(t, map[string][]byte{
		"org/example/lib/1.0/lib-1.0.jar": content,
	})
	trustDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(trustDir, "sha256.checksums"),
		[]byte(sha256hex(content)+" org.example:lib::jar:1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src := trust.NewSummaryFileSource(trustDir, nil)

	local := t.TempDir()
	c := newConnector(t, tr, repo.ChecksumFail, src)
	dl := &ArtifactDownload{Artifact: lib("1.0"), File: filepath.Join(local, "lib-1.0.jar")}
	c.Get(context.Background(), []*ArtifactDownload{dl}, nil)

	if dl.Error != nil {
		t.Fatalf("matching trusted checksum must pass: %v", dl.Error)
	}
}

// cancellingListener cancels its transfer at the first progress report.
type cancellingListener struct {
	NopListener
	mu     sync.Mutex
	failed error
}

func (l *cancellingListener) Progressed(Event) bool { return false }
func (l *cancellingListener) Failed(_ Event, err error) {
	l.mu.Lock()
	l.failed = err
	l.mu.Unlock()
}

func TestConnectorListenerCancellation(t *testing.T) {
	tr := seedRemote(t, map[string][]byte{
		"org/example/lib/1.0/lib-1.0.jar": []byte("some content"),
	})
	local := t.TempDir()
	c := newConnector(t, tr, repo.ChecksumWarn)

	listener := &cancellingListener{}
	dl := &ArtifactDownload{
		Artifact: lib("1.0"),
		File:     filepath.Join(local, "lib-1.0.jar"),
		Listener: listener,
	}
	other := &ArtifactDownload{Artifact: lib("1.0"), File: filepath.Join(local, "lib-1.0-copy.jar")}
	c.Get(context.Background(), []*ArtifactDownload{dl, other}, nil)

	if !errors.Is(dl.Error, errors.ErrCodeCancelled) {
		t.Errorf("cancelled item error = %v, want CANCELLED", dl.Error)
	}
	if listener.failed == nil {
		t.Error("listener must observe the failure")
	}
	if other.Error != nil {
		t.Errorf("cancellation must not abort sibling transfers: %v", other.Error)
	}
}

func TestConnectorMetadataDownload(t *testing.T) {
	tr := seedRemote(t, map[string][]byte{
		"org/example/lib/metadata.xml": []byte("<metadata/>"),
	})
	local := t.TempDir()
	c := newConnector(t, tr, repo.ChecksumWarn)

	dl := &MetadataDownload{
		Metadata: artifact.Metadata{Group: "org.example", Name: "lib"},
		File:     filepath.Join(local, "metadata-central.xml"),
	}
	c.Get(context.Background(), nil, []*MetadataDownload{dl})

	if dl.Error != nil {
		t.Fatalf("metadata download: %v", dl.Error)
	}
	if _, err := os.Stat(dl.File); err != nil {
		t.Errorf("metadata file missing: %v", err)
	}
}

func TestConnectorUpload(t *testing.T) {
	remoteBase := t.TempDir()
	tr := transport.NewFileTransport(remoteBase)
	src := filepath.Join(t.TempDir(), "lib-1.0.jar")
	content := []byte("deploy me")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatal(err)
	}

	c := newConnector(t, tr, repo.ChecksumWarn)
	up := &ArtifactUpload{Artifact: lib("1.0"), File: src}
	c.Put(context.Background(), []*ArtifactUpload{up}, nil)

	if up.Error != nil {
		t.Fatalf("upload: %v", up.Error)
	}
	deployed := filepath.Join(remoteBase, "org/example/lib/1.0/lib-1.0.jar")
	got, err := os.ReadFile(deployed)
	if err != nil || string(got) != string(content) {
		t.Errorf("deployed content = %q, err %v", got, err)
	}
	side, err := os.ReadFile(deployed + ".sha256")
	if err != nil || string(side) != sha256hex(content) {
		t.Errorf("deployed side resource = %q, err %v", side, err)
	}
}
