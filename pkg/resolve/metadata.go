package resolve

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/locking"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/transfer"
	"github.com/quarrybuild/quarry/pkg/update"
)

// MetadataRequest asks for one metadata file from one repository.
type MetadataRequest struct {
	Metadata   artifact.Metadata
	Repository repo.Remote
}

// MetadataResult is the per-request outcome. Metadata.File is set when a
// usable local copy exists, even when Err reports that refreshing failed.
type MetadataResult struct {
	Metadata   artifact.Metadata
	Repository repo.Remote
	Err        error
}

// MetadataResolver fetches repository metadata into the local repository,
// one local copy per origin repository.
type MetadataResolver struct {
	sys *System
}

// NewMetadataResolver creates a metadata resolver on the shared plumbing.
func NewMetadataResolver(sys *System) *MetadataResolver {
	return &MetadataResolver{sys: sys}
}

// Resolve processes all requests and returns one result each, in order.
func (r *MetadataResolver) Resolve(ctx context.Context, reqs []MetadataRequest) []MetadataResult {
	results := make([]MetadataResult, len(reqs))
	for i, req := range reqs {
		results[i] = r.resolveOne(ctx, req)
	}
	return results
}

func (r *MetadataResolver) resolveOne(ctx context.Context, req MetadataRequest) MetadataResult {
	sys := r.sys
	result := MetadataResult{Metadata: req.Metadata, Repository: req.Repository}

	localPath := filepath.Join(sys.local.Base,
		filepath.FromSlash(sys.layout.MetadataPath(req.Metadata, req.Repository.ID)))
	exists := !localModTime(localPath).IsZero()

	lc := sys.locks.Context(nil)
	res := sys.locks.MetadataResource(req.Metadata, exists)
	if err := lc.Acquire(ctx, locking.Shared, []locking.Resource{res}); err != nil {
		result.Err = err
		return result
	}
	defer lc.Release()

	chk := &update.Check{
		Item:             "metadata:" + req.Metadata.ID(),
		File:             localPath,
		Repository:       req.Repository,
		Policy:           req.Repository.Policy.EffectiveUpdate(),
		LocalLastUpdated: localModTime(localPath),
	}
	sys.updates.Evaluate(chk)

	switch {
	case !chk.Required:
		result.Err = chk.Error
	case sys.session.Offline:
		// Offline sessions use whatever local copy exists; a missing copy
		// is an offline violation and never cached.
		if chk.LocalLastUpdated.IsZero() {
			result.Err = errors.New(errors.ErrCodeOffline,
				"metadata %s needed from %s while offline", req.Metadata, req.Repository.ID)
		}
	default:
		result.Err = r.download(ctx, req, localPath, chk)
	}

	if _, err := os.Stat(localPath); err == nil {
		result.Metadata = req.Metadata.WithFile(localPath)
	}
	return result
}

func (r *MetadataResolver) download(ctx context.Context, req MetadataRequest, localPath string, chk *update.Check) error {
	connector, err := r.sys.connect(req.Repository)
	if err != nil {
		return err
	}
	dl := &transfer.MetadataDownload{Metadata: req.Metadata, File: localPath}
	connector.Get(ctx, nil, []*transfer.MetadataDownload{dl})
	r.sys.updates.Record(chk, dl.Error)
	if dl.Error != nil && !chk.LocalLastUpdated.IsZero() {
		// A stale copy beats no copy: keep it, surface nothing.
		r.sys.logger.Warn("metadata refresh failed, using stale local copy",
			"metadata", req.Metadata, "repo", req.Repository.ID, "err", dl.Error)
		return nil
	}
	return dl.Error
}

// versioning is the subset of the repository metadata document the version
// resolver consumes.
type versioning struct {
	XMLName    xml.Name `xml:"metadata"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// parseVersionList reads the version enumeration out of a metadata file.
func parseVersionList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc versioning
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeVersionResolution, err, "parse metadata %s", path)
	}
	return doc.Versioning.Versions, nil
}
