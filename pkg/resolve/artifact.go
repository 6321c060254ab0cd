package resolve

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/locking"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/transfer"
	"github.com/quarrybuild/quarry/pkg/update"
	"github.com/quarrybuild/quarry/pkg/version"
)

// ArtifactRequest asks for one artifact to be made available locally.
type ArtifactRequest struct {
	Artifact     artifact.Artifact
	Repositories []repo.Remote
	// Listener observes this item's transfer, when one happens.
	Listener transfer.Listener
}

// ArtifactResult is the per-request outcome. On success Artifact.File
// points at the local copy and Repository names the origin; a zero
// Repository means the workspace or an already-cached copy served it.
type ArtifactResult struct {
	Artifact   artifact.Artifact
	Repository repo.Remote
	Err        error
}

// ArtifactResolver makes artifacts available as local files: workspace
// override first, then a fresh local copy, then remote transfer under
// locking, update-check and checksum policy.
type ArtifactResolver struct {
	sys    *System
	runner *transfer.Runner
}

// NewArtifactResolver creates an artifact resolver running item pipelines
// on the given runner.
func NewArtifactResolver(sys *System, runner *transfer.Runner) *ArtifactResolver {
	if runner == nil {
		runner = transfer.NewRunner(1)
	}
	return &ArtifactResolver{sys: sys, runner: runner}
}

// Resolve processes all requests, dispatching them across the worker pool,
// and returns one result per request in order plus an aggregate of the
// per-item failures. The results always cover the full batch.
func (r *ArtifactResolver) Resolve(ctx context.Context, reqs []ArtifactRequest) ([]ArtifactResult, error) {
	results := make([]ArtifactResult, len(reqs))
	tasks := make([]func(context.Context), len(reqs))
	for i, req := range reqs {
		tasks[i] = func(ctx context.Context) {
			results[i] = r.resolveOne(ctx, req)
		}
	}
	r.runner.Run(ctx, tasks)

	errs := make([]error, len(results))
	for i, res := range results {
		if res.Err != nil {
			errs[i] = fmt.Errorf("%s: %w", res.Artifact.Coordinate, res.Err)
		}
	}
	if agg := errors.NewAggregate(fmt.Sprintf("failed to resolve %d of %d artifacts",
		countErrs(errs), len(reqs)), errs); agg != nil {
		return results, agg
	}
	return results, nil
}

func countErrs(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}

// ResolveOne is Resolve for a single request.
func (r *ArtifactResolver) ResolveOne(ctx context.Context, req ArtifactRequest) ArtifactResult {
	return r.resolveOne(ctx, req)
}

func (r *ArtifactResolver) resolveOne(ctx context.Context, req ArtifactRequest) ArtifactResult {
	sys := r.sys
	result := ArtifactResult{Artifact: req.Artifact}

	if sys.workspace != nil {
		if path, ok := sys.workspace.FindArtifact(req.Artifact); ok {
			result.Artifact = req.Artifact.WithFile(path)
			return result
		}
	}

	localPath := filepath.Join(sys.local.Base,
		filepath.FromSlash(sys.layout.ArtifactPath(req.Artifact)))
	snapshot := version.Parse(req.Artifact.Coordinate.Version).IsSnapshot()

	// A cached release is immutable: once present it is never stale.
	if !localModTime(localPath).IsZero() && (!snapshot || sys.session.Offline) {
		result.Artifact = req.Artifact.WithFile(localPath)
		return result
	}
	if sys.session.Offline {
		result.Err = errors.New(errors.ErrCodeOffline,
			"artifact %s not cached locally and session is offline", req.Artifact.Coordinate)
		return result
	}

	lc := sys.locks.Context(nil)
	res := sys.locks.ArtifactResource(req.Artifact, !localModTime(localPath).IsZero())
	if err := lc.Acquire(ctx, locking.Shared, []locking.Resource{res}); err != nil {
		result.Err = err
		return result
	}
	defer lc.Release()

	// Re-check under the lock: a concurrent resolution may have fetched it.
	if !localModTime(localPath).IsZero() && !snapshot {
		result.Artifact = req.Artifact.WithFile(localPath)
		return result
	}

	var attemptErrs []error
	for _, rep := range req.Repositories {
		chk := &update.Check{
			Item:             "artifact:" + req.Artifact.Coordinate.ID(),
			File:             localPath,
			Repository:       rep,
			Policy:           rep.Policy.EffectiveUpdate(),
			LocalLastUpdated: localModTime(localPath),
		}
		sys.updates.Evaluate(chk)

		if !chk.Required {
			if chk.Error != nil {
				attemptErrs = append(attemptErrs, chk.Error)
				continue
			}
			if !chk.LocalLastUpdated.IsZero() {
				result.Artifact = req.Artifact.WithFile(localPath)
				result.Repository = rep
				return result
			}
			continue
		}

		err := r.download(ctx, req, rep, localPath, chk)
		if err == nil {
			result.Artifact = req.Artifact.WithFile(localPath)
			result.Repository = rep
			return result
		}
		attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", rep.ID, err))
	}

	// A stale snapshot beats nothing when every remote attempt failed.
	if !localModTime(localPath).IsZero() {
		sys.logger.Warn("using stale local copy after failed refresh",
			"artifact", req.Artifact.Coordinate, "attempts", len(attemptErrs))
		result.Artifact = req.Artifact.WithFile(localPath)
		return result
	}

	if agg := errors.NewAggregate("resolve "+req.Artifact.Coordinate.String(), attemptErrs); agg != nil {
		result.Err = agg.Primary()
	} else {
		result.Err = errors.New(errors.ErrCodeNotFound,
			"artifact %s not found in %d repositories", req.Artifact.Coordinate, len(req.Repositories))
	}
	return result
}

func (r *ArtifactResolver) download(ctx context.Context, req ArtifactRequest, rep repo.Remote, localPath string, chk *update.Check) error {
	connector, err := r.sys.connect(rep)
	if err != nil {
		return err
	}
	dl := &transfer.ArtifactDownload{
		Artifact: req.Artifact,
		File:     localPath,
		Listener: req.Listener,
	}
	connector.Get(ctx, []*transfer.ArtifactDownload{dl}, nil)
	r.sys.updates.Record(chk, dl.Error)
	return dl.Error
}
