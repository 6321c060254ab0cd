package resolve

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/version"
)

// FoundVersion pairs a version with the repository that enumerates it. When
// several repositories list the same version, the one earliest in the
// request's repository order wins.
type FoundVersion struct {
	Version    version.Version
	Repository repo.Remote
}

// VersionResolver turns meta-versions and ranges into concrete versions by
// merging repository metadata. It implements the collector's version
// chooser.
type VersionResolver struct {
	sys      *System
	metadata *MetadataResolver
}

// NewVersionResolver creates a version resolver on the shared plumbing.
func NewVersionResolver(sys *System) *VersionResolver {
	return &VersionResolver{sys: sys, metadata: NewMetadataResolver(sys)}
}

// Choose resolves a meta-version to a concrete version: the highest
// enumerated version for LATEST, the highest non-snapshot for RELEASE. A
// dead meta-version (no candidate) is a VERSION_RESOLUTION_FAILURE carrying
// the repository failures as its cause.
func (r *VersionResolver) Choose(ctx context.Context, art artifact.Artifact, constraint version.Constraint, repos []repo.Remote) (version.Version, error) {
	found, enumErr := r.Enumerate(ctx, art, repos)
	includeSnapshots := constraint.String() == version.MetaLatest

	for i := len(found) - 1; i >= 0; i-- {
		v := found[i].Version
		if includeSnapshots || !v.IsSnapshot() {
			return v, nil
		}
	}
	return version.Version{}, errors.Wrap(errors.ErrCodeVersionResolution, enumErr,
		"no candidate for %s of %s", constraint, art.Coordinate.Key())
}

// Matching enumerates the available versions satisfying a range, ascending.
// An empty result is valid; repository failures surface only when nothing
// could be enumerated at all.
func (r *VersionResolver) Matching(ctx context.Context, art artifact.Artifact, constraint version.Constraint, repos []repo.Remote) ([]version.Version, error) {
	found, enumErr := r.Enumerate(ctx, art, repos)
	if len(found) == 0 && enumErr != nil {
		return nil, enumErr
	}
	var out []version.Version
	for _, f := range found {
		if constraint.Matches(f.Version) {
			out = append(out, f.Version)
		}
	}
	return out, nil
}

// MatchingWithOrigin is Matching keeping the repository each version came
// from.
func (r *VersionResolver) MatchingWithOrigin(ctx context.Context, art artifact.Artifact, constraint version.Constraint, repos []repo.Remote) ([]FoundVersion, error) {
	found, enumErr := r.Enumerate(ctx, art, repos)
	if len(found) == 0 && enumErr != nil {
		return nil, enumErr
	}
	var out []FoundVersion
	for _, f := range found {
		if constraint.Matches(f.Version) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Enumerate merges the version enumerations of all repositories, ascending.
// Per-repository lists are fetched concurrently and cached in the session;
// a repository that fails or knows nothing contributes an empty list. The
// returned error aggregates per-repository failures and is non-nil even on
// partial success, so callers decide how hard to fail.
func (r *VersionResolver) Enumerate(ctx context.Context, art artifact.Artifact, repos []repo.Remote) ([]FoundVersion, error) {
	md := artifact.Metadata{
		Group:  art.Coordinate.Group,
		Name:   art.Coordinate.Name,
		Nature: artifact.ReleaseOrSnapshot,
	}

	perRepo := make([][]version.Version, len(repos))
	repoErrs := make([]error, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	for i, rep := range repos {
		g.Go(func() error {
			perRepo[i], repoErrs[i] = r.enumerateOne(gctx, md, rep)
			return nil
		})
	}
	g.Wait()

	// Union merge. First repository in request order wins ties, so iterate
	// in order and keep the first origin seen per raw version.
	seen := make(map[string]bool)
	var merged []FoundVersion
	for i, vs := range perRepo {
		for _, v := range vs {
			if seen[v.String()] {
				continue
			}
			seen[v.String()] = true
			merged = append(merged, FoundVersion{Version: v, Repository: repos[i]})
		}
	}
	slices.SortFunc(merged, func(a, b FoundVersion) int {
		return a.Version.Compare(b.Version)
	})
	if agg := errors.NewAggregate("enumerate versions of "+art.Coordinate.Key(), repoErrs); agg != nil {
		return merged, agg
	}
	return merged, nil
}

func (r *VersionResolver) enumerateOne(ctx context.Context, md artifact.Metadata, rep repo.Remote) ([]version.Version, error) {
	cacheKey := "versions:" + md.ID() + "@" + rep.ID
	if vs, ok := r.sys.session.CachedVersions(cacheKey); ok {
		return vs, nil
	}

	result := r.metadata.Resolve(ctx, []MetadataRequest{{Metadata: md, Repository: rep}})[0]
	if !result.Metadata.IsResolved() {
		// Nothing local and nothing fetched: not-found is an empty
		// enumeration, anything else is a repository failure.
		if result.Err != nil && !errors.Is(result.Err, errors.ErrCodeNotFound) {
			return nil, result.Err
		}
		r.sys.session.CacheVersions(cacheKey, nil)
		return nil, nil
	}

	raw, err := parseVersionList(result.Metadata.File)
	if err != nil {
		return nil, err
	}
	vs := make([]version.Version, 0, len(raw))
	for _, s := range raw {
		vs = append(vs, version.Parse(s))
	}
	version.Sort(vs)
	r.sys.session.CacheVersions(cacheKey, vs)
	return vs, nil
}
