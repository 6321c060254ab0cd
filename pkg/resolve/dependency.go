package resolve

import (
	"context"

	"github.com/quarrybuild/quarry/pkg/collect"
	"github.com/quarrybuild/quarry/pkg/collect/transform"
	"github.com/quarrybuild/quarry/pkg/transfer"
)

// DependencyResolver runs the full pipeline: collect the dependency tree,
// refine it with the post-collection transformers, then resolve the winning
// nodes' artifacts into local files.
type DependencyResolver struct {
	collector *collect.Collector
	artifacts *ArtifactResolver
}

// NewDependencyResolver wires a dependency resolver from its two stages.
func NewDependencyResolver(collector *collect.Collector, artifacts *ArtifactResolver) *DependencyResolver {
	return &DependencyResolver{collector: collector, artifacts: artifacts}
}

// DependencyRequest describes one end-to-end resolution.
type DependencyRequest struct {
	Collect collect.Request
	// Transformers refine the collected tree; the scope refiner always
	// runs first.
	Transformers []transform.Transformer
	// DownloadScopes limits which effective scopes get their files
	// resolved; empty means all.
	DownloadScopes []string
	// Listener observes the artifact transfers.
	Listener transfer.Listener
}

// DependencyResult is the pipeline outcome: the collected and refined graph
// plus the per-winner artifact results. Artifact failures do not invalidate
// the graph.
type DependencyResult struct {
	Graph     *collect.Result
	Artifacts []ArtifactResult
}

// Resolve runs the pipeline. The returned error is non-nil when the request
// itself was unusable or when artifact resolution had failures (an
// aggregate); the result carries everything that did succeed either way.
func (r *DependencyResolver) Resolve(ctx context.Context, req DependencyRequest) (*DependencyResult, error) {
	graph, err := r.collector.Collect(ctx, req.Collect)
	if err != nil {
		return nil, err
	}
	transformers := append([]transform.Transformer{transform.ScopeRefiner{}}, req.Transformers...)
	if err := transform.Apply(graph.Root, transformers...); err != nil {
		return nil, err
	}

	scopes := make(map[string]bool, len(req.DownloadScopes))
	for _, s := range req.DownloadScopes {
		scopes[s] = true
	}

	var requests []ArtifactRequest
	for _, node := range graph.Winners() {
		if len(scopes) > 0 && !scopes[node.EffectiveScope] {
			continue
		}
		repos := node.Repositories
		if len(repos) == 0 {
			repos = req.Collect.Repositories
		}
		requests = append(requests, ArtifactRequest{
			Artifact:     node.Dependency.Artifact,
			Repositories: repos,
			Listener:     req.Listener,
		})
	}

	results, aggErr := r.artifacts.Resolve(ctx, requests)
	attachFiles(graph.Root, results)
	return &DependencyResult{Graph: graph, Artifacts: results}, aggErr
}

// attachFiles copies resolved files back onto every node carrying the same
// coordinate, including skipped duplicates of the winner.
func attachFiles(root *collect.Node, results []ArtifactResult) {
	files := make(map[string]string, len(results))
	for _, res := range results {
		if res.Artifact.IsResolved() {
			files[res.Artifact.Coordinate.ID()] = res.Artifact.File
		}
	}
	root.Walk(func(n *collect.Node) bool {
		if file, ok := files[n.Dependency.Artifact.Coordinate.ID()]; ok {
			n.Dependency = n.Dependency.WithArtifact(n.Dependency.Artifact.WithFile(file))
		}
		return true
	})
}

// Compile-time check that the version resolver satisfies the collector's
// chooser contract.
var _ collect.VersionChooser = (*VersionResolver)(nil)
