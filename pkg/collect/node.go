package collect

import (
	"slices"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/repo"
)

// Decision records how the resolution-skip optimizer classified a node.
type Decision int

const (
	// DecideResolve: the node's descriptor must be independently resolved.
	DecideResolve Decision = iota
	// DecideSkipDuplicate: same artifact already resolved elsewhere; the
	// cached result is assumed identical.
	DecideSkipDuplicate
	// DecideSkipVersionConflict: a different version of the same versionless
	// coordinate already won; this node is a definite loser.
	DecideSkipVersionConflict
	// DecideForceResolve: a duplicate that must be resolved anyway because
	// the current path is more leftward and scope attribution depends on it.
	DecideForceResolve
)

// String returns the diagnostic label for the decision.
func (d Decision) String() string {
	switch d {
	case DecideSkipDuplicate:
		return "skip-duplicate"
	case DecideSkipVersionConflict:
		return "skip-version-conflict"
	case DecideForceResolve:
		return "force-resolve"
	default:
		return "resolve"
	}
}

// Skipped reports whether the decision skips descriptor resolution.
func (d Decision) Skipped() bool {
	return d == DecideSkipDuplicate || d == DecideSkipVersionConflict
}

// Position locates a node inside one collection request: its depth in the
// tree and its per-depth sequence number in traversal order. Positions are
// used only by the conflict-resolution pass and are never persisted.
type Position struct {
	Depth int // 1 for direct dependencies
	Seq   int // monotonically increasing per depth
}

// Node is one vertex of the collected dependency tree. Children reference
// downward only; ancestry travels through the traversal path, never through
// back-pointers, so the ownership graph is cycle-free by construction.
type Node struct {
	Dependency     artifact.Dependency
	Repositories   []repo.Remote // repositories this node may resolve from
	RequestContext string
	Children       []*Node
	Position       Position
	Decision       Decision
	Relocated      bool   // the descriptor redirected to another coordinate
	EffectiveScope string // set by the scope refinement transformer
}

// Count returns the number of nodes in the subtree rooted at n, including n.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Walk visits the subtree pre-order, stopping early if fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Cycle describes a true dependency cycle found during collection. Cycles
// are recorded as descriptors, never as graph edges.
type Cycle struct {
	// Coordinate is the versionless coordinate that repeated on the path.
	Coordinate artifact.Coordinate
	// Path is the ancestor coordinate chain at the point of detection,
	// ending with the repeating occurrence.
	Path []artifact.Coordinate
}

// Stats summarizes the skip optimizer's per-node decisions for diagnostics.
type Stats struct {
	Resolved         int
	ForceResolved    int
	SkippedDuplicate int
	SkippedConflict  int
}

// Result is the outcome of one collection request: a best-effort tree plus
// the cycles and non-fatal errors encountered along the way.
type Result struct {
	Root   *Node
	Cycles []Cycle
	Errors []error // collect errors; the tree may be incomplete when non-empty
	Stats  Stats
}

// Winners returns the nodes that represent their versionless coordinate in
// the resolved graph (everything not skipped), in traversal order.
func (r *Result) Winners() []*Node {
	var out []*Node
	seen := map[string]bool{}
	r.Root.Walk(func(n *Node) bool {
		if n == r.Root {
			return true
		}
		key := n.Dependency.Artifact.Coordinate.Key()
		if !n.Decision.Skipped() && !seen[key] {
			seen[key] = true
			out = append(out, n)
		}
		return true
	})
	return out
}

// clonePath copies a coordinate path for recording in a cycle descriptor.
func clonePath(path []artifact.Coordinate) []artifact.Coordinate {
	return slices.Clone(path)
}
