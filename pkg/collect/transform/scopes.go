package transform

import (
	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/collect"
)

// ScopeRefiner tags every node with its effective build-path classification:
// the scope a dependency actually contributes under, given the path it was
// reached through. A compile-scoped artifact pulled in by a test-scoped
// dependency is effectively test-scoped, and so on.
type ScopeRefiner struct{}

// Transform implements Transformer.
func (ScopeRefiner) Transform(root *collect.Node) error {
	parentScope := ""
	if root.Dependency.Artifact.Coordinate.Name != "" {
		parentScope = root.Dependency.EffectiveScope()
		root.EffectiveScope = parentScope
	}
	for _, child := range root.Children {
		refine(child, parentScope)
	}
	return nil
}

func refine(n *collect.Node, parentScope string) {
	n.EffectiveScope = effectiveScope(parentScope, n.Dependency.EffectiveScope())
	for _, child := range n.Children {
		refine(child, n.EffectiveScope)
	}
}

// effectiveScope combines a parent path classification with a node's own
// scope. The parent narrows: anything reached through a provided or test
// path stays on that path; compile dependencies of a runtime dependency are
// only needed at runtime.
func effectiveScope(parent, own string) string {
	switch parent {
	case "", artifact.ScopeCompile:
		return own
	case artifact.ScopeRuntime:
		if own == artifact.ScopeCompile {
			return artifact.ScopeRuntime
		}
		return own
	case artifact.ScopeProvided, artifact.ScopeTest:
		if own == artifact.ScopeCompile || own == artifact.ScopeRuntime {
			return parent
		}
		return own
	default:
		return own
	}
}
