package collect

import (
	"github.com/quarrybuild/quarry/pkg/artifact"
)

// Traverser decides whether a dependency's own children are expanded.
// DeriveChild narrows the policy for the subtree below dep; implementations
// must not mutate shared state, a derived traverser is a fresh value.
type Traverser interface {
	Traverse(dep artifact.Dependency) bool
	DeriveChild(dep artifact.Dependency) Traverser
}

// Selector decides whether a dependency is included at all. A rejected
// dependency's subtree is omitted entirely.
type Selector interface {
	Select(dep artifact.Dependency) bool
	DeriveChild(dep artifact.Dependency) Selector
}

// Manager applies dependency-management overrides (version, scope,
// exclusions) before a dependency is selected.
type Manager interface {
	// Manage returns the managed dependency and whether anything changed.
	Manage(dep artifact.Dependency) (artifact.Dependency, bool)
	DeriveChild(dep artifact.Dependency) Manager
}

// Identity policies. These are plain values constructed per request, not
// shared singletons, so callers can embed them without aliasing concerns.

// IdentityTraverser always descends.
type IdentityTraverser struct{}

func (t IdentityTraverser) Traverse(artifact.Dependency) bool         { return true }
func (t IdentityTraverser) DeriveChild(artifact.Dependency) Traverser { return t }

// IdentitySelector always selects.
type IdentitySelector struct{}

func (s IdentitySelector) Select(artifact.Dependency) bool          { return true }
func (s IdentitySelector) DeriveChild(artifact.Dependency) Selector { return s }

// IdentityManager never overrides.
type IdentityManager struct{}

func (m IdentityManager) Manage(dep artifact.Dependency) (artifact.Dependency, bool) {
	return dep, false
}
func (m IdentityManager) DeriveChild(artifact.Dependency) Manager { return m }

// ScopeSelector rejects dependencies whose effective scope is listed.
// Deriving a child keeps the same excluded set.
type ScopeSelector struct {
	excluded map[string]bool
}

// NewScopeSelector builds a selector rejecting the given scopes.
func NewScopeSelector(excluded ...string) ScopeSelector {
	m := make(map[string]bool, len(excluded))
	for _, s := range excluded {
		m[s] = true
	}
	return ScopeSelector{excluded: m}
}

func (s ScopeSelector) Select(dep artifact.Dependency) bool {
	return !s.excluded[dep.EffectiveScope()]
}
func (s ScopeSelector) DeriveChild(artifact.Dependency) Selector { return s }

// OptionalSelector keeps direct optional dependencies but rejects optional
// dependencies below the first level, matching the usual build-tool rule.
type OptionalSelector struct {
	transitive bool
}

// NewOptionalSelector builds the selector at the direct-dependency level.
func NewOptionalSelector() OptionalSelector { return OptionalSelector{} }

func (s OptionalSelector) Select(dep artifact.Dependency) bool {
	return !s.transitive || !dep.Optional
}
func (s OptionalSelector) DeriveChild(artifact.Dependency) Selector {
	return OptionalSelector{transitive: true}
}

// ExclusionSelector rejects coordinates excluded by any ancestor dependency.
// Deriving a child merges the child's own exclusions into the inherited set.
type ExclusionSelector struct {
	exclusions []artifact.Exclusion
}

// NewExclusionSelector builds a selector with an initial exclusion set.
func NewExclusionSelector(excl ...artifact.Exclusion) ExclusionSelector {
	return ExclusionSelector{exclusions: excl}
}

func (s ExclusionSelector) Select(dep artifact.Dependency) bool {
	c := dep.Artifact.Coordinate
	for _, e := range s.exclusions {
		if e.Matches(c) {
			return false
		}
	}
	return true
}

func (s ExclusionSelector) DeriveChild(dep artifact.Dependency) Selector {
	own := dep.Exclusions()
	if len(own) == 0 {
		return s
	}
	merged := make([]artifact.Exclusion, 0, len(s.exclusions)+len(own))
	merged = append(merged, s.exclusions...)
	merged = append(merged, own...)
	return ExclusionSelector{exclusions: merged}
}

// AndSelector combines selectors; a dependency must pass all of them.
type AndSelector struct {
	selectors []Selector
}

// NewAndSelector combines the given selectors.
func NewAndSelector(selectors ...Selector) AndSelector {
	return AndSelector{selectors: selectors}
}

func (s AndSelector) Select(dep artifact.Dependency) bool {
	for _, sel := range s.selectors {
		if !sel.Select(dep) {
			return false
		}
	}
	return true
}

func (s AndSelector) DeriveChild(dep artifact.Dependency) Selector {
	derived := make([]Selector, len(s.selectors))
	for i, sel := range s.selectors {
		derived[i] = sel.DeriveChild(dep)
	}
	return AndSelector{selectors: derived}
}

// MapManager overrides version, scope and exclusions from a management
// table keyed by the versionless coordinate. Overrides apply below the
// level that declared them, so the root table is active from depth one.
type MapManager struct {
	table map[string]artifact.Dependency
}

// NewMapManager builds a manager from management entries. Later entries for
// the same coordinate win.
func NewMapManager(managed []artifact.Dependency) MapManager {
	table := make(map[string]artifact.Dependency, len(managed))
	for _, d := range managed {
		table[d.Artifact.Coordinate.Key()] = d
	}
	return MapManager{table: table}
}

// Premanaged property keys recording what management overrode.
const (
	PropPremanagedVersion = "premanaged.version"
	PropPremanagedScope   = "premanaged.scope"
)

func (m MapManager) Manage(dep artifact.Dependency) (artifact.Dependency, bool) {
	entry, ok := m.table[dep.Artifact.Coordinate.Key()]
	if !ok {
		return dep, false
	}
	changed := false
	if v := entry.Artifact.Coordinate.Version; v != "" && v != dep.Artifact.Coordinate.Version {
		dep = dep.WithArtifact(dep.Artifact.
			WithProperty(PropPremanagedVersion, dep.Artifact.Coordinate.Version)).
			WithVersion(v)
		changed = true
	}
	if s := entry.Scope; s != "" && s != dep.Scope {
		dep = dep.WithArtifact(dep.Artifact.WithProperty(PropPremanagedScope, dep.EffectiveScope())).
			WithScope(s)
		changed = true
	}
	if excl := entry.Exclusions(); len(excl) > 0 {
		dep = dep.AddExclusions(excl...)
		changed = true
	}
	return dep, changed
}

func (m MapManager) DeriveChild(artifact.Dependency) Manager { return m }
