package artifact

import "slices"

// Well-known dependency scopes. Scopes are plain labels; the collector and
// transformers interpret them but the data model does not restrict the set.
const (
	ScopeCompile  = "compile"
	ScopeRuntime  = "runtime"
	ScopeProvided = "provided"
	ScopeTest     = "test"
	ScopeSystem   = "system"
)

// Exclusion names a subtree that must not be collected beneath a dependency.
// Group and Name may each be "*" to match anything.
type Exclusion struct {
	Group string
	Name  string
}

// Matches reports whether the exclusion applies to the coordinate.
func (e Exclusion) Matches(c Coordinate) bool {
	return (e.Group == "*" || e.Group == c.Group) &&
		(e.Name == "*" || e.Name == c.Name)
}

// Dependency declares a requirement on an artifact with a scope, an optional
// flag and a set of exclusions. Dependencies are never mutated after
// creation; managed or otherwise adjusted variants are derived copies.
type Dependency struct {
	Artifact   Artifact
	Scope      string // empty means ScopeCompile
	Optional   bool
	exclusions []Exclusion
}

// NewDependency creates a dependency on art with the given scope.
func NewDependency(art Artifact, scope string) Dependency {
	return Dependency{Artifact: art, Scope: scope}
}

// EffectiveScope returns the scope, defaulting to compile when empty.
func (d Dependency) EffectiveScope() string {
	if d.Scope == "" {
		return ScopeCompile
	}
	return d.Scope
}

// Exclusions returns a copy of the exclusion set.
func (d Dependency) Exclusions() []Exclusion {
	return slices.Clone(d.exclusions)
}

// Excludes reports whether the coordinate is excluded beneath this
// dependency.
func (d Dependency) Excludes(c Coordinate) bool {
	for _, e := range d.exclusions {
		if e.Matches(c) {
			return true
		}
	}
	return false
}

// WithArtifact returns a copy with the artifact replaced.
func (d Dependency) WithArtifact(art Artifact) Dependency {
	d.Artifact = art
	return d
}

// WithVersion returns a copy with the artifact's version replaced.
func (d Dependency) WithVersion(version string) Dependency {
	d.Artifact = d.Artifact.WithVersion(version)
	return d
}

// WithScope returns a copy with the scope replaced.
func (d Dependency) WithScope(scope string) Dependency {
	d.Scope = scope
	return d
}

// WithOptional returns a copy with the optional flag replaced.
func (d Dependency) WithOptional(optional bool) Dependency {
	d.Optional = optional
	return d
}

// WithExclusions returns a copy whose exclusion set is a clone of excl.
func (d Dependency) WithExclusions(excl []Exclusion) Dependency {
	d.exclusions = slices.Clone(excl)
	return d
}

// AddExclusions returns a copy with excl appended to the exclusion set.
func (d Dependency) AddExclusions(excl ...Exclusion) Dependency {
	merged := make([]Exclusion, 0, len(d.exclusions)+len(excl))
	merged = append(merged, d.exclusions...)
	merged = append(merged, excl...)
	d.exclusions = merged
	return d
}
