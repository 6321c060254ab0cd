// Package artifact defines the immutable value types that identify and
// describe artifacts, dependencies and repository metadata.
//
// All types in this package are value types: "setters" (WithVersion,
// WithFile, ...) return derived copies and never mutate the receiver, so a
// value handed to another component cannot change underneath it. Equality
// and map keys are defined on identity fields (the coordinate), never on
// extras like the resolved file.
package artifact

import "maps"

// Coordinate identifies an artifact: group, name, classifier, extension and
// version. The zero value is not a valid coordinate; Group and Name must be
// set.
type Coordinate struct {
	Group      string // reverse-domain group id (e.g. "org.example")
	Name       string // artifact name within the group
	Classifier string // optional qualifier (e.g. "sources"), may be empty
	Extension  string // file extension (e.g. "jar"), may be empty
	Version    string // concrete version or raw constraint text
}

// Key returns the versionless conflict key "group:name:classifier:extension".
// Two artifacts with the same Key compete for a single winner during
// conflict resolution regardless of their versions.
func (c Coordinate) Key() string {
	return c.Group + ":" + c.Name + ":" + c.Classifier + ":" + c.Extension
}

// ID returns the full identity "group:name:classifier:extension:version".
func (c Coordinate) ID() string {
	return c.Key() + ":" + c.Version
}

// String formats the coordinate in the compact "group:name:version" form
// used in logs and error messages, including classifier and extension only
// when set.
func (c Coordinate) String() string {
	s := c.Group + ":" + c.Name
	if c.Extension != "" {
		s += ":" + c.Extension
	}
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	if c.Version != "" {
		s += ":" + c.Version
	}
	return s
}

// WithVersion returns a copy of the coordinate with the version replaced.
func (c Coordinate) WithVersion(version string) Coordinate {
	c.Version = version
	return c
}

// Versionless returns a copy with the version cleared.
func (c Coordinate) Versionless() Coordinate {
	c.Version = ""
	return c
}

// Artifact is a coordinate plus free-form properties and, once resolved, the
// local file holding its content. An artifact is resolved iff File is
// non-empty.
type Artifact struct {
	Coordinate Coordinate
	File       string            // local path, empty until resolved
	properties map[string]string // never exposed for mutation
}

// New creates an artifact for the given coordinate with no properties.
func New(c Coordinate) Artifact {
	return Artifact{Coordinate: c}
}

// IsResolved reports whether the artifact has a local file.
func (a Artifact) IsResolved() bool { return a.File != "" }

// Property returns the named property, or def if unset.
func (a Artifact) Property(key, def string) string {
	if v, ok := a.properties[key]; ok {
		return v
	}
	return def
}

// Properties returns a copy of the property map. The returned map is owned
// by the caller.
func (a Artifact) Properties() map[string]string {
	if a.properties == nil {
		return map[string]string{}
	}
	return maps.Clone(a.properties)
}

// WithFile returns a copy of the artifact with the local file set.
func (a Artifact) WithFile(path string) Artifact {
	a.File = path
	return a
}

// WithVersion returns a copy of the artifact with the coordinate version
// replaced.
func (a Artifact) WithVersion(version string) Artifact {
	a.Coordinate = a.Coordinate.WithVersion(version)
	return a
}

// WithProperty returns a copy of the artifact with one property set. The
// receiver's map is cloned, so previously shared copies are unaffected.
func (a Artifact) WithProperty(key, value string) Artifact {
	props := maps.Clone(a.properties)
	if props == nil {
		props = make(map[string]string, 1)
	}
	props[key] = value
	a.properties = props
	return a
}

// WithProperties returns a copy of the artifact with the whole property map
// replaced by a clone of props.
func (a Artifact) WithProperties(props map[string]string) Artifact {
	a.properties = maps.Clone(props)
	return a
}
