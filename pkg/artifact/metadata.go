package artifact

// Nature describes which kind of versions a piece of repository metadata
// enumerates.
type Nature int

const (
	// Release metadata covers released versions only.
	Release Nature = iota
	// Snapshot metadata covers snapshot versions only.
	Snapshot
	// ReleaseOrSnapshot metadata covers both.
	ReleaseOrSnapshot
)

// String returns the lowercase label used in paths and logs.
func (n Nature) String() string {
	switch n {
	case Release:
		return "release"
	case Snapshot:
		return "snapshot"
	default:
		return "release+snapshot"
	}
}

// IncludesSnapshots reports whether the nature admits snapshot versions.
func (n Nature) IncludesSnapshots() bool { return n != Release }

// Metadata identifies repository metadata at group, group+name or
// group+name+version level. Unset fields widen the level: a Metadata with
// only Group set addresses group-level metadata. Like Artifact, the value is
// resolved iff File is non-empty.
type Metadata struct {
	Group   string
	Name    string // empty for group-level metadata
	Version string // empty for group- or name-level metadata
	Nature  Nature
	File    string // local path, empty until resolved
}

// ID returns the identity string "group:name:version" with empty segments
// kept, suitable as a cache or lock key component.
func (m Metadata) ID() string {
	return m.Group + ":" + m.Name + ":" + m.Version
}

// String formats the metadata identity for logs.
func (m Metadata) String() string {
	s := m.Group
	if m.Name != "" {
		s += ":" + m.Name
	}
	if m.Version != "" {
		s += ":" + m.Version
	}
	return s
}

// WithFile returns a copy of the metadata with the local file set.
func (m Metadata) WithFile(path string) Metadata {
	m.File = path
	return m
}

// IsResolved reports whether the metadata has a local file.
func (m Metadata) IsResolved() bool { return m.File != "" }
