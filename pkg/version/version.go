// Package version models artifact versions and version constraints.
//
// Versions are thin wrappers around github.com/Masterminds/semver/v3, which
// supplies the total order used for range resolution. Constraints come in
// three shapes: a plain version (a recommendation, matching anything),
// interval ranges such as "[1.0,2.0)" or "(,1.0],[1.2,)", and the floating
// meta-versions RELEASE and LATEST that are replaced by a concrete version
// at resolution time.
package version

import (
	"slices"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Meta-versions understood by the version resolver.
const (
	MetaRelease = "RELEASE" // newest non-snapshot version
	MetaLatest  = "LATEST"  // newest version including snapshots
)

// SnapshotSuffix marks snapshot versions.
const SnapshotSuffix = "-SNAPSHOT"

// Version is a single artifact version with a total order.
type Version struct {
	raw string
	v   *mm.Version // nil when raw is not coercible to semver
}

// Parse creates a Version from raw. Raw strings that cannot be coerced to
// semver (e.g. "1.0-rc-build.17+x") still produce a usable Version; such
// versions order lexicographically among themselves and below any parsable
// version.
func Parse(raw string) Version {
	v, err := mm.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return Version{raw: raw}
	}
	return Version{raw: raw, v: v}
}

// String returns the original version text.
func (a Version) String() string { return a.raw }

// IsSnapshot reports whether the version carries the snapshot suffix.
func (a Version) IsSnapshot() bool {
	return strings.HasSuffix(strings.ToUpper(a.raw), SnapshotSuffix)
}

// IsMeta reports whether the version text is a floating meta-version.
func (a Version) IsMeta() bool {
	return a.raw == MetaRelease || a.raw == MetaLatest
}

// Compare returns -1, 0 or 1 as a sorts before, equal to or after b.
func (a Version) Compare(b Version) int {
	switch {
	case a.v != nil && b.v != nil:
		if c := a.v.Compare(b.v); c != 0 {
			return c
		}
		// Same semver value, distinct spellings ("1.0" vs "1.0.0"):
		// fall back to the raw text so the order is total.
		return strings.Compare(a.raw, b.raw)
	case a.v == nil && b.v == nil:
		return strings.Compare(a.raw, b.raw)
	case a.v == nil:
		return -1
	default:
		return 1
	}
}

// Equal reports whether the two versions have identical text.
func (a Version) Equal(b Version) bool { return a.raw == b.raw }

// Sort orders versions ascending in place.
func Sort(vs []Version) {
	slices.SortStableFunc(vs, Version.Compare)
}

// MustParse is Parse; it exists for symmetry with constraint parsing in
// tests and never fails.
func MustParse(raw string) Version { return Parse(raw) }
