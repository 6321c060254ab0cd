// Package session holds the per-resolution-run state shared by the
// resolvers: the offline flag, error-caching configuration and the typed
// session-lifetime caches (update-check memo, version metadata).
//
// A Session is created per logical resolution run and passed explicitly to
// the components that need it. Its caches are safe for concurrent use; the
// configuration fields are set once at construction and read-only afterward.
package session

import (
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarrybuild/quarry/pkg/version"
)

// MemoMode controls the session-scoped update-check memo.
type MemoMode int

const (
	// MemoEnabled records each (item, repository, policy) check once per
	// session; repeated checks short-circuit even under the "always" policy.
	MemoEnabled MemoMode = iota
	// MemoDisabled turns the memo off; every resolution re-evaluates.
	MemoDisabled
	// MemoBypass keeps recording but never short-circuits, forcing
	// re-checks while still tracking what was touched.
	MemoBypass
)

// ParseMemoMode maps the configuration strings enabled/disabled/bypass.
// Unknown values fall back to enabled.
func ParseMemoMode(s string) MemoMode {
	switch s {
	case "disabled":
		return MemoDisabled
	case "bypass":
		return MemoBypass
	default:
		return MemoEnabled
	}
}

const (
	memoSize         = 8192
	versionCacheSize = 2048
)

// Session is the per-run state container.
type Session struct {
	ID                  string // unique run id, for log correlation
	Offline             bool   // remote access forbidden when set
	CacheNotFound       bool   // reuse cached not-found results
	CacheTransferErrors bool   // reuse cached transfer-error results
	MemoMode            MemoMode

	checked  *lru.Cache[string, struct{}]
	versions *lru.Cache[string, []version.Version]
}

// New creates a session with error caching fully enabled and the memo on.
func New() *Session {
	checked, _ := lru.New[string, struct{}](memoSize)
	versions, _ := lru.New[string, []version.Version](versionCacheSize)
	return &Session{
		ID:                  uuid.NewString(),
		CacheNotFound:       true,
		CacheTransferErrors: true,
		checked:             checked,
		versions:            versions,
	}
}

// MarkChecked records that the keyed update check ran in this session.
func (s *Session) MarkChecked(key string) {
	if s.MemoMode == MemoDisabled {
		return
	}
	s.checked.Add(key, struct{}{})
}

// WasChecked reports whether the keyed update check already ran and the
// memo mode permits short-circuiting on it.
func (s *Session) WasChecked(key string) bool {
	if s.MemoMode != MemoEnabled {
		return false
	}
	return s.checked.Contains(key)
}

// CacheVersions stores a repository's version enumeration for a metadata
// key, avoiding repeated metadata resolution within one run.
func (s *Session) CacheVersions(key string, vs []version.Version) {
	s.versions.Add(key, vs)
}

// CachedVersions returns a previously stored version enumeration.
func (s *Session) CachedVersions(key string) ([]version.Version, bool) {
	return s.versions.Get(key)
}
