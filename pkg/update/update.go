// Package update implements the staleness and negative-result caching that
// gates remote access: given a local copy's age (or a previously cached
// failure) and the repository's update policy, it decides whether a remote
// check is required.
//
// Decisions are memoized per session so that even under the "always" policy
// each (item, repository, policy) combination is checked at most once per
// resolution run.
package update

import (
	stderrors "errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/session"
)

// Check is one update-check evaluation. Callers fill the input fields; the
// manager sets Required and, when a cached failure is replayed, Error.
type Check struct {
	// Item identifies the artifact or metadata being checked, used for the
	// session memo and log messages.
	Item string
	// File is the local path the item caches to; its marker file lives next
	// to it.
	File string
	// Repository is the remote the item would be fetched from.
	Repository repo.Remote
	// Policy is the effective update policy for this evaluation.
	Policy string
	// LocalLastUpdated is the modification time of an existing local copy,
	// zero when no local copy exists.
	LocalLastUpdated time.Time

	// Required reports whether a remote transfer must happen.
	Required bool
	// Error carries a replayed cached failure when the check short-circuits
	// on a fresh negative result. It unwraps to the original typed error.
	Error error
}

// CachedFailure wraps an error replayed from the marker store instead of
// being observed live.
type CachedFailure struct {
	Err error
}

func (e *CachedFailure) Error() string { return e.Err.Error() + " (from cache)" }
func (e *CachedFailure) Unwrap() error { return e.Err }

// IsFromCache reports whether err was replayed from the marker store.
func IsFromCache(err error) bool {
	var c *CachedFailure
	return stderrors.As(err, &c)
}

// Manager evaluates update checks and records their outcomes.
type Manager struct {
	markers MarkerStore
	session *session.Session
	logger  *log.Logger
	now     func() time.Time
}

// NewManager creates a manager bound to one session. logger may be nil.
func NewManager(sess *session.Session, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{session: sess, logger: logger, now: time.Now}
}

func (m *Manager) memoKey(chk *Check) string {
	return chk.Item + "|" + chk.Repository.ID + "|" + chk.Policy
}

// Evaluate decides whether chk requires a remote transfer.
//
// A check is required when no local copy exists, when the local copy has
// gone stale under the policy, or when a cached negative result has itself
// gone stale. It is not required when the local copy is fresh, when a fresh
// cached failure may be reused under the session's error-caching bits (the
// failure is then replayed on chk.Error), or when the same check already
// ran in this session.
func (m *Manager) Evaluate(chk *Check) {
	policy := repo.Policy{Update: chk.Policy}.EffectiveUpdate()
	key := m.memoKey(chk)

	if m.session.WasChecked(key) {
		chk.Required = false
		if chk.LocalLastUpdated.IsZero() {
			rec, ok := m.markers.Get(chk.File, chk.Repository.ID)
			if ok && rec.Failed() && m.reusable(rec.ErrorCode) {
				chk.Error = m.replay(chk, rec)
			}
		}
		return
	}

	if !chk.LocalLastUpdated.IsZero() {
		chk.Required = m.stale(policy, chk.LocalLastUpdated)
		if !chk.Required {
			m.session.MarkChecked(key)
		}
		return
	}

	rec, ok := m.markers.Get(chk.File, chk.Repository.ID)
	if !ok || !rec.Failed() {
		chk.Required = true
		return
	}
	if m.stale(policy, rec.Updated) || !m.reusable(rec.ErrorCode) {
		chk.Required = true
		return
	}
	chk.Required = false
	chk.Error = m.replay(chk, rec)
	m.session.MarkChecked(key)
	m.logger.Debug("update check short-circuited on cached failure",
		"item", chk.Item, "repo", chk.Repository.ID, "code", rec.ErrorCode)
}

// Record persists the outcome of a transfer attempt for future checks.
// Success clears any cached failure; a failure is cached only when its
// error code is cacheable and the session's error-caching bits allow reuse.
// Offline violations and cancellations are never cached.
func (m *Manager) Record(chk *Check, transferErr error) {
	key := m.memoKey(chk)
	m.session.MarkChecked(key)

	if transferErr == nil {
		if err := m.markers.Put(chk.File, chk.Repository.ID, Record{Updated: m.now()}); err != nil {
			m.logger.Warn("write staleness marker", "file", chk.File, "err", err)
		}
		return
	}

	code := errors.GetCode(transferErr)
	if !errors.Cacheable(transferErr) || !m.reusable(string(code)) {
		return
	}
	rec := Record{
		Updated:      m.now(),
		ErrorCode:    string(code),
		ErrorMessage: transferErr.Error(),
	}
	if err := m.markers.Put(chk.File, chk.Repository.ID, rec); err != nil {
		m.logger.Warn("write staleness marker", "file", chk.File, "err", err)
	}
}

// replay turns a cached record back into a typed error.
func (m *Manager) replay(chk *Check, rec Record) error {
	return &CachedFailure{Err: errors.New(errors.Code(rec.ErrorCode),
		"%s from %s: %s", chk.Item, chk.Repository.ID, rec.ErrorMessage)}
}

// reusable reports whether the session's error-caching configuration allows
// reusing a cached failure of the given code.
func (m *Manager) reusable(code string) bool {
	switch errors.Code(code) {
	case errors.ErrCodeNotFound:
		return m.session.CacheNotFound
	case errors.ErrCodeTransfer:
		return m.session.CacheTransferErrors
	default:
		return false
	}
}

// stale reports whether a timestamp predates the policy's staleness
// threshold.
func (m *Manager) stale(policy string, last time.Time) bool {
	now := m.now()
	switch policy {
	case repo.UpdateAlways:
		return true
	case repo.UpdateNever:
		return false
	case repo.UpdateDaily:
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return last.Before(midnight)
	default:
		if minutes, ok := repo.IntervalMinutes(policy); ok {
			return now.Sub(last) > time.Duration(minutes)*time.Minute
		}
		// Unknown policies behave like daily, the safe default.
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return last.Before(midnight)
	}
}
