package update

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/session"
)

var central = repo.Remote{ID: "central", URL: "https://repo.example/maven2"}

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(session.New(), nil)
}

func newCheck(t *testing.T, policy string) *Check {
	t.Helper()
	return &Check{
		Item:       "org.example:lib::jar:1.0",
		File:       filepath.Join(t.TempDir(), "lib-1.0.jar"),
		Repository: central,
		Policy:     policy,
	}
}

func TestEvaluateMissingLocalCopyRequiresTransfer(t *testing.T) {
	m := testManager(t)
	chk := newCheck(t, repo.UpdateDaily)
	m.Evaluate(chk)
	if !chk.Required {
		t.Error("missing local copy must require a transfer")
	}
	if chk.Error != nil {
		t.Errorf("unexpected replayed error: %v", chk.Error)
	}
}

func TestEvaluateStaleness(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		policy   string
		age      time.Duration
		required bool
	}{
		{"always is always stale", repo.UpdateAlways, time.Minute, true},
		{"never is never stale", repo.UpdateNever, 365 * 24 * time.Hour, false},
		{"daily fresh same day", repo.UpdateDaily, 2 * time.Hour, false},
		{"daily stale across midnight", repo.UpdateDaily, 14 * time.Hour, true},
		{"interval fresh", "interval:60", 30 * time.Minute, false},
		{"interval stale", "interval:60", 90 * time.Minute, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := testManager(t)
			m.now = func() time.Time { return now }
			chk := newCheck(t, tc.policy)
			chk.LocalLastUpdated = now.Add(-tc.age)
			m.Evaluate(chk)
			if chk.Required != tc.required {
				t.Errorf("required = %v, want %v", chk.Required, tc.required)
			}
		})
	}
}

func TestRecordSuccessThenFreshCopy(t *testing.T) {
	m := testManager(t)
	chk := newCheck(t, repo.UpdateDaily)
	m.Evaluate(chk)
	if !chk.Required {
		t.Fatal("first check must require a transfer")
	}
	m.Record(chk, nil)

	rec, ok := m.markers.Get(chk.File, central.ID)
	if !ok || rec.Failed() {
		t.Fatalf("marker after success = %+v, ok=%v", rec, ok)
	}
}

func TestCachedNotFoundIsReplayed(t *testing.T) {
	m := testManager(t)
	chk := newCheck(t, repo.UpdateDaily)
	m.Evaluate(chk)
	m.Record(chk, errors.New(errors.ErrCodeNotFound, "lib-1.0.jar missing in central"))

	// A different session: the memo does not mask the marker.
	m2 := NewManager(session.New(), nil)
	chk2 := newCheck(t, repo.UpdateDaily)
	chk2.File = chk.File
	m2.Evaluate(chk2)

	if chk2.Required {
		t.Error("fresh cached not-found must short-circuit the check")
	}
	if chk2.Error == nil {
		t.Fatal("cached failure must be replayed")
	}
	if !IsFromCache(chk2.Error) {
		t.Error("replayed error must be tagged as from-cache")
	}
	if !errors.Is(chk2.Error, errors.ErrCodeNotFound) {
		t.Errorf("replayed error code = %v", errors.GetCode(chk2.Error))
	}
}

func TestCachedFailureIgnoredWhenBitDisabled(t *testing.T) {
	m := testManager(t)
	chk := newCheck(t, repo.UpdateDaily)
	m.Evaluate(chk)
	m.Record(chk, errors.New(errors.ErrCodeNotFound, "missing"))

	sess := session.New()
	sess.CacheNotFound = false
	m2 := NewManager(sess, nil)
	chk2 := newCheck(t, repo.UpdateDaily)
	chk2.File = chk.File
	m2.Evaluate(chk2)

	if !chk2.Required {
		t.Error("with CacheNotFound off the check must be required")
	}
}

func TestMemoizedReplayHonorsErrorCachingBits(t *testing.T) {
	// A previous session cached a not-found marker.
	m := testManager(t)
	chk := newCheck(t, repo.UpdateDaily)
	m.Evaluate(chk)
	m.Record(chk, errors.New(errors.ErrCodeNotFound, "missing"))

	// This session has CacheNotFound off: the live attempt is required,
	// fails again, and recording it memoizes the key without refreshing
	// the marker.
	sess := session.New()
	sess.CacheNotFound = false
	m2 := NewManager(sess, nil)
	chk2 := newCheck(t, repo.UpdateDaily)
	chk2.File = chk.File
	m2.Evaluate(chk2)
	if !chk2.Required {
		t.Fatal("with CacheNotFound off the check must be required")
	}
	m2.Record(chk2, errors.New(errors.ErrCodeNotFound, "still missing"))

	// The memoized path must not replay the old marker either.
	chk3 := newCheck(t, repo.UpdateDaily)
	chk3.File = chk.File
	m2.Evaluate(chk3)
	if chk3.Required {
		t.Error("memoized check must not be required")
	}
	if chk3.Error != nil {
		t.Errorf("marker replayed despite CacheNotFound off: %v", chk3.Error)
	}
}

func TestStaleCachedFailureRequiresRecheck(t *testing.T) {
	m := testManager(t)
	chk := newCheck(t, "interval:10")
	m.Evaluate(chk)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	m.Record(chk, errors.New(errors.ErrCodeTransfer, "connection reset"))
	m.now = time.Now

	m2 := NewManager(session.New(), nil)
	chk2 := newCheck(t, "interval:10")
	chk2.File = chk.File
	m2.Evaluate(chk2)

	if !chk2.Required {
		t.Error("stale cached failure must require a re-check")
	}
}

func TestOfflineViolationNeverCached(t *testing.T) {
	m := testManager(t)
	chk := newCheck(t, repo.UpdateDaily)
	m.Evaluate(chk)
	m.Record(chk, errors.New(errors.ErrCodeOffline, "remote access disabled"))

	if rec, ok := m.markers.Get(chk.File, central.ID); ok && rec.Failed() {
		t.Errorf("offline violation was cached: %+v", rec)
	}
}

func TestSessionMemoShortCircuitsAlwaysPolicy(t *testing.T) {
	m := testManager(t)
	chk := newCheck(t, repo.UpdateAlways)
	chk.LocalLastUpdated = time.Now()
	m.Evaluate(chk)
	if !chk.Required {
		t.Fatal("always policy must require the first check")
	}
	m.Record(chk, nil)

	chk2 := newCheck(t, repo.UpdateAlways)
	chk2.File = chk.File
	chk2.LocalLastUpdated = time.Now()
	m.Evaluate(chk2)
	if chk2.Required {
		t.Error("second check in the same session must short-circuit")
	}
}

func TestMemoBypassForcesRecheck(t *testing.T) {
	sess := session.New()
	sess.MemoMode = session.MemoBypass
	m := NewManager(sess, nil)
	chk := newCheck(t, repo.UpdateAlways)
	chk.LocalLastUpdated = time.Now()
	m.Evaluate(chk)
	m.Record(chk, nil)

	chk2 := newCheck(t, repo.UpdateAlways)
	chk2.File = chk.File
	chk2.LocalLastUpdated = time.Now()
	m.Evaluate(chk2)
	if !chk2.Required {
		t.Error("bypass mode must force the re-check")
	}
}

func TestMarkerStoreSeparatesRepositories(t *testing.T) {
	var store MarkerStore
	file := filepath.Join(t.TempDir(), "lib-1.0.jar")
	ts := time.Now().Truncate(time.Second)

	if err := store.Put(file, "central", Record{Updated: ts}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(file, "mirror", Record{Updated: ts, ErrorCode: "NOT_FOUND", ErrorMessage: "missing"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec, ok := store.Get(file, "central")
	if !ok || rec.Failed() {
		t.Errorf("central record = %+v, ok=%v", rec, ok)
	}
	rec, ok = store.Get(file, "mirror")
	if !ok || !rec.Failed() {
		t.Errorf("mirror record = %+v, ok=%v", rec, ok)
	}

	if err := store.Drop(file, "mirror"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, ok := store.Get(file, "mirror"); ok {
		t.Error("dropped record still present")
	}
	if _, ok := store.Get(file, "central"); !ok {
		t.Error("unrelated record lost on drop")
	}
}
