package collect

import (
	"testing"
)

func nodeAt(name, ver string, depth, seq int) *Node {
	return &Node{
		Dependency: dep(name, ver),
		Position:   Position{Depth: depth, Seq: seq},
	}
}

func decide(t *testing.T, s *skipper, n *Node, ancestors []Position, suppress bool) Decision {
	t.Helper()
	n.Decision = s.decide(n, ancestors, suppress)
	return n.Decision
}

func TestSkipperFirstOccurrenceResolves(t *testing.T) {
	s := newSkipper()
	if got := decide(t, s, nodeAt("x", "1.0", 1, 1), nil, false); got != DecideResolve {
		t.Errorf("decision = %v, want resolve", got)
	}
	if s.stats.Resolved != 1 {
		t.Errorf("stats = %+v", s.stats)
	}
}

func TestSkipperVersionConflict(t *testing.T) {
	s := newSkipper()
	decide(t, s, nodeAt("x", "1.0", 1, 1), nil, false)
	if got := decide(t, s, nodeAt("x", "2.0", 2, 1), []Position{{1, 2}}, false); got != DecideSkipVersionConflict {
		t.Errorf("decision = %v, want skip-version-conflict", got)
	}
}

func TestSkipperDuplicateWithoutOverride(t *testing.T) {
	s := newSkipper()
	decide(t, s, nodeAt("x", "1.0", 2, 1), []Position{{1, 1}}, false)
	// Same branch family, ancestor seq at cached depth not later: plain skip.
	got := decide(t, s, nodeAt("x", "1.0", 3, 1), []Position{{1, 1}, {2, 1}}, false)
	if got != DecideSkipDuplicate {
		t.Errorf("decision = %v, want skip-duplicate", got)
	}
}

func TestSkipperLeftmostOverrideForcesResolve(t *testing.T) {
	// Root -> A, B. A -> X resolves first at (2,1). B -> C -> X: the cached
	// entry sits at depth 2, the current ancestor at depth 2 is C with seq 2,
	// later than the cached seq 1, so the occurrence is more leftward in
	// declaration order and must be resolved for scope attribution.
	s := newSkipper()
	decide(t, s, nodeAt("x", "1.0", 2, 1), []Position{{1, 1}}, false)

	got := decide(t, s, nodeAt("x", "1.0", 3, 1), []Position{{1, 2}, {2, 2}}, false)
	if got != DecideForceResolve {
		t.Errorf("decision = %v, want force-resolve", got)
	}
	if s.stats.ForceResolved != 1 {
		t.Errorf("stats = %+v", s.stats)
	}
	// The win itself never moves on a force-resolve.
	if w := s.winners["g:x::jar"]; w == nil || w.Position != (Position{2, 1}) {
		t.Errorf("winner moved: %+v", w)
	}
}

func TestSkipperEqualSeqDoesNotOverride(t *testing.T) {
	s := newSkipper()
	decide(t, s, nodeAt("x", "1.0", 2, 1), []Position{{1, 1}}, false)
	// Ancestor at the cached depth has the same seq: same branch, no override.
	got := decide(t, s, nodeAt("x", "1.0", 3, 2), []Position{{1, 1}, {2, 1}}, false)
	if got != DecideSkipDuplicate {
		t.Errorf("decision = %v, want skip-duplicate", got)
	}
}

func TestSkipperCachedDepthBeyondAncestorsDoesNotOverride(t *testing.T) {
	s := newSkipper()
	decide(t, s, nodeAt("x", "1.0", 3, 1), []Position{{1, 1}, {2, 1}}, false)
	// Duplicate at depth 2 has only one ancestor; the cached depth 3 entry
	// is out of range and cannot justify an override. Depth 2 < 3 re-homes
	// the win instead.
	got := decide(t, s, nodeAt("x", "1.0", 2, 2), []Position{{1, 2}}, false)
	if got != DecideResolve {
		t.Errorf("decision = %v, want resolve (re-homed win)", got)
	}
}

func TestSkipperShallowerDuplicateTakesWin(t *testing.T) {
	s := newSkipper()
	deep := nodeAt("x", "1.0", 3, 1)
	decide(t, s, deep, []Position{{1, 1}, {2, 1}}, false)

	shallow := nodeAt("x", "1.0", 2, 3)
	if got := decide(t, s, shallow, []Position{{1, 2}}, false); got != DecideResolve {
		t.Fatalf("shallow duplicate = %v, want resolve", got)
	}
	if deep.Decision != DecideSkipDuplicate {
		t.Errorf("deeper occurrence = %v, want skip-duplicate", deep.Decision)
	}
	if s.stats.Resolved != 1 || s.stats.SkippedDuplicate != 1 {
		t.Errorf("stats = %+v", s.stats)
	}
	if w := s.winners["g:x::jar"]; w != shallow {
		t.Error("win did not move to the shallower occurrence")
	}
}

func TestSkipperSuppressedNodesLeaveStateUntouched(t *testing.T) {
	s := newSkipper()
	if got := decide(t, s, nodeAt("y", "1.0", 3, 1), []Position{{1, 1}, {2, 1}}, true); got != DecideResolve {
		t.Fatalf("decision = %v, want resolve", got)
	}
	if len(s.winners) != 0 || len(s.leftmost) != 0 {
		t.Error("suppressed resolution must not populate winner or leftmost caches")
	}
}
