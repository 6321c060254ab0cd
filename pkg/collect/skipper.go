package collect

// skipper is the resolution-skip optimizer: it decides, per node and in
// traversal order, whether the node's descriptor must be independently
// resolved or may reuse a sibling's result.
//
// State is scoped to a single collection request:
//   - winners maps a versionless coordinate to the node currently holding
//     the win for it. The first occurrence wins, except that a later
//     occurrence of the exact same artifact at a strictly shallower depth
//     takes the win over (the winner is the first occurrence at the
//     shallowest depth).
//   - leftmost maps an exact artifact id to the position of the node most
//     recently resolved for it, used for the leftmost-override tie-break.
type skipper struct {
	winners  map[string]*Node
	leftmost map[string]Position
	stats    Stats
}

func newSkipper() *skipper {
	return &skipper{
		winners:  make(map[string]*Node),
		leftmost: make(map[string]Position),
	}
}

// decide classifies node given its ancestor positions. suppress marks nodes
// below a force-resolved parent: they are classified as usual but never
// update the shared winner/leftmost state, because a force-resolved subtree
// is already known to be a whole-graph loser and was resolved only to
// recover scope attribution.
func (s *skipper) decide(node *Node, ancestors []Position, suppress bool) Decision {
	art := node.Dependency.Artifact
	key := art.Coordinate.Key()
	id := art.Coordinate.ID()

	winner, seen := s.winners[key]
	switch {
	case seen && winner.Dependency.Artifact.Coordinate.Version != art.Coordinate.Version:
		s.stats.SkippedConflict++
		return DecideSkipVersionConflict

	case seen && !suppress && node.Position.Depth < winner.Position.Depth && winner.Decision == DecideResolve:
		// Same artifact reappearing at a shallower depth: the win moves to
		// this occurrence and the deeper one becomes the duplicate.
		winner.Decision = DecideSkipDuplicate
		s.stats.SkippedDuplicate++
		s.stats.Resolved--
		return s.resolveAndCache(node, key, id, suppress)

	case seen:
		if s.isLeftmost(id, ancestors) {
			s.stats.ForceResolved++
			// The leftmost table tracks the most recent node actually
			// resolved for the exact artifact; a forced resolution counts.
			// The winner cache is untouched: the node is still a loser.
			if !suppress {
				s.leftmost[id] = node.Position
			}
			return DecideForceResolve
		}
		s.stats.SkippedDuplicate++
		return DecideSkipDuplicate

	default:
		return s.resolveAndCache(node, key, id, suppress)
	}
}

func (s *skipper) resolveAndCache(node *Node, key, id string, suppress bool) Decision {
	s.stats.Resolved++
	if !suppress {
		s.winners[key] = node
		s.leftmost[id] = node.Position
	}
	return DecideResolve
}

// isLeftmost reports whether the current occurrence is reached through a
// sibling branch declared before the one that resolved the cached entry.
// The cached position must lie at a depth covered by the current ancestor
// path, and the ancestor at that depth must carry a strictly later sequence
// number than the cached node. Equal sequences mean the same branch and do
// not override; a missing cache entry never overrides.
func (s *skipper) isLeftmost(id string, ancestors []Position) bool {
	cached, ok := s.leftmost[id]
	if !ok || cached.Depth > len(ancestors) {
		return false
	}
	return ancestors[cached.Depth-1].Seq > cached.Seq
}
