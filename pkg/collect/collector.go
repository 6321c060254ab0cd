// Package collect expands declared dependencies into a dependency tree.
//
// The collector performs a recursive pre-order descent, applying the
// caller-supplied policies at each level: the Manager overrides version,
// scope and exclusions; the Selector decides inclusion; the Traverser
// decides descent. Version ranges and meta-versions are turned into
// concrete versions through the VersionChooser before a node is created.
//
// Conflict resolution runs inside the same traversal: the resolution-skip
// optimizer assigns one winner per versionless coordinate and marks
// redundant subtrees so their descriptors are never fetched, while the
// leftmost-override rule keeps scope attribution correct for duplicate
// occurrences reached through more leftward declaration paths.
//
// Collection degrades gracefully: descriptor read failures and dead version
// constraints become collect errors on the Result, true cycles become cycle
// descriptors, and the (possibly incomplete) tree is always returned.
package collect

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/version"
)

// VersionChooser resolves version constraints against repository metadata.
// Implemented by the version resolver; tests use in-memory fakes.
type VersionChooser interface {
	// Choose resolves a meta-version (RELEASE, LATEST) to a concrete
	// version.
	Choose(ctx context.Context, art artifact.Artifact, constraint version.Constraint, repos []repo.Remote) (version.Version, error)
	// Matching enumerates the available versions satisfying a range
	// constraint, ascending. An empty result is valid and not an error.
	Matching(ctx context.Context, art artifact.Artifact, constraint version.Constraint, repos []repo.Remote) ([]version.Version, error)
}

// Descriptor is a dependency's own transitive declaration, read from its
// resolved descriptor file.
type Descriptor struct {
	// Dependencies the artifact declares, in declaration order.
	Dependencies []artifact.Dependency
	// Managed entries contributed to the management table for the subtree.
	Managed []artifact.Dependency
	// Relocation redirects the whole artifact to another coordinate.
	Relocation *artifact.Coordinate
}

// DescriptorReader loads the descriptor of a concrete artifact.
type DescriptorReader interface {
	ReadDescriptor(ctx context.Context, art artifact.Artifact, repos []repo.Remote) (Descriptor, error)
}

// Request describes one collection run.
type Request struct {
	// Root is the root dependency; alternatively Dependencies lists direct
	// dependencies of an anonymous root.
	Root         *artifact.Dependency
	Dependencies []artifact.Dependency
	// Managed is the dependency-management table active from depth one.
	Managed      []artifact.Dependency
	Repositories []repo.Remote
	// Policies; nil fields default to identity implementations.
	Traverser Traverser
	Selector  Selector
	Manager   Manager
	// RequestContext tags nodes with the caller's context string
	// (e.g. "project/compile").
	RequestContext string
}

// Collector expands dependency trees. The zero value is not usable; create
// one with NewCollector.
type Collector struct {
	reader   DescriptorReader
	versions VersionChooser
	logger   *log.Logger
}

// NewCollector creates a collector. logger may be nil.
func NewCollector(reader DescriptorReader, versions VersionChooser, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Collector{reader: reader, versions: versions, logger: logger}
}

// state is the per-request mutable traversal state.
type state struct {
	req     Request
	skipper *skipper
	result  *Result
	seq     map[int]int // next sequence number per depth
	// pool gathers every declared constraint per versionless coordinate as
	// descriptors are read. Range resolution prefers a concrete
	// recommendation from the pool over the plain highest match, so a range
	// settles on the version its neighbors agree on when one fits.
	pool map[string][]version.Constraint
}

// register adds the raw constraints of declared dependencies to the pool.
func (st *state) register(deps []artifact.Dependency) {
	for _, d := range deps {
		raw := d.Artifact.Coordinate.Version
		c, err := version.ParseConstraint(raw)
		if err != nil {
			continue // malformed ranges surface when their node is built
		}
		key := d.Artifact.Coordinate.Key()
		st.pool[key] = append(st.pool[key], c)
	}
}

// recommended returns pool recommendations for a coordinate key that
// satisfy the given range, ascending.
func (st *state) recommended(key string, within version.Constraint) []version.Version {
	var out []version.Version
	for _, c := range st.pool[key] {
		v, ok := c.Recommended()
		if !ok || v.IsMeta() || v.String() == "" {
			continue
		}
		if within.Matches(v) {
			out = append(out, v)
		}
	}
	version.Sort(out)
	return out
}

// Collect expands the request into a dependency tree. The returned Result is
// always usable; Result.Errors carries non-fatal collect failures. The error
// return is non-nil only for an unusable request (no root and no direct
// dependencies).
func (c *Collector) Collect(ctx context.Context, req Request) (*Result, error) {
	if req.Root == nil && len(req.Dependencies) == 0 {
		return nil, errors.New(errors.ErrCodeCollect, "collection request has no dependencies")
	}
	if req.Traverser == nil {
		req.Traverser = IdentityTraverser{}
	}
	if req.Selector == nil {
		req.Selector = IdentitySelector{}
	}
	if req.Manager == nil {
		if len(req.Managed) > 0 {
			req.Manager = NewMapManager(req.Managed)
		} else {
			req.Manager = IdentityManager{}
		}
	}

	st := &state{
		req:     req,
		skipper: newSkipper(),
		result:  &Result{},
		seq:     make(map[int]int),
		pool:    make(map[string][]version.Constraint),
	}
	st.register(req.Dependencies)

	root := &Node{RequestContext: req.RequestContext, Repositories: req.Repositories}
	direct := req.Dependencies
	trav, sel, mgr := req.Traverser, req.Selector, req.Manager
	if req.Root != nil {
		root.Dependency = *req.Root
		if desc, ok := c.readDescriptor(ctx, st, req.Root.Artifact, req.Repositories, &mgr); ok {
			direct = desc.Dependencies
		}
		trav = trav.DeriveChild(*req.Root)
		sel = sel.DeriveChild(*req.Root)
	}

	st.result.Root = root
	c.collectLevel(ctx, st, root, direct, nil, nil, trav, sel, mgr, false, 1)
	st.result.Stats = st.skipper.stats

	c.logger.Debug("collection finished",
		"nodes", root.Count()-1,
		"resolved", st.result.Stats.Resolved,
		"forced", st.result.Stats.ForceResolved,
		"dup-skips", st.result.Stats.SkippedDuplicate,
		"conflict-skips", st.result.Stats.SkippedConflict,
		"cycles", len(st.result.Cycles),
		"errors", len(st.result.Errors))
	return st.result, nil
}

// readDescriptor reads an artifact's descriptor, merging its managed entries
// into the manager. Failures become collect errors and report ok=false; the
// caller keeps the node as a leaf so the tree stays usable.
func (c *Collector) readDescriptor(ctx context.Context, st *state, art artifact.Artifact, repos []repo.Remote, mgr *Manager) (Descriptor, bool) {
	desc, err := c.reader.ReadDescriptor(ctx, art, repos)
	if err != nil {
		st.result.Errors = append(st.result.Errors,
			errors.Wrap(errors.ErrCodeCollect, err, "read descriptor of %s", art.Coordinate))
		return Descriptor{}, false
	}
	if len(desc.Managed) > 0 {
		*mgr = mergeManaged(*mgr, desc.Managed)
	}
	st.register(desc.Dependencies)
	return desc, true
}

// collectLevel processes one list of sibling declarations at the given depth.
// path holds the ancestor coordinates, ancestors their positions; suppress
// marks descendants of a force-resolved node.
//
// Siblings with concrete versions are traversed first, range-constrained
// siblings afterward: by the time a range is resolved, the recommendations
// of the concrete subtrees at this level are in the constraint pool and can
// steer the range onto the version the rest of the graph already agreed on.
func (c *Collector) collectLevel(ctx context.Context, st *state, parent *Node,
	deps []artifact.Dependency, path []artifact.Coordinate, ancestors []Position,
	trav Traverser, sel Selector, mgr Manager, suppress bool, depth int) {

	var deferred []artifact.Dependency
	for _, declared := range deps {
		if cons, err := version.ParseConstraint(declared.Artifact.Coordinate.Version); err == nil && cons.IsRange() {
			deferred = append(deferred, declared)
			continue
		}
		c.collectOne(ctx, st, parent, declared, path, ancestors, trav, sel, mgr, suppress, depth)
	}
	for _, declared := range deferred {
		c.collectOne(ctx, st, parent, declared, path, ancestors, trav, sel, mgr, suppress, depth)
	}
}

// collectOne processes a single declaration and, when permitted, its subtree.
func (c *Collector) collectOne(ctx context.Context, st *state, parent *Node,
	declared artifact.Dependency, path []artifact.Coordinate, ancestors []Position,
	trav Traverser, sel Selector, mgr Manager, suppress bool, depth int) {

	if ctx.Err() != nil {
		st.result.Errors = append(st.result.Errors,
			errors.Wrap(errors.ErrCodeCollect, ctx.Err(), "collection interrupted"))
		return
	}

	dep, _ := mgr.Manage(declared)
	if !sel.Select(dep) {
		return
	}

	dep, err := c.concreteVersion(ctx, st, dep)
	if err != nil {
		st.result.Errors = append(st.result.Errors, err)
		return
	}

	coord := dep.Artifact.Coordinate
	if onPath(path, coord) {
		// A true cycle is recorded as a descriptor, never as a node: the
		// tree must not contain a node whose ancestor path repeats a
		// coordinate.
		st.result.Cycles = append(st.result.Cycles, Cycle{
			Coordinate: coord.Versionless(),
			Path:       append(clonePath(path), coord),
		})
		return
	}

	st.seq[depth]++
	node := &Node{
		Dependency:     dep,
		Repositories:   st.req.Repositories,
		RequestContext: st.req.RequestContext,
		Position:       Position{Depth: depth, Seq: st.seq[depth]},
	}
	parent.Children = append(parent.Children, node)

	node.Decision = st.skipper.decide(node, ancestors, suppress)
	if node.Decision.Skipped() {
		return
	}
	if !trav.Traverse(dep) {
		return
	}

	childMgr := mgr.DeriveChild(dep)
	desc, ok := c.readDescriptor(ctx, st, dep.Artifact, st.req.Repositories, &childMgr)
	if ok && desc.Relocation != nil {
		target := relocationTarget(node.Dependency.Artifact.Coordinate, *desc.Relocation)
		c.logger.Warn("artifact relocated",
			"from", node.Dependency.Artifact.Coordinate, "to", target)
		node.Relocated = true
		node.Dependency = node.Dependency.WithArtifact(
			artifact.New(target).WithProperties(node.Dependency.Artifact.Properties()))
		desc, ok = c.readDescriptor(ctx, st, node.Dependency.Artifact, st.req.Repositories, &childMgr)
	}
	if !ok || len(desc.Dependencies) == 0 {
		return
	}

	childSuppress := suppress || node.Decision == DecideForceResolve
	c.collectLevel(ctx, st, node,
		desc.Dependencies,
		append(clonePath(path), node.Dependency.Artifact.Coordinate),
		append(slices.Clone(ancestors), node.Position),
		trav.DeriveChild(dep), sel.DeriveChild(dep), childMgr,
		childSuppress, depth+1)
}

// concreteVersion replaces range and meta constraints with a concrete
// version chosen against repository metadata.
func (c *Collector) concreteVersion(ctx context.Context, st *state, dep artifact.Dependency) (artifact.Dependency, error) {
	raw := dep.Artifact.Coordinate.Version
	constraint, err := version.ParseConstraint(raw)
	if err != nil {
		return dep, errors.Wrap(errors.ErrCodeRangeResolution, err, "dependency %s", dep.Artifact.Coordinate)
	}
	if !constraint.IsRange() && !constraint.IsMeta() {
		return dep, nil
	}

	if constraint.IsMeta() {
		chosen, err := c.versions.Choose(ctx, dep.Artifact, constraint, st.req.Repositories)
		if err != nil {
			return dep, err
		}
		return dep.WithVersion(chosen.String()), nil
	}

	matching, err := c.versions.Matching(ctx, dep.Artifact, constraint, st.req.Repositories)
	if err != nil {
		return dep, err
	}
	if len(matching) == 0 {
		// An empty matching set is a valid resolver result, but a node
		// cannot exist without a concrete version.
		return dep, errors.New(errors.ErrCodeRangeResolution,
			"no version of %s satisfies %s", dep.Artifact.Coordinate.Key(), raw)
	}
	// Prefer the highest pool recommendation that is actually available
	// inside the range, so the range lands on the version concrete
	// declarations elsewhere already agreed on; otherwise take the highest
	// match.
	chosen := matching[len(matching)-1]
	for _, rec := range st.recommended(dep.Artifact.Coordinate.Key(), constraint) {
		if slices.ContainsFunc(matching, rec.Equal) {
			chosen = rec
		}
	}
	return dep.WithVersion(chosen.String()), nil
}

// relocationTarget fills the unset fields of a relocation with the original
// coordinate, so a descriptor may relocate just the group or just the name.
func relocationTarget(from, to artifact.Coordinate) artifact.Coordinate {
	if to.Group == "" {
		to.Group = from.Group
	}
	if to.Name == "" {
		to.Name = from.Name
	}
	if to.Extension == "" {
		to.Extension = from.Extension
	}
	if to.Version == "" {
		to.Version = from.Version
	}
	return to
}

// onPath reports whether the coordinate already occurs among the ancestors,
// comparing without versions.
func onPath(path []artifact.Coordinate, c artifact.Coordinate) bool {
	key := c.Key()
	for _, p := range path {
		if p.Key() == key {
			return true
		}
	}
	return false
}

// mergeManaged layers additional management entries over an existing
// manager. Entries closer to the root win, so existing overrides are kept.
func mergeManaged(base Manager, extra []artifact.Dependency) Manager {
	return chainManager{first: base, second: NewMapManager(extra)}
}

// chainManager applies the first manager, then the second only where the
// first made no change for the same aspect (version/scope take first-wins,
// exclusions accumulate).
type chainManager struct {
	first  Manager
	second Manager
}

func (m chainManager) Manage(dep artifact.Dependency) (artifact.Dependency, bool) {
	managed, changed1 := m.first.Manage(dep)
	if changed1 {
		// Nearest-to-root management wins outright.
		return managed, true
	}
	return m.second.Manage(managed)
}

func (m chainManager) DeriveChild(dep artifact.Dependency) Manager {
	return chainManager{first: m.first.DeriveChild(dep), second: m.second.DeriveChild(dep)}
}
