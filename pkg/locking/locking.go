// Package locking serializes access to the local repository. All reads and
// writes of a given artifact's or metadata's local storage happen under a
// named lock derived from its coordinates, so concurrent resolutions
// sharing one local repository never interleave partial writes.
//
// Locks are acquired through a Context covering a whole set of resources at
// once, in sorted name order, which makes the acquisition order globally
// consistent across callers and rules out circular waits.
package locking

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/errors"
)

// Mode is the lock mode requested for a context.
type Mode int

const (
	// Shared permits concurrent readers of already-cached content.
	Shared Mode = iota
	// Exclusive is required to write local-repository state.
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// Provider supplies the underlying named-lock primitive. Acquire blocks
// until the lock is held or ctx is done and returns the matching release
// function.
type Provider interface {
	Acquire(ctx context.Context, name string, exclusive bool) (release func(), err error)
}

// Resource is one item to lock: its lock name and whether its content is
// still missing locally (first-time writers need exclusivity, readers of
// cached content do not).
type Resource struct {
	Name    string
	Missing bool
}

// Discriminator derives the lock-name prefix isolating one (host, local
// repository) pair from unrelated repositories sharing the same lock
// backend.
func Discriminator(localBase string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	h := fnv.New32a()
	h.Write([]byte(host))
	h.Write([]byte(":"))
	h.Write([]byte(localBase))
	return fmt.Sprintf("%08x", h.Sum32())
}

// Manager creates lock contexts over one provider and discriminator.
type Manager struct {
	provider      Provider
	discriminator string
	// UpgradeMissing lets a shared context take exclusive locks on
	// resources that have no local copy yet.
	UpgradeMissing bool
	logger         *log.Logger
}

// NewManager creates a manager. logger may be nil.
func NewManager(provider Provider, discriminator string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{provider: provider, discriminator: discriminator, logger: logger}
}

// ArtifactResource builds the lock resource for an artifact.
func (m *Manager) ArtifactResource(a artifact.Artifact, locallyPresent bool) Resource {
	return Resource{
		Name:    m.discriminator + ":artifact:" + a.Coordinate.ID(),
		Missing: !locallyPresent,
	}
}

// MetadataResource builds the lock resource for a metadata item.
func (m *Manager) MetadataResource(md artifact.Metadata, locallyPresent bool) Resource {
	name := strings.Join([]string{m.discriminator, "metadata", md.Group, md.Name, md.Version}, ":")
	return Resource{Name: name, Missing: !locallyPresent}
}

// Context creates a lock context. parent may be nil; a non-nil parent makes
// resources it already holds reacquirable without blocking, within the
// nesting rules.
func (m *Manager) Context(parent *Context) *Context {
	return &Context{mgr: m, parent: parent, held: make(map[string]Mode)}
}

// Context holds a set of named locks for one logical operation. A context
// is not safe for concurrent use; it is reusable after Release.
type Context struct {
	mgr      *Manager
	parent   *Context
	held     map[string]Mode
	releases []func()
}

// Acquire locks every resource in sorted name order. Duplicate names
// collapse to the strongest requested mode. On any failure the locks taken
// so far are released and the context is left empty.
func (c *Context) Acquire(ctx context.Context, mode Mode, resources []Resource) error {
	// Per-resource effective mode: a shared context upgrades individual
	// locks to exclusive for locally-missing content when the manager
	// permits it.
	modes := make(map[string]Mode, len(resources))
	for _, r := range resources {
		effective := mode
		if mode == Shared && r.Missing && c.mgr.UpgradeMissing {
			effective = Exclusive
		}
		if prev, ok := modes[r.Name]; !ok || effective > prev {
			modes[r.Name] = effective
		}
	}

	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := c.acquireOne(ctx, name, modes[name]); err != nil {
			c.Release()
			return err
		}
	}
	return nil
}

func (c *Context) acquireOne(ctx context.Context, name string, mode Mode) error {
	if held, ok := c.held[name]; ok {
		if held >= mode {
			return nil
		}
		return errors.New(errors.ErrCodeInternal,
			"lock %s already held shared, cannot upgrade within one context", name)
	}
	if outer, ok := c.outerMode(name); ok {
		// Nested reacquisition: an exclusive outer holder permits any
		// nested mode, a shared outer holder permits only nested shared.
		if outer == Exclusive || mode == Shared {
			c.held[name] = mode
			return nil
		}
		return errors.New(errors.ErrCodeInternal,
			"lock %s held shared by outer context, nested exclusive not permitted", name)
	}

	release, err := c.mgr.provider.Acquire(ctx, name, mode == Exclusive)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCancelled, err, "acquire %s lock %s", mode, name)
	}
	c.held[name] = mode
	c.releases = append(c.releases, release)
	c.mgr.logger.Debug("lock acquired", "name", name, "mode", mode)
	return nil
}

// outerMode reports the strongest mode any ancestor context holds for name.
func (c *Context) outerMode(name string) (Mode, bool) {
	for p := c.parent; p != nil; p = p.parent {
		if mode, ok := p.held[name]; ok {
			return mode, true
		}
	}
	return Shared, false
}

// Holds reports whether the context (not its ancestors) holds the named
// lock, and in which mode.
func (c *Context) Holds(name string) (Mode, bool) {
	mode, ok := c.held[name]
	return mode, ok
}

// Release releases every lock held by this context, most recent first. The
// context may be reused for a fresh Acquire afterwards.
func (c *Context) Release() {
	for i := len(c.releases) - 1; i >= 0; i-- {
		c.releases[i]()
	}
	c.releases = nil
	clear(c.held)
}
