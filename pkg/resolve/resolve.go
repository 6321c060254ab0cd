// Package resolve implements the resolution pipelines: turning metadata
// into version lists, version constraints into concrete versions, and
// coordinates into local files, honoring the update policy, checksum trust
// and the locking layer along the way.
//
// Resolution is batch-oriented and best-effort: batch operations return a
// result per item plus an aggregate error, never dropping the partial
// successes.
package resolve

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/locking"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/session"
	"github.com/quarrybuild/quarry/pkg/transfer"
	"github.com/quarrybuild/quarry/pkg/update"
)

// Workspace lets an embedding build tool serve artifacts it is producing
// itself, bypassing repositories entirely.
type Workspace interface {
	// FindArtifact returns the local path of a workspace-built artifact,
	// or ok=false when the workspace does not provide it.
	FindArtifact(a artifact.Artifact) (path string, ok bool)
}

// ConnectorFactory creates the connector used to transfer items of one
// remote repository.
type ConnectorFactory func(r repo.Remote) (transfer.Connector, error)

// System bundles the collaborators shared by all resolvers: the local
// repository, the per-run session, the update-check manager, the lock
// manager and the connector factory.
type System struct {
	local     repo.Local
	layout    repo.Layout
	session   *session.Session
	updates   *update.Manager
	locks     *locking.Manager
	connect   ConnectorFactory
	workspace Workspace
	logger    *log.Logger
}

// SystemConfig configures a System. Session, Updates, Locks and Connector
// are required; Layout, Workspace and Logger are optional.
type SystemConfig struct {
	Local     repo.Local
	Layout    repo.Layout
	Session   *session.Session
	Updates   *update.Manager
	Locks     *locking.Manager
	Connector ConnectorFactory
	Workspace Workspace
	Logger    *log.Logger
}

// NewSystem creates the shared resolver plumbing.
func NewSystem(cfg SystemConfig) *System {
	layout := cfg.Layout
	if layout == nil {
		layout = repo.DefaultLayout{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &System{
		local:     cfg.Local,
		layout:    layout,
		session:   cfg.Session,
		updates:   cfg.Updates,
		locks:     cfg.Locks,
		connect:   cfg.Connector,
		workspace: cfg.Workspace,
		logger:    logger,
	}
}

// localModTime returns the modification time of a local file, or a zero
// time when it does not exist.
func localModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
