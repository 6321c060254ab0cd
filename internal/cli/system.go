package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/quarrybuild/quarry/pkg/collect"
	"github.com/quarrybuild/quarry/pkg/config"
	"github.com/quarrybuild/quarry/pkg/locking"
	"github.com/quarrybuild/quarry/pkg/repo"
	"github.com/quarrybuild/quarry/pkg/resolve"
	"github.com/quarrybuild/quarry/pkg/session"
	"github.com/quarrybuild/quarry/pkg/transfer"
	"github.com/quarrybuild/quarry/pkg/transport"
	"github.com/quarrybuild/quarry/pkg/trust"
	"github.com/quarrybuild/quarry/pkg/update"
)

// runtime bundles the fully wired resolver stack for one command
// invocation. Commands build it once via newRuntime and share it across
// every resolution they perform.
type runtime struct {
	cfg     config.Config
	remotes []repo.Remote

	session      *session.Session
	system       *resolve.System
	runner       *transfer.Runner
	versions     *resolve.VersionResolver
	artifacts    *resolve.ArtifactResolver
	metadata     *resolve.MetadataResolver
	collector    *collect.Collector
	dependencies *resolve.DependencyResolver
}

// loadConfig reads the configuration file and overlays the persistent
// flag values on top of it.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.localPath != "" {
		cfg.Local.Path = c.localPath
	}
	if c.offline {
		cfg.Offline = true
	}
	if len(c.repoFlags) > 0 {
		repos, err := parseRepoFlags(c.repoFlags)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Repositories = repos
	}
	return cfg, nil
}

// parseRepoFlags converts --repo id=url flags into repository entries.
func parseRepoFlags(flags []string) ([]config.RepositoryConfig, error) {
	out := make([]config.RepositoryConfig, 0, len(flags))
	for _, f := range flags {
		id, url, ok := strings.Cut(f, "=")
		if !ok || id == "" || url == "" {
			return nil, fmt.Errorf("invalid --repo value %q, expected id=url", f)
		}
		out = append(out, config.RepositoryConfig{ID: id, URL: url})
	}
	return out, nil
}

// newRuntime wires the resolver stack from the configuration.
func (c *CLI) newRuntime() (*runtime, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	remotes := cfg.Remotes()
	if len(remotes) == 0 && !cfg.Offline {
		return nil, fmt.Errorf("no repositories configured; add [[repository]] entries or pass --repo id=url")
	}

	sess := session.New()
	sess.Offline = cfg.Offline
	sess.CacheNotFound = cfg.Updates.CacheNotFound
	sess.CacheTransferErrors = cfg.Updates.CacheTransferErrors
	sess.MemoMode = session.ParseMemoMode(cfg.Updates.SessionMemo)

	locks, err := newLockManager(cfg, c.Logger)
	if err != nil {
		return nil, err
	}

	runner := transfer.NewRunner(cfg.Transfer.Workers)
	trusted := trustSources(cfg, c.Logger)
	connect := func(r repo.Remote) (transfer.Connector, error) {
		t, err := transport.New(r)
		if err != nil {
			return nil, err
		}
		return transfer.NewConnector(r, t, runner, transfer.Options{
			Trusted:    trusted,
			Algorithms: cfg.Checksums.Algorithms,
			Logger:     c.Logger,
		}), nil
	}

	system := resolve.NewSystem(resolve.SystemConfig{
		Local:     repo.Local{Base: cfg.Local.Path},
		Session:   sess,
		Updates:   update.NewManager(sess, c.Logger),
		Locks:     locks,
		Connector: connect,
		Logger:    c.Logger,
	})

	versions := resolve.NewVersionResolver(system)
	artifacts := resolve.NewArtifactResolver(system, runner)
	collector := collect.NewCollector(resolve.NewDescriptorReader(artifacts), versions, c.Logger)

	return &runtime{
		cfg:          cfg,
		remotes:      remotes,
		session:      sess,
		system:       system,
		runner:       runner,
		versions:     versions,
		artifacts:    artifacts,
		metadata:     resolve.NewMetadataResolver(system),
		collector:    collector,
		dependencies: resolve.NewDependencyResolver(collector, artifacts),
	}, nil
}

// newLockManager picks the lock provider: Redis when an address is
// configured, otherwise in-process locks.
func newLockManager(cfg config.Config, logger *log.Logger) (*locking.Manager, error) {
	disc := cfg.Locks.Discriminator
	if disc == "" {
		disc = locking.Discriminator(cfg.Local.Path)
	}
	var provider locking.Provider = locking.NewMemoryProvider()
	if cfg.Locks.Redis != "" {
		provider = locking.NewRedisProvider(redis.NewClient(&redis.Options{Addr: cfg.Locks.Redis}))
	}
	mgr := locking.NewManager(provider, disc, logger)
	mgr.UpgradeMissing = cfg.Locks.UpgradeMissing
	return mgr, nil
}

// trustSources builds the trusted checksum sources from the configuration.
func trustSources(cfg config.Config, logger *log.Logger) []trust.Source {
	if cfg.Checksums.TrustedDir == "" {
		return nil
	}
	switch cfg.Checksums.TrustedLay {
	case "sparse":
		return []trust.Source{trust.NewSparseDirSource(cfg.Checksums.TrustedDir, "", repo.DefaultLayout{})}
	default:
		return []trust.Source{trust.NewSummaryFileSource(cfg.Checksums.TrustedDir, logger)}
	}
}
