// Package config loads the quarry configuration file.
//
// The file is TOML. Every field has a working default, so a missing file is
// not an error; the CLI overlays flags on top of the loaded values.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
)

// Config is the full configuration surface consumed by the resolvers.
type Config struct {
	Offline bool `toml:"offline"`

	Local     LocalConfig     `toml:"local"`
	Updates   UpdatesConfig   `toml:"updates"`
	Checksums ChecksumsConfig `toml:"checksums"`
	Transfer  TransferConfig  `toml:"transfer"`
	Locks     LocksConfig     `toml:"locks"`

	Repositories []RepositoryConfig `toml:"repository"`
}

// LocalConfig locates the local repository.
type LocalConfig struct {
	Path string `toml:"path"`
}

// UpdatesConfig controls staleness and negative-result caching.
type UpdatesConfig struct {
	Policy              string `toml:"policy"`                // always | daily | never | interval:<minutes>
	CacheNotFound       bool   `toml:"cache_not_found"`       // reuse cached not-found results
	CacheTransferErrors bool   `toml:"cache_transfer_errors"` // reuse cached transfer errors
	SessionMemo         string `toml:"session_memo"`          // enabled | disabled | bypass
}

// ChecksumsConfig controls checksum verification and trust sources.
type ChecksumsConfig struct {
	Policy     string   `toml:"policy"`         // fail | warn | ignore
	TrustedDir string   `toml:"trusted_dir"`    // directory of trusted checksum files
	TrustedLay string   `toml:"trusted_layout"` // summary | sparse
	Algorithms []string `toml:"algorithms"`     // e.g. ["sha1", "md5"]
}

// TransferConfig sizes the transfer worker pool.
type TransferConfig struct {
	Workers int `toml:"workers"` // 1 degrades to synchronous execution
}

// LocksConfig configures the synchronization layer.
type LocksConfig struct {
	Redis          string `toml:"redis"`           // addr enables cross-process locks
	Discriminator  string `toml:"discriminator"`   // lock-name prefix override
	UpgradeMissing bool   `toml:"upgrade_missing"` // exclusive locks for locally-absent items
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Local: LocalConfig{Path: filepath.Join(home, ".quarry", "repository")},
		Updates: UpdatesConfig{
			Policy:              repo.UpdateDaily,
			CacheNotFound:       true,
			CacheTransferErrors: true,
			SessionMemo:         "enabled",
		},
		Checksums: ChecksumsConfig{
			Policy:     repo.ChecksumWarn,
			TrustedLay: "summary",
			Algorithms: []string{"sha1"},
		},
		Transfer: TransferConfig{Workers: 5},
		Locks:    LocksConfig{UpgradeMissing: true},
	}
}

// Load reads path and overlays it on the defaults. A missing file returns
// the defaults unchanged; a malformed file or invalid policy value is an
// INVALID_CONFIG error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks all policy strings.
func (c Config) Validate() error {
	if err := repo.ValidateUpdatePolicy(c.Updates.Policy); err != nil {
		return err
	}
	if err := repo.ValidateChecksumPolicy(c.Checksums.Policy); err != nil {
		return err
	}
	for _, r := range c.Repositories {
		if r.ID == "" || r.URL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "repository entries need id and url")
		}
		if err := repo.ValidateUpdatePolicy(r.UpdatePolicy); err != nil {
			return err
		}
		if err := repo.ValidateChecksumPolicy(r.ChecksumPolicy); err != nil {
			return err
		}
	}
	if c.Transfer.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "transfer.workers must be >= 0")
	}
	return nil
}

// RepositoryConfig declares one remote repository.
type RepositoryConfig struct {
	ID             string `toml:"id"`
	URL            string `toml:"url"`
	UpdatePolicy   string `toml:"update_policy"`   // overrides updates.policy
	ChecksumPolicy string `toml:"checksum_policy"` // overrides checksums.policy
}

// Remotes converts the configured repositories, filling per-repository
// policies from the global defaults.
func (c Config) Remotes() []repo.Remote {
	out := make([]repo.Remote, 0, len(c.Repositories))
	for _, rc := range c.Repositories {
		update := rc.UpdatePolicy
		if update == "" {
			update = c.Updates.Policy
		}
		checksum := rc.ChecksumPolicy
		if checksum == "" {
			checksum = c.Checksums.Policy
		}
		out = append(out, repo.Remote{
			ID:  rc.ID,
			URL: rc.URL,
			Policy: repo.Policy{
				Update:   update,
				Checksum: checksum,
			},
		})
	}
	return out
}
