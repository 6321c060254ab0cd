// Package cli implements the quarry command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "quarry"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Persistent flag values, applied on top of the config file.
	configPath string
	localPath  string
	offline    bool
	repoFlags  []string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "quarry",
		Short:        "Quarry resolves dependency graphs from artifact repositories",
		Long:         `Quarry is a dependency resolution tool: it collects transitive dependency trees from remote artifact repositories, picks a single winner per coordinate, and downloads the winning artifacts into a local repository cache.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&c.localPath, "local", "", "local repository directory (overrides config)")
	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "forbid remote repository access")
	root.PersistentFlags().StringArrayVar(&c.repoFlags, "repo", nil, "remote repository as id=url (repeatable, overrides config)")

	// Register all subcommands
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
