package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/pkg/collect"
	"github.com/quarrybuild/quarry/pkg/resolve"
	"github.com/quarrybuild/quarry/pkg/transfer"
)

// fetchCommand creates the fetch command: resolve the dependency tree and
// download the winning artifacts into the local repository.
func (c *CLI) fetchCommand() *cobra.Command {
	var (
		rootScope string
		scopesStr string
	)

	cmd := &cobra.Command{
		Use:   "fetch <group:name[:extension[:classifier]]:version>",
		Short: "Resolve dependencies and download their artifacts",
		Long: `Resolve the transitive dependency tree of a coordinate and download the
winning artifacts into the local repository.

Downloads honor the configured update policy: fresh local copies are not
re-fetched, and recently failed lookups are replayed from the failure
cache instead of hitting the repository again. Failures are reported per
artifact; everything that did resolve stays resolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFetch(cmd.Context(), args[0], rootScope, scopesStr)
		},
	}

	cmd.Flags().StringVar(&rootScope, "scope", "compile", "scope of the root dependency")
	cmd.Flags().StringVar(&scopesStr, "scopes", "", "effective scopes to download (comma-separated, default all)")

	return cmd
}

func (c *CLI) runFetch(ctx context.Context, coordinate, rootScope, scopesStr string) error {
	coord, err := parseCoordinate(coordinate)
	if err != nil {
		return err
	}
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}

	var scopes []string
	if scopesStr != "" {
		scopes = strings.Split(scopesStr, ",")
	}

	prog := newProgress(c.Logger)
	spin := startSpinner(ctx, fmt.Sprintf("Resolving %s...", coord))

	root := rootDependency(coord, rootScope)
	result, err := rt.dependencies.Resolve(ctx, resolve.DependencyRequest{
		Collect: collect.Request{
			Root:           &root,
			Repositories:   rt.remotes,
			RequestContext: appName,
		},
		DownloadScopes: scopes,
		Listener:       logListener{logger: c.Logger},
	})
	if result == nil {
		spin.fail("Resolution failed")
		return fmt.Errorf("resolve %s: %w", coord, err)
	}
	spin.stop()

	resolved := 0
	for _, res := range result.Artifacts {
		if res.Err != nil {
			printError("%s: %v", res.Artifact.Coordinate.String(), res.Err)
			continue
		}
		resolved++
		origin := "cached"
		if res.Repository.ID != "" {
			origin = res.Repository.ID
		}
		printSuccess("%s %s", res.Artifact.Coordinate.String(), StyleDim.Render("("+origin+")"))
		printFile(res.Artifact.File)
	}
	prog.done(fmt.Sprintf("Resolved %d of %d artifacts", resolved, len(result.Artifacts)))

	if err != nil {
		return fmt.Errorf("fetch %s: %w", coord, err)
	}
	return nil
}

// logListener reports transfer events through the structured logger, which
// is safe under the concurrent transfer workers.
type logListener struct {
	transfer.NopListener
	logger *log.Logger
}

func (l logListener) Started(ev transfer.Event) {
	l.logger.Debug("transfer started", "name", ev.Name, "upload", ev.Upload)
}

func (l logListener) Succeeded(ev transfer.Event) {
	l.logger.Debug("transfer finished", "name", ev.Name, "bytes", ev.Transferred)
}

func (l logListener) Corrupted(ev transfer.Event, err error) {
	l.logger.Warn("checksum mismatch", "name", ev.Name, "err", err)
}

func (l logListener) Failed(ev transfer.Event, err error) {
	l.logger.Debug("transfer failed", "name", ev.Name, "err", err)
}
