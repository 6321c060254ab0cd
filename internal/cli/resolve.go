package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/collect"
	"github.com/quarrybuild/quarry/pkg/collect/transform"
)

// resolveCommand creates the resolve command: collect the dependency tree
// and print it, without downloading any artifact files.
func (c *CLI) resolveCommand() *cobra.Command {
	var rootScope string

	cmd := &cobra.Command{
		Use:   "resolve <group:name[:extension[:classifier]]:version>",
		Short: "Collect and print the dependency tree",
		Long: `Collect the transitive dependency tree of a coordinate and print it.

Each node shows its coordinate and effective scope. Nodes eliminated by
conflict resolution stay in the tree and are marked with the reason they
were skipped. No artifact files are downloaded; only descriptors and
version metadata are fetched.

The version segment may be a concrete version, a range such as [1.0,2.0),
or the meta-versions RELEASE and LATEST.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), args[0], rootScope)
		},
	}

	cmd.Flags().StringVar(&rootScope, "scope", "compile", "scope of the root dependency")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, coordinate, rootScope string) error {
	coord, err := parseCoordinate(coordinate)
	if err != nil {
		return err
	}
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	spin := startSpinner(ctx, fmt.Sprintf("Collecting %s...", coord))

	result, err := c.collectTree(ctx, rt, coord, rootScope)
	if err != nil {
		spin.fail("Collection failed")
		return fmt.Errorf("collect %s: %w", coord, err)
	}
	spin.stop()
	prog.done(fmt.Sprintf("Collected %d nodes", result.Root.Count()))

	printTree(result.Root, "", true)
	printCollectStats(result)
	for _, cyc := range result.Cycles {
		printWarning("dependency cycle at %s", cyc.Coordinate.String())
	}
	for _, e := range result.Errors {
		printWarning("%v", e)
	}
	return nil
}

// collectTree runs the collection plus the scope refinement pass shared by
// resolve and graph.
func (c *CLI) collectTree(ctx context.Context, rt *runtime, coord artifact.Coordinate, rootScope string) (*collect.Result, error) {
	root := rootDependency(coord, rootScope)
	result, err := rt.collector.Collect(ctx, collect.Request{
		Root:           &root,
		Repositories:   rt.remotes,
		RequestContext: appName,
	})
	if err != nil {
		return nil, err
	}
	if err := transform.Apply(result.Root, transform.ScopeRefiner{}); err != nil {
		return nil, err
	}
	return result, nil
}

// printTree prints the collected tree with box-drawing connectors.
func printTree(n *collect.Node, prefix string, last bool) {
	connector := "├── "
	childPrefix := prefix + "│   "
	if last {
		connector = "└── "
		childPrefix = prefix + "    "
	}
	if prefix == "" && last {
		connector = ""
		childPrefix = ""
	}

	line := prefix + StyleDim.Render(connector) + nodeLabel(n)
	fmt.Println(line)

	for i, child := range n.Children {
		printTree(child, childPrefix, i == len(n.Children)-1)
	}
}

// nodeLabel formats one tree line: coordinate, scope, and skip marker.
func nodeLabel(n *collect.Node) string {
	label := StyleValue.Render(n.Dependency.Artifact.Coordinate.String())
	if scope := n.EffectiveScope; scope != "" {
		label += " " + StyleDim.Render("["+scope+"]")
	}
	switch n.Decision {
	case collect.DecideSkipDuplicate, collect.DecideSkipVersionConflict:
		label += " " + StyleWarning.Render("("+n.Decision.String()+")")
	case collect.DecideForceResolve:
		label += " " + StyleDim.Render("("+n.Decision.String()+")")
	}
	if n.Relocated {
		label += " " + StyleDim.Render("(relocated)")
	}
	return label
}

// printCollectStats prints the skip-optimizer summary line.
func printCollectStats(r *collect.Result) {
	printDetail("%d resolved · %d force-resolved · %d duplicates skipped · %d conflicts skipped",
		r.Stats.Resolved, r.Stats.ForceResolved, r.Stats.SkippedDuplicate, r.Stats.SkippedConflict)
}
