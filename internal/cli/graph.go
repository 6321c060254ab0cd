package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/pkg/collect"
)

// graphCommand creates the graph command: collect the dependency tree and
// export it as Graphviz DOT or rendered SVG.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		rootScope string
		format    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "graph <group:name[:extension[:classifier]]:version>",
		Short: "Export the dependency tree as DOT or SVG",
		Long: `Collect the transitive dependency tree of a coordinate and export it in
Graphviz DOT format or as rendered SVG.

Winning nodes are drawn solid; nodes eliminated by conflict resolution are
drawn dashed and grey. DOT output goes to stdout unless --output is given;
SVG always requires --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "dot" && format != "svg" {
				return fmt.Errorf("invalid format %q, expected dot or svg", format)
			}
			if format == "svg" && output == "" {
				return fmt.Errorf("--output is required for svg")
			}
			return c.runGraph(cmd.Context(), args[0], rootScope, format, output)
		},
	}

	cmd.Flags().StringVar(&rootScope, "scope", "compile", "scope of the root dependency")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout for dot when omitted)")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, coordinate, rootScope, format, output string) error {
	coord, err := parseCoordinate(coordinate)
	if err != nil {
		return err
	}
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}

	spin := startSpinner(ctx, fmt.Sprintf("Collecting %s...", coord))
	result, err := c.collectTree(ctx, rt, coord, rootScope)
	if err != nil {
		spin.fail("Collection failed")
		return fmt.Errorf("collect %s: %w", coord, err)
	}
	spin.stop()

	dot := toDOT(result.Root)
	if format == "dot" {
		if output == "" {
			fmt.Print(dot)
			return nil
		}
		if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		printSuccess("Wrote DOT graph")
		printFile(output)
		return nil
	}

	svg, err := renderSVG(ctx, dot)
	if err != nil {
		return fmt.Errorf("render svg: %w", err)
	}
	if err := os.WriteFile(output, svg, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Rendered %d nodes", result.Root.Count())
	printFile(output)
	return nil
}

// toDOT converts a collected tree to Graphviz DOT. Skipped nodes are
// rendered with dashed outlines and grey fill to distinguish them from the
// winners. Node IDs carry the tree position because the same coordinate can
// appear several times (duplicates and conflict losers stay in the tree).
func toDOT(root *collect.Node) string {
	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	root.Walk(func(n *collect.Node) bool {
		attrs := []string{fmt.Sprintf("label=%q", dotLabel(n))}
		if n.Decision.Skipped() {
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", dotID(n), strings.Join(attrs, ", "))
		return true
	})

	buf.WriteString("\n")
	root.Walk(func(n *collect.Node) bool {
		for _, child := range n.Children {
			fmt.Fprintf(&buf, "  %q -> %q;\n", dotID(n), dotID(child))
		}
		return true
	})

	buf.WriteString("}\n")
	return buf.String()
}

func dotID(n *collect.Node) string {
	return fmt.Sprintf("%s#%d.%d", n.Dependency.Artifact.Coordinate.ID(), n.Position.Depth, n.Position.Seq)
}

func dotLabel(n *collect.Node) string {
	label := n.Dependency.Artifact.Coordinate.String()
	if n.EffectiveScope != "" {
		label += "\n" + n.EffectiveScope
	}
	if n.Decision.Skipped() {
		label += "\n" + n.Decision.String()
	}
	return label
}

// renderSVG renders a DOT graph to SVG using Graphviz.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
