// Package transform provides post-collection refinement passes over a
// collected dependency tree.
//
// Each pass is a small, single-purpose Transformer; Apply runs a sequence of
// them in order. Passes mutate node annotations (never tree structure), so
// they compose freely.
package transform

import "github.com/quarrybuild/quarry/pkg/collect"

// Transformer refines a collected tree in place.
type Transformer interface {
	Transform(root *collect.Node) error
}

// Apply runs the transformers in order, stopping at the first error.
func Apply(root *collect.Node, transformers ...Transformer) error {
	for _, t := range transformers {
		if err := t.Transform(root); err != nil {
			return err
		}
	}
	return nil
}
