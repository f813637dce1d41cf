// Package contrib collects ready-made transformations for recurring
// cleanup chores. They are safe for concurrent use and compose with
// other transformations as nested steps.
package contrib

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/lib"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// ReduceWhitespace collapses every run of whitespace within text content
// to a single space, element by element.
var ReduceWhitespace = transform.MustNew(
	transform.Config{Name: "reduce-whitespace"},
	transform.NewRule("*", transform.HandlerFunc([]string{"node"},
		func(_ context.Context, args transform.Args) (any, error) {
			for _, child := range dom.Children(args.Node()) {
				if dom.IsText(child) {
					child.Data = lib.ReduceWhitespace(child.Data)
				}
			}
			return nil, nil
		})),
)

// RemoveEmptyNodes drops elements that carry no attributes, no children
// and no text. Bottom-up traversal lets emptiness propagate upward in a
// single pass, so wrappers whose only content was empty are dropped too.
var RemoveEmptyNodes = transform.MustNew(
	transform.Config{Name: "remove-empty-nodes", Order: transform.OrderBottomUp},
	transform.NewRule(
		[]any{
			transform.Not(transform.IsRoot()),
			transform.Not(lib.HasAttributes(), lib.HasChildren(), lib.HasText()),
		},
		lib.RemoveNode(),
	),
)
