package transform

import "context"

// Flow is the outcome of dispatching a handler sequence. Handlers signal
// flow control by returning one of the non-zero values; the rule and step
// loops consume them. A Flow value can also be placed directly into a
// handler sequence or step list, where it takes effect without being
// invoked.
type Flow int

const (
	// Continue is the zero value: proceed with the next handler or node.
	Continue Flow = iota

	// SkipNode abandons the remaining handlers for the current node and
	// resumes traversal with the next node.
	SkipNode

	// AbortRule stops traversal for the current rule; the step sequence
	// continues with the next step.
	AbortRule

	// AbortTransformation stops all remaining steps and finalizes the run.
	AbortTransformation
)

func (f Flow) String() string {
	switch f {
	case Continue:
		return "continue"
	case SkipNode:
		return "skip-node"
	case AbortRule:
		return "abort-rule"
	case AbortTransformation:
		return "abort-transformation"
	default:
		return "unknown"
	}
}

// Needs implements Handler so flow signals can appear in handler sequences.
func (f Flow) Needs() []string { return nil }

// Apply implements Handler. The dispatcher short-circuits bare Flow values
// before invocation, but a dispatched Flow behaves identically.
func (f Flow) Apply(ctx context.Context, args Args) (any, error) {
	return f, nil
}
