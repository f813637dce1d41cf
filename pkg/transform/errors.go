package transform

import "errors"

var (
	// ErrInvalidInput indicates that a transformation was executed with
	// something other than a document or element node.
	ErrInvalidInput = errors.New("invalid transformation input")

	// ErrInvalidStep indicates that a step is neither a rule nor a handler.
	ErrInvalidStep = errors.New("invalid transformation step")

	// ErrInvalidCondition indicates that a condition specification could not
	// be compiled.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrInvalidHandler indicates that a handler specification is not a
	// supported callable form.
	ErrInvalidHandler = errors.New("invalid handler")

	// ErrUnknownOrder indicates a traversal order with no registered
	// strategy.
	ErrUnknownOrder = errors.New("unknown traversal order")

	// ErrSymbolNotFound indicates a failed symbol chain lookup.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrUnresolvablePath indicates that a dotted path could not be
	// traversed on the resolved value.
	ErrUnresolvablePath = errors.New("unresolvable path")
)
