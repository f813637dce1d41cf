// Package transform implements a rule-based rewriting engine for XML
// trees. A Transformation is assembled once from an ordered sequence of
// steps, where each step is either a rule, pairing conditions with a
// handler sequence applied to every matching node, or an unconditional
// handler. Handlers declare the symbol names they depend on and receive
// them resolved from a layered symbol chain covering the processed tree,
// the run's context namespace, and configured extras.
//
// Transformations are immutable and safe for concurrent use; every
// Execute call operates on its own Run, and by default on a deep copy of
// the input tree. Handlers steer execution by returning flow signals:
// SkipNode, AbortRule and AbortTransformation.
package transform
