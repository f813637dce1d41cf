// Package lib is a library of ready-made handlers and conditions for
// common transformation chores: renaming and removing nodes, attribute
// and text manipulation, context variables, and debug logging. All value
// arguments accept either a literal or a transform.Resolver, resolved
// against the run's symbol chain at dispatch time.
package lib
