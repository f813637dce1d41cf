package transform

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/dom"
)

// Handler is a unit of work dispatched when a rule matches, or
// unconditionally as a plain step. A handler declares the symbol names it
// depends on; the dispatcher resolves exactly those names from the symbol
// chain and omits the ones that are absent, so handlers must tolerate
// missing optional dependencies. The returned value becomes
// previous_result for subsequent handlers and steps.
type Handler interface {
	Needs() []string
	Apply(ctx context.Context, args Args) (any, error)
}

// Args carries the resolved symbol values for one handler invocation.
type Args map[string]any

// Node returns the node that matched the rule's conditions, or nil for
// plain steps.
func (a Args) Node() *dom.Node {
	n, _ := a["node"].(*dom.Node)
	return n
}

// Root returns the transformation root.
func (a Args) Root() *dom.Node {
	n, _ := a["root"].(*dom.Node)
	return n
}

// Previous returns the preceding handler's result.
func (a Args) Previous() any {
	return a["previous_result"]
}

// Context returns the run's context namespace.
func (a Args) Context() *Context {
	c, _ := a["context"].(*Context)
	return c
}

// Run returns the active run.
func (a Args) Run() *Run {
	r, _ := a["run"].(*Run)
	return r
}

// Transformation returns the executing transformation.
func (a Args) Transformation() *Transformation {
	t, _ := a["transformation"].(*Transformation)
	return t
}

// Nsmap returns the namespace map of the transformation root.
func (a Args) Nsmap() map[string]string {
	m, _ := a["nsmap"].(map[string]string)
	return m
}

// String returns the named argument as a string, or "" when absent or of
// another type.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

type funcHandler struct {
	needs []string
	fn    func(ctx context.Context, args Args) (any, error)
}

func (h funcHandler) Needs() []string { return h.needs }

func (h funcHandler) Apply(ctx context.Context, args Args) (any, error) {
	return h.fn(ctx, args)
}

// HandlerFunc builds a handler from an explicit dependency list and a
// function body.
func HandlerFunc(needs []string, fn func(ctx context.Context, args Args) (any, error)) Handler {
	return funcHandler{needs: needs, fn: fn}
}

// coreSymbols is the dependency list used for bare functions passed as
// handlers or steps, covering the fixed portion of the symbol chain.
var coreSymbols = []string{
	"node", "previous_result", "root", "config", "context",
	"transformation", "run", "nsmap",
}

// compileHandler turns a handler specification into a Handler. Accepted
// forms: Handler implementations (including Flow signals and nested
// *Transformation values) and bare functions, which receive the core
// symbols.
func compileHandler(spec any) (Handler, error) {
	switch v := spec.(type) {
	case Handler:
		return v, nil
	case func(ctx context.Context, args Args) (any, error):
		return funcHandler{needs: coreSymbols, fn: v}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidHandler)
	default:
		return nil, fmt.Errorf("%w: unsupported handler type %T", ErrInvalidHandler, spec)
	}
}

func compileHandlerSpecs(specs []any) ([]Handler, error) {
	flat := flattenSpecs(specs)
	handlers := make([]Handler, 0, len(flat))
	for _, spec := range flat {
		h, err := compileHandler(spec)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}
