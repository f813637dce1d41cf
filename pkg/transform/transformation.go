package transform

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/dom"
)

// Transformation is an immutable sequence of steps over a document tree.
// Construct it once with New and execute it any number of times, also
// concurrently; all mutable state lives in the per-call Run.
//
// A Transformation is itself a Handler, so it can appear as a step or in a
// rule's handler sequence of an enclosing transformation, where it executes
// in place on the matched node.
type Transformation struct {
	config Config
	steps  []step
}

// step is either a rule or an unconditional handler.
type step struct {
	rule    *Rule
	handler Handler
}

// New builds a transformation from a configuration and a sequence of steps.
// Steps may be rules, handlers, flow signals, nested transformations, bare
// functions, or nested sequences of these, which are flattened. Any
// configured common rule conditions are compiled here and prepended to
// every rule's condition set.
func New(config Config, steps ...any) (*Transformation, error) {
	config.applyDefaults()
	if _, ok := traversers[config.Order]; !ok {
		return nil, errUnknownOrder(config.Order)
	}

	var common []Condition
	if config.CommonRuleConditions != nil {
		compiled, err := compileConditionSpecs(asSpecSlice(config.CommonRuleConditions))
		if err != nil {
			return nil, fmt.Errorf("common rule conditions: %w", err)
		}
		common = compiled
	}

	compiled := make([]step, 0, len(steps))
	for i, spec := range flattenSpecs(steps) {
		s, err := compileStep(spec, common)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		compiled = append(compiled, s)
	}

	return &Transformation{config: config, steps: compiled}, nil
}

// MustNew is New, panicking on error. Use it for transformations assembled
// from static specifications at package init.
func MustNew(config Config, steps ...any) *Transformation {
	t, err := New(config, steps...)
	if err != nil {
		panic(err)
	}
	return t
}

func compileStep(spec any, common []Condition) (step, error) {
	switch v := spec.(type) {
	case *Rule:
		if v.err != nil {
			return step{}, fmt.Errorf("%w: %w", ErrInvalidStep, v.err)
		}
		if len(common) > 0 {
			merged := make([]Condition, 0, len(common)+len(v.conditions))
			merged = append(merged, common...)
			merged = append(merged, v.conditions...)
			v = assembleRule(v.name, merged, v.handlers, v.order)
		}
		return step{rule: v}, nil
	case Handler:
		return step{handler: v}, nil
	case func(ctx context.Context, args Args) (any, error):
		h, err := compileHandler(v)
		if err != nil {
			return step{}, err
		}
		return step{handler: h}, nil
	case nil:
		return step{}, fmt.Errorf("%w: nil step", ErrInvalidStep)
	default:
		return step{}, fmt.Errorf("%w: unsupported step type %T", ErrInvalidStep, spec)
	}
}

// Name returns the configured name.
func (t *Transformation) Name() string { return t.config.Name }

// Config returns a copy of the configuration with defaults applied.
func (t *Transformation) Config() Config { return t.config }

// Execute runs the transformation against input, which must be an element
// or a document node. Unless in-place execution is configured or requested,
// the input is deep-copied first and the caller's tree is left untouched.
// The returned value is the configured result, by default the processed
// root element, or the processed document when a document was passed in.
func (t *Transformation) Execute(ctx context.Context, input *dom.Node, opts ...CallOption) (any, error) {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}

	run, err := t.newRun(ctx, input, options)
	if err != nil {
		return nil, err
	}
	run.logger.Debug("transformation starting", zap.Int("steps", len(t.steps)))

	for i, s := range t.steps {
		var flow Flow
		var err error
		if s.rule != nil {
			flow, err = run.applyRule(s.rule)
		} else {
			_, flow, err = run.dispatchStep(s.handler)
		}
		if err != nil {
			return nil, fmt.Errorf("transformation %q step %d: %w", t.config.Name, i, err)
		}
		if flow == AbortTransformation {
			run.logger.Debug("transformation aborted", zap.Int("step", i))
			break
		}
	}

	return run.finalize()
}

// Needs implements Handler for nested transformations.
func (t *Transformation) Needs() []string { return []string{"node", "root"} }

// Apply implements Handler: the transformation executes in place on the
// node currently being processed by the enclosing transformation, or on the
// enclosing root for plain steps.
func (t *Transformation) Apply(ctx context.Context, args Args) (any, error) {
	target := args.Node()
	if target == nil {
		target = args.Root()
	}
	if target == nil {
		return nil, fmt.Errorf("%w: nested transformation has no target node", ErrInvalidInput)
	}
	return t.Execute(ctx, target, WithInPlace(true))
}

// Run is the mutable state of one Execute call: the processed tree, the
// symbol chain, and the traversal cursor. Handlers receive it through the
// "run" symbol; it must not be retained past the call.
type Run struct {
	id             string
	transformation *Transformation
	ctx            context.Context
	root           *dom.Node
	document       *dom.Node
	context        *Context
	symbols        *symbolChain
	currentNode    *dom.Node
	previousResult any
	logger         *zap.Logger
}

func (t *Transformation) newRun(ctx context.Context, input *dom.Node, options callOptions) (*Run, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: nil input", ErrInvalidInput)
	}
	if !dom.IsDocument(input) && !dom.IsElement(input) {
		return nil, fmt.Errorf("%w: got node type %d, want document or element", ErrInvalidInput, input.Type)
	}

	inPlace := t.config.InPlace
	if options.inPlace != nil {
		inPlace = *options.inPlace
	}
	node := input
	if !inPlace {
		node = dom.Clone(input)
	}

	var document, root *dom.Node
	if dom.IsDocument(node) {
		document = node
		root = dom.DocumentElement(node)
		if root == nil {
			return nil, fmt.Errorf("%w: document has no root element", ErrInvalidInput)
		}
	} else {
		root = node
	}

	runContext := NewContext(t.config.Context)
	for k, v := range options.values {
		runContext.Set(k, v)
	}

	run := &Run{
		id:             uuid.NewString(),
		transformation: t,
		ctx:            ctx,
		root:           root,
		document:       document,
		context:        runContext,
	}
	run.symbols = &symbolChain{
		dynamic: map[string]any{"previous_result": nil},
		static: map[string]any{
			"root":           root,
			"config":         t.config,
			"context":        runContext,
			"transformation": t,
			"run":            run,
			"nsmap":          dom.Namespaces(root),
		},
		context: runContext,
		extra:   t.config.Extra,
	}
	run.logger = t.config.Logger.With(
		zap.String("transformation", t.config.Name),
		zap.String("run_id", run.id),
	)
	return run, nil
}

// ID returns the unique identifier of this run.
func (r *Run) ID() string { return r.id }

// Root returns the element the transformation operates on.
func (r *Run) Root() *dom.Node { return r.root }

// Document returns the owning document, or nil when an element was passed
// to Execute.
func (r *Run) Document() *dom.Node { return r.document }

// Context returns the run's context namespace.
func (r *Run) Context() *Context { return r.context }

// CurrentNode returns the node a rule is currently visiting, or nil
// outside rule traversal.
func (r *Run) CurrentNode() *dom.Node { return r.currentNode }

// PreviousResult returns the most recent handler result.
func (r *Run) PreviousResult() any { return r.previousResult }

// Transformation returns the executing transformation.
func (r *Run) Transformation() *Transformation { return r.transformation }

// Logger returns the run's logger, annotated with the transformation name
// and run identifier.
func (r *Run) Logger() *zap.Logger { return r.logger }

// Resolve looks a symbol name up against the run's symbol chain.
func (r *Run) Resolve(name string) (any, bool) {
	return r.symbols.Resolve(name)
}

func (r *Run) setCurrentNode(node *dom.Node) {
	r.currentNode = node
	if node == nil {
		delete(r.symbols.dynamic, "node")
	} else {
		r.symbols.dynamic["node"] = node
	}
}

func (r *Run) setPreviousResult(value any) {
	r.previousResult = value
	r.symbols.dynamic["previous_result"] = value
}

// applyRule traverses the tree in the rule's order, testing the rule's
// conditions on each node and dispatching its handlers on matches. The
// returned flow is Continue or AbortTransformation; node- and rule-scoped
// signals are consumed here.
func (r *Run) applyRule(rule *Rule) (Flow, error) {
	order := rule.order
	if order == OrderDefault {
		order = r.transformation.config.Order
	}
	traverse, ok := traversers[order]
	if !ok {
		return Continue, errUnknownOrder(order)
	}

	defer r.setCurrentNode(nil)
	for node := range traverse(r.root) {
		if err := r.ctx.Err(); err != nil {
			return Continue, err
		}
		r.setCurrentNode(node)

		matched := true
		for _, c := range rule.conditions {
			ok, err := c.Test(node, r)
			if err != nil {
				return Continue, fmt.Errorf("rule %q condition: %w", rule.name, err)
			}
			if !ok {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		r.logger.Debug("rule matched",
			zap.String("rule", rule.name),
			zap.String("node", dom.QualifiedName(node)))

		flow, err := r.applyHandlers(rule.handlers)
		if err != nil {
			return Continue, fmt.Errorf("rule %q: %w", rule.name, err)
		}
		switch flow {
		case AbortRule:
			return Continue, nil
		case AbortTransformation:
			return AbortTransformation, nil
		}
	}
	return Continue, nil
}

// applyHandlers dispatches a handler sequence, threading each result into
// previous_result and stopping at the first flow signal.
func (r *Run) applyHandlers(handlers []Handler) (Flow, error) {
	for _, h := range handlers {
		result, flow, err := r.dispatch(h)
		if err != nil {
			return Continue, err
		}
		if flow != Continue {
			return flow, nil
		}
		r.setPreviousResult(result)
	}
	return Continue, nil
}

// dispatchStep dispatches a plain, unconditional step. Node-scoped signals
// have no meaning outside rule traversal and are consumed.
func (r *Run) dispatchStep(h Handler) (any, Flow, error) {
	result, flow, err := r.dispatch(h)
	if flow == SkipNode || flow == AbortRule {
		flow = Continue
	}
	if err == nil && flow == Continue {
		r.setPreviousResult(result)
	}
	return result, flow, err
}

// dispatch invokes a single handler with exactly its declared dependencies
// resolved from the symbol chain. Names absent from the chain are omitted
// from the arguments. A Flow returned as the handler's result is a signal,
// not a value, and leaves previous_result untouched.
func (r *Run) dispatch(h Handler) (any, Flow, error) {
	if flow, ok := h.(Flow); ok {
		return nil, flow, nil
	}
	args := make(Args, len(h.Needs()))
	for _, name := range h.Needs() {
		if v, ok := r.Resolve(name); ok {
			args[name] = v
		}
	}
	result, err := h.Apply(r.ctx, args)
	if err != nil {
		return nil, Continue, err
	}
	if flow, ok := result.(Flow); ok {
		return nil, flow, nil
	}
	return result, Continue, nil
}

// finalize resolves the configured result path against the symbol chain.
// When the transformation was handed a whole document and the result is
// the default root, the document is returned instead so the caller can
// serialize it with its prolog.
func (r *Run) finalize() (any, error) {
	cfg := r.transformation.config
	if cfg.DiscardResult {
		return nil, nil
	}
	if cfg.ResultPath == "root" && r.document != nil {
		return r.document, nil
	}
	result, err := Ref(cfg.ResultPath).Resolve(r)
	if err != nil {
		return nil, fmt.Errorf("result path %q: %w", cfg.ResultPath, err)
	}
	return result, nil
}
