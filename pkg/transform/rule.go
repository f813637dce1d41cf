package transform

// Rule is a conditional transformation step: a compiled condition set, a
// handler sequence, an optional name and an optional traversal-order
// override. Rules are immutable once handed to New; the With* methods are
// meant for construction chains.
type Rule struct {
	name       string
	conditions []Condition
	handlers   []Handler
	order      Order
	err        error
}

// NewRule builds a rule from condition and handler specifications.
// Conditions may be a single specification or a nested sequence; handlers
// likewise. A root condition ("/" or IsRoot) forces root-only traversal
// and is dropped from the condition set, which it would be redundant in.
// Specification errors are carried on the rule and surfaced by New.
func NewRule(conditions any, handlers ...any) *Rule {
	compiledConditions, err := compileConditionSpecs(asSpecSlice(conditions))
	if err != nil {
		return &Rule{err: err}
	}
	compiledHandlers, err := compileHandlerSpecs(handlers)
	if err != nil {
		return &Rule{err: err}
	}
	return assembleRule("", compiledConditions, compiledHandlers, OrderDefault)
}

// Once builds a rule that is applied to the first matching node only: a
// rule-abort signal is appended to its handler sequence.
func Once(conditions any, handlers ...any) *Rule {
	r := NewRule(conditions, handlers...)
	if r.err == nil {
		r.handlers = append(r.handlers, AbortRule)
	}
	return r
}

// assembleRule applies the root-condition rewrite shared by NewRule and the
// common-condition expansion.
func assembleRule(name string, conditions []Condition, handlers []Handler, order Order) *Rule {
	kept := make([]Condition, 0, len(conditions))
	for _, c := range conditions {
		if _, isRoot := c.(rootCondition); isRoot {
			order = OrderRootOnly
			continue
		}
		kept = append(kept, c)
	}
	return &Rule{name: name, conditions: kept, handlers: handlers, order: order}
}

// WithName sets the rule's name, used in debug logging.
func (r *Rule) WithName(name string) *Rule {
	r.name = name
	return r
}

// WithOrder overrides the owning transformation's default traversal order
// for this rule.
func (r *Rule) WithOrder(order Order) *Rule {
	if r.err == nil {
		if _, ok := traversers[order]; !ok && order != OrderDefault {
			r.err = errUnknownOrder(order)
			return r
		}
		// a root condition's forced order is not overridable
		if r.order != OrderRootOnly {
			r.order = order
		}
	}
	return r
}

// Name returns the rule's name.
func (r *Rule) Name() string { return r.name }

// asSpecSlice lifts a single condition specification into a slice; slices
// pass through for flattening.
func asSpecSlice(spec any) []any {
	if specs, ok := spec.([]any); ok {
		return specs
	}
	return []any{spec}
}
