package transform

import "go.uber.org/zap"

// Config holds the fixed configuration of a Transformation. The zero value
// is usable: clone-before-mutate, top-down traversal, the processed root as
// result.
type Config struct {
	// Name identifies the transformation in logs.
	Name string

	// Context holds default values for the per-run context namespace.
	// Call-time values override them.
	Context map[string]any

	// CommonRuleConditions is a condition specification (or nested sequence
	// of specifications) prepended to every rule's conditions at
	// construction time. Use it to scope a whole transformation, e.g. to a
	// namespace, without repeating the condition per rule.
	CommonRuleConditions any

	// InPlace disables the clone-before-mutate default, so the
	// transformation mutates the caller's tree directly. The caller keeps
	// ownership and must serialize access.
	InPlace bool

	// ResultPath is the dotted path resolved against the symbol chain at
	// finalization; its value is the call result. Defaults to "root", the
	// processed root (or document, when a document was passed in).
	ResultPath string

	// DiscardResult suppresses result extraction; the call returns nil.
	DiscardResult bool

	// Order is the default traversal order for rules without an override.
	Order Order

	// Extra values are exposed as additional symbols, below context values
	// in lookup priority.
	Extra map[string]any

	// Logger receives debug output for condition and handler dispatch.
	// Defaults to a no-op logger.
	Logger *zap.Logger
}

func (c *Config) applyDefaults() {
	if c.ResultPath == "" {
		c.ResultPath = "root"
	}
	if c.Order == OrderDefault {
		c.Order = OrderTopDown
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// callOptions are per-call overrides of the configuration.
type callOptions struct {
	values  map[string]any
	inPlace *bool
}

// CallOption adjusts a single Execute call.
type CallOption func(*callOptions)

// WithValue adds a call-time context value, overriding a configured
// default of the same name.
func WithValue(name string, value any) CallOption {
	return func(o *callOptions) {
		if o.values == nil {
			o.values = map[string]any{}
		}
		o.values[name] = value
	}
}

// WithValues adds several call-time context values.
func WithValues(values map[string]any) CallOption {
	return func(o *callOptions) {
		if o.values == nil {
			o.values = make(map[string]any, len(values))
		}
		for k, v := range values {
			o.values[k] = v
		}
	}
}

// WithInPlace overrides the configured cloning behavior for one call.
func WithInPlace(inPlace bool) CallOption {
	return func(o *callOptions) {
		o.inPlace = &inPlace
	}
}
