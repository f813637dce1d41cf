package transform

// Context is the mutable per-run namespace handlers use to exchange values.
// It starts out as a merge of the configured context with any call-time
// values, and is discarded when the run finishes.
type Context struct {
	values map[string]any
}

// NewContext creates a context namespace pre-populated with values.
func NewContext(values map[string]any) *Context {
	merged := make(map[string]any, len(values))
	for k, v := range values {
		merged[k] = v
	}
	return &Context{values: merged}
}

// Get returns the named context value and whether it exists.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Value returns the named context value, or nil.
func (c *Context) Value(name string) any {
	return c.values[name]
}

// Set stores a context value.
func (c *Context) Set(name string, value any) {
	c.values[name] = value
}

// Delete removes a context value.
func (c *Context) Delete(name string) {
	delete(c.values, name)
}

// Values returns a copy of all context values.
func (c *Context) Values() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// symbolChain is the layered namespace handler arguments are resolved from.
// Lookup order: per-node dynamic values, per-run singletons, user context
// values, extra configuration values. The dynamic scope is rewritten on
// every node visit and handler invocation; the other scopes are fixed for
// the duration of one run.
type symbolChain struct {
	dynamic map[string]any
	static  map[string]any
	context *Context
	extra   map[string]any
}

// Resolve returns the value bound to name in the highest-priority scope
// containing it.
func (s *symbolChain) Resolve(name string) (any, bool) {
	if v, ok := s.dynamic[name]; ok {
		return v, true
	}
	if v, ok := s.static[name]; ok {
		return v, true
	}
	if v, ok := s.context.Get(name); ok {
		return v, true
	}
	if v, ok := s.extra[name]; ok {
		return v, true
	}
	return nil, false
}
