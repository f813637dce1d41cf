package ruleset

import (
	"fmt"
	"sort"

	"github.com/wehubfusion/Daedalus/pkg/lib"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// HandlerFactory builds a handler from the argument map of a ruleset
// entry. Argument values are already translated, so "ref:" strings arrive
// as transform.Resolver values.
type HandlerFactory func(args map[string]any) (transform.Handler, error)

// Registry maps handler names usable in rulesets to their factories.
type Registry struct {
	factories map[string]HandlerFactory
}

// NewRegistry returns a registry pre-populated with the handler library.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]HandlerFactory{}}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a named handler factory.
func (r *Registry) Register(name string, factory HandlerFactory) {
	r.factories[name] = factory
}

// Names returns the registered handler names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) build(name string, args map[string]any) (transform.Handler, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown handler %q", name)
	}
	h, err := factory(args)
	if err != nil {
		return nil, fmt.Errorf("handler %q: %w", name, err)
	}
	return h, nil
}

func requireArg(args map[string]any, key string) (any, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", key)
	}
	return v, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, err := requireArg(args, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

func stringListArg(args map[string]any, key string) ([]string, error) {
	v, err := requireArg(args, key)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a list, got %T", key, v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must contain strings, got %T", key, item)
		}
		out[i] = s
	}
	return out, nil
}

func (r *Registry) registerBuiltins() {
	r.Register("set-text", func(args map[string]any) (transform.Handler, error) {
		text, err := requireArg(args, "text")
		if err != nil {
			return nil, err
		}
		return lib.SetText(text), nil
	})
	r.Register("set-local-name", func(args map[string]any) (transform.Handler, error) {
		name, err := requireArg(args, "name")
		if err != nil {
			return nil, err
		}
		return lib.SetLocalName(name), nil
	})
	r.Register("strip-namespace", func(map[string]any) (transform.Handler, error) {
		return lib.StripNamespace(), nil
	})
	r.Register("cleanup-namespaces", func(map[string]any) (transform.Handler, error) {
		return lib.CleanupNamespaces(), nil
	})
	r.Register("clear-attributes", func(map[string]any) (transform.Handler, error) {
		return lib.ClearAttributes(), nil
	})
	r.Register("strip-attributes", func(args map[string]any) (transform.Handler, error) {
		names, err := stringListArg(args, "names")
		if err != nil {
			return nil, err
		}
		return lib.StripAttributes(names...), nil
	})
	r.Register("set-attribute", func(args map[string]any) (transform.Handler, error) {
		name, err := requireArg(args, "name")
		if err != nil {
			return nil, err
		}
		value, err := requireArg(args, "value")
		if err != nil {
			return nil, err
		}
		return lib.SetAttribute(name, value), nil
	})
	r.Register("get-attribute", func(args map[string]any) (transform.Handler, error) {
		name, err := requireArg(args, "name")
		if err != nil {
			return nil, err
		}
		return lib.GetAttribute(name), nil
	})
	r.Register("pop-attribute", func(args map[string]any) (transform.Handler, error) {
		name, err := requireArg(args, "name")
		if err != nil {
			return nil, err
		}
		return lib.PopAttribute(name), nil
	})
	r.Register("remove-node", func(map[string]any) (transform.Handler, error) {
		return lib.RemoveNode(), nil
	})
	r.Register("remove-nodes", func(args map[string]any) (transform.Handler, error) {
		query, err := requireArg(args, "query")
		if err != nil {
			return nil, err
		}
		return lib.RemoveNodes(query), nil
	})
	r.Register("drop-siblings", func(args map[string]any) (transform.Handler, error) {
		side, err := stringArg(args, "side")
		if err != nil {
			return nil, err
		}
		return lib.DropSiblings(side), nil
	})
	r.Register("put-variable", func(args map[string]any) (transform.Handler, error) {
		name, err := stringArg(args, "name")
		if err != nil {
			return nil, err
		}
		return lib.PutVariable(name, args["value"]), nil
	})
	r.Register("lowercase", func(args map[string]any) (transform.Handler, error) {
		value, err := requireArg(args, "value")
		if err != nil {
			return nil, err
		}
		return lib.Lowercase(value), nil
	})
	r.Register("uppercase", func(args map[string]any) (transform.Handler, error) {
		value, err := requireArg(args, "value")
		if err != nil {
			return nil, err
		}
		return lib.Uppercase(value), nil
	})
	r.Register("titlecase", func(args map[string]any) (transform.Handler, error) {
		value, err := requireArg(args, "value")
		if err != nil {
			return nil, err
		}
		return lib.Titlecase(value), nil
	})
	r.Register("debug-message", func(args map[string]any) (transform.Handler, error) {
		message, err := stringArg(args, "message")
		if err != nil {
			return nil, err
		}
		return lib.DebugMessage(message), nil
	})
}
