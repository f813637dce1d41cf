package lib

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// ClearAttributes returns a handler deleting every attribute of the
// processed node.
func ClearAttributes() transform.Handler {
	return transform.HandlerFunc([]string{"node"}, func(_ context.Context, args transform.Args) (any, error) {
		dom.ClearAttributes(args.Node())
		return nil, nil
	})
}

// StripAttributes returns a handler deleting the named attributes from the
// processed node. Absent names are ignored.
func StripAttributes(names ...string) transform.Handler {
	return transform.HandlerFunc([]string{"node"}, func(_ context.Context, args transform.Args) (any, error) {
		for _, name := range names {
			dom.RemoveAttribute(args.Node(), name)
		}
		return nil, nil
	})
}

// SetAttribute returns a handler setting an attribute on the processed
// node. Name and value may be strings or resolvers; the resolved value is
// the handler's result.
func SetAttribute(name, value any) transform.Handler {
	return transform.HandlerFunc([]string{"node", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		key, err := resolveString(name, args.Run(), "attribute name")
		if err != nil {
			return nil, err
		}
		val, err := resolveString(value, args.Run(), "attribute value")
		if err != nil {
			return nil, err
		}
		dom.SetAttribute(args.Node(), key, val)
		return val, nil
	})
}

// GetAttribute returns a handler whose result is the named attribute's
// value, or nil when the attribute is absent.
func GetAttribute(name any) transform.Handler {
	return transform.HandlerFunc([]string{"node", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		key, err := resolveString(name, args.Run(), "attribute name")
		if err != nil {
			return nil, err
		}
		if value, ok := dom.Attribute(args.Node(), key); ok {
			return value, nil
		}
		return nil, nil
	})
}

// PopAttribute returns a handler removing the named attribute and yielding
// its former value, or nil when it was absent.
func PopAttribute(name any) transform.Handler {
	return transform.HandlerFunc([]string{"node", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		key, err := resolveString(name, args.Run(), "attribute name")
		if err != nil {
			return nil, err
		}
		value, ok := dom.Attribute(args.Node(), key)
		if !ok {
			return nil, nil
		}
		dom.RemoveAttribute(args.Node(), key)
		return value, nil
	})
}
