package lib

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// resolveString resolves v against the run and asserts a string value.
func resolveString(v any, run *transform.Run, what string) (string, error) {
	resolved, err := transform.ResolveValue(v, run)
	if err != nil {
		return "", err
	}
	s, ok := resolved.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", what, resolved)
	}
	return s, nil
}

// resolveNode resolves v against the run and asserts a node value. A nil v
// resolves to the processed node.
func resolveNode(v any, args transform.Args, what string) (*dom.Node, error) {
	if v == nil {
		if n := args.Node(); n != nil {
			return n, nil
		}
		return nil, fmt.Errorf("%s: no node is being processed", what)
	}
	resolved, err := transform.ResolveValue(v, args.Run())
	if err != nil {
		return nil, err
	}
	n, ok := resolved.(*dom.Node)
	if !ok {
		return nil, fmt.Errorf("%s must be a node, got %T", what, resolved)
	}
	return n, nil
}

// SetLocalName returns a handler renaming the processed node. The name may
// be a string or a transform.Resolver.
func SetLocalName(name any) transform.Handler {
	return transform.HandlerFunc([]string{"node", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		s, err := resolveString(name, args.Run(), "local name")
		if err != nil {
			return nil, err
		}
		dom.Rename(args.Node(), s)
		return nil, nil
	})
}

// GetLocalName returns a handler whose result is the processed node's local
// name.
func GetLocalName() transform.Handler {
	return transform.HandlerFunc([]string{"node"}, func(_ context.Context, args transform.Args) (any, error) {
		return dom.LocalName(args.Node()), nil
	})
}

// StripNamespace returns a handler removing the namespace binding from the
// processed node. Declaration attributes stay in place until
// CleanupNamespaces runs.
func StripNamespace() transform.Handler {
	return transform.HandlerFunc([]string{"node"}, func(_ context.Context, args transform.Args) (any, error) {
		dom.StripNamespace(args.Node())
		return nil, nil
	})
}

// CleanupNamespaces returns a handler dropping namespace declarations that
// are no longer referenced anywhere below the transformation root. Meant as
// a root-only or plain step after namespace rewriting.
func CleanupNamespaces() transform.Handler {
	return transform.HandlerFunc([]string{"root"}, func(_ context.Context, args transform.Args) (any, error) {
		dom.CleanupNamespaces(args.Root())
		return nil, nil
	})
}

// RemoveNode returns a handler detaching the processed node with its
// subtree. Combine with bottom-up traversal when removing nested matches.
func RemoveNode() transform.Handler {
	return transform.HandlerFunc([]string{"node"}, func(_ context.Context, args transform.Args) (any, error) {
		dom.Detach(args.Node())
		return nil, nil
	})
}

// RemoveNodes returns a handler removing every node matched by the XPath
// expression, evaluated against the transformation root. The expression may
// be a string or a transform.Resolver.
func RemoveNodes(query any) transform.Handler {
	return transform.HandlerFunc([]string{"root", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		expr, err := resolveString(query, args.Run(), "query")
		if err != nil {
			return nil, err
		}
		nodes, err := dom.Query(args.Root(), expr)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			dom.Detach(n)
		}
		return len(nodes), nil
	})
}

// DropSiblings returns a handler detaching every sibling on the given
// side of the processed node, "left" or "right" in document order, and
// repeats the cut on each ancestor up to the document element. Applied
// from both ends it strips the document to the chunk between two nodes
// that need not share a parent.
func DropSiblings(side string) transform.Handler {
	return transform.HandlerFunc([]string{"node"}, func(_ context.Context, args transform.Args) (any, error) {
		if side != "left" && side != "right" {
			return nil, fmt.Errorf("drop siblings: side must be \"left\" or \"right\", got %q", side)
		}
		for node := args.Node(); node.Parent != nil && !dom.IsDocument(node.Parent); node = node.Parent {
			detachToward(node, side)
		}
		return nil, nil
	})
}

func detachToward(node *dom.Node, side string) {
	if side == "left" {
		for sibling := node.PrevSibling; sibling != nil; {
			previous := sibling.PrevSibling
			dom.Detach(sibling)
			sibling = previous
		}
		return
	}
	for sibling := node.NextSibling; sibling != nil; {
		next := sibling.NextSibling
		dom.Detach(sibling)
		sibling = next
	}
}

// Append returns a handler appending a deep copy of the child node to the
// target node. Both arguments may be *dom.Node values or resolvers; a nil
// target means the processed node. The appended copy is the handler's
// result.
func Append(target, child any) transform.Handler {
	return transform.HandlerFunc([]string{"node", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		parent, err := resolveNode(target, args, "append target")
		if err != nil {
			return nil, err
		}
		source, err := resolveNode(child, args, "append child")
		if err != nil {
			return nil, err
		}
		copied := dom.Clone(source)
		dom.AppendChild(parent, copied)
		return copied, nil
	})
}

// ResolveQueryToNode returns a handler whose result is the single node
// matched by the XPath expression, or nil for no match. More than one match
// is an error.
func ResolveQueryToNode(query any) transform.Handler {
	return transform.HandlerFunc([]string{"root", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		expr, err := resolveString(query, args.Run(), "query")
		if err != nil {
			return nil, err
		}
		node, err := dom.QueryOne(args.Root(), expr)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, nil
		}
		return node, nil
	})
}

// Call returns a handler applying fn to the resolved values of its
// arguments. Use it to lift a plain function into a handler without
// writing the resolution boilerplate.
func Call(fn func(values ...any) (any, error), arguments ...any) transform.Handler {
	return transform.HandlerFunc([]string{"run"}, func(_ context.Context, args transform.Args) (any, error) {
		values := make([]any, len(arguments))
		for i, argument := range arguments {
			v, err := transform.ResolveValue(argument, args.Run())
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return fn(values...)
	})
}
