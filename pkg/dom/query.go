package dom

import (
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// CompileQuery compiles an XPath expression.
func CompileQuery(expr string) (*xpath.Expr, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling query %q: %w", expr, err)
	}
	return compiled, nil
}

// Query evaluates an XPath expression scoped to root and returns the
// matching nodes.
func Query(root *Node, expr string) ([]*Node, error) {
	nodes, err := xmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("evaluating query %q: %w", expr, err)
	}
	return nodes, nil
}

// QueryCompiled evaluates a pre-compiled XPath expression scoped to root.
func QueryCompiled(root *Node, expr *xpath.Expr) []*Node {
	return xmlquery.QuerySelectorAll(root, expr)
}

// QueryOne evaluates an XPath expression and returns the single matching
// node, nil when nothing matches, or an error when the match is ambiguous.
func QueryOne(root *Node, expr string) (*Node, error) {
	nodes, err := Query(root, expr)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	default:
		return nil, fmt.Errorf("query %q matched %d nodes, expected at most one", expr, len(nodes))
	}
}

// Contains reports whether needle is among nodes, by identity.
func Contains(nodes []*Node, needle *Node) bool {
	for _, n := range nodes {
		if n == needle {
			return true
		}
	}
	return false
}
