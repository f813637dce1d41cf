package transform

import (
	"fmt"
	"iter"

	"github.com/wehubfusion/Daedalus/pkg/dom"
)

// Order selects the sequence in which a rule visits nodes.
type Order int

const (
	// OrderDefault defers to the owning transformation's configured order.
	OrderDefault Order = iota

	// OrderTopDown visits a node before its descendants, depth first, left
	// to right. This is the configuration default.
	OrderTopDown

	// OrderBottomUp visits all descendants before the node itself. Use it
	// for handlers that remove or restructure subtrees while iterating.
	OrderBottomUp

	// OrderRootOnly visits exactly the transformation root.
	OrderRootOnly
)

func (o Order) String() string {
	switch o {
	case OrderDefault:
		return "default"
	case OrderTopDown:
		return "top-down"
	case OrderBottomUp:
		return "bottom-up"
	case OrderRootOnly:
		return "root-only"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// traverser lazily generates element nodes from a root. Generators are
// pure and restartable; child lists are snapshotted before descending so
// handlers may restructure the visited subtree.
type traverser func(root *dom.Node) iter.Seq[*dom.Node]

var traversers = map[Order]traverser{
	OrderTopDown:  traverseTopDown,
	OrderBottomUp: traverseBottomUp,
	OrderRootOnly: traverseRootOnly,
}

func errUnknownOrder(order Order) error {
	return fmt.Errorf("%w: %s", ErrUnknownOrder, order)
}

func traverseTopDown(root *dom.Node) iter.Seq[*dom.Node] {
	return func(yield func(*dom.Node) bool) {
		visitTopDown(root, yield)
	}
}

func visitTopDown(n *dom.Node, yield func(*dom.Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, child := range dom.ChildElements(n) {
		if !visitTopDown(child, yield) {
			return false
		}
	}
	return true
}

func traverseBottomUp(root *dom.Node) iter.Seq[*dom.Node] {
	return func(yield func(*dom.Node) bool) {
		visitBottomUp(root, yield)
	}
}

func visitBottomUp(n *dom.Node, yield func(*dom.Node) bool) bool {
	for _, child := range dom.ChildElements(n) {
		if !visitBottomUp(child, yield) {
			return false
		}
	}
	return yield(n)
}

func traverseRootOnly(root *dom.Node) iter.Seq[*dom.Node] {
	return func(yield func(*dom.Node) bool) {
		yield(root)
	}
}
