package lib

import (
	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// HasAttributes is a condition matching nodes that carry at least one
// attribute.
func HasAttributes() transform.Condition {
	return transform.ConditionFunc(func(node *dom.Node, _ *transform.Run) (bool, error) {
		return len(dom.Attributes(node)) > 0, nil
	})
}

// HasChildren is a condition matching nodes with at least one element
// child.
func HasChildren() transform.Condition {
	return transform.ConditionFunc(func(node *dom.Node, _ *transform.Run) (bool, error) {
		return dom.HasChildElements(node), nil
	})
}

// HasText is a condition matching nodes whose text content is non-empty.
func HasText() transform.Condition {
	return transform.ConditionFunc(func(node *dom.Node, _ *transform.Run) (bool, error) {
		return dom.Text(node) != "", nil
	})
}

// TextIs returns a condition matching nodes whose text content equals the
// resolved expected value.
func TextIs(expected any) transform.Condition {
	return transform.ConditionFunc(func(node *dom.Node, run *transform.Run) (bool, error) {
		s, err := resolveString(expected, run, "expected text")
		if err != nil {
			return false, err
		}
		return dom.Text(node) == s, nil
	})
}
