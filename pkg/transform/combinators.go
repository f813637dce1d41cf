package transform

import (
	"fmt"
	"reflect"

	"github.com/wehubfusion/Daedalus/pkg/dom"
)

// Any combines condition specifications into a condition that holds when
// at least one of them holds. Nested sequences are flattened.
func Any(specs ...any) Condition {
	conditions, err := compileConditionSpecs(specs)
	if err != nil {
		return invalidCondition{err: err}
	}
	return ConditionFunc(func(node *dom.Node, run *Run) (bool, error) {
		for _, c := range conditions {
			ok, err := c.Test(node, run)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not combines condition specifications into a condition that holds when
// none of them holds.
func Not(specs ...any) Condition {
	conditions, err := compileConditionSpecs(specs)
	if err != nil {
		return invalidCondition{err: err}
	}
	return ConditionFunc(func(node *dom.Node, run *Run) (bool, error) {
		for _, c := range conditions {
			ok, err := c.Test(node, run)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	})
}

// OneOf combines condition specifications into a condition that holds when
// exactly one of them holds.
func OneOf(specs ...any) Condition {
	conditions, err := compileConditionSpecs(specs)
	if err != nil {
		return invalidCondition{err: err}
	}
	return ConditionFunc(func(node *dom.Node, run *Run) (bool, error) {
		matches := 0
		for _, c := range conditions {
			ok, err := c.Test(node, run)
			if err != nil {
				return false, err
			}
			if ok {
				matches++
				if matches > 1 {
					return false, nil
				}
			}
		}
		return matches == 1, nil
	})
}

// BinOp compares the two resolved operands of an If condition.
type BinOp func(x, y any) bool

// Eq reports deep equality of its operands.
func Eq(x, y any) bool { return reflect.DeepEqual(x, y) }

// Ne reports deep inequality of its operands.
func Ne(x, y any) bool { return !reflect.DeepEqual(x, y) }

// If returns a condition comparing two operands with op. Operands may be
// literals, Resolvers, or handlers whose result is used as the operand
// value; resolution happens at every test.
func If(x any, op BinOp, y any) Condition {
	return ConditionFunc(func(node *dom.Node, run *Run) (bool, error) {
		resolvedX, err := resolveOperand(x, run)
		if err != nil {
			return false, err
		}
		resolvedY, err := resolveOperand(y, run)
		if err != nil {
			return false, err
		}
		return op(resolvedX, resolvedY), nil
	})
}

func resolveOperand(operand any, run *Run) (any, error) {
	switch v := operand.(type) {
	case Resolver:
		return v.Resolve(run)
	case Handler:
		value, _, err := run.dispatch(v)
		return value, err
	default:
		return operand, nil
	}
}

func compileConditionSpecs(specs []any) ([]Condition, error) {
	flat := flattenSpecs(specs)
	conditions := make([]Condition, 0, len(flat))
	for _, spec := range flat {
		c, err := CompileCondition(spec)
		if err != nil {
			return nil, err
		}
		if cerr := conditionConstructionError(c); cerr != nil {
			return nil, cerr
		}
		conditions = append(conditions, c)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("%w: no conditions given", ErrInvalidCondition)
	}
	return conditions, nil
}

// flattenSpecs expands nested []any groups so conditions and handlers can
// be grouped for readability without changing semantics.
func flattenSpecs(specs []any) []any {
	var flat []any
	for _, spec := range specs {
		if nested, ok := spec.([]any); ok {
			flat = append(flat, flattenSpecs(nested)...)
			continue
		}
		flat = append(flat, spec)
	}
	return flat
}
