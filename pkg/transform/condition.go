package transform

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/antchfx/xpath"

	"github.com/wehubfusion/Daedalus/pkg/dom"
)

// Condition is a predicate over a node and the active run. Rules apply
// their handlers to a node only when every condition holds.
type Condition interface {
	Test(node *dom.Node, run *Run) (bool, error)
}

// ConditionFunc adapts a plain function to the Condition interface.
type ConditionFunc func(node *dom.Node, run *Run) (bool, error)

// Test implements Condition.
func (f ConditionFunc) Test(node *dom.Node, run *Run) (bool, error) {
	return f(node, run)
}

// AttributeConstraints describes attribute tests that must all hold for a
// node to match. Keys are attribute names as strings or compiled
// *regexp.Regexp patterns; values are expected values as strings, compiled
// patterns, or nil for "key present, value unconstrained".
type AttributeConstraints map[any]any

// ConstraintsFunc produces attribute constraints dynamically, once per
// tested node, from the active run.
type ConstraintsFunc func(run *Run) AttributeConstraints

// QueryFunc produces an XPath expression dynamically from the active run.
type QueryFunc func(run *Run) string

// CompileCondition turns a condition specification into a Condition. The
// specification may be a Condition, a predicate function, a shorthand
// string, attribute constraints, or a function producing either of the
// latter two at execution time.
//
// String shorthand resolution, first match wins: "/" tests for the tree
// root; "*" always matches; a string containing "://" tests the namespace
// URI; a purely alphabetic string tests the local name; anything else is
// translated from CSS selector syntax to XPath when possible and otherwise
// treated as an XPath expression evaluated against the transformation root.
func CompileCondition(spec any) (Condition, error) {
	switch v := spec.(type) {
	case Condition:
		return v, nil
	case func(node *dom.Node, run *Run) (bool, error):
		return ConditionFunc(v), nil
	case string:
		return compileStringCondition(v)
	case AttributeConstraints:
		return MatchesAttributes(v)
	case map[string]any:
		return MatchesAttributes(liftConstraints(v))
	case map[string]string:
		lifted := make(AttributeConstraints, len(v))
		for key, value := range v {
			lifted[key] = value
		}
		return MatchesAttributes(lifted)
	case ConstraintsFunc:
		return MatchesAttributesFunc(v), nil
	case func(run *Run) AttributeConstraints:
		return MatchesAttributesFunc(v), nil
	case nil:
		return nil, fmt.Errorf("%w: nil specification", ErrInvalidCondition)
	default:
		return nil, fmt.Errorf("%w: unsupported specification type %T", ErrInvalidCondition, spec)
	}
}

func liftConstraints(m map[string]any) AttributeConstraints {
	lifted := make(AttributeConstraints, len(m))
	for key, value := range m {
		lifted[key] = value
	}
	return lifted
}

// string condition compilation is idempotent, so results are memoized per
// distinct specification.
var stringConditions = struct {
	sync.Mutex
	cache map[string]Condition
}{cache: map[string]Condition{}}

func compileStringCondition(spec string) (Condition, error) {
	stringConditions.Lock()
	cached, ok := stringConditions.cache[spec]
	stringConditions.Unlock()
	if ok {
		return cached, nil
	}

	compiled, err := classifyString(spec)
	if err != nil {
		return nil, err
	}

	stringConditions.Lock()
	stringConditions.cache[spec] = compiled
	stringConditions.Unlock()
	return compiled, nil
}

func classifyString(spec string) (Condition, error) {
	switch {
	case spec == "/":
		return IsRoot(), nil
	case spec == "*":
		return AnyNode(), nil
	case strings.Contains(spec, "://"):
		return HasNamespace(spec), nil
	case isAlphabetic(spec):
		return HasLocalName(spec), nil
	}
	expr := spec
	if translated, err := cssToXPath(spec); err == nil {
		expr = translated
	}
	return MatchesQuery(expr)
}

func isAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// tagged condition variants

type rootCondition struct{}

func (rootCondition) Test(node *dom.Node, run *Run) (bool, error) {
	return dom.IsTreeRoot(node), nil
}

// IsRoot returns a condition matching only the tree root. A rule carrying
// it is rewritten to root-only traversal.
func IsRoot() Condition { return rootCondition{} }

type anyNodeCondition struct{}

func (anyNodeCondition) Test(node *dom.Node, run *Run) (bool, error) {
	return true, nil
}

// AnyNode returns a condition that matches every node.
func AnyNode() Condition { return anyNodeCondition{} }

type namespaceCondition struct{ uri string }

func (c namespaceCondition) Test(node *dom.Node, run *Run) (bool, error) {
	return dom.Namespace(node) == c.uri, nil
}

// HasNamespace returns a condition testing a node's namespace URI.
func HasNamespace(uri string) Condition { return namespaceCondition{uri: uri} }

type localNameCondition struct{ name string }

func (c localNameCondition) Test(node *dom.Node, run *Run) (bool, error) {
	return dom.LocalName(node) == c.name, nil
}

// HasLocalName returns a condition testing a node's local tag name.
func HasLocalName(name string) Condition { return localNameCondition{name: name} }

type queryCondition struct {
	expr     string
	compiled *xpath.Expr
}

func (c queryCondition) Test(node *dom.Node, run *Run) (bool, error) {
	return dom.Contains(dom.QueryCompiled(run.Root(), c.compiled), node), nil
}

// MatchesQuery returns a condition that holds for nodes contained in the
// result of evaluating the XPath expression against the transformation
// root.
func MatchesQuery(expr string) (Condition, error) {
	compiled, err := dom.CompileQuery(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return queryCondition{expr: expr, compiled: compiled}, nil
}

type queryFuncCondition struct{ fn QueryFunc }

func (c queryFuncCondition) Test(node *dom.Node, run *Run) (bool, error) {
	nodes, err := dom.Query(run.Root(), c.fn(run))
	if err != nil {
		return false, err
	}
	return dom.Contains(nodes, node), nil
}

// MatchesQueryFunc returns a condition whose XPath expression is obtained
// from fn at every test, enabling expressions assembled from run state.
func MatchesQueryFunc(fn QueryFunc) Condition { return queryFuncCondition{fn: fn} }

type attributesCondition struct {
	keyOnlyNames    []string
	keyOnlyPatterns []*regexp.Regexp
	valued          []valueConstraint
	patternValued   []patternValueConstraint
	empty           bool
}

type valueConstraint struct {
	key     string
	value   string
	pattern *regexp.Regexp
}

type patternValueConstraint struct {
	key     *regexp.Regexp
	value   string
	pattern *regexp.Regexp
}

// MatchesAttributes returns a condition over a node's attributes. All
// constraints must hold. Keys and expected values may be strings or
// compiled patterns; a nil value requires only that the key (or, for a
// pattern key, at least one matching key) is present. Patterns are
// anchored at the start of the key or value, so an unanchored pattern
// acts as a prefix match and must end with `$` to match whole strings.
func MatchesAttributes(constraints AttributeConstraints) (Condition, error) {
	cond := attributesCondition{empty: len(constraints) == 0}
	for rawKey, rawValue := range constraints {
		switch key := rawKey.(type) {
		case string:
			if rawValue == nil {
				cond.keyOnlyNames = append(cond.keyOnlyNames, key)
				continue
			}
			vc := valueConstraint{key: key}
			switch value := rawValue.(type) {
			case string:
				vc.value = value
			case *regexp.Regexp:
				vc.pattern = anchorStart(value)
			default:
				return nil, fmt.Errorf("%w: attribute value constraint must be string, *regexp.Regexp or nil, got %T", ErrInvalidCondition, rawValue)
			}
			cond.valued = append(cond.valued, vc)
		case *regexp.Regexp:
			if rawValue == nil {
				cond.keyOnlyPatterns = append(cond.keyOnlyPatterns, anchorStart(key))
				continue
			}
			pvc := patternValueConstraint{key: anchorStart(key)}
			switch value := rawValue.(type) {
			case string:
				pvc.value = value
			case *regexp.Regexp:
				pvc.pattern = anchorStart(value)
			default:
				return nil, fmt.Errorf("%w: attribute value constraint must be string, *regexp.Regexp or nil, got %T", ErrInvalidCondition, rawValue)
			}
			cond.patternValued = append(cond.patternValued, pvc)
		default:
			return nil, fmt.Errorf("%w: attribute key constraint must be string or *regexp.Regexp, got %T", ErrInvalidCondition, rawKey)
		}
	}
	return cond, nil
}

func (c attributesCondition) Test(node *dom.Node, run *Run) (bool, error) {
	attributes := dom.Attributes(node)
	if c.empty {
		return true, nil
	}
	if len(attributes) == 0 {
		return false, nil
	}

	for _, key := range c.keyOnlyNames {
		if _, ok := attributes[key]; !ok {
			return false, nil
		}
	}
	for _, pattern := range c.keyOnlyPatterns {
		if !anyKeyMatches(attributes, pattern) {
			return false, nil
		}
	}
	for _, vc := range c.valued {
		value, ok := attributes[vc.key]
		if !ok {
			return false, nil
		}
		if !matchValue(value, vc.value, vc.pattern) {
			return false, nil
		}
	}
	// A pattern key with a value constraint binds every attribute whose key
	// matches; with no matching key it holds vacuously.
	for _, pvc := range c.patternValued {
		for key, value := range attributes {
			if pvc.key.MatchString(key) && !matchValue(value, pvc.value, pvc.pattern) {
				return false, nil
			}
		}
	}
	return true, nil
}

// anchorStart pins a pattern to the start of its subject, so matching
// behaves like a prefix test rather than a substring search.
func anchorStart(pattern *regexp.Regexp) *regexp.Regexp {
	return regexp.MustCompile(`^(?:` + pattern.String() + `)`)
}

func anyKeyMatches(attributes map[string]string, pattern *regexp.Regexp) bool {
	for key := range attributes {
		if pattern.MatchString(key) {
			return true
		}
	}
	return false
}

func matchValue(value, expected string, pattern *regexp.Regexp) bool {
	if pattern != nil {
		return pattern.MatchString(value)
	}
	return value == expected
}

type attributesFuncCondition struct{ fn ConstraintsFunc }

func (c attributesFuncCondition) Test(node *dom.Node, run *Run) (bool, error) {
	cond, err := MatchesAttributes(c.fn(run))
	if err != nil {
		return false, err
	}
	return cond.Test(node, run)
}

// MatchesAttributesFunc returns a condition whose constraint set is
// produced by fn at every test.
func MatchesAttributesFunc(fn ConstraintsFunc) Condition {
	return attributesFuncCondition{fn: fn}
}

// invalidCondition carries a compilation error from combinator construction
// to transformation validation, where it fails fast.
type invalidCondition struct{ err error }

func (c invalidCondition) Test(node *dom.Node, run *Run) (bool, error) {
	return false, c.err
}

func (c invalidCondition) constructionError() error { return c.err }

// constructionError surfaces deferred compile errors from conditions built
// by combinators, which have no error return of their own.
func conditionConstructionError(c Condition) error {
	if ic, ok := c.(interface{ constructionError() error }); ok {
		return ic.constructionError()
	}
	return nil
}
