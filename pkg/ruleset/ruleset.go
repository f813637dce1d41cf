// Package ruleset loads transformations from YAML documents. A ruleset
// names its transformation, configures traversal and result handling, and
// declares rules whose conditions use the same shorthand forms the
// transform package compiles, with handlers drawn from a Registry or
// written inline as scripts.
package ruleset

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/Daedalus/pkg/script"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// refPrefix marks string values that should resolve against the symbol
// chain at dispatch time instead of being literals.
const refPrefix = "ref:"

// Ruleset is the YAML document shape.
type Ruleset struct {
	Name             string         `yaml:"name"`
	Order            string         `yaml:"order"`
	ResultPath       string         `yaml:"result"`
	DiscardResult    bool           `yaml:"discard_result"`
	InPlace          bool           `yaml:"in_place"`
	Context          map[string]any `yaml:"context"`
	CommonConditions []Condition    `yaml:"common_conditions"`
	Rules            []RuleSpec     `yaml:"rules"`
}

// RuleSpec declares a rule: conditions, a handler sequence, and optional
// name, traversal order and once flag.
type RuleSpec struct {
	Name       string        `yaml:"name"`
	Conditions []Condition   `yaml:"conditions"`
	Handlers   []HandlerSpec `yaml:"handlers"`
	Order      string        `yaml:"order"`
	Once       bool          `yaml:"once"`
}

// Condition is one condition entry. Exactly one field may be set.
type Condition struct {
	Selector   string            `yaml:"selector"`
	Attributes map[string]string `yaml:"attributes"`
	Script     string            `yaml:"script"`
	Any        []Condition       `yaml:"any"`
	Not        []Condition       `yaml:"not"`
	OneOf      []Condition       `yaml:"one_of"`
}

// HandlerSpec is one handler entry: a registered handler with arguments,
// an inline script, or a flow signal.
type HandlerSpec struct {
	Use    string         `yaml:"use"`
	Args   map[string]any `yaml:"args"`
	Script string         `yaml:"script"`
	Flow   string         `yaml:"flow"`
}

// Parse decodes a ruleset document.
func Parse(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}
	return &rs, nil
}

// Load decodes a ruleset document from r.
func Load(r io.Reader) (*Ruleset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	return Parse(data)
}

// LoadFile decodes a ruleset document from a file.
func LoadFile(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset %s: %w", path, err)
	}
	return Parse(data)
}

// Build assembles the declared transformation. Handlers referenced by name
// come from registry; script conditions and handlers are compiled on
// engine. A nil engine rejects rulesets using scripts.
func (rs *Ruleset) Build(registry *Registry, engine *script.Engine, logger *zap.Logger) (*transform.Transformation, error) {
	order, err := parseOrder(rs.Order)
	if err != nil {
		return nil, err
	}

	var common any
	if len(rs.CommonConditions) > 0 {
		specs, err := buildConditions(rs.CommonConditions, engine)
		if err != nil {
			return nil, fmt.Errorf("common conditions: %w", err)
		}
		common = specs
	}

	steps := make([]any, 0, len(rs.Rules))
	for i, spec := range rs.Rules {
		rule, err := buildRule(spec, registry, engine)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, spec.Name, err)
		}
		steps = append(steps, rule)
	}

	return transform.New(transform.Config{
		Name:                 rs.Name,
		Context:              translateMap(rs.Context),
		CommonRuleConditions: common,
		InPlace:              rs.InPlace,
		ResultPath:           rs.ResultPath,
		DiscardResult:        rs.DiscardResult,
		Order:                order,
		Logger:               logger,
	}, steps...)
}

func buildRule(spec RuleSpec, registry *Registry, engine *script.Engine) (*transform.Rule, error) {
	conditions, err := buildConditions(spec.Conditions, engine)
	if err != nil {
		return nil, err
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("a rule needs at least one condition")
	}

	handlers := make([]any, 0, len(spec.Handlers))
	for i, h := range spec.Handlers {
		built, err := buildHandler(h, registry, engine)
		if err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		handlers = append(handlers, built)
	}

	var rule *transform.Rule
	if spec.Once {
		rule = transform.Once(conditions, handlers...)
	} else {
		rule = transform.NewRule(conditions, handlers...)
	}
	if spec.Name != "" {
		rule = rule.WithName(spec.Name)
	}
	if spec.Order != "" {
		order, err := parseOrder(spec.Order)
		if err != nil {
			return nil, err
		}
		rule = rule.WithOrder(order)
	}
	return rule, nil
}

func buildConditions(specs []Condition, engine *script.Engine) ([]any, error) {
	out := make([]any, 0, len(specs))
	for i, spec := range specs {
		built, err := buildCondition(spec, engine)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		out = append(out, built)
	}
	return out, nil
}

func buildCondition(spec Condition, engine *script.Engine) (any, error) {
	set := 0
	for _, present := range []bool{
		spec.Selector != "", spec.Attributes != nil, spec.Script != "",
		spec.Any != nil, spec.Not != nil, spec.OneOf != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of selector, attributes, script, any, not, one_of must be set")
	}

	switch {
	case spec.Selector != "":
		return spec.Selector, nil
	case spec.Attributes != nil:
		return spec.Attributes, nil
	case spec.Script != "":
		if engine == nil {
			return nil, fmt.Errorf("script conditions need a script engine")
		}
		return engine.Condition(spec.Script)
	case spec.Any != nil:
		nested, err := buildConditions(spec.Any, engine)
		if err != nil {
			return nil, err
		}
		return transform.Any(nested...), nil
	case spec.Not != nil:
		nested, err := buildConditions(spec.Not, engine)
		if err != nil {
			return nil, err
		}
		return transform.Not(nested...), nil
	default:
		nested, err := buildConditions(spec.OneOf, engine)
		if err != nil {
			return nil, err
		}
		return transform.OneOf(nested...), nil
	}
}

func buildHandler(spec HandlerSpec, registry *Registry, engine *script.Engine) (any, error) {
	set := 0
	for _, present := range []bool{spec.Use != "", spec.Script != "", spec.Flow != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of use, script, flow must be set")
	}

	switch {
	case spec.Use != "":
		if registry == nil {
			return nil, fmt.Errorf("named handlers need a registry")
		}
		return registry.build(spec.Use, translateMap(spec.Args))
	case spec.Script != "":
		if engine == nil {
			return nil, fmt.Errorf("script handlers need a script engine")
		}
		return engine.Handler(spec.Script)
	default:
		return parseFlow(spec.Flow)
	}
}

// translateMap rewrites ref-prefixed strings into resolvers, recursively.
func translateMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = translateValue(v)
	}
	return out
}

func translateValue(v any) any {
	switch value := v.(type) {
	case string:
		if strings.HasPrefix(value, refPrefix) {
			return transform.Ref(strings.TrimPrefix(value, refPrefix))
		}
		return value
	case map[string]any:
		return translateMap(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = translateValue(item)
		}
		return out
	default:
		return v
	}
}

func parseOrder(s string) (transform.Order, error) {
	switch s {
	case "":
		return transform.OrderDefault, nil
	case "top-down":
		return transform.OrderTopDown, nil
	case "bottom-up":
		return transform.OrderBottomUp, nil
	case "root-only":
		return transform.OrderRootOnly, nil
	default:
		return transform.OrderDefault, fmt.Errorf("unknown order %q", s)
	}
}

func parseFlow(s string) (transform.Flow, error) {
	switch s {
	case "skip-node":
		return transform.SkipNode, nil
	case "abort-rule":
		return transform.AbortRule, nil
	case "abort-transformation":
		return transform.AbortTransformation, nil
	default:
		return transform.Continue, fmt.Errorf("unknown flow signal %q", s)
	}
}
