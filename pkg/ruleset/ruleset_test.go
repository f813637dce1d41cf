package ruleset

import (
	"context"
	"testing"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/script"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

const sampleRuleset = `
name: cleanup
order: top-down
context:
  marker: seen
rules:
  - name: mark-items
    conditions:
      - selector: item
      - attributes:
          lang: en
    handlers:
      - use: set-attribute
        args:
          name: status
          value: "ref:context.marker"
  - name: drop-junk
    conditions:
      - selector: junk
    handlers:
      - use: remove-node
    order: bottom-up
`

func buildAndRun(t *testing.T, source, document string) *dom.Node {
	t.Helper()
	rs, err := Parse([]byte(source))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tr, err := rs.Build(NewRegistry(), nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	doc, err := dom.ParseString(document)
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	root := dom.DocumentElement(doc)
	if _, err := tr.Execute(context.Background(), root, transform.WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return root
}

func TestBuildAndExecute(t *testing.T) {
	root := buildAndRun(t, sampleRuleset,
		`<root><item lang="en"/><item lang="de"/><junk/></root>`)

	children := dom.ChildElements(root)
	if len(children) != 2 {
		t.Fatalf("children = %d, want junk removed", len(children))
	}
	if v, _ := dom.Attribute(children[0], "status"); v != "seen" {
		t.Errorf("english item status = %q, want resolver-provided %q", v, "seen")
	}
	if _, ok := dom.Attribute(children[1], "status"); ok {
		t.Error("german item was marked despite the attribute condition")
	}
}

func TestOnceRule(t *testing.T) {
	root := buildAndRun(t, `
name: first-only
rules:
  - conditions:
      - selector: item
    handlers:
      - use: set-attribute
        args: {name: first, value: "yes"}
    once: true
`, `<root><item/><item/></root>`)

	items := dom.ChildElements(root)
	if _, ok := dom.Attribute(items[0], "first"); !ok {
		t.Error("first item not marked")
	}
	if _, ok := dom.Attribute(items[1], "first"); ok {
		t.Error("second item marked despite once")
	}
}

func TestScriptEntries(t *testing.T) {
	engine := script.NewEngine(2)
	defer engine.Close()

	rs, err := Parse([]byte(`
name: scripted
rules:
  - conditions:
      - script: 'node.name === "item"'
    handlers:
      - script: 'node.setAttribute("scripted", "yes")'
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tr, err := rs.Build(NewRegistry(), engine, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	doc, err := dom.ParseString(`<root><item/><other/></root>`)
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	root := dom.DocumentElement(doc)
	if _, err := tr.Execute(context.Background(), root, transform.WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	item, other := dom.ChildElements(root)[0], dom.ChildElements(root)[1]
	if _, ok := dom.Attribute(item, "scripted"); !ok {
		t.Error("item not touched by the script handler")
	}
	if _, ok := dom.Attribute(other, "scripted"); ok {
		t.Error("non-matching element touched")
	}
}

func TestScriptWithoutEngineFails(t *testing.T) {
	rs, err := Parse([]byte(`
name: scripted
rules:
  - conditions:
      - script: 'true'
    handlers:
      - use: remove-node
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := rs.Build(NewRegistry(), nil, nil); err == nil {
		t.Fatal("expected an error for script conditions without an engine")
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		source string
	}{
		{"unknown handler", `
rules:
  - conditions: [{selector: item}]
    handlers: [{use: no-such-handler}]
`},
		{"unknown order", `
order: sideways
rules: []
`},
		{"unknown flow", `
rules:
  - conditions: [{selector: item}]
    handlers: [{flow: jump}]
`},
		{"ambiguous condition", `
rules:
  - conditions: [{selector: item, script: 'true'}]
    handlers: [{use: remove-node}]
`},
		{"rule without conditions", `
rules:
  - handlers: [{use: remove-node}]
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := Parse([]byte(tc.source))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := rs.Build(NewRegistry(), nil, nil); err == nil {
				t.Fatal("expected a build error")
			}
		})
	}
}

func TestCombinatorConditions(t *testing.T) {
	root := buildAndRun(t, `
name: combinators
rules:
  - conditions:
      - not:
          - selector: root
      - any:
          - selector: a
          - selector: b
    handlers:
      - use: set-attribute
        args: {name: hit, value: "1"}
`, `<root><a/><b/><c/></root>`)

	children := dom.ChildElements(root)
	for i, want := range []bool{true, true, false} {
		if _, ok := dom.Attribute(children[i], "hit"); ok != want {
			t.Errorf("child %d hit = %v, want %v", i, ok, want)
		}
	}
}
