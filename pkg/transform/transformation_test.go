package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/wehubfusion/Daedalus/pkg/dom"
)

func parseRoot(t *testing.T, source string) *dom.Node {
	t.Helper()
	doc, err := dom.ParseString(source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := dom.DocumentElement(doc)
	if root == nil {
		t.Fatal("document has no root element")
	}
	return root
}

// runOn builds an in-place run over root for testing conditions and
// resolvers outside a full Execute call.
func runOn(t *testing.T, root *dom.Node) *Run {
	t.Helper()
	tr, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	inPlace := true
	run, err := tr.newRun(context.Background(), root, callOptions{inPlace: &inPlace})
	if err != nil {
		t.Fatalf("newRun: %v", err)
	}
	return run
}

func setAttr(name, value string) Handler {
	return HandlerFunc([]string{"node"}, func(_ context.Context, args Args) (any, error) {
		dom.SetAttribute(args.Node(), name, value)
		return nil, nil
	})
}

func hasAttr(t *testing.T, n *dom.Node, name string) bool {
	t.Helper()
	_, ok := dom.Attribute(n, name)
	return ok
}

func TestExecuteCopiesInput(t *testing.T) {
	root := parseRoot(t, `<root><item/></root>`)
	tr := MustNew(Config{}, NewRule("item", setAttr("seen", "yes")))

	result, err := tr.Execute(context.Background(), root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out, ok := result.(*dom.Node)
	if !ok {
		t.Fatalf("result is %T, want *dom.Node", result)
	}
	if out == root {
		t.Fatal("result is the input tree, want a copy")
	}
	if !hasAttr(t, dom.ChildElements(out)[0], "seen") {
		t.Error("result item not marked")
	}
	if hasAttr(t, dom.ChildElements(root)[0], "seen") {
		t.Error("input tree was mutated")
	}
}

func TestExecuteInPlace(t *testing.T) {
	root := parseRoot(t, `<root><item/></root>`)
	tr := MustNew(Config{}, NewRule("item", setAttr("seen", "yes")))

	result, err := tr.Execute(context.Background(), root, WithInPlace(true))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != any(root) {
		t.Error("in-place result should be the input root")
	}
	if !hasAttr(t, dom.ChildElements(root)[0], "seen") {
		t.Error("input item not marked")
	}
}

func TestConfiguredInPlaceOverridableCallSide(t *testing.T) {
	root := parseRoot(t, `<root><item/></root>`)
	tr := MustNew(Config{InPlace: true}, NewRule("item", setAttr("seen", "yes")))

	if _, err := tr.Execute(context.Background(), root, WithInPlace(false)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if hasAttr(t, dom.ChildElements(root)[0], "seen") {
		t.Error("input tree was mutated despite call-side copy request")
	}
}

func TestPreviousResultChaining(t *testing.T) {
	root := parseRoot(t, `<root/>`)
	tr := MustNew(Config{ResultPath: "previous_result"},
		HandlerFunc(nil, func(_ context.Context, _ Args) (any, error) {
			return "hello", nil
		}),
		HandlerFunc([]string{"previous_result"}, func(_ context.Context, args Args) (any, error) {
			prev, _ := args.Previous().(string)
			return prev + " world", nil
		}),
	)

	result, err := tr.Execute(context.Background(), root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != any("hello world") {
		t.Errorf("result = %v, want %q", result, "hello world")
	}
}

func TestFlowSignals(t *testing.T) {
	t.Run("skip node abandons remaining handlers for the node", func(t *testing.T) {
		root := parseRoot(t, `<root><item skip="1"/><item/></root>`)
		skipFlagged := HandlerFunc([]string{"node"}, func(_ context.Context, args Args) (any, error) {
			if v, _ := dom.Attribute(args.Node(), "skip"); v == "1" {
				return SkipNode, nil
			}
			return nil, nil
		})
		tr := MustNew(Config{}, NewRule("item", skipFlagged, setAttr("seen", "yes")))

		_, err := tr.Execute(context.Background(), root, WithInPlace(true))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		items := dom.ChildElements(root)
		if hasAttr(t, items[0], "seen") {
			t.Error("flagged item was processed past the skip signal")
		}
		if !hasAttr(t, items[1], "seen") {
			t.Error("unflagged item was not processed")
		}
	})

	t.Run("once applies a rule to the first match only", func(t *testing.T) {
		root := parseRoot(t, `<root><item/><item/></root>`)
		tr := MustNew(Config{}, Once("item", setAttr("seen", "yes")))

		if _, err := tr.Execute(context.Background(), root, WithInPlace(true)); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		items := dom.ChildElements(root)
		if !hasAttr(t, items[0], "seen") {
			t.Error("first item not marked")
		}
		if hasAttr(t, items[1], "seen") {
			t.Error("second item marked, rule should have aborted")
		}
	})

	t.Run("abort transformation stops remaining steps", func(t *testing.T) {
		root := parseRoot(t, `<root><item/><item/></root>`)
		tr := MustNew(Config{},
			NewRule("item", setAttr("first", "x"), AbortTransformation),
			NewRule("item", setAttr("second", "y")),
		)

		if _, err := tr.Execute(context.Background(), root, WithInPlace(true)); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		items := dom.ChildElements(root)
		if !hasAttr(t, items[0], "first") {
			t.Error("first item not marked by the aborting rule")
		}
		if hasAttr(t, items[1], "first") {
			t.Error("second item marked, traversal should have stopped")
		}
		for i, item := range items {
			if hasAttr(t, item, "second") {
				t.Errorf("item %d marked by a step after the abort", i)
			}
		}
	})

	t.Run("flow value as a plain step", func(t *testing.T) {
		root := parseRoot(t, `<root><item/></root>`)
		tr := MustNew(Config{}, AbortTransformation, NewRule("item", setAttr("seen", "yes")))

		result, err := tr.Execute(context.Background(), root, WithInPlace(true))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if result != any(root) {
			t.Error("aborted transformation should still produce its result")
		}
		if hasAttr(t, dom.ChildElements(root)[0], "seen") {
			t.Error("rule ran after the abort step")
		}
	})
}

func TestRootConditionForcesRootOnlyTraversal(t *testing.T) {
	root := parseRoot(t, `<root><item><item/></item></root>`)
	visits := 0
	count := HandlerFunc([]string{"node"}, func(_ context.Context, args Args) (any, error) {
		visits++
		dom.SetAttribute(args.Node(), "visited", "yes")
		return nil, nil
	})
	tr := MustNew(Config{}, NewRule("/", count))

	if _, err := tr.Execute(context.Background(), root, WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if visits != 1 {
		t.Errorf("visits = %d, want 1", visits)
	}
	if !hasAttr(t, root, "visited") {
		t.Error("root was not the visited node")
	}
}

func TestCommonRuleConditions(t *testing.T) {
	root := parseRoot(t, `<root><p lang="en"/><p lang="de"/></root>`)
	tr := MustNew(Config{CommonRuleConditions: map[string]string{"lang": "en"}},
		NewRule("p", setAttr("seen", "yes")),
	)

	if _, err := tr.Execute(context.Background(), root, WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	paragraphs := dom.ChildElements(root)
	if !hasAttr(t, paragraphs[0], "seen") {
		t.Error("matching paragraph not processed")
	}
	if hasAttr(t, paragraphs[1], "seen") {
		t.Error("non-matching paragraph processed despite common condition")
	}
}

func TestNestedTransformation(t *testing.T) {
	rename := func(to string) Handler {
		return HandlerFunc([]string{"node"}, func(_ context.Context, args Args) (any, error) {
			dom.Rename(args.Node(), to)
			return nil, nil
		})
	}
	inner := MustNew(Config{Name: "rename-names"}, NewRule("name", rename("n")))
	outer := MustNew(Config{Name: "outer"}, NewRule("person", inner))

	root := parseRoot(t, `<root><person><name/></person><other><name/></other></root>`)
	if _, err := outer.Execute(context.Background(), root, WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	person, other := dom.ChildElements(root)[0], dom.ChildElements(root)[1]
	if got := dom.LocalName(dom.ChildElements(person)[0]); got != "n" {
		t.Errorf("person child = %q, want %q", got, "n")
	}
	if got := dom.LocalName(dom.ChildElements(other)[0]); got != "name" {
		t.Errorf("other child = %q, want %q; nested transformation leaked past its node", got, "name")
	}
}

func TestNestedTransformationAsPlainStep(t *testing.T) {
	inner := MustNew(Config{}, NewRule("item", setAttr("seen", "yes")))
	outer := MustNew(Config{}, inner)

	root := parseRoot(t, `<root><item/></root>`)
	if _, err := outer.Execute(context.Background(), root, WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !hasAttr(t, dom.ChildElements(root)[0], "seen") {
		t.Error("plain-step nested transformation did not run against the root")
	}
}

func TestResultPath(t *testing.T) {
	root := parseRoot(t, `<root><item/><item/><item/></root>`)
	count := HandlerFunc([]string{"context"}, func(_ context.Context, args Args) (any, error) {
		total, _ := args.Context().Value("total").(int)
		args.Context().Set("total", total+1)
		return nil, nil
	})
	tr := MustNew(Config{ResultPath: "context.total"}, NewRule("item", count))

	result, err := tr.Execute(context.Background(), root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != any(3) {
		t.Errorf("result = %v, want 3", result)
	}
}

func TestDiscardResult(t *testing.T) {
	root := parseRoot(t, `<root/>`)
	tr := MustNew(Config{DiscardResult: true}, NewRule("root", setAttr("seen", "yes")))

	result, err := tr.Execute(context.Background(), root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestDocumentInput(t *testing.T) {
	doc, err := dom.ParseString(`<root><item/></root>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr := MustNew(Config{}, NewRule("item", setAttr("seen", "yes")))

	result, err := tr.Execute(context.Background(), doc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out, ok := result.(*dom.Node)
	if !ok || !dom.IsDocument(out) {
		t.Fatalf("result = %T (%v), want a document node", result, result)
	}
	if out == doc {
		t.Error("result is the input document, want a copy")
	}
	if !hasAttr(t, dom.ChildElements(dom.DocumentElement(out))[0], "seen") {
		t.Error("document content not transformed")
	}
}

func TestCallValuesOverrideConfiguredContext(t *testing.T) {
	root := parseRoot(t, `<root/>`)
	tr := MustNew(Config{
		Context:    map[string]any{"greeting": "hi", "subject": "world"},
		ResultPath: "context.greeting",
	})

	result, err := tr.Execute(context.Background(), root, WithValue("greeting", "hello"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != any("hello") {
		t.Errorf("result = %v, want %q", result, "hello")
	}

	result, err = tr.Execute(context.Background(), root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != any("hi") {
		t.Errorf("configured default = %v, want %q; call values must not persist", result, "hi")
	}
}

func TestBottomUpUnwrap(t *testing.T) {
	root := parseRoot(t, `<root><wrap><wrap><leaf/></wrap></wrap></root>`)
	unwrap := HandlerFunc([]string{"node"}, func(_ context.Context, args Args) (any, error) {
		dom.Remove(args.Node(), true)
		return nil, nil
	})
	tr := MustNew(Config{}, NewRule("wrap", unwrap).WithOrder(OrderBottomUp))

	if _, err := tr.Execute(context.Background(), root, WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	children := dom.ChildElements(root)
	if len(children) != 1 || dom.LocalName(children[0]) != "leaf" {
		t.Errorf("root children = %v, want a single leaf", names(children))
	}
}

func names(nodes []*dom.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = dom.LocalName(n)
	}
	return out
}

func TestExecuteInvalidInput(t *testing.T) {
	tr := MustNew(Config{})

	if _, err := tr.Execute(context.Background(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil input error = %v, want ErrInvalidInput", err)
	}
	if _, err := tr.Execute(context.Background(), dom.NewText("x")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("text input error = %v, want ErrInvalidInput", err)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	root := parseRoot(t, `<root><item/></root>`)
	tr := MustNew(Config{}, NewRule("item", setAttr("seen", "yes")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Execute(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewValidation(t *testing.T) {
	t.Run("unsupported step type", func(t *testing.T) {
		if _, err := New(Config{}, 42); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("error = %v, want ErrInvalidStep", err)
		}
	})

	t.Run("rule construction errors surface", func(t *testing.T) {
		if _, err := New(Config{}, NewRule(42, setAttr("a", "b"))); !errors.Is(err, ErrInvalidCondition) {
			t.Errorf("error = %v, want ErrInvalidCondition", err)
		}
	})

	t.Run("unknown configured order", func(t *testing.T) {
		if _, err := New(Config{Order: Order(99)}); !errors.Is(err, ErrUnknownOrder) {
			t.Errorf("error = %v, want ErrUnknownOrder", err)
		}
	})

	t.Run("nil step", func(t *testing.T) {
		if _, err := New(Config{}, nil); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("error = %v, want ErrInvalidStep", err)
		}
	})
}

func TestHandlerErrorsAbortWithContext(t *testing.T) {
	root := parseRoot(t, `<root><item/></root>`)
	boom := errors.New("boom")
	failing := HandlerFunc(nil, func(_ context.Context, _ Args) (any, error) {
		return nil, boom
	})
	tr := MustNew(Config{Name: "failing"}, NewRule("item", failing).WithName("explode"))

	_, err := tr.Execute(context.Background(), root)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
}
