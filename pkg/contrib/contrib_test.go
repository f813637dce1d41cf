package contrib

import (
	"context"
	"testing"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

func TestReduceWhitespace(t *testing.T) {
	doc, err := dom.ParseString("<root><p>some\t\ttext\n   here</p></root>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := dom.DocumentElement(doc)

	if _, err := ReduceWhitespace.Execute(context.Background(), root, transform.WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := dom.Text(dom.ChildElements(root)[0]); got != "some text here" {
		t.Errorf("text = %q, want %q", got, "some text here")
	}
}

func TestRemoveEmptyNodes(t *testing.T) {
	doc, err := dom.ParseString(`<root><wrapper><empty/></wrapper><keep a="1"/><text>x</text></root>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := dom.DocumentElement(doc)

	if _, err := RemoveEmptyNodes.Execute(context.Background(), root, transform.WithInPlace(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := make([]string, 0, 2)
	for _, c := range dom.ChildElements(root) {
		got = append(got, dom.LocalName(c))
	}
	if len(got) != 2 || got[0] != "keep" || got[1] != "text" {
		t.Errorf("surviving children = %v, want [keep text]", got)
	}
}

func TestRemoveEmptyNodesKeepsEmptyRoot(t *testing.T) {
	doc, err := dom.ParseString(`<root/>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := dom.DocumentElement(doc)

	result, err := RemoveEmptyNodes.Execute(context.Background(), root)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out := result.(*dom.Node); dom.LocalName(out) != "root" {
		t.Errorf("root = %q, want it preserved", dom.LocalName(out))
	}
}
