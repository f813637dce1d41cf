package transform

import (
	"errors"
	"testing"
)

func TestRefResolution(t *testing.T) {
	root := parseRoot(t, `<root xmlns:x="http://example.com/x"/>`)
	run := runOn(t, root)
	run.Context().Set("user", map[string]any{"name": "ada"})

	t.Run("plain symbol", func(t *testing.T) {
		v, err := Ref("root").Resolve(run)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if v != any(root) {
			t.Error("root symbol did not resolve to the tree root")
		}
	})

	t.Run("dotted path over maps", func(t *testing.T) {
		v, err := Ref("context.user.name").Resolve(run)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if v != any("ada") {
			t.Errorf("got %v, want %q", v, "ada")
		}
	})

	t.Run("namespace map", func(t *testing.T) {
		v, err := Ref("nsmap.x").Resolve(run)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if v != any("http://example.com/x") {
			t.Errorf("got %v, want the declared namespace", v)
		}
	})

	t.Run("struct fields are matched case insensitively", func(t *testing.T) {
		v, err := Ref("config.resultpath").Resolve(run)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if v != any("root") {
			t.Errorf("got %v, want the defaulted result path", v)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		if _, err := Ref("nothing").Resolve(run); !errors.Is(err, ErrSymbolNotFound) {
			t.Errorf("error = %v, want ErrSymbolNotFound", err)
		}
	})

	t.Run("unresolvable member", func(t *testing.T) {
		if _, err := Ref("context.user.age").Resolve(run); !errors.Is(err, ErrUnresolvablePath) {
			t.Errorf("error = %v, want ErrUnresolvablePath", err)
		}
	})
}

func TestResolveValue(t *testing.T) {
	root := parseRoot(t, `<root/>`)
	run := runOn(t, root)
	run.Context().Set("target", "spam")

	v, err := ResolveValue(Ref("context.target"), run)
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if v != any("spam") {
		t.Errorf("resolver value = %v, want %q", v, "spam")
	}

	v, err = ResolveValue("literal", run)
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if v != any("literal") {
		t.Errorf("literal value = %v, want it passed through", v)
	}
}
