package lib

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// SetText returns a handler replacing the processed node's children with a
// single text node. The text may be a string or a resolver.
func SetText(text any) transform.Handler {
	return transform.HandlerFunc([]string{"node", "run"}, func(_ context.Context, args transform.Args) (any, error) {
		s, err := resolveString(text, args.Run(), "text")
		if err != nil {
			return nil, err
		}
		dom.SetText(args.Node(), s)
		return nil, nil
	})
}

// GetText returns a handler whose result is the concatenated text content
// of the processed node.
func GetText() transform.Handler {
	return transform.HandlerFunc([]string{"node"}, func(_ context.Context, args transform.Args) (any, error) {
		return dom.Text(args.Node()), nil
	})
}

// Concatenate returns a handler joining the resolved string values of its
// parts. The joined string is the handler's result.
func Concatenate(parts ...any) transform.Handler {
	return transform.HandlerFunc([]string{"run"}, func(_ context.Context, args transform.Args) (any, error) {
		var b strings.Builder
		for _, part := range parts {
			s, err := resolveString(part, args.Run(), "part")
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	})
}

// Lowercase returns a handler whose result is the resolved string value
// folded to lower case.
func Lowercase(value any) transform.Handler {
	return caseHandler(value, cases.Lower(language.Und))
}

// Uppercase returns a handler whose result is the resolved string value
// folded to upper case.
func Uppercase(value any) transform.Handler {
	return caseHandler(value, cases.Upper(language.Und))
}

// Titlecase returns a handler whose result is the resolved string value in
// title case.
func Titlecase(value any) transform.Handler {
	return caseHandler(value, cases.Title(language.Und))
}

func caseHandler(value any, caser cases.Caser) transform.Handler {
	return transform.HandlerFunc([]string{"run"}, func(_ context.Context, args transform.Args) (any, error) {
		s, err := resolveString(value, args.Run(), "value")
		if err != nil {
			return nil, err
		}
		return caser.String(s), nil
	})
}

var whitespaceRuns = regexp.MustCompile(`\s+`)

// ReduceWhitespace collapses every run of whitespace in s to a single
// space.
func ReduceWhitespace(s string) string {
	return whitespaceRuns.ReplaceAllString(s, " ")
}
