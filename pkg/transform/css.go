package transform

import (
	"fmt"
	"strings"
)

// cssToXPath translates a CSS selector into an equivalent XPath expression,
// using the abbreviated descendant-or-self form ("//") the way stylesheet
// tooling renders it. Only the structural subset useful for rule conditions
// is covered: type and universal selectors, #id, .class, attribute
// presence/equality, and the descendant, child, adjacent and general
// sibling combinators, with comma-separated groups. Anything else fails,
// and the caller falls back to treating the input as XPath.
func cssToXPath(selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", fmt.Errorf("empty selector")
	}
	var groups []string
	for _, group := range strings.Split(selector, ",") {
		translated, err := translateGroup(strings.TrimSpace(group))
		if err != nil {
			return "", err
		}
		groups = append(groups, translated)
	}
	return strings.Join(groups, " | "), nil
}

func translateGroup(group string) (string, error) {
	tokens, err := tokenizeSelector(group)
	if err != nil {
		return "", err
	}
	path := "//"
	expectSimple := true
	for _, token := range tokens {
		switch token {
		case ">":
			if expectSimple {
				return "", fmt.Errorf("misplaced combinator %q", token)
			}
			path += "/"
			expectSimple = true
		case "+":
			if expectSimple {
				return "", fmt.Errorf("misplaced combinator %q", token)
			}
			path += "/following-sibling::*[1]"
			expectSimple = true
		case "~":
			if expectSimple {
				return "", fmt.Errorf("misplaced combinator %q", token)
			}
			path += "/following-sibling::"
			expectSimple = true
		case " ":
			if expectSimple {
				return "", fmt.Errorf("misplaced combinator %q", token)
			}
			path += "//"
			expectSimple = true
		default:
			if !expectSimple {
				return "", fmt.Errorf("expected combinator before %q", token)
			}
			step, err := translateSimple(token, strings.HasSuffix(path, "following-sibling::*[1]"))
			if err != nil {
				return "", err
			}
			path += step
			expectSimple = false
		}
	}
	if expectSimple {
		return "", fmt.Errorf("selector ends with a combinator")
	}
	return path, nil
}

// translateSimple renders one simple selector as an XPath step. After an
// adjacent-sibling combinator the element test becomes a self:: predicate
// on the already-selected sibling.
func translateSimple(simple string, asPredicate bool) (string, error) {
	name := "*"
	var predicates []string
	rest := simple

	// leading type or universal selector
	i := 0
	for i < len(rest) && rest[i] != '#' && rest[i] != '.' && rest[i] != '[' {
		i++
	}
	if i > 0 {
		name = rest[:i]
		if err := validateName(name); err != nil {
			return "", err
		}
		rest = rest[i:]
	}

	for rest != "" {
		switch rest[0] {
		case '#':
			value, remaining, err := takeName(rest[1:])
			if err != nil {
				return "", err
			}
			predicates = append(predicates, fmt.Sprintf("@id=%q", value))
			rest = remaining
		case '.':
			value, remaining, err := takeName(rest[1:])
			if err != nil {
				return "", err
			}
			predicates = append(predicates,
				fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", value))
			rest = remaining
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated attribute selector")
			}
			predicate, err := translateAttribute(rest[1:end])
			if err != nil {
				return "", err
			}
			predicates = append(predicates, predicate)
			rest = rest[end+1:]
		default:
			return "", fmt.Errorf("unexpected %q in selector", rest[0])
		}
	}

	if asPredicate {
		predicates = append([]string{"self::" + name}, predicates...)
		name = ""
	}
	step := name
	for _, p := range predicates {
		step += "[" + p + "]"
	}
	return step, nil
}

func translateAttribute(body string) (string, error) {
	if eq := strings.IndexByte(body, '='); eq >= 0 {
		key := strings.TrimSpace(body[:eq])
		value := strings.TrimSpace(body[eq+1:])
		value = strings.Trim(value, `"'`)
		if err := validateName(key); err != nil {
			return "", err
		}
		return fmt.Sprintf("@%s=%q", key, value), nil
	}
	key := strings.TrimSpace(body)
	if err := validateName(key); err != nil {
		return "", err
	}
	return "@" + key, nil
}

func takeName(s string) (name, rest string, err error) {
	i := 0
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	if i == 0 {
		return "", "", fmt.Errorf("expected a name")
	}
	return s[:i], s[i:], nil
}

func validateName(name string) error {
	if name == "*" {
		return nil
	}
	if name == "" {
		return fmt.Errorf("expected a name")
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return fmt.Errorf("invalid character %q in name", name[i])
		}
	}
	return nil
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' || b == '-' || b == '_'
}

// tokenizeSelector splits a selector group into simple selectors and
// combinator tokens. Whitespace around explicit combinators is not itself
// a combinator.
func tokenizeSelector(group string) ([]string, error) {
	fields := strings.Fields(group)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	var tokens []string
	for i, field := range fields {
		switch field {
		case ">", "+", "~":
			tokens = append(tokens, field)
		default:
			if i > 0 && len(tokens) > 0 && !isCombinator(tokens[len(tokens)-1]) {
				tokens = append(tokens, " ")
			}
			split, err := splitTightCombinators(field)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, split...)
		}
	}
	return tokens, nil
}

func isCombinator(token string) bool {
	return token == ">" || token == "+" || token == "~" || token == " "
}

// splitTightCombinators handles selectors written without spaces, like
// "table>head".
func splitTightCombinators(field string) ([]string, error) {
	var tokens []string
	start := 0
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '>', '+', '~':
			if i > start {
				tokens = append(tokens, field[start:i])
			}
			tokens = append(tokens, string(field[i]))
			start = i + 1
		}
	}
	if start < len(field) {
		tokens = append(tokens, field[start:])
	}
	return tokens, nil
}
