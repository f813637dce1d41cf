package transform

import "testing"

func TestCSSToXPath(t *testing.T) {
	cases := []struct {
		selector string
		want     string
	}{
		{"item", "//item"},
		{"*", "//*"},
		{"#main", `//*[@id="main"]`},
		{"div.note", "//div[contains(concat(' ', normalize-space(@class), ' '), ' note ')]"},
		{"ul li", "//ul//li"},
		{"ul > li", "//ul/li"},
		{"ul>li", "//ul/li"},
		{"h1 + p", "//h1/following-sibling::*[1][self::p]"},
		{"h1 ~ p", "//h1/following-sibling::p"},
		{"a, b", "//a | //b"},
		{"input[type=text]", `//input[@type="text"]`},
		{"input[type='text']", `//input[@type="text"]`},
		{"a[href]", "//a[@href]"},
		{"div#main.note", `//div[@id="main"][contains(concat(' ', normalize-space(@class), ' '), ' note ')]`},
	}
	for _, tc := range cases {
		t.Run(tc.selector, func(t *testing.T) {
			got, err := cssToXPath(tc.selector)
			if err != nil {
				t.Fatalf("cssToXPath(%q): %v", tc.selector, err)
			}
			if got != tc.want {
				t.Errorf("cssToXPath(%q) = %q, want %q", tc.selector, got, tc.want)
			}
		})
	}
}

func TestCSSToXPathRejectsNonSelectors(t *testing.T) {
	for _, selector := range []string{"", "//a", "a[@href]", "ul >", "> li", "a[x"} {
		if _, err := cssToXPath(selector); err == nil {
			t.Errorf("cssToXPath(%q) succeeded, want an error", selector)
		}
	}
}
