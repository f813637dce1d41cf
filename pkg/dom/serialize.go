package dom

import (
	"encoding/xml"
	"strings"
)

// Marshal serializes n (and its subtree) to XML.
func Marshal(n *Node) string {
	return n.OutputXML(true)
}

// MarshalIndent serializes n with indentation for human consumption.
// Whitespace-only text nodes are dropped; elements whose only child is text
// stay on one line.
func MarshalIndent(n *Node) string {
	var b strings.Builder
	if IsDocument(n) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeIndented(&b, c, 0)
		}
	} else {
		writeIndented(&b, n, 0)
	}
	return b.String()
}

func writeIndented(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Type {
	case TextNode, CharDataNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			b.WriteString(indent)
			writeEscaped(b, text)
			b.WriteString("\n")
		}
	case CommentNode:
		b.WriteString(indent)
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->\n")
	case ElementNode:
		b.WriteString(indent)
		b.WriteString("<")
		b.WriteString(QualifiedName(n))
		for _, a := range n.Attr {
			b.WriteString(" ")
			b.WriteString(attrKey(a))
			b.WriteString(`="`)
			writeEscaped(b, a.Value)
			b.WriteString(`"`)
		}
		if n.FirstChild == nil {
			b.WriteString("/>\n")
			return
		}
		if onlyTextChildren(n) {
			b.WriteString(">")
			writeEscaped(b, n.InnerText())
			b.WriteString("</")
			b.WriteString(QualifiedName(n))
			b.WriteString(">\n")
			return
		}
		b.WriteString(">\n")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeIndented(b, c, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("</")
		b.WriteString(QualifiedName(n))
		b.WriteString(">\n")
	default:
		// declarations and other node kinds keep their compact form
		out := n.OutputXML(true)
		if out != "" {
			b.WriteString(indent)
			b.WriteString(out)
			b.WriteString("\n")
		}
	}
}

func onlyTextChildren(n *Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != TextNode && c.Type != CharDataNode {
			return false
		}
	}
	return true
}

func writeEscaped(b *strings.Builder, s string) {
	_ = xml.EscapeText(b, []byte(s))
}
