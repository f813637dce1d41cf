// Package dom provides the XML tree model that transformations operate on.
// It is a thin layer over github.com/antchfx/xmlquery: nodes are plain
// *xmlquery.Node values, so documents parsed elsewhere with xmlquery can be
// fed to a transformation directly. The package adds the operations the
// transformation engine and the handler library rely on: deep cloning,
// structural editing, namespace bookkeeping and charset-aware parsing.
package dom

import (
	"encoding/xml"

	"github.com/antchfx/xmlquery"
)

// Node is the tree node type used throughout the engine. It is an alias for
// xmlquery.Node, so identity comparison is plain pointer equality.
type Node = xmlquery.Node

// Re-exported node kinds for the two kinds the engine validates against.
const (
	DocumentNode = xmlquery.DocumentNode
	ElementNode  = xmlquery.ElementNode
	TextNode     = xmlquery.TextNode
	CharDataNode = xmlquery.CharDataNode
	CommentNode  = xmlquery.CommentNode
)

// IsElement reports whether n is an element node.
func IsElement(n *Node) bool {
	return n != nil && n.Type == ElementNode
}

// IsDocument reports whether n is a document node.
func IsDocument(n *Node) bool {
	return n != nil && n.Type == DocumentNode
}

// IsText reports whether n is a text or CDATA node.
func IsText(n *Node) bool {
	return n != nil && (n.Type == TextNode || n.Type == CharDataNode)
}

// Root returns the element a transformation should treat as its root: the
// document element for document nodes, n itself otherwise.
func Root(n *Node) *Node {
	if IsDocument(n) {
		return DocumentElement(n)
	}
	return n
}

// DocumentElement returns the first element child of a document node.
func DocumentElement(doc *Node) *Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == ElementNode {
			return c
		}
	}
	return nil
}

// IsTreeRoot reports whether n has no parent element, i.e. it is the top of
// the tree it belongs to. A document element whose parent is the document
// node counts as root.
func IsTreeRoot(n *Node) bool {
	return n.Parent == nil || n.Parent.Type == DocumentNode
}

// LocalName returns the tag name of an element without its prefix.
func LocalName(n *Node) string {
	return n.Data
}

// Namespace returns the namespace URI of an element, or the empty string.
func Namespace(n *Node) string {
	return n.NamespaceURI
}

// Rename changes the local name of an element. Prefix and namespace are
// preserved.
func Rename(n *Node, local string) {
	n.Data = local
}

// StripNamespace removes the namespace binding from an element. Namespace
// declaration attributes remain untouched; use CleanupNamespaces once the
// transformation is done.
func StripNamespace(n *Node) {
	n.Prefix = ""
	n.NamespaceURI = ""
}

// ChildElements returns a snapshot of the element children of n.
func ChildElements(n *Node) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Children returns a snapshot of all child nodes of n.
func Children(n *Node) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// HasChildElements reports whether n has at least one element child.
func HasChildElements(n *Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == ElementNode {
			return true
		}
	}
	return false
}

// Text returns the concatenated text content of n and its descendants.
func Text(n *Node) string {
	return n.InnerText()
}

// SetText replaces all children of n with a single text node containing text.
func SetText(n *Node, text string) {
	n.FirstChild = nil
	n.LastChild = nil
	if text == "" {
		return
	}
	AppendChild(n, NewText(text))
}

// NewElement creates a detached element node.
func NewElement(local string) *Node {
	return &Node{Type: ElementNode, Data: local}
}

// NewElementNS creates a detached element node with a namespace binding.
func NewElementNS(prefix, local, uri string) *Node {
	return &Node{Type: ElementNode, Data: local, Prefix: prefix, NamespaceURI: uri}
}

// NewText creates a detached text node.
func NewText(text string) *Node {
	return &Node{Type: TextNode, Data: text}
}

// AppendChild attaches child as the last child of parent.
func AppendChild(parent, child *Node) {
	child.Parent = parent
	child.NextSibling = nil
	if parent.LastChild == nil {
		child.PrevSibling = nil
		parent.FirstChild = child
		parent.LastChild = child
		return
	}
	child.PrevSibling = parent.LastChild
	parent.LastChild.NextSibling = child
	parent.LastChild = child
}

// InsertBefore attaches n as the sibling immediately preceding ref.
func InsertBefore(ref, n *Node) {
	n.Parent = ref.Parent
	n.PrevSibling = ref.PrevSibling
	n.NextSibling = ref
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if ref.Parent != nil {
		ref.Parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// Detach removes n from its tree, keeping its subtree intact. Detaching a
// parentless node is a no-op.
func Detach(n *Node) {
	if n.Parent == nil {
		return
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	} else {
		n.Parent.FirstChild = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	} else {
		n.Parent.LastChild = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// Remove removes n from its tree. With keepChildren, all child nodes —
// including text nodes — are spliced into the parent at n's former position.
// Neighbouring text nodes are kept as distinct siblings and not merged; the
// serialized output is equivalent.
func Remove(n *Node, keepChildren bool) {
	if keepChildren {
		for _, child := range Children(n) {
			Detach(child)
			InsertBefore(n, child)
		}
	}
	Detach(n)
}

// Attribute returns the value of the named attribute and whether it exists.
// Namespace declarations are plain attributes here (xmlns, xmlns:p).
func Attribute(n *Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if attrKey(a) == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attributes returns the element's attributes as a map keyed by their
// qualified name.
func Attributes(n *Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	out := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		out[attrKey(a)] = a.Value
	}
	return out
}

// SetAttribute sets or replaces the named attribute.
func SetAttribute(n *Node, name, value string) {
	for i, a := range n.Attr {
		if attrKey(a) == name {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{Name: attrName(name), Value: value})
}

// RemoveAttribute deletes the named attribute if present and reports whether
// it existed.
func RemoveAttribute(n *Node, name string) bool {
	for i, a := range n.Attr {
		if attrKey(a) == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAttributes deletes all attributes of n.
func ClearAttributes(n *Node) {
	n.Attr = nil
}

// attrKey renders an attribute's qualified name. Name.Space carries the
// prefix as parsed, so xmlns:p declarations come out as "xmlns:p".
func attrKey(a xmlquery.Attr) string {
	if a.Name.Space == "" {
		return a.Name.Local
	}
	return a.Name.Space + ":" + a.Name.Local
}

func attrName(name string) xml.Name {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return xml.Name{Space: name[:i], Local: name[i+1:]}
		}
	}
	return xml.Name{Local: name}
}
