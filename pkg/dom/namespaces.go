package dom

import "strings"

// Namespaces collects the namespace declarations in scope on n, walking from
// the tree root down to n. The default namespace is keyed by the empty
// string.
func Namespaces(n *Node) map[string]string {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == ElementNode {
			chain = append(chain, cur)
		}
	}
	nsmap := make(map[string]string)
	// outermost first, so inner declarations shadow outer ones
	for i := len(chain) - 1; i >= 0; i-- {
		for _, a := range chain[i].Attr {
			switch {
			case a.Name.Space == "" && a.Name.Local == "xmlns":
				nsmap[""] = a.Value
			case a.Name.Space == "xmlns":
				nsmap[a.Name.Local] = a.Value
			}
		}
	}
	return nsmap
}

// CleanupNamespaces removes namespace declaration attributes in the subtree
// of root whose URI is no longer referenced by any element within their
// scope. Call it at the end of a transformation that stripped or changed
// namespaces.
func CleanupNamespaces(root *Node) {
	walkElements(root, func(n *Node) {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			isDefaultDecl := a.Name.Space == "" && a.Name.Local == "xmlns"
			isPrefixDecl := a.Name.Space == "xmlns"
			if (isDefaultDecl || isPrefixDecl) && !namespaceUsed(n, a.Value) {
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept
	})
}

func namespaceUsed(scope *Node, uri string) bool {
	if scope.NamespaceURI == uri {
		return true
	}
	for _, a := range scope.Attr {
		if a.NamespaceURI == uri && a.Name.Space != "xmlns" {
			return true
		}
	}
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == ElementNode && namespaceUsed(c, uri) {
			return true
		}
	}
	return false
}

func walkElements(n *Node, fn func(*Node)) {
	if n.Type == ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

// QualifiedName renders the full tag name of an element including its
// prefix.
func QualifiedName(n *Node) string {
	if n.Prefix == "" {
		return n.Data
	}
	return n.Prefix + ":" + n.Data
}

// SplitQName splits a qualified name into prefix and local part.
func SplitQName(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
