package dom

// Clone returns a deep copy of n. The copy is detached: its Parent and
// sibling pointers are nil regardless of where the original lives.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	copied := &Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		copied.Attr = append(copied.Attr[:0:0], n.Attr...)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		AppendChild(copied, Clone(child))
	}
	return copied
}
