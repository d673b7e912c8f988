package schema

import "strings"

// ValidPath determines whether a dotted or bare field name exists on one of
// the given nodes' entities. Nodes are checked in order; the first match
// wins. With checkSubtree the node's whole descendant tree is searched,
// otherwise only the node's own entity. Returns the node whose entity
// declares the field, or nil when no node does or an exclusion rule vetoes
// the field.
func ValidPath(nodes []*Node, field string, opts PathTypeOptions, checkSubtree bool) *Node {
	for _, node := range nodes {
		if match := node.validPath(field, opts, checkSubtree); match != nil {
			return match
		}
	}
	return nil
}

// ValidPath checks a single node; see the package-level ValidPath
func (n *Node) ValidPath(field string, opts PathTypeOptions, checkSubtree bool) *Node {
	return n.validPath(field, opts, checkSubtree)
}

func (n *Node) validPath(field string, opts PathTypeOptions, checkSubtree bool) *Node {
	// A dotted name addresses a child branch explicitly: each leading
	// segment selects a child node by path, the last segment is the field
	if head, rest, dotted := strings.Cut(field, "."); dotted {
		for _, child := range n.Children {
			if child.Path == head {
				return child.validPath(rest, opts, checkSubtree)
			}
		}
		return nil
	}

	if n.declares(field, opts) {
		return n
	}

	if checkSubtree {
		for _, child := range n.Children {
			if match := child.validPath(field, opts, true); match != nil {
				return match
			}
		}
	}
	return nil
}

func (n *Node) declares(field string, opts PathTypeOptions) bool {
	kind, ok := n.Model.FieldKind(field)
	if !ok {
		return false
	}
	return !opts.excludes(field, kind)
}
