package schema

import (
	"context"

	"github.com/opencanvass/canvassd/pkg/store"
)

// PopulateFunc resolves reference fields on the given documents in place
type PopulateFunc func(ctx context.Context, st store.Store, docs []store.Document) error

// Node is one entity type's position in a relationship tree. Children are
// held as an ordered slice; appending preserves declaration order, and the
// pre-order traversal contract is: visit the node, then each child subtree
// in order.
type Node struct {
	// Model is the entity schema this node represents
	Model *Model

	// Path is the field name under the parent through which this node is
	// reached. Empty on a tree's root.
	Path string

	// Parent is the owning node; nil on a tree's root. A node belongs to
	// exactly one tree.
	Parent *Node

	// Children are this node's child nodes in declaration order
	Children []*Node

	// Projection maps this entity's field names to include/exclude when
	// shaping responses
	Projection map[string]bool

	// Populate resolves reference fields on result documents. Optional.
	Populate PopulateFunc
}

// NewNode creates a standalone tree root for the given model. Construction
// failures are programmer errors and panic at process startup.
func NewNode(model *Model) *Node {
	if model == nil {
		panic("schema: NewNode requires a model")
	}
	return &Node{Model: model}
}

// AddChild appends a new leaf node for the model at the end of this node's
// child list and returns it. Panics when model or path is absent.
func (n *Node) AddChild(model *Model, path string) *Node {
	if model == nil {
		panic("schema: AddChild requires a model")
	}
	if path == "" {
		panic("schema: AddChild requires a path")
	}
	child := &Node{Model: model, Path: path, Parent: n}
	n.Children = append(n.Children, child)
	return child
}

// AddChildBranch deep-clones the given node's entire subtree, reparents the
// clone under this node at the given path, and appends it as the last
// child. The clone owns fresh node identities throughout, so the same
// canonical subtree can be mounted under multiple parents independently.
func (n *Node) AddChildBranch(branch *Node, path string) *Node {
	if branch == nil {
		panic("schema: AddChildBranch requires a node")
	}
	if path == "" {
		panic("schema: AddChildBranch requires a path")
	}
	clone := branch.clone()
	clone.Path = path
	clone.Parent = n
	n.Children = append(n.Children, clone)
	return clone
}

// AddSibling inserts a new node for the model immediately after this node
// in its parent's child list. Panics when called on a root.
func (n *Node) AddSibling(model *Model, path string) *Node {
	if model == nil {
		panic("schema: AddSibling requires a model")
	}
	if path == "" {
		panic("schema: AddSibling requires a path")
	}
	if n.Parent == nil {
		panic("schema: AddSibling called on a root node")
	}
	sibling := &Node{Model: model, Path: path, Parent: n.Parent}

	children := n.Parent.Children
	for i, child := range children {
		if child == n {
			updated := make([]*Node, 0, len(children)+1)
			updated = append(updated, children[:i+1]...)
			updated = append(updated, sibling)
			updated = append(updated, children[i+1:]...)
			n.Parent.Children = updated
			return sibling
		}
	}
	panic("schema: node is not among its parent's children")
}

// clone recursively copies the subtree rooted at n. Parent pointers inside
// the copy reference the copied nodes; the copy's own Parent is nil until
// the caller reattaches it.
func (n *Node) clone() *Node {
	copied := &Node{
		Model:    n.Model,
		Path:     n.Path,
		Populate: n.Populate,
	}
	if n.Projection != nil {
		copied.Projection = make(map[string]bool, len(n.Projection))
		for k, v := range n.Projection {
			copied.Projection[k] = v
		}
	}
	for _, child := range n.Children {
		childCopy := child.clone()
		childCopy.Parent = copied
		copied.Children = append(copied.Children, childCopy)
	}
	return copied
}

// Preorder visits this node, then each child subtree in declaration order
func (n *Node) Preorder(visit func(*Node)) {
	visit(n)
	for _, child := range n.Children {
		child.Preorder(visit)
	}
}

// Root walks up the parent chain to the tree's root
func (n *Node) Root() *Node {
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	return root
}

// Tree returns every node of the whole tree in pre-order, regardless of
// which node it is called on
func (n *Node) Tree() []*Node {
	var nodes []*Node
	n.Root().Preorder(func(node *Node) {
		nodes = append(nodes, node)
	})
	return nodes
}

// DottedPath returns the dotted path from the tree root to this node, or ""
// for the root itself
func (n *Node) DottedPath() string {
	if n.Parent == nil {
		return ""
	}
	prefix := n.Parent.DottedPath()
	if prefix == "" {
		return n.Path
	}
	return prefix + "." + n.Path
}

// PathTypeOptions controls field exclusion in ModelPathTypes
type PathTypeOptions struct {
	// ExcludeVersionID drops the internal id and version fields
	ExcludeVersionID bool
	// ExcludeTimestamps drops createdAt/updatedAt
	ExcludeTimestamps bool
	// ExcludePaths always drops the named fields
	ExcludePaths []string
	// ExcludeKinds always drops fields of the named kinds
	ExcludeKinds []Kind
	// Veto may reject any remaining field
	Veto func(name string, kind Kind) bool
}

func (o PathTypeOptions) excludes(name string, kind Kind) bool {
	if o.ExcludeVersionID && IsVersionID(name) {
		return true
	}
	if o.ExcludeTimestamps && IsTimestamp(name) {
		return true
	}
	for _, excluded := range o.ExcludePaths {
		if excluded == name {
			return true
		}
	}
	for _, excluded := range o.ExcludeKinds {
		if excluded == kind {
			return true
		}
	}
	if o.Veto != nil && o.Veto(name, kind) {
		return true
	}
	return false
}

// ModelPathTypes returns, for every node in the tree, the entity's
// field-name to field-kind mapping after applying the exclusion options.
// Non-root nodes are keyed by their dotted path; the root is keyed by "".
func (n *Node) ModelPathTypes(opts PathTypeOptions) map[string]map[string]Kind {
	result := make(map[string]map[string]Kind)
	n.Root().Preorder(func(node *Node) {
		fields := make(map[string]Kind)
		for name, kind := range node.Model.Fields {
			if !opts.excludes(name, kind) {
				fields[name] = kind
			}
		}
		result[node.DottedPath()] = fields
	})
	return result
}

// MergedProjection computes a single projection across the whole tree,
// prefixing each node's own projection keys with the node's dotted path
func (n *Node) MergedProjection() map[string]bool {
	merged := make(map[string]bool)
	n.Root().Preorder(func(node *Node) {
		prefix := node.DottedPath()
		for field, include := range node.Projection {
			key := field
			if prefix != "" {
				key = prefix + "." + field
			}
			merged[key] = include
		}
	})
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// HiddenFields collects the Hidden lists of every model in the tree.
// Handlers pass these to the path validator so hidden fields are never
// queryable.
func (n *Node) HiddenFields() []string {
	var hidden []string
	n.Root().Preorder(func(node *Node) {
		hidden = append(hidden, node.Model.Hidden...)
	})
	return hidden
}
