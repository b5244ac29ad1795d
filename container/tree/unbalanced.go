package tree

// unbalanced is a pair of algorithms that insert
// and delete nodes from the tree without applying any
// balancing strategy
type unbalanced struct{}

// Insert links the node as a child of parent by preserving the Binary
// Search Tree properties but without applying any balancing algorithm
func (unbalanced) Insert(t *Tree, parent *Node, n *Node) {
	n.parent = parent

	switch {
	case isSentinel(parent):
		t.root = n
	case n.Key < parent.Key:
		parent.left = n
	default:
		parent.right = n
	}
}

// Delete the node from the tree by preserving the Binary Search Tree
// properties but without applying any balancing algorithm
func (m unbalanced) Delete(t *Tree, n *Node) {
	switch {
	case isSentinel(n.left):
		m.Transplant(t, n, n.right)
	case isSentinel(n.right):
		m.Transplant(t, n, n.left)
	default:
		min := n.right.Min()
		if min.parent != n {
			m.Transplant(t, min, min.right)
			min.right = n.right
			min.right.parent = min
		}

		m.Transplant(t, n, min)
		min.left = n.left
		min.left.parent = min
	}
}

// Transplant replaces the subtree rooted at u, as a child of its
// parent, with the subtree rooted at v. v may be the sentinel, in
// which case its parent is still set so that fixups can walk up
// from the position v occupies
func (unbalanced) Transplant(t *Tree, u *Node, v *Node) {
	switch {
	case isSentinel(u.parent):
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}

	v.parent = u.parent
}

func (unbalanced) validate(*Tree) error {
	return nil
}

// NewUnbalancedTree creates a new instance of a tree using Unbalanced
// as the modifier algorithm. How balanced the branches
// of the tree are depends exclusively on the order
// of the insert and delete operations performed
// on the tree
func NewUnbalancedTree() *Tree {
	return NewUnbalancedTreeWithOpts(Opts{})
}

// NewUnbalancedTreeWithOpts creates an unbalanced tree with
// the provided options
func NewUnbalancedTreeWithOpts(opts Opts) *Tree {
	return newTree(unbalanced{}, opts)
}
