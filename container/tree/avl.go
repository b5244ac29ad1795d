package tree

import (
	"github.com/pkg/errors"
)

// avl keeps the heights of the two subtrees of every node within
// one of each other. The height of each subtree is kept in the rank
// of its root, and the sentinel has height zero
type avl struct {
	unbalanced
}

func height(n *Node) int {
	if isSentinel(n) {
		return 0
	}
	return n.rank
}

func updateHeight(n *Node) {
	n.rank = 1 + max(height(n.left), height(n.right))
}

func balanceFactor(n *Node) int {
	return height(n.left) - height(n.right)
}

func (a avl) Insert(t *Tree, parent *Node, n *Node) {
	a.unbalanced.Insert(t, parent, n)
	n.rank = 1
	a.rebalance(t, parent)
}

func (a avl) Delete(t *Tree, n *Node) {
	// from is the deepest node whose subtree changes shape
	var from *Node

	switch {
	case isSentinel(n.left) || isSentinel(n.right):
		from = n.parent
	default:
		min := n.right.Min()
		if min.parent == n {
			from = min
		} else {
			from = min.parent
		}
	}

	a.unbalanced.Delete(t, n)
	a.rebalance(t, from)
}

// rebalance walks from n up to the root restoring heights and
// rotating every node whose balance factor went out of range
func (a avl) rebalance(t *Tree, n *Node) {
	for isNotSentinel(n) {
		updateHeight(n)

		switch bf := balanceFactor(n); {
		case bf > 1:
			if balanceFactor(n.left) < 0 {
				child := n.left
				leftRotateNode(t, child)
				updateHeight(child)
				updateHeight(child.parent)
			}

			rightRotateNode(t, n)
			updateHeight(n)
			n = n.parent
			updateHeight(n)

		case bf < -1:
			if balanceFactor(n.right) > 0 {
				child := n.right
				rightRotateNode(t, child)
				updateHeight(child)
				updateHeight(child.parent)
			}

			leftRotateNode(t, n)
			updateHeight(n)
			n = n.parent
			updateHeight(n)
		}

		n = n.parent
	}
}

func (a avl) validate(t *Tree) error {
	_, err := checkHeight(t.root)
	return err
}

func checkHeight(n *Node) (int, error) {
	if isSentinel(n) {
		return 0, nil
	}

	left, err := checkHeight(n.left)
	if err != nil {
		return 0, err
	}

	right, err := checkHeight(n.right)
	if err != nil {
		return 0, err
	}

	if left-right > 1 || right-left > 1 {
		return 0, errors.Wrapf(ErrInvariant,
			"node %d has subtrees of heights %d and %d", n.Key, left, right)
	}

	h := 1 + max(left, right)
	if n.rank != h {
		return 0, errors.Wrapf(ErrInvariant,
			"node %d records height %d but has height %d", n.Key, n.rank, h)
	}

	return h, nil
}

// NewAVLTree creates a new instance of a tree that uses the
// AVL algorithm to balance its branches
func NewAVLTree() *Tree {
	return NewAVLTreeWithOpts(Opts{})
}

// NewAVLTreeWithOpts creates an AVL tree with the provided
// options
func NewAVLTreeWithOpts(opts Opts) *Tree {
	return newTree(avl{}, opts)
}
