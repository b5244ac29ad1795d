package tree

import (
	"github.com/pkg/errors"
)

type redBlack struct {
	unbalanced
}

func isRed(n *Node) bool {
	return n.color == red
}

func isBlack(n *Node) bool {
	return n.color == black
}

func copyColor(dest *Node, source *Node) {
	dest.color = source.color
}

func setRed(n *Node) {
	doAssert(isNotSentinel(n), "sentinel painted red")
	n.color = red
}

func setBlack(n *Node) {
	n.color = black
}

func (rb redBlack) Insert(t *Tree, parent *Node, n *Node) {
	rb.unbalanced.Insert(t, parent, n)
	setRed(n)
	rb.fixInsert(t, n)
}

func (rb redBlack) Delete(t *Tree, n *Node) {
	var target *Node
	wasNodeBlack := isBlack(n)

	switch {
	case isSentinel(n.left):
		target = n.right
		rb.unbalanced.Transplant(t, n, target)
	case isSentinel(n.right):
		target = n.left
		rb.unbalanced.Transplant(t, n, target)
	default:
		min := n.right.Min()
		wasNodeBlack = isBlack(min)
		target = min.right

		if min.parent == n {
			target.parent = min
		} else {
			rb.unbalanced.Transplant(t, min, min.right)
			min.right = n.right
			min.right.parent = min
		}

		rb.unbalanced.Transplant(t, n, min)
		min.left = n.left
		min.left.parent = min
		copyColor(min, n)
	}

	// removing a red node cannot change any black height
	if wasNodeBlack {
		rb.fixDelete(t, target)
	}
}

// fixDelete repairs the black height deficiency left at the position
// of n. n may be the sentinel, whose parent then identifies that
// position.
func (rb redBlack) fixDelete(t *Tree, n *Node) {
	for n != t.root && isBlack(n) {
		if n == n.parent.left {
			sibling := n.parent.right
			if isRed(sibling) {
				setBlack(sibling)
				setRed(n.parent)
				leftRotateNode(t, n.parent)
				sibling = n.parent.right
			}

			if isBlack(sibling.left) && isBlack(sibling.right) {
				setRed(sibling)
				n = n.parent
				continue
			}

			if isBlack(sibling.right) {
				setBlack(sibling.left)
				setRed(sibling)
				rightRotateNode(t, sibling)
				sibling = n.parent.right
			}

			copyColor(sibling, n.parent)
			setBlack(n.parent)
			setBlack(sibling.right)
			leftRotateNode(t, n.parent)
			n = t.root

		} else {
			sibling := n.parent.left
			if isRed(sibling) {
				setBlack(sibling)
				setRed(n.parent)
				rightRotateNode(t, n.parent)
				sibling = n.parent.left
			}

			if isBlack(sibling.left) && isBlack(sibling.right) {
				setRed(sibling)
				n = n.parent
				continue
			}

			if isBlack(sibling.left) {
				setBlack(sibling.right)
				setRed(sibling)
				leftRotateNode(t, sibling)
				sibling = n.parent.left
			}

			copyColor(sibling, n.parent)
			setBlack(n.parent)
			setBlack(sibling.left)
			rightRotateNode(t, n.parent)
			n = t.root
		}
	}

	// ensure that if node is the root of the tree it will
	// remain black after a call to fixDelete
	setBlack(n)
}

func (rb redBlack) fixInsert(t *Tree, n *Node) {
	for isRed(n.parent) {
		// the root is black, so a red parent always has a parent
		grandparent := n.parent.parent
		doAssert(isNotSentinel(grandparent), "red parent without grandparent")

		if n.parent == grandparent.left {
			uncle := grandparent.right
			if isRed(uncle) {
				setBlack(n.parent)
				setBlack(uncle)
				setRed(grandparent)
				n = grandparent
				continue
			}

			if n == n.parent.right {
				n = n.parent
				leftRotateNode(t, n)
			}

			setBlack(n.parent)
			setRed(grandparent)
			rightRotateNode(t, grandparent)

		} else {
			uncle := grandparent.left
			if isRed(uncle) {
				setBlack(n.parent)
				setBlack(uncle)
				setRed(grandparent)
				n = grandparent
				continue
			}

			if n == n.parent.left {
				n = n.parent
				rightRotateNode(t, n)
			}

			setBlack(n.parent)
			setRed(grandparent)
			leftRotateNode(t, grandparent)
		}
	}

	setBlack(t.root)
}

func (rb redBlack) validate(t *Tree) error {
	if isRed(t.root) {
		return errors.Wrapf(ErrInvariant, "root %d is red", t.root.Key)
	}

	_, err := blackHeight(t.root)
	return err
}

// blackHeight returns the number of black nodes in every path from n
// down to an absent child, excluding n itself
func blackHeight(n *Node) (int, error) {
	if isSentinel(n) {
		return 0, nil
	}

	if isRed(n) && (isRed(n.left) || isRed(n.right)) {
		return 0, errors.Wrapf(ErrInvariant, "red node %d has a red child", n.Key)
	}

	left, err := blackHeight(n.left)
	if err != nil {
		return 0, err
	}

	right, err := blackHeight(n.right)
	if err != nil {
		return 0, err
	}

	if isBlack(n.left) {
		left++
	}

	if isBlack(n.right) {
		right++
	}

	if left != right {
		return 0, errors.Wrapf(ErrInvariant,
			"node %d has black height %d on its left and %d on its right", n.Key, left, right)
	}

	return left, nil
}

// NewRedBlackTree creates a new instance of a tree using RedBlack
// as the modifier algorithm. The branches of the tree
// are balanced using the red black node algorithm.
func NewRedBlackTree() *Tree {
	return NewRedBlackTreeWithOpts(Opts{})
}

// NewRedBlackTreeWithOpts creates a red black tree with the
// provided options
func NewRedBlackTreeWithOpts(opts Opts) *Tree {
	return newTree(redBlack{}, opts)
}
