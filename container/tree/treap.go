package tree

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// treap keeps the tree as a max heap on random priorities, stored
// in the rank of every node. The expected height is logarithmic
// whatever the order of the operations
type treap struct {
	unbalanced
}

func (tr treap) priority(t *Tree) int {
	if t.rand == nil {
		t.rand = rand.New(rand.NewSource(1))
	}
	return 1 + t.rand.Intn(math.MaxInt32)
}

func (tr treap) Insert(t *Tree, parent *Node, n *Node) {
	tr.unbalanced.Insert(t, parent, n)
	n.rank = tr.priority(t)

	for isNotSentinel(n.parent) && n.rank > n.parent.rank {
		if n == n.parent.left {
			rightRotateNode(t, n.parent)
		} else {
			leftRotateNode(t, n.parent)
		}
	}
}

func (tr treap) Delete(t *Tree, n *Node) {
	// sink the node until it has at most one child, always promoting
	// the child with the highest priority
	for isNotSentinel(n.left) && isNotSentinel(n.right) {
		if n.left.rank > n.right.rank {
			rightRotateNode(t, n)
		} else {
			leftRotateNode(t, n)
		}
	}

	tr.unbalanced.Delete(t, n)
}

func (tr treap) validate(t *Tree) error {
	stack := []*Node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if isSentinel(n) {
			continue
		}

		for _, child := range []*Node{n.left, n.right} {
			if isNotSentinel(child) && child.rank > n.rank {
				return errors.Wrapf(ErrInvariant,
					"node %d has priority %d lower than its child %d with %d",
					n.Key, n.rank, child.Key, child.rank)
			}
		}

		stack = append(stack, n.left, n.right)
	}

	return nil
}

// NewTreap creates a new instance of a tree whose branches are
// balanced by random priorities
func NewTreap() *Tree {
	return NewTreapWithOpts(Opts{})
}

// NewTreapWithOpts creates a treap with the provided options.
// Opts.Rand makes the shape of the treap reproducible
func NewTreapWithOpts(opts Opts) *Tree {
	return newTree(treap{}, opts)
}
