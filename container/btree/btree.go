// Package btree implements an in-memory B-tree over unique integer
// keys. Every node other than the root holds between t-1 and 2t-1
// keys, where t is the minimum degree of the tree, and all the leaves
// are at the same depth.
//
// Insertions split full nodes on the way down and deletions make
// sure that every node visited has at least t keys before descending
// into it, so both operations run in a single pass from the root.
package btree

import (
	"iter"
	"slices"

	"github.com/pkg/errors"
)

// DefaultDegree is the minimum degree used when none is configured
const DefaultDegree = 3

var (
	// ErrCapacityExceeded is returned when inserting a new key into a
	// tree that already holds as many keys as its configured capacity
	ErrCapacityExceeded = errors.New("btree capacity exceeded")

	// ErrInvariant is returned by Validate when the tree structure
	// breaks one of the B-tree invariants
	ErrInvariant = errors.New("btree invariant violated")
)

type node struct {
	keys     []int
	children []*node
}

func (n *node) leaf() bool {
	return len(n.children) == 0
}

func (n *node) min() int {
	for !n.leaf() {
		n = n.children[0]
	}
	return n.keys[0]
}

func (n *node) max() int {
	for !n.leaf() {
		n = n.children[len(n.children)-1]
	}
	return n.keys[len(n.keys)-1]
}

// Opts configures a Tree
type Opts struct {
	// Degree is the minimum degree t of the tree. Zero selects
	// DefaultDegree
	Degree int

	// Capacity is the maximum number of keys the tree can hold.
	// Zero means unlimited
	Capacity int
}

// Tree is a B-tree set of integer keys. A Tree provides no
// synchronization.
type Tree struct {
	root     *node
	degree   int
	len      int
	capacity int
}

// New creates an empty B-tree of DefaultDegree
func New() *Tree {
	return NewWithOpts(Opts{})
}

// NewWithOpts creates an empty B-tree with the provided options.
// It panics if the degree is lower than 2
func NewWithOpts(opts Opts) *Tree {
	degree := opts.Degree
	if degree == 0 {
		degree = DefaultDegree
	}
	if degree < 2 {
		panic("btree minimum degree must be at least 2")
	}

	return &Tree{
		root:     &node{},
		degree:   degree,
		capacity: opts.Capacity,
	}
}

// Degree returns the minimum degree of the tree
func (t *Tree) Degree() int {
	return t.degree
}

// Len returns the number of keys in the tree
func (t *Tree) Len() int {
	return t.len
}

// Cap returns the maximum number of keys the tree can hold,
// zero if unlimited
func (t *Tree) Cap() int {
	return t.capacity
}

// Height returns the number of levels of the tree, zero when
// the tree is empty
func (t *Tree) Height() int {
	if t.len == 0 {
		return 0
	}

	height := 1
	for n := t.root; !n.leaf(); n = n.children[0] {
		height++
	}
	return height
}

// Search returns true if the tree holds key
func (t *Tree) Search(key int) bool {
	n := t.root
	for {
		i, found := slices.BinarySearch(n.keys, key)
		if found {
			return true
		}
		if n.leaf() {
			return false
		}
		n = n.children[i]
	}
}

// Insert adds key to the tree. It returns false if the key was already
// present. It fails with ErrCapacityExceeded if the tree is full.
func (t *Tree) Insert(key int) (bool, error) {
	if t.Search(key) {
		return false, nil
	}

	if t.capacity > 0 && t.len >= t.capacity {
		return false, errors.Wrapf(ErrCapacityExceeded,
			"failed to insert key %d into btree with %d keys", key, t.len)
	}

	if len(t.root.keys) == 2*t.degree-1 {
		root := &node{children: []*node{t.root}}
		t.splitChild(root, 0)
		t.root = root
	}

	t.insertNonFull(t.root, key)
	t.len++
	return true, nil
}

// splitChild splits the full child i of x around its median key,
// which moves up into x
func (t *Tree) splitChild(x *node, i int) {
	y := x.children[i]
	median := y.keys[t.degree-1]

	z := &node{keys: slices.Clone(y.keys[t.degree:])}
	if !y.leaf() {
		z.children = slices.Clone(y.children[t.degree:])
		y.children = y.children[:t.degree:t.degree]
	}
	y.keys = y.keys[: t.degree-1 : t.degree-1]

	x.keys = slices.Insert(x.keys, i, median)
	x.children = slices.Insert(x.children, i+1, z)
}

func (t *Tree) insertNonFull(x *node, key int) {
	for {
		i, _ := slices.BinarySearch(x.keys, key)
		if x.leaf() {
			x.keys = slices.Insert(x.keys, i, key)
			return
		}

		if len(x.children[i].keys) == 2*t.degree-1 {
			t.splitChild(x, i)
			if key > x.keys[i] {
				i++
			}
		}

		x = x.children[i]
	}
}

// Delete removes key from the tree. It returns false if
// the key was not present
func (t *Tree) Delete(key int) bool {
	if !t.Search(key) {
		return false
	}

	t.delete(t.root, key)
	if len(t.root.keys) == 0 && !t.root.leaf() {
		t.root = t.root.children[0]
	}

	t.len--
	return true
}

// delete removes key, known to be in the subtree of x. Every node
// the loop descends into has at least t keys, so removing a key
// from a leaf never leaves it under-full.
func (t *Tree) delete(x *node, key int) {
	for {
		i, found := slices.BinarySearch(x.keys, key)

		if x.leaf() {
			if found {
				x.keys = slices.Delete(x.keys, i, i+1)
			}
			return
		}

		if found {
			left, right := x.children[i], x.children[i+1]
			switch {
			case len(left.keys) >= t.degree:
				key = left.max()
				x.keys[i] = key
				x = left
			case len(right.keys) >= t.degree:
				key = right.min()
				x.keys[i] = key
				x = right
			default:
				t.merge(x, i)
				x = left
			}
			continue
		}

		child := x.children[i]
		if len(child.keys) == t.degree-1 {
			switch {
			case i > 0 && len(x.children[i-1].keys) >= t.degree:
				t.borrowLeft(x, i)
			case i < len(x.children)-1 && len(x.children[i+1].keys) >= t.degree:
				t.borrowRight(x, i)
			case i < len(x.children)-1:
				t.merge(x, i)
			default:
				t.merge(x, i-1)
				child = x.children[i-1]
			}
		}

		x = child
	}
}

// merge folds the key i of x and its right child into its left child
func (t *Tree) merge(x *node, i int) {
	left, right := x.children[i], x.children[i+1]

	left.keys = append(left.keys, x.keys[i])
	left.keys = append(left.keys, right.keys...)
	left.children = append(left.children, right.children...)

	x.keys = slices.Delete(x.keys, i, i+1)
	x.children = slices.Delete(x.children, i+1, i+2)
}

// borrowLeft moves the key i-1 of x down into its child i and the
// highest key of the left sibling up into x
func (t *Tree) borrowLeft(x *node, i int) {
	child, sibling := x.children[i], x.children[i-1]
	last := len(sibling.keys) - 1

	child.keys = slices.Insert(child.keys, 0, x.keys[i-1])
	x.keys[i-1] = sibling.keys[last]
	sibling.keys = sibling.keys[:last]

	if !sibling.leaf() {
		lastChild := len(sibling.children) - 1
		child.children = slices.Insert(child.children, 0, sibling.children[lastChild])
		sibling.children = sibling.children[:lastChild]
	}
}

// borrowRight moves the key i of x down into its child i and the
// lowest key of the right sibling up into x
func (t *Tree) borrowRight(x *node, i int) {
	child, sibling := x.children[i], x.children[i+1]

	child.keys = append(child.keys, x.keys[i])
	x.keys[i] = sibling.keys[0]
	sibling.keys = slices.Delete(sibling.keys, 0, 1)

	if !sibling.leaf() {
		child.children = append(child.children, sibling.children[0])
		sibling.children = slices.Delete(sibling.children, 0, 1)
	}
}

// InOrder returns the ascending sequence of the keys in the tree.
// The tree must not be modified while the sequence is being consumed.
func (t *Tree) InOrder() iter.Seq[int] {
	return func(yield func(int) bool) {
		walk(t.root, yield)
	}
}

func walk(n *node, yield func(int) bool) bool {
	for i, key := range n.keys {
		if !n.leaf() && !walk(n.children[i], yield) {
			return false
		}
		if !yield(key) {
			return false
		}
	}

	if !n.leaf() {
		return walk(n.children[len(n.children)-1], yield)
	}
	return true
}

// Range returns the ascending sequence of the keys k in the
// tree such that lo <= k <= hi
func (t *Tree) Range(lo, hi int) iter.Seq[int] {
	return func(yield func(int) bool) {
		if lo <= hi {
			walkRange(t.root, lo, hi, yield)
		}
	}
}

func walkRange(n *node, lo, hi int, yield func(int) bool) bool {
	start, _ := slices.BinarySearch(n.keys, lo)

	for i := start; i < len(n.keys); i++ {
		if !n.leaf() && !walkRange(n.children[i], lo, hi, yield) {
			return false
		}
		if n.keys[i] > hi {
			return false
		}
		if !yield(n.keys[i]) {
			return false
		}
	}

	if !n.leaf() {
		return walkRange(n.children[len(n.children)-1], lo, hi, yield)
	}
	return true
}

// Keys returns all the keys of the tree in ascending order
func (t *Tree) Keys() []int {
	keys := make([]int, 0, t.len)
	for key := range t.InOrder() {
		keys = append(keys, key)
	}
	return keys
}
