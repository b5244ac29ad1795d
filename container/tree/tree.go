package tree

import (
	"iter"
	"math/rand"

	"github.com/pkg/errors"
)

var (
	// ErrCapacityExceeded is returned when inserting a new key into a
	// tree that already holds as many keys as its configured capacity
	ErrCapacityExceeded = errors.New("tree capacity exceeded")

	// ErrInvariant is returned by Validate when the tree structure
	// breaks one of the invariants of its balancing algorithm
	ErrInvariant = errors.New("tree invariant violated")
)

type color uint8

const (
	red color = iota
	black
)

func (c color) String() string {
	if c == red {
		return "red"
	}
	return "black"
}

func doAssert(b bool, msg string) {
	if !b {
		panic("tree internal assertion failed: " + msg)
	}
}

func isNotSentinel(n *Node) bool {
	return !n.sentinel
}

func isSentinel(n *Node) bool {
	return n.sentinel
}

func nilIfSentinel(n *Node) *Node {
	if isSentinel(n) {
		return nil
	}
	return n
}

// Node of a tree
type Node struct {
	Key int

	color color

	// rank is the height of the subtree for AVL trees and the
	// heap priority for treaps
	rank int

	// sentinel is only set on the absent-child marker shared by
	// all the nodes of a tree
	sentinel bool

	left   *Node
	right  *Node
	parent *Node
}

// Left returns the node's left child
func (n *Node) Left() *Node {
	return nilIfSentinel(n.left)
}

// Right returns the node's right child
func (n *Node) Right() *Node {
	return nilIfSentinel(n.right)
}

// Parent returns the node's parent
func (n *Node) Parent() *Node {
	return nilIfSentinel(n.parent)
}

// Min returns the node in the subtree of the
// lowest order. It returns nil if the subtree
// is empty
func (n *Node) Min() *Node {
	curr := n

	for isNotSentinel(curr) && isNotSentinel(curr.left) {
		curr = curr.left
	}

	return nilIfSentinel(curr)
}

// Max returns the node in the subtree of the
// highest order. It returns nil if the subtree
// is empty
func (n *Node) Max() *Node {
	curr := n

	for isNotSentinel(curr) && isNotSentinel(curr.right) {
		curr = curr.right
	}

	return nilIfSentinel(curr)
}

// Find returns the node in the subtree that holds key,
// or nil if there is none
func (n *Node) Find(key int) *Node {
	curr := n
	for isNotSentinel(curr) {
		switch {
		case key < curr.Key:
			curr = curr.left
		case key > curr.Key:
			curr = curr.right
		default:
			return curr
		}
	}

	return nil
}

// Successor finds the successor of the current
// node in its tree. That is, the node in the tree
// of the lowest order that is strictly greater than
// the current node.
func (n *Node) Successor() *Node {
	if isNotSentinel(n.right) {
		return n.right.Min()
	}

	curr := n
	parent := n.parent
	for isNotSentinel(parent) && curr == parent.right {
		curr = parent
		parent = parent.parent
	}

	return nilIfSentinel(parent)
}

// Predecessor finds the predecessor of the current
// node in its tree. That is, the node in the tree
// of the highest order that is strictly smaller than
// the current node.
func (n *Node) Predecessor() *Node {
	if isNotSentinel(n.left) {
		return n.left.Max()
	}

	curr := n
	parent := n.parent
	for isNotSentinel(parent) && curr == parent.left {
		curr = parent
		parent = parent.parent
	}

	return nilIfSentinel(parent)
}

// Higher returns the node in the subtree with the
// smallest key that is greater than or equal to key
func (n *Node) Higher(key int) *Node {
	var higher *Node

	for curr := n; isNotSentinel(curr); {
		if key <= curr.Key {
			higher = curr
			curr = curr.left
		} else {
			curr = curr.right
		}
	}

	return higher
}

// Lower returns the node in the subtree with the
// greatest key that is lower than or equal to key
func (n *Node) Lower(key int) *Node {
	var lower *Node

	for curr := n; isNotSentinel(curr); {
		if key < curr.Key {
			curr = curr.left
		} else {
			lower = curr
			curr = curr.right
		}
	}

	return lower
}

// Opts configures a Tree
type Opts struct {
	// Capacity is the maximum number of keys the tree can hold.
	// Zero means unlimited
	Capacity int

	// Rand is the source of treap priorities. A source seeded
	// with 1 is used when unset
	Rand *rand.Rand
}

// Tree is a binary search tree over unique integer keys. The
// algorithm used to keep it balanced is selected by its constructor.
//
// A Tree provides no synchronization. Callers sharing a Tree between
// goroutines must serialize every call, including reads.
type Tree struct {
	root     *Node
	sentinel *Node
	mod      modifier
	len      int
	capacity int
	rand     *rand.Rand
}

func newTree(mod modifier, opts Opts) *Tree {
	sentinel := &Node{color: black, sentinel: true}

	return &Tree{
		root:     sentinel,
		sentinel: sentinel,
		mod:      mod,
		capacity: opts.Capacity,
		rand:     opts.Rand,
	}
}

func (t *Tree) newNode(key int) *Node {
	return &Node{
		Key:    key,
		color:  red,
		left:   t.sentinel,
		right:  t.sentinel,
		parent: t.sentinel,
	}
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

// Empty returns true if the tree has no nodes
func (t *Tree) Empty() bool {
	return isSentinel(t.root)
}

// Root returns the root of the tree. It returns
// nil for an empty tree
func (t *Tree) Root() *Node {
	return nilIfSentinel(t.root)
}

// Min returns the node in the tree with the
// lowest key. It returns nil if the tree
// is empty
func (t *Tree) Min() *Node {
	return t.root.Min()
}

// Max returns the node in the tree with the
// highest key. It returns nil if the tree
// is empty
func (t *Tree) Max() *Node {
	return t.root.Max()
}

// Higher returns the node in the tree with the smallest
// key that is greater than or equal to key
func (t *Tree) Higher(key int) *Node {
	return t.root.Higher(key)
}

// Lower returns the node in the tree with the greatest
// key that is lower than or equal to key
func (t *Tree) Lower(key int) *Node {
	return t.root.Lower(key)
}

// Search returns true if the tree holds key
func (t *Tree) Search(key int) bool {
	return t.root.Find(key) != nil
}

// Contains is an alias of Search
func (t *Tree) Contains(key int) bool {
	return t.Search(key)
}

// Find returns the node that holds key, or nil. Once the key is
// deleted the node is detached and has no relatives
func (t *Tree) Find(key int) *Node {
	return t.root.Find(key)
}

// Height returns the number of nodes in the longest path
// from the root to a leaf
func (t *Tree) Height() int {
	if t.Empty() {
		return 0
	}

	height := 0
	level := []*Node{t.root}
	for len(level) > 0 {
		height++
		var next []*Node
		for _, n := range level {
			if isNotSentinel(n.left) {
				next = append(next, n.left)
			}
			if isNotSentinel(n.right) {
				next = append(next, n.right)
			}
		}
		level = next
	}

	return height
}

// InOrder returns the ascending sequence of the keys in the tree.
// The sequence is produced lazily by walking successor links, so it
// can be stopped at any point and restarted. The tree must not be
// modified while the sequence is being consumed.
func (t *Tree) InOrder() iter.Seq[int] {
	return func(yield func(int) bool) {
		for n := t.Min(); n != nil; n = n.Successor() {
			if !yield(n.Key) {
				return
			}
		}
	}
}

// Range returns the ascending sequence of the keys k in the
// tree such that lo <= k <= hi
func (t *Tree) Range(lo, hi int) iter.Seq[int] {
	return func(yield func(int) bool) {
		if lo > hi {
			return
		}

		for n := t.Higher(lo); n != nil && n.Key <= hi; n = n.Successor() {
			if !yield(n.Key) {
				return
			}
		}
	}
}

// Keys returns all the keys of the tree in ascending order
func (t *Tree) Keys() []int {
	keys := make([]int, 0, t.len)
	for key := range t.InOrder() {
		keys = append(keys, key)
	}
	return keys
}

// lookup descends from the root looking for key. It returns the node
// holding the key and true, or the last node visited and false. The
// last node visited is the sentinel when the tree is empty.
func (t *Tree) lookup(key int) (*Node, bool) {
	parent := t.sentinel

	for curr := t.root; isNotSentinel(curr); {
		parent = curr
		switch {
		case key < curr.Key:
			curr = curr.left
		case key > curr.Key:
			curr = curr.right
		default:
			return curr, true
		}
	}

	return parent, false
}

// Insert adds key to the tree. It returns false if the key was already
// present, in which case the tree is left untouched. It fails with
// ErrCapacityExceeded if the tree is full.
func (t *Tree) Insert(key int) (bool, error) {
	parent, found := t.lookup(key)
	if found {
		return false, nil
	}

	if t.capacity > 0 && t.len >= t.capacity {
		return false, errors.Wrapf(ErrCapacityExceeded,
			"failed to insert key %d into tree with %d keys", key, t.len)
	}

	t.mod.Insert(t, parent, t.newNode(key))
	t.len++
	return true, nil
}

// Delete removes key from the tree. It returns false if
// the key was not present
func (t *Tree) Delete(key int) bool {
	n := t.Find(key)
	if n == nil {
		return false
	}

	t.mod.Delete(t, n)
	t.len--

	// a node held by a caller is left detached: a single node tree
	// that cannot reach the tree it was removed from
	n.left, n.right, n.parent = t.sentinel, t.sentinel, t.sentinel
	return true
}
