// Package keyset defines the contract shared by every ordered set of
// integer keys in the module and builds sets of any of the supported
// kinds.
package keyset

import (
	"iter"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/eaugeas/keyset/container/btree"
	"github.com/eaugeas/keyset/container/interval"
	"github.com/eaugeas/keyset/container/tree"
)

var (
	// ErrUnknownKind is returned when a set kind is not recognised
	ErrUnknownKind = errors.New("unknown set kind")

	// ErrInvalidOpts is returned when the options to build a set
	// are out of range
	ErrInvalidOpts = errors.New("invalid set options")
)

// Set is an ordered collection of unique integer keys
type Set interface {
	// Insert adds key to the set. It returns false if the key was
	// already present. It fails if the set is at capacity
	Insert(key int) (bool, error)

	// Delete removes key from the set. It returns false if the key
	// was not present
	Delete(key int) bool

	// Search returns true if key is in the set
	Search(key int) bool

	// InOrder returns the keys in ascending order
	InOrder() iter.Seq[int]

	// Range returns the keys within i in ascending order
	Range(i interval.Int) iter.Seq[int]

	// Len returns the number of keys in the set
	Len() int

	// Height returns the number of levels of the underlying tree
	Height() int

	// Validate checks the invariants of the underlying tree
	Validate() error
}

// Kind selects the algorithm that keeps a Set balanced
type Kind string

const (
	RedBlack   Kind = "redblack"
	AVL        Kind = "avl"
	Treap      Kind = "treap"
	BTree      Kind = "btree"
	Unbalanced Kind = "unbalanced"
)

// Kinds lists every supported kind, default first
var Kinds = []Kind{RedBlack, AVL, Treap, BTree, Unbalanced}

// ParseKind returns the Kind named by s. The empty string
// selects RedBlack
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RedBlack, nil
	}

	for _, kind := range Kinds {
		if string(kind) == s {
			return kind, nil
		}
	}

	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

func (k Kind) String() string {
	return string(k)
}

// Opts configures a new Set
type Opts struct {
	// Capacity is the maximum number of keys. Zero means unlimited
	Capacity int

	// Degree is the minimum degree of BTree sets. Zero selects
	// btree.DefaultDegree
	Degree int

	// Seed seeds the priorities of Treap sets
	Seed int64
}

// New builds an empty Set of the given kind
func New(kind Kind, opts Opts) (Set, error) {
	if opts.Capacity < 0 {
		return nil, errors.Wrapf(ErrInvalidOpts, "negative capacity %d", opts.Capacity)
	}
	if opts.Degree != 0 && opts.Degree < 2 {
		return nil, errors.Wrapf(ErrInvalidOpts, "btree degree %d lower than 2", opts.Degree)
	}

	topts := tree.Opts{Capacity: opts.Capacity}

	switch kind {
	case RedBlack, "":
		return treeSet{tree.NewRedBlackTreeWithOpts(topts)}, nil
	case AVL:
		return treeSet{tree.NewAVLTreeWithOpts(topts)}, nil
	case Treap:
		topts.Rand = rand.New(rand.NewSource(opts.Seed))
		return treeSet{tree.NewTreapWithOpts(topts)}, nil
	case Unbalanced:
		return treeSet{tree.NewUnbalancedTreeWithOpts(topts)}, nil
	case BTree:
		return btreeSet{btree.NewWithOpts(btree.Opts{
			Degree:   opts.Degree,
			Capacity: opts.Capacity,
		})}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", string(kind))
	}
}

type treeSet struct {
	*tree.Tree
}

func (s treeSet) Range(i interval.Int) iter.Seq[int] {
	return s.Tree.Range(i.Min(), i.Max())
}

type btreeSet struct {
	*btree.Tree
}

func (s btreeSet) Range(i interval.Int) iter.Seq[int] {
	return s.Tree.Range(i.Min(), i.Max())
}

// IsCapacityExceeded returns true if err was caused by inserting
// into a full set of any kind
func IsCapacityExceeded(err error) bool {
	return errors.Is(err, tree.ErrCapacityExceeded) ||
		errors.Is(err, btree.ErrCapacityExceeded)
}

// InsertAll inserts keys in order and returns how many of them were
// not already present. It stops at the first error
func InsertAll(s Set, keys ...int) (int, error) {
	inserted := 0
	for _, key := range keys {
		ok, err := s.Insert(key)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// DeleteAll deletes keys and returns how many of them were present
func DeleteAll(s Set, keys ...int) int {
	deleted := 0
	for _, key := range keys {
		if s.Delete(key) {
			deleted++
		}
	}
	return deleted
}

// Runs returns the maximal runs of consecutive keys of s that lie
// within i. The keys {1, 2, 3, 7, 8} make the runs [1, 3] and [7, 8]
func Runs(s Set, i interval.Int) []interval.Int {
	runs := interval.NewIntSet()
	for key := range s.Range(i) {
		runs.Insert(interval.NewInt(key, key))
	}
	return runs.Intervals()
}
