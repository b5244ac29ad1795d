package btree

import (
	"math"

	"github.com/pkg/errors"
)

// Validate checks that the keys are ordered, that every node holds a
// number of keys allowed by the degree of the tree and that all the
// leaves are at the same depth.
func (t *Tree) Validate() error {
	if t.len == 0 {
		if len(t.root.keys) != 0 || !t.root.leaf() {
			return errors.Wrap(ErrInvariant, "empty tree with a non empty root")
		}
		return nil
	}

	v := validator{tree: t, leafDepth: -1}
	if err := v.check(t.root, math.MinInt, math.MaxInt, 0); err != nil {
		return err
	}

	if v.count != t.len {
		return errors.Wrapf(ErrInvariant, "tree reports %d keys but holds %d", t.len, v.count)
	}

	return nil
}

type validator struct {
	tree      *Tree
	leafDepth int
	count     int
}

// check validates the subtree of n, whose keys must be in the open
// interval (lo, hi)
func (v *validator) check(n *node, lo, hi, depth int) error {
	maxKeys := 2*v.tree.degree - 1
	minKeys := v.tree.degree - 1
	if n == v.tree.root {
		minKeys = 1
	}

	if len(n.keys) < minKeys || len(n.keys) > maxKeys {
		return errors.Wrapf(ErrInvariant,
			"node at depth %d holds %d keys, expected between %d and %d",
			depth, len(n.keys), minKeys, maxKeys)
	}

	prev := lo
	for i, key := range n.keys {
		if (i > 0 || lo != math.MinInt) && key <= prev {
			return errors.Wrapf(ErrInvariant, "key %d at depth %d follows key %d", key, depth, prev)
		}
		prev = key
	}
	if hi != math.MaxInt && prev >= hi {
		return errors.Wrapf(ErrInvariant, "key %d at depth %d is not lower than %d", prev, depth, hi)
	}
	v.count += len(n.keys)

	if n.leaf() {
		if v.leafDepth == -1 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return errors.Wrapf(ErrInvariant,
				"leaf at depth %d, expected all leaves at depth %d", depth, v.leafDepth)
		}
		return nil
	}

	if len(n.children) != len(n.keys)+1 {
		return errors.Wrapf(ErrInvariant, "node at depth %d with %d keys has %d children",
			depth, len(n.keys), len(n.children))
	}

	for i, child := range n.children {
		clo, chi := lo, hi
		if i > 0 {
			clo = n.keys[i-1]
		}
		if i < len(n.keys) {
			chi = n.keys[i]
		}

		if err := v.check(child, clo, chi, depth+1); err != nil {
			return err
		}
	}

	return nil
}
