package tree

import (
	"github.com/pkg/errors"
)

// Validate checks the binary search tree ordering, the consistency of
// the parent links and the node count, followed by the invariants of
// the balancing algorithm of the tree. A tree only operated through
// its public methods is always valid, so a failure is a defect.
func (t *Tree) Validate() error {
	if isNotSentinel(t.root) && isNotSentinel(t.root.parent) {
		return errors.Wrapf(ErrInvariant, "root %d has a parent", t.root.Key)
	}

	count := 0
	prev := 0
	for n := t.Min(); n != nil; n = n.Successor() {
		if count > 0 && n.Key <= prev {
			return errors.Wrapf(ErrInvariant, "key %d follows key %d", n.Key, prev)
		}

		for _, child := range []*Node{n.left, n.right} {
			if isNotSentinel(child) && child.parent != n {
				return errors.Wrapf(ErrInvariant,
					"node %d is a child of %d but does not link back to it", child.Key, n.Key)
			}
		}

		prev = n.Key
		count++
		if count > t.len {
			break
		}
	}

	if count != t.len {
		return errors.Wrapf(ErrInvariant, "tree reports %d keys but holds %d", t.len, count)
	}

	return t.mod.validate(t)
}
