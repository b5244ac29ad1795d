package tree

// modifier is a pair of algorithms used to insert
// and remove nodes from the tree
type modifier interface {
	// Insert links n, whose key is not yet in the tree, as a child
	// of parent and rebalances the tree. parent is the sentinel
	// when the tree is empty
	Insert(t *Tree, parent *Node, n *Node)

	// Delete unlinks n from the tree and rebalances it
	Delete(t *Tree, n *Node)

	// validate checks the invariants the algorithm maintains on
	// top of the binary search tree ordering
	validate(t *Tree) error
}
