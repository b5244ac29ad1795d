package tree

// leftRotateNode promotes n.right into the position of n. n becomes the
// left child of the promoted node and the promoted node's former left
// subtree becomes the right subtree of n.
//
//	    n                t
//	  a   t     =>     n   c
//	     b c          a b
func leftRotateNode(t *Tree, n *Node) {
	target := n.right
	doAssert(isNotSentinel(target), "left rotation without right child")

	n.right = target.left
	if isNotSentinel(target.left) {
		target.left.parent = n
	}
	target.parent = n.parent

	switch {
	case isSentinel(n.parent):
		t.root = target
	case n == n.parent.left:
		n.parent.left = target
	case n == n.parent.right:
		n.parent.right = target
	default:
		panic("unreachable statement")
	}

	target.left = n
	n.parent = target
}

// rightRotateNode is the mirror of leftRotateNode.
//
//	      n            t
//	    t   c   =>   a   n
//	   a b              b c
func rightRotateNode(t *Tree, n *Node) {
	target := n.left
	doAssert(isNotSentinel(target), "right rotation without left child")

	n.left = target.right
	if isNotSentinel(target.right) {
		target.right.parent = n
	}
	target.parent = n.parent

	switch {
	case isSentinel(n.parent):
		t.root = target
	case n == n.parent.left:
		n.parent.left = target
	case n == n.parent.right:
		n.parent.right = target
	default:
		panic("unreachable statement")
	}

	target.right = n
	n.parent = target
}
