package celltree

// node is one position in the 7-ary hierarchy: a leaf carrying a value,
// or a parent with up to 7 children. children == nil means leaf. A leaf
// at an interior resolution stands for its entire subtree; no
// descendant nodes coexist with it.
type node[V any] struct {
	value    V
	children *[7]*node[V]
}

func newParent[V any]() *node[V] {
	return &node[V]{children: new([7]*node[V])}
}

func (n *node[V]) isLeaf() bool { return n.children == nil }

func (n *node[V]) becomeLeaf(value V) {
	n.value = value
	n.children = nil
}

// insert places value at the position addressed by the remaining
// digits, then coalesces on the way back up.
//
// Hitting a leaf before the digits run out means an ancestor already
// covers the target; the leaf is expanded into a parent of 7 leaves
// carrying the old value, and descent continues. Running out of digits
// replaces whatever occupies the position, including a finer subtree.
func (n *node[V]) insert(d *digits, res int, value V, c Compactor[V]) {
	dig, ok := d.next()
	if !ok {
		n.becomeLeaf(value)
		return
	}
	if n.isLeaf() {
		n.expand()
	}
	child := n.children[dig]
	if child == nil {
		child = newParent[V]()
		n.children[dig] = child
	}
	child.insert(d, res+1, value, c)
	n.coalesce(res, c)
}

// expand turns a leaf into a parent whose 7 children are leaves
// carrying the leaf's value.
func (n *node[V]) expand() {
	old := n.value
	var children [7]*node[V]
	for i := range children {
		children[i] = &node[V]{value: old}
	}
	n.children = &children
	var zero V
	n.value = zero
}

// coalesce replaces n with a single leaf if all seven of its children
// are leaves and the compactor fuses the sibling values.
func (n *node[V]) coalesce(res int, c Compactor[V]) {
	if n.isLeaf() {
		return
	}
	var values [7]*V
	for i, child := range n.children {
		if child == nil || !child.isLeaf() {
			return
		}
		values[i] = &child.value
	}
	if v, ok := c.Compact(res, values); ok {
		n.becomeLeaf(v)
	}
}

// get descends by digits and returns the first leaf encountered along
// with its resolution. A leaf above the target covers it; a parent at
// the target's own position does not.
func (n *node[V]) get(d *digits, res int) (*V, int, bool) {
	if n.isLeaf() {
		return &n.value, res, true
	}
	dig, ok := d.next()
	if !ok {
		return nil, 0, false
	}
	child := n.children[dig]
	if child == nil {
		return nil, 0, false
	}
	return child.get(d, res+1)
}

// find is like get but also locates parent nodes at exactly the target
// position, for subtree iteration.
func (n *node[V]) find(d *digits, res int) (*node[V], int, bool) {
	if n.isLeaf() {
		return n, res, true
	}
	dig, ok := d.next()
	if !ok {
		return n, res, true
	}
	child := n.children[dig]
	if child == nil {
		return nil, 0, false
	}
	return child.find(d, res+1)
}

// count returns the number of logical leaves in the subtree.
func (n *node[V]) count() int {
	if n.isLeaf() {
		return 1
	}
	var total int
	for _, child := range n.children {
		if child != nil {
			total += child.count()
		}
	}
	return total
}

// compactAll applies the compactor at every parent, deepest first.
func (n *node[V]) compactAll(res int, c Compactor[V]) {
	if n.isLeaf() {
		return
	}
	for _, child := range n.children {
		if child != nil {
			child.compactAll(res+1, c)
		}
	}
	n.coalesce(res, c)
}
