package celltree

// Tree maps H3 cells to values of type V, honoring the cell hierarchy:
// inserting a cell covers all of its descendants, and lookups match the
// closest covering ancestor.
//
// A Tree is a single-writer value. Concurrent readers are fine as long
// as nobody mutates.
type Tree[V any] struct {
	roots     [BaseCellCount]*node[V]
	compactor Compactor[V]
}

// New returns an empty tree that never compacts.
func New[V any]() *Tree[V] {
	return NewWithCompactor[V](NullCompactor[V]{})
}

// NewWithCompactor returns an empty tree that coalesces complete
// septets of sibling leaves whenever c permits.
func NewWithCompactor[V any](c Compactor[V]) *Tree[V] {
	return &Tree[V]{compactor: c}
}

// Insert records that cell, and every descendant of cell, maps to
// value. Inserting at a position already covered by a finer subtree
// replaces that subtree. Inserting below an existing coarser leaf
// splits the leaf, preserving its value for the untouched siblings.
func (t *Tree[V]) Insert(cell Cell, value V) error {
	return t.insert(cell, value, t.compactor)
}

// InsertWith is Insert with a one-off compactor, useful when building
// with one strategy and updating with another.
func (t *Tree[V]) InsertWith(cell Cell, value V, c Compactor[V]) error {
	return t.insert(cell, value, c)
}

func (t *Tree[V]) insert(cell Cell, value V, c Compactor[V]) error {
	if err := cell.validate(); err != nil {
		return err
	}
	base := cell.Base()
	root := t.roots[base]
	if root == nil {
		root = newParent[V]()
		t.roots[base] = root
	}
	d := newDigits(cell)
	root.insert(&d, 0, value, c)
	return nil
}

// Get returns the value covering cell and the cell at which coverage
// was recorded, which may be an ancestor of the queried cell. The
// returned pointer aliases tree memory; writes through it are visible
// to subsequent reads.
//
// A cell is not covered merely because descendants of it are present:
// coverage requires a leaf at or above the queried position.
func (t *Tree[V]) Get(cell Cell) (Cell, *V, bool) {
	if cell.validate() != nil {
		return 0, nil, false
	}
	root := t.roots[cell.Base()]
	if root == nil {
		return 0, nil, false
	}
	d := newDigits(cell)
	value, res, ok := root.get(&d, 0)
	if !ok {
		return 0, nil, false
	}
	matched, ok := cell.Parent(res)
	assert(ok, "leaf deeper than query")
	return matched, value, true
}

// Contains reports whether the tree fully covers cell.
func (t *Tree[V]) Contains(cell Cell) bool {
	_, _, ok := t.Get(cell)
	return ok
}

// Len returns the number of logical leaf cells. Compaction can make
// this much smaller than the number of inserted cells. O(n).
func (t *Tree[V]) Len() int {
	var total int
	for _, root := range t.roots {
		if root != nil {
			total += root.count()
		}
	}
	return total
}

// IsEmpty reports whether the tree contains no cells.
func (t *Tree[V]) IsEmpty() bool {
	for _, root := range t.roots {
		if root != nil {
			return false
		}
	}
	return true
}

// Compact applies the tree's compactor at every parent in one
// postorder sweep. Useful after building with InsertWith or after
// mutating values through Get.
func (t *Tree[V]) Compact() {
	t.CompactWith(t.compactor)
}

// CompactWith is Compact with an explicit compactor.
func (t *Tree[V]) CompactWith(c Compactor[V]) {
	for _, root := range t.roots {
		if root != nil {
			root.compactAll(0, c)
		}
	}
}
