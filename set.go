package celltree

import "io"

// Set records region membership: which cells, and therefore which
// parts of the globe, belong to the set. It is a Tree with unit values
// and a compactor that fuses any complete septet.
type Set struct {
	tree Tree[struct{}]
}

// NewSet returns an empty set.
func NewSet() *Set {
	s := &Set{}
	s.tree.compactor = SetCompactor{}
	return s
}

// Add inserts cell and all of its descendants into the set.
func (s *Set) Add(cell Cell) error {
	var unit struct{}
	return s.tree.Insert(cell, unit)
}

// Contains reports whether the set fully covers cell.
func (s *Set) Contains(cell Cell) bool {
	return s.tree.Contains(cell)
}

// Len returns the number of logical leaf cells in the set.
func (s *Set) Len() int { return s.tree.Len() }

// IsEmpty reports whether the set contains no cells.
func (s *Set) IsEmpty() bool { return s.tree.IsEmpty() }

// Iter returns a cursor over the set's cells in tree order.
func (s *Set) Iter() *SetIter {
	return &SetIter{inner: s.tree.Iter()}
}

// WriteTo serializes the set in the disk tree format with empty
// values.
func (s *Set) WriteTo(w io.WriteSeeker) error {
	return s.tree.WriteTo(w, UnitEncoder())
}

// SetIter enumerates a set's cells in deterministic tree order.
type SetIter struct {
	inner *Iter[struct{}]
}

// Next advances the iterator.
func (it *SetIter) Next() bool { return it.inner.Next() }

// Cell returns the cell at the current position.
func (it *SetIter) Cell() Cell { return it.inner.Cell() }
