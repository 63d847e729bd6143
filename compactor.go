package celltree

// A Compactor decides whether a complete septet of sibling leaf values
// may be fused into a single value stored at their parent. children is
// indexed by digit; a tree calls Compact only when all seven siblings
// are present leaves, so none is nil. Compact must be pure and
// deterministic: given the same inputs it must always make the same
// decision, or trees built from the same data will diverge.
type Compactor[V any] interface {
	Compact(res int, children [7]*V) (V, bool)
}

// NullCompactor never compacts.
type NullCompactor[V any] struct{}

func (NullCompactor[V]) Compact(res int, children [7]*V) (V, bool) {
	var zero V
	return zero, false
}

// EqCompactor compacts when all seven siblings are present and equal.
type EqCompactor[V comparable] struct{}

func (EqCompactor[V]) Compact(res int, children [7]*V) (V, bool) {
	var zero V
	first := children[0]
	if first == nil {
		return zero, false
	}
	for _, v := range children[1:] {
		if v == nil || *v != *first {
			return zero, false
		}
	}
	return *first, true
}

// SetCompactor compacts unit values when all seven siblings are
// present. Used by Set.
type SetCompactor struct{}

func (SetCompactor) Compact(res int, children [7]*struct{}) (struct{}, bool) {
	for _, v := range children {
		if v == nil {
			return struct{}{}, false
		}
	}
	return struct{}{}, true
}
