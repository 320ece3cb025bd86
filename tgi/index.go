package tgi

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is a multi-key index over Indexable items.
//
// Until Build is called the index runs in linear mode: every query is a
// full scan. After Build it maintains lookup structures that are kept up to
// date by Add:
//   - exact: TGI -> positions (insertion order)
//   - ti: (type, instance) -> positions
//   - posting bitmaps per type, group and instance for every other
//     partial-key shape
//
// Find and FindFunc search newest registration first, so the most recently
// added match wins. FindAll and FindAllFunc return insertion order.
//
// Index is not safe for concurrent mutation. Concurrent readers are fine
// as long as no Add or Build runs at the same time.
type Index[T Indexable] struct {
	items []T
	built bool

	exact      map[TGI][]uint32
	ti         map[[2]uint32][]uint32
	byType     map[uint32]*roaring.Bitmap
	byGroup    map[uint32]*roaring.Bitmap
	byInstance map[uint32]*roaring.Bitmap
}

// NewIndex creates an index in linear mode holding items.
func NewIndex[T Indexable](items ...T) *Index[T] {
	idx := &Index[T]{}
	idx.items = append(idx.items, items...)
	return idx
}

// Len returns the number of items.
func (idx *Index[T]) Len() int { return len(idx.items) }

// Built reports whether the lookup structures are compiled.
func (idx *Index[T]) Built() bool { return idx.built }

// At returns the item at position i.
func (idx *Index[T]) At(i int) T { return idx.items[i] }

// All iterates over the items in insertion order.
func (idx *Index[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range idx.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// Add appends items. In pre-built mode every lookup structure is updated
// before Add returns.
func (idx *Index[T]) Add(items ...T) {
	for _, item := range items {
		pos := uint32(len(idx.items))
		idx.items = append(idx.items, item)
		if idx.built {
			idx.indexItem(pos, item.TGI())
		}
	}
}

// Build compiles the lookup structures from the current contents. Calling
// it again recompiles from scratch.
func (idx *Index[T]) Build() {
	n := len(idx.items)
	idx.exact = make(map[TGI][]uint32, n)
	idx.ti = make(map[[2]uint32][]uint32, n)
	idx.byType = make(map[uint32]*roaring.Bitmap)
	idx.byGroup = make(map[uint32]*roaring.Bitmap)
	idx.byInstance = make(map[uint32]*roaring.Bitmap)
	for pos, item := range idx.items {
		idx.indexItem(uint32(pos), item.TGI())
	}
	idx.built = true
}

func (idx *Index[T]) indexItem(pos uint32, key TGI) {
	idx.exact[key] = append(idx.exact[key], pos)
	tiKey := [2]uint32{key.Type, key.Instance}
	idx.ti[tiKey] = append(idx.ti[tiKey], pos)
	addPosting(idx.byType, key.Type, pos)
	addPosting(idx.byGroup, key.Group, pos)
	addPosting(idx.byInstance, key.Instance, pos)
}

func addPosting(m map[uint32]*roaring.Bitmap, k, pos uint32) {
	bm, ok := m[k]
	if !ok {
		bm = roaring.New()
		m[k] = bm
	}
	bm.Add(pos)
}

// Find returns the most recently added item matching q. The empty query
// matches nothing.
func (idx *Index[T]) Find(q Query) (T, bool) {
	var zero T
	if q.Empty() {
		return zero, false
	}
	if !idx.built {
		for i := len(idx.items) - 1; i >= 0; i-- {
			if q.Matches(idx.items[i].TGI()) {
				return idx.items[i], true
			}
		}
		return zero, false
	}

	if positions, ok := idx.slicePositions(q); ok {
		if len(positions) == 0 {
			return zero, false
		}
		return idx.items[positions[len(positions)-1]], true
	}

	bm := idx.bitmapPositions(q)
	if bm == nil || bm.IsEmpty() {
		return zero, false
	}
	return idx.items[bm.Maximum()], true
}

// FindAll returns every item matching q in insertion order.
func (idx *Index[T]) FindAll(q Query) []T {
	if q.Empty() {
		return nil
	}
	if !idx.built {
		var out []T
		for _, item := range idx.items {
			if q.Matches(item.TGI()) {
				out = append(out, item)
			}
		}
		return out
	}

	if positions, ok := idx.slicePositions(q); ok {
		return idx.collect(positions)
	}

	bm := idx.bitmapPositions(q)
	if bm == nil {
		return nil
	}
	return idx.collect(bm.ToArray())
}

// FindFunc returns the most recently added item for which pred is true.
func (idx *Index[T]) FindFunc(pred func(T) bool) (T, bool) {
	for i := len(idx.items) - 1; i >= 0; i-- {
		if pred(idx.items[i]) {
			return idx.items[i], true
		}
	}
	var zero T
	return zero, false
}

// FindAllFunc returns every item for which pred is true in insertion order.
func (idx *Index[T]) FindAllFunc(pred func(T) bool) []T {
	var out []T
	for _, item := range idx.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// slicePositions answers the shapes backed by position slices.
func (idx *Index[T]) slicePositions(q Query) ([]uint32, bool) {
	switch {
	case q.IsExact():
		return idx.exact[q.TGI], true
	case q.Fields&FieldAll == FieldType|FieldInstance:
		return idx.ti[[2]uint32{q.Type, q.Instance}], true
	}
	return nil, false
}

// bitmapPositions intersects the posting bitmaps of every selected field.
// Returns nil when a selected value has no postings.
func (idx *Index[T]) bitmapPositions(q Query) *roaring.Bitmap {
	var sets []*roaring.Bitmap
	if q.Has(FieldType) {
		bm, ok := idx.byType[q.Type]
		if !ok {
			return nil
		}
		sets = append(sets, bm)
	}
	if q.Has(FieldGroup) {
		bm, ok := idx.byGroup[q.Group]
		if !ok {
			return nil
		}
		sets = append(sets, bm)
	}
	if q.Has(FieldInstance) {
		bm, ok := idx.byInstance[q.Instance]
		if !ok {
			return nil
		}
		sets = append(sets, bm)
	}

	switch len(sets) {
	case 0:
		return nil
	case 1:
		return sets[0]
	default:
		return roaring.FastAnd(sets...)
	}
}

func (idx *Index[T]) collect(positions []uint32) []T {
	if len(positions) == 0 {
		return nil
	}
	out := make([]T, len(positions))
	for n, pos := range positions {
		out[n] = idx.items[pos]
	}
	return out
}
