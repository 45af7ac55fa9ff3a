package engine

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns consumer data. It reads through this interface.
//
// Implementations:
//   SliceView — wraps []Record (CSV ingestion, ad-hoc)
//   SubView   — filtered subset (indices into parent, zero-copy)
//
// A view is immutable once built; filtering derives a new SubView.
// ============================================================================

// RecordView provides indexed access to a dataset.
// The engine calls At in tight loops — keep implementations fast.
type RecordView interface {
	Len() int
	At(index int) *Record
}

// ============================================================================
// SLICE VIEW
// ============================================================================

// SliceView wraps a []Record slice as a RecordView.
type SliceView struct {
	records []Record
}

// NewSliceView creates a RecordView from a []Record slice.
// The slice must not be modified afterwards.
func NewSliceView(records []Record) RecordView {
	return &SliceView{records: records}
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) At(i int) *Record {
	if i < 0 || i >= len(v.records) {
		return nil
	}
	return &v.records[i]
}

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a filtered subset of a parent RecordView.
// Holds indices into the parent — no data copy.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) At(i int) *Record {
	if i < 0 || i >= len(v.indices) {
		return nil
	}
	return v.parent.At(v.indices[i])
}

// Page returns records [offset, offset+limit) of a view as a SubView.
// Out-of-range windows are clipped; limit <= 0 means "to the end".
func Page(view RecordView, offset, limit int) RecordView {
	n := view.Len()
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	indices := make([]int, 0, end-offset)
	for i := offset; i < end; i++ {
		indices = append(indices, i)
	}
	return newSubView(view, indices)
}
