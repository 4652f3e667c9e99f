package engine

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Validate checks the invariants of every column: offsets are
// non-decreasing and end at NrTuples, rows within one entry are ascending,
// and the entries' row ranges together cover 0..NrTuples-1 exactly once.
func (r *Relation) Validate() error {
	for _, name := range r.order {
		col := r.columns[name]
		ri := r.rowIndexes[name]
		if len(ri) != r.NrTuples {
			return &ConsistencyError{Relation: r.Name, Column: name, Reason: fmt.Sprintf("row index has %d rows, relation %d", len(ri), r.NrTuples)}
		}
		seen := roaring.New()
		var prev uint32
		for i := 0; i < col.Len(); i++ {
			lo, hi := col.Range(i)
			if hi < prev {
				return &ConsistencyError{Relation: r.Name, Column: name, Reason: fmt.Sprintf("offset of entry %d decreases", i)}
			}
			if int(hi) > len(ri) {
				return &ConsistencyError{Relation: r.Name, Column: name, Reason: fmt.Sprintf("offset of entry %d past end of row index", i)}
			}
			prev = hi
			for k := lo; k < hi; k++ {
				row := ri[k]
				if k > lo && row <= ri[k-1] {
					return &ConsistencyError{Relation: r.Name, Column: name, Reason: fmt.Sprintf("rows of entry %d not ascending", i)}
				}
				if int(row) >= r.NrTuples || !seen.CheckedAdd(row) {
					return &ConsistencyError{Relation: r.Name, Column: name, Reason: fmt.Sprintf("row %d out of range or repeated", row)}
				}
			}
		}
		if int(prev) != r.NrTuples {
			return &ConsistencyError{Relation: r.Name, Column: name, Reason: "final offset does not match tuple count"}
		}
		if seen.GetCardinality() != uint64(r.NrTuples) {
			return &ConsistencyError{Relation: r.Name, Column: name, Reason: "row ranges do not cover every row"}
		}
	}
	return nil
}
