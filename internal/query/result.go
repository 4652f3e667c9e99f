package query

import (
	"slices"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/shopspring/decimal"

	"offsetdb/internal/types"
)

// SumColumn names an aggregated column. Sums are raw integers scaled by
// 10^Scale, the same representation the column's dictionary uses.
type SumColumn struct {
	Name  string
	Scale int
}

// Group is one non-empty output group.
type Group struct {
	Keys  []string
	Count int64
	Sums  []int64
}

// Result is the column block of a group-by: grouping keys, count(*) and one
// sum per aggregated column for every group.
type Result struct {
	RunID  string
	Keys   []string
	Sums   []SumColumn
	Groups []Group
}

// Sum returns the i-th sum of g as a decimal.
func (r *Result) Sum(g Group, i int) decimal.Decimal {
	return types.Numeric(g.Sums[i]).Decimal(r.Sums[i].Scale)
}

// Avg is the i-th sum of g divided by its row count.
func (r *Result) Avg(g Group, i int) decimal.Decimal {
	if g.Count == 0 {
		return decimal.Zero
	}
	return r.Sum(g, i).Div(decimal.NewFromInt(g.Count))
}

// SumIndex finds an aggregated column by name.
func (r *Result) SumIndex(name string) int {
	return slices.IndexFunc(r.Sums, func(s SumColumn) bool { return s.Name == name })
}

// Sort orders groups by their keys.
func (r *Result) Sort() {
	slices.SortFunc(r.Groups, func(a, b Group) int {
		return slices.Compare(a.Keys, b.Keys)
	})
}

// Find returns the group with exactly these keys.
func (r *Result) Find(keys ...string) (Group, bool) {
	for _, g := range r.Groups {
		if slices.Equal(g.Keys, keys) {
			return g, true
		}
	}
	return Group{}, false
}

// Schema describes Record: one utf8 field per key, count as int64 and one
// int64 field per sum carrying its scale in the field metadata.
func (r *Result) Schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(r.Keys)+1+len(r.Sums))
	for _, k := range r.Keys {
		fields = append(fields, arrow.Field{Name: k, Type: arrow.BinaryTypes.String})
	}
	fields = append(fields, arrow.Field{Name: "count", Type: arrow.PrimitiveTypes.Int64})
	for _, s := range r.Sums {
		md := arrow.NewMetadata([]string{"scale"}, []string{strconv.Itoa(s.Scale)})
		fields = append(fields, arrow.Field{Name: "sum_" + s.Name, Type: arrow.PrimitiveTypes.Int64, Metadata: md})
	}
	return arrow.NewSchema(fields, nil)
}

// Record builds the result as an arrow record sized to the group count. The
// caller releases it.
func (r *Result) Record(mem memory.Allocator) arrow.Record {
	b := array.NewRecordBuilder(mem, r.Schema())
	defer b.Release()
	b.Reserve(len(r.Groups))

	for _, g := range r.Groups {
		for k, key := range g.Keys {
			b.Field(k).(*array.StringBuilder).Append(key)
		}
		b.Field(len(r.Keys)).(*array.Int64Builder).Append(g.Count)
		for i, s := range g.Sums {
			b.Field(len(r.Keys) + 1 + i).(*array.Int64Builder).Append(s)
		}
	}
	return b.NewRecord()
}

func (r *Result) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(r.Keys, "|"))
	sb.WriteString("|count")
	for _, s := range r.Sums {
		sb.WriteString("|sum_" + s.Name)
	}
	sb.WriteByte('\n')
	for _, g := range r.Groups {
		sb.WriteString(strings.Join(g.Keys, "|"))
		sb.WriteString("|" + strconv.FormatInt(g.Count, 10))
		for i := range g.Sums {
			sb.WriteString("|" + r.Sum(g, i).StringFixed(int32(r.Sums[i].Scale)))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
