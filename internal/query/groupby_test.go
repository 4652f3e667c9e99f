package query

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offsetdb/internal/config"
	"offsetdb/internal/engine"
	"offsetdb/internal/types"
)

func newExecutor(t *testing.T, db *engine.Database, simd bool, lanes, vectorSize int) *Executor {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 4
	cfg.UseSimdIntersection = simd
	cfg.LaneWidth = lanes
	cfg.VectorSize = vectorSize
	ex, err := NewExecutor(db, cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(ex.Close)
	return ex
}

func addRelation(t *testing.T, db *engine.Database, name string, cols []engine.ColumnConfig, lines ...string) {
	t.Helper()
	rel, err := engine.BuildRelation(name, cols, lines)
	require.NoError(t, err)
	db.Add(rel)
}

func sampleLineitem(t *testing.T) *engine.Database {
	t.Helper()
	char1, err := types.CharType(1)
	require.NoError(t, err)
	num, err := types.NumericType(12, 2)
	require.NoError(t, err)
	db := engine.NewDatabase()
	addRelation(t, db, "lineitem", []engine.ColumnConfig{
		{Name: "flag", Type: char1},
		{Name: "status", Type: char1},
		{Name: "shipdate", Type: types.DateType()},
		{Name: "qty", Type: num},
	},
		"A|O|1998-01-01|5",
		"A|O|1998-02-01|3",
		"B|F|1997-01-01|10",
		"A|F|1998-01-01|7",
		"B|O|1998-01-01|2",
		"A|O|1990-01-01|1",
	)
	return db
}

func sampleSpec(before string) GroupBySpec {
	return GroupBySpec{
		Relation:  "lineitem",
		Predicate: "shipdate",
		Before:    before,
		GroupBy:   []string{"flag", "status"},
		Sums:      []string{"qty"},
	}
}

func TestGroupBy(t *testing.T) {
	settings := []struct {
		name       string
		simd       bool
		lanes      int
		vectorSize int
	}{
		{"merge", false, 0, 1024},
		{"lanes4", true, 4, 1024},
		{"lanes8", true, 8, 1},
		{"lanes16", true, 16, 2},
		{"detected", true, 0, 1},
	}
	for _, s := range settings {
		t.Run(s.name, func(t *testing.T) {
			ex := newExecutor(t, sampleLineitem(t), s.simd, s.lanes, s.vectorSize)
			res, err := ex.GroupBy(context.Background(), sampleSpec("1998-02-15"))
			require.NoError(t, err)
			require.Len(t, res.Groups, 4)
			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, []SumColumn{{Name: "qty", Scale: 2}}, res.Sums)

			want := map[[2]string]struct {
				count int64
				sum   string
			}{
				{"A", "O"}: {3, "9.00"},
				{"B", "F"}: {1, "10.00"},
				{"A", "F"}: {1, "7.00"},
				{"B", "O"}: {1, "2.00"},
			}
			for key, w := range want {
				g, ok := res.Find(key[0], key[1])
				require.True(t, ok, "group %v", key)
				assert.Equal(t, w.count, g.Count, "group %v", key)
				assert.Equal(t, w.sum, res.Sum(g, 0).StringFixed(2), "group %v", key)
			}
		})
	}
}

func TestGroupByPredicateExcludesRows(t *testing.T) {
	ex := newExecutor(t, sampleLineitem(t), true, 8, 1)
	res, err := ex.GroupBy(context.Background(), sampleSpec("1998-01-01"))
	require.NoError(t, err)
	res.Sort()

	require.Len(t, res.Groups, 2)
	assert.Equal(t, []string{"A", "O"}, res.Groups[0].Keys)
	assert.Equal(t, int64(1), res.Groups[0].Count)
	assert.Equal(t, []string{"B", "F"}, res.Groups[1].Keys)
	assert.Equal(t, "10.00", res.Sum(res.Groups[1], 0).StringFixed(2))

	res, err = ex.GroupBy(context.Background(), sampleSpec("1980-01-01"))
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
}

func TestGroupByWithoutPredicate(t *testing.T) {
	ex := newExecutor(t, sampleLineitem(t), true, 4, 1024)
	spec := sampleSpec("")
	spec.Predicate = ""
	spec.GroupBy = []string{"flag"}
	res, err := ex.GroupBy(context.Background(), spec)
	require.NoError(t, err)
	res.Sort()

	require.Len(t, res.Groups, 2)
	assert.Equal(t, int64(4), res.Groups[0].Count)
	assert.Equal(t, "16.00", res.Sum(res.Groups[0], 0).StringFixed(2))
	assert.Equal(t, "4", res.Avg(res.Groups[0], 0).String())
	assert.Equal(t, "12.00", res.Sum(res.Groups[1], 0).StringFixed(2))
}

// High-cardinality sums take the gather path, small ones the count path;
// both must agree with a row-by-row evaluation.
func TestGroupByMatchesRowEvaluation(t *testing.T) {
	char1, err := types.CharType(1)
	require.NoError(t, err)
	cols := []engine.ColumnConfig{
		{Name: "g", Type: char1},
		{Name: "h", Type: char1},
		{Name: "p", Type: types.IntegerType()},
		{Name: "wide", Type: types.IntegerType()},
		{Name: "narrow", Type: types.IntegerType()},
	}

	rng := rand.New(rand.NewPCG(7, 11))
	type row struct {
		g, h         string
		p, wide, nar int64
	}
	rows := make([]row, 2000)
	lines := make([]string, len(rows))
	for i := range rows {
		r := row{
			g:    string("xyz"[rng.IntN(3)]),
			h:    string("mn"[rng.IntN(2)]),
			p:    rng.Int64N(100),
			wide: int64(i) * 3,
			nar:  rng.Int64N(10) - 5,
		}
		rows[i] = r
		lines[i] = fmt.Sprintf("%s|%s|%d|%d|%d", r.g, r.h, r.p, r.wide, r.nar)
	}
	db := engine.NewDatabase()
	addRelation(t, db, "r", cols, lines...)

	type acc struct{ count, wide, narrow int64 }
	want := map[[2]string]*acc{}
	for _, r := range rows {
		if r.p >= 40 {
			continue
		}
		k := [2]string{r.g, r.h}
		if want[k] == nil {
			want[k] = &acc{}
		}
		want[k].count++
		want[k].wide += r.wide
		want[k].narrow += r.nar
	}

	for _, lanes := range []int{4, 8, 16} {
		ex := newExecutor(t, db, true, lanes, 64)
		res, err := ex.GroupBy(context.Background(), GroupBySpec{
			Relation:  "r",
			Predicate: "p",
			Before:    "40",
			GroupBy:   []string{"g", "h"},
			Sums:      []string{"wide", "narrow"},
		})
		require.NoError(t, err)
		require.Len(t, res.Groups, len(want))
		for _, g := range res.Groups {
			w := want[[2]string{g.Keys[0], g.Keys[1]}]
			require.NotNil(t, w, "unexpected group %v", g.Keys)
			assert.Equal(t, w.count, g.Count)
			assert.Equal(t, w.wide, g.Sums[res.SumIndex("wide")])
			assert.Equal(t, w.narrow, g.Sums[res.SumIndex("narrow")])
		}
	}
}

func TestGroupByErrors(t *testing.T) {
	ex := newExecutor(t, sampleLineitem(t), true, 8, 1024)
	ctx := context.Background()
	var lookupErr *engine.LookupError

	spec := sampleSpec("1998-02-15")
	spec.Relation = "orders"
	_, err := ex.GroupBy(ctx, spec)
	require.ErrorAs(t, err, &lookupErr)

	spec = sampleSpec("1998-02-15")
	spec.GroupBy = []string{"flag", "mode"}
	_, err = ex.GroupBy(ctx, spec)
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "mode", lookupErr.Name)

	spec = sampleSpec("1998-02-15")
	spec.Sums = []string{"flag"}
	_, err = ex.GroupBy(ctx, spec)
	require.ErrorAs(t, err, &lookupErr)

	_, err = ex.GroupBy(ctx, sampleSpec("1998-2-15"))
	require.Error(t, err)

	spec = sampleSpec("1998-02-15")
	spec.GroupBy = nil
	_, err = ex.GroupBy(ctx, spec)
	require.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ex.GroupBy(cancelled, sampleSpec("1998-02-15"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestResultRecord(t *testing.T) {
	ex := newExecutor(t, sampleLineitem(t), true, 8, 1024)
	res, err := ex.GroupBy(context.Background(), sampleSpec("1998-02-15"))
	require.NoError(t, err)
	res.Sort()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := res.Record(mem)
	defer rec.Release()

	require.Equal(t, int64(4), rec.NumRows())
	require.Equal(t, int64(4), rec.NumCols())
	assert.Equal(t, "flag", rec.ColumnName(0))
	assert.Equal(t, "sum_qty", rec.ColumnName(3))
	md := rec.Schema().Field(3).Metadata
	idx := md.FindKey("scale")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "2", md.Values()[idx])

	flags := rec.Column(0).(*array.String)
	counts := rec.Column(2).(*array.Int64)
	sums := rec.Column(3).(*array.Int64)
	assert.Equal(t, "A", flags.Value(0))
	assert.Equal(t, int64(1), counts.Value(0))
	assert.Equal(t, int64(700), sums.Value(0))
	assert.Equal(t, int64(900), sums.Value(1))

	assert.Contains(t, res.String(), "A|O|3|9.00")
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []morsel{{0, 2}, {2, 4}, {4, 5}}, split(5, 2, nil))
	assert.Nil(t, split(0, 2, nil))
	weights := []int{5, 1, 1, 1, 9}
	assert.Equal(t, []morsel{{0, 1}, {1, 4}, {4, 5}}, split(5, 3, func(i int) int { return weights[i] }))
}

func TestPricingSummary(t *testing.T) {
	char1, err := types.CharType(1)
	require.NoError(t, err)
	num, err := types.NumericType(12, 2)
	require.NoError(t, err)
	db := engine.NewDatabase()
	addRelation(t, db, "lineitem", []engine.ColumnConfig{
		{Name: "l_quantity", Type: num},
		{Name: "l_extendedprice", Type: num},
		{Name: "l_discount", Type: num},
		{Name: "l_returnflag", Type: char1},
		{Name: "l_linestatus", Type: char1},
		{Name: "l_shipdate", Type: types.DateType()},
	},
		"17|21168.23|0.04|N|O|1996-03-13|",
		"36|45983.16|0.09|N|O|1996-04-12|",
		"8|13309.60|0.10|N|O|1996-01-29|",
		"45|54058.05|0.06|R|F|1994-02-02|",
		"49|46796.47|0.10|R|F|1993-11-09|",
		"27|39890.88|0.06|A|F|1998-09-02|",
	)
	ex := newExecutor(t, db, true, 8, 1024)
	res, err := ex.PricingSummary(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, res.Groups, 2)
	no, rf := res.Groups[0], res.Groups[1]
	assert.Equal(t, []string{"N", "O"}, no.Keys)
	assert.Equal(t, []string{"R", "F"}, rf.Keys)
	assert.Equal(t, int64(3), no.Count)
	assert.Equal(t, "61.00", res.Sum(no, res.SumIndex("l_quantity")).StringFixed(2))
	assert.Equal(t, "80460.99", res.Sum(no, res.SumIndex("l_extendedprice")).StringFixed(2))
	assert.Equal(t, "0.08", res.Avg(no, res.SumIndex("l_discount")).StringFixed(2))
	assert.Equal(t, "47.00", res.Avg(rf, res.SumIndex("l_quantity")).StringFixed(2))
}
