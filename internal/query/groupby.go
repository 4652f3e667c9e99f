package query

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"offsetdb/internal/engine"
	"offsetdb/internal/tpch"
	"offsetdb/internal/types"
)

// countStrategyMaxValues is the largest dictionary for which sums are
// accumulated as value times match count. Larger dictionaries are gathered
// row by row through the column's positions.
const countStrategyMaxValues = 64

// GroupBySpec describes a group-by over one relation: rows whose Predicate
// value is less than Before, grouped by the GroupBy columns, with Sums over
// Integer or Numeric columns. An empty Predicate selects every row.
type GroupBySpec struct {
	Name      string
	Relation  string
	Predicate string
	Before    string
	GroupBy   []string
	Sums      []string
}

type dictColumn struct {
	name string
	col  engine.Column
	ri   engine.RowIndex
}

func (c dictColumn) rows(i int) []uint32 {
	lo, hi := c.col.Range(i)
	return c.ri[lo:hi]
}

type sumColumn struct {
	dictColumn
	values    []int64
	positions []uint32 // nil when the count strategy is used
	scale     int
}

// groupSet is one combination of grouping entries and the rows holding it.
type groupSet struct {
	keys []int
	rows []uint32
}

// partial is one morsel's accumulators, flattened by group set.
type partial struct {
	counts []int64
	sums   []int64 // [set*len(sums)+sum]
}

// GroupBy evaluates the group-by without hashing rows: the predicate's
// qualifying entries are split into morsels, and each morsel intersects its
// rows with the precomputed row set of every combination of grouping values.
// Output groups have no defined order.
func (e *Executor) GroupBy(ctx context.Context, spec GroupBySpec) (*Result, error) {
	start := time.Now()
	if spec.Name == "" {
		spec.Name = "group_by"
	}
	runID, log := e.begin(spec.Name)
	if len(spec.GroupBy) == 0 {
		return nil, xerrors.New("group by needs at least one column")
	}

	rel, err := e.db.Relation(spec.Relation)
	if err != nil {
		return nil, err
	}
	groupCols := make([]dictColumn, len(spec.GroupBy))
	for i, name := range spec.GroupBy {
		if groupCols[i], err = dictColumnOf(rel, name); err != nil {
			return nil, err
		}
	}
	sums := make([]sumColumn, len(spec.Sums))
	for i, name := range spec.Sums {
		if sums[i], err = e.sumColumnOf(rel, name); err != nil {
			return nil, err
		}
	}

	sets, err := e.groupSets(ctx, groupCols)
	if err != nil {
		return nil, err
	}

	var partials []partial
	if spec.Predicate == "" {
		partials, err = e.accumulateSets(ctx, sets, sums)
	} else {
		partials, err = e.accumulatePredicate(ctx, rel, spec, sets, sums)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, Keys: spec.GroupBy}
	for _, s := range sums {
		res.Sums = append(res.Sums, SumColumn{Name: s.name, Scale: s.scale})
	}
	total := newPartial(len(sets), len(sums))
	for _, p := range partials {
		total.merge(p)
	}
	for si, set := range sets {
		if total.counts[si] == 0 {
			continue
		}
		g := Group{Keys: make([]string, len(set.keys)), Count: total.counts[si]}
		for k, entry := range set.keys {
			g.Keys[k] = groupCols[k].col.Format(entry)
		}
		g.Sums = append([]int64(nil), total.sums[si*len(sums):(si+1)*len(sums)]...)
		res.Groups = append(res.Groups, g)
	}

	elapsed := time.Since(start)
	e.metrics.ObserveQuery(spec.Name, elapsed)
	log.Info("group by finished",
		zap.String("relation", spec.Relation),
		zap.Int("groups", len(res.Groups)),
		zap.Int("morsels", len(partials)),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

func dictColumnOf(rel *engine.Relation, name string) (dictColumn, error) {
	col, err := rel.Column(name)
	if err != nil {
		return dictColumn{}, err
	}
	ri, err := rel.RowIndex(name)
	if err != nil {
		return dictColumn{}, err
	}
	return dictColumn{name: name, col: col, ri: ri}, nil
}

func (e *Executor) sumColumnOf(rel *engine.Relation, name string) (sumColumn, error) {
	dc, err := dictColumnOf(rel, name)
	if err != nil {
		return sumColumn{}, err
	}
	s := sumColumn{dictColumn: dc, values: make([]int64, dc.col.Len())}
	for i := range s.values {
		v, ok := dc.col.Number(i)
		if !ok {
			return sumColumn{}, &engine.LookupError{What: "column", Name: name, Relation: rel.Name, Reason: "cannot sum " + dc.col.Descriptor().String()}
		}
		s.values[i] = v
	}
	if d := dc.col.Descriptor(); d.Logical == types.LogicalNumeric {
		s.scale = d.Precision
	}
	if dc.col.Len() > countStrategyMaxValues {
		if s.positions, err = e.columnPositions(rel, name); err != nil {
			return sumColumn{}, err
		}
	}
	return s, nil
}

// groupSets intersects the row ranges of every combination of grouping
// entries, one morsel per entry of the first grouping column. Empty
// combinations are dropped.
func (e *Executor) groupSets(ctx context.Context, cols []dictColumn) ([]groupSet, error) {
	first := cols[0]
	slots := make([][]groupSet, first.col.Len())
	err := e.run(ctx, split(first.col.Len(), 1, nil), func(_ int, m morsel) {
		for i := m.lo; i < m.hi; i++ {
			var out []groupSet
			var walk func(level int, keys []int, rows []uint32)
			walk = func(level int, keys []int, rows []uint32) {
				if len(rows) == 0 {
					return
				}
				if level == len(cols) {
					out = append(out, groupSet{keys: append([]int(nil), keys...), rows: rows})
					return
				}
				for j := 0; j < cols[level].col.Len(); j++ {
					next := e.x.IntersectInto(nil, rows, cols[level].rows(j))
					walk(level+1, append(keys, j), next)
				}
			}
			walk(1, []int{i}, first.rows(i))
			slots[i] = out
		}
	})
	if err != nil {
		return nil, err
	}
	var sets []groupSet
	for _, s := range slots {
		sets = append(sets, s...)
	}
	return sets, nil
}

// accumulatePredicate splits the qualifying predicate entries into morsels of
// at least VectorSize rows. Every morsel owns one partial.
func (e *Executor) accumulatePredicate(ctx context.Context, rel *engine.Relation, spec GroupBySpec, sets []groupSet, sums []sumColumn) ([]partial, error) {
	pred, err := dictColumnOf(rel, spec.Predicate)
	if err != nil {
		return nil, err
	}
	bound, err := pred.col.LowerBound([]byte(spec.Before))
	if err != nil {
		return nil, xerrors.Errorf("predicate %s < %q: %w", spec.Predicate, spec.Before, err)
	}
	ms := split(bound, e.cfg.VectorSize, func(i int) int {
		lo, hi := pred.col.Range(i)
		return int(hi - lo)
	})
	partials := make([]partial, len(ms))
	err = e.run(ctx, ms, func(slot int, m morsel) {
		p := newPartial(len(sets), len(sums))
		var buf []uint32
		for i := m.lo; i < m.hi; i++ {
			predRows := pred.rows(i)
			for si, set := range sets {
				buf = e.x.IntersectInto(buf, predRows, set.rows)
				p.add(e, si, buf, sums)
			}
		}
		partials[slot] = p
	})
	return partials, err
}

// accumulateSets aggregates each group set as a whole, one morsel per set.
func (e *Executor) accumulateSets(ctx context.Context, sets []groupSet, sums []sumColumn) ([]partial, error) {
	partials := make([]partial, len(sets))
	err := e.run(ctx, split(len(sets), 1, nil), func(slot int, m morsel) {
		p := newPartial(len(sets), len(sums))
		for si := m.lo; si < m.hi; si++ {
			p.add(e, si, sets[si].rows, sums)
		}
		partials[slot] = p
	})
	return partials, err
}

func newPartial(sets, sums int) partial {
	return partial{counts: make([]int64, sets), sums: make([]int64, sets*sums)}
}

// add folds the sorted rows of one group set into the accumulators.
func (p partial) add(e *Executor, set int, rows []uint32, sums []sumColumn) {
	if len(rows) == 0 {
		return
	}
	p.counts[set] += int64(len(rows))
	base := set * len(sums)
	for k, s := range sums {
		var acc int64
		if s.positions == nil {
			for u, v := range s.values {
				if n := e.x.CountMatches(rows, s.rows(u)); n > 0 {
					acc += int64(n) * v
				}
			}
		} else {
			for _, row := range rows {
				acc += s.values[s.positions[row]]
			}
		}
		p.sums[base+k] += acc
	}
}

func (p partial) merge(o partial) {
	if o.counts == nil {
		return
	}
	for i, c := range o.counts {
		p.counts[i] += c
	}
	for i, s := range o.sums {
		p.sums[i] += s
	}
}

// PricingBoundary is the default shipdate boundary of PricingSummary.
const PricingBoundary = "1998-09-02"

// PricingSummary groups lineitem by return flag and line status over rows
// shipped before the boundary, summing quantity, price and discount.
// Groups are sorted by their keys.
func (e *Executor) PricingSummary(ctx context.Context, before string) (*Result, error) {
	if before == "" {
		before = PricingBoundary
	}
	res, err := e.GroupBy(ctx, GroupBySpec{
		Name:      "pricing_summary",
		Relation:  tpch.Lineitem,
		Predicate: "l_shipdate",
		Before:    before,
		GroupBy:   []string{"l_returnflag", "l_linestatus"},
		Sums:      []string{"l_quantity", "l_extendedprice", "l_discount"},
	})
	if err != nil {
		return nil, err
	}
	res.Sort()
	return res, nil
}
