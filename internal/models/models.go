package models

import (
	"offsetdb/internal/engine"
	"offsetdb/internal/query"
)

type RelationStats struct {
	Name    string        `json:"name"`
	File    string        `json:"file"`
	Tuples  int           `json:"tuples"`
	Columns []ColumnStats `json:"columns"`
}

type ColumnStats struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Unique int    `json:"unique_values"`
}

type GroupRow struct {
	Keys     map[string]string `json:"keys"`
	Count    int64             `json:"count"`
	Sums     map[string]string `json:"sums"`
	Averages map[string]string `json:"averages"`
}

type GroupResult struct {
	RunID  string     `json:"run_id"`
	Groups []GroupRow `json:"groups"`
}

type OrderRevenue struct {
	OrderKey     int32  `json:"l_orderkey"`
	Revenue      string `json:"revenue"`
	OrderDate    string `json:"o_orderdate"`
	ShipPriority int32  `json:"o_shippriority"`
}

// Stats summarizes every loaded relation.
func Stats(db *engine.Database) []RelationStats {
	rels := db.Relations()
	out := make([]RelationStats, 0, len(rels))
	for _, r := range rels {
		rs := RelationStats{Name: r.Name, File: r.File, Tuples: r.NrTuples}
		for _, name := range r.Columns() {
			col, err := r.Column(name)
			if err != nil {
				continue
			}
			rs.Columns = append(rs.Columns, ColumnStats{Name: name, Type: col.Descriptor().String(), Unique: col.Len()})
		}
		out = append(out, rs)
	}
	return out
}

func FromResult(res *query.Result) GroupResult {
	out := GroupResult{RunID: res.RunID, Groups: make([]GroupRow, 0, len(res.Groups))}
	for _, g := range res.Groups {
		row := GroupRow{
			Keys:     make(map[string]string, len(res.Keys)),
			Count:    g.Count,
			Sums:     make(map[string]string, len(res.Sums)),
			Averages: make(map[string]string, len(res.Sums)),
		}
		for i, k := range res.Keys {
			row.Keys[k] = g.Keys[i]
		}
		for i, s := range res.Sums {
			row.Sums[s.Name] = res.Sum(g, i).StringFixed(int32(s.Scale))
			row.Averages[s.Name] = res.Avg(g, i).StringFixed(int32(s.Scale) + 2)
		}
		out.Groups = append(out.Groups, row)
	}
	return out
}

func FromOrders(rows []query.OrderRevenue) []OrderRevenue {
	out := make([]OrderRevenue, 0, len(rows))
	for _, r := range rows {
		out = append(out, OrderRevenue{
			OrderKey:     int32(r.OrderKey),
			Revenue:      r.RevenueDecimal().StringFixed(query.RevenueScale),
			OrderDate:    r.OrderDate.String(),
			ShipPriority: int32(r.ShipPriority),
		})
	}
	return out
}
