package query

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"offsetdb/internal/engine"
	"offsetdb/internal/tpch"
	"offsetdb/internal/types"
)

// RevenueScale is the scale of OrderRevenue.Revenue: price (scale 2) times
// one minus discount (scale 2).
const RevenueScale = 4

// OrderRevenue is one row of the shipping priority query.
type OrderRevenue struct {
	OrderKey     types.Integer
	OrderDate    types.Date
	ShipPriority types.Integer
	Revenue      int64
}

func (o OrderRevenue) RevenueDecimal() decimal.Decimal {
	return types.Numeric(o.Revenue).Decimal(RevenueScale)
}

// adjacency is a join index paired with its _vals array.
type adjacency struct {
	bounds, vals []uint32
}

func (a adjacency) matches(row uint32) []uint32 {
	lo, hi := engine.Matches(a.bounds, int(row))
	return a.vals[lo:hi]
}

func (e *Executor) adjacency(name string) (adjacency, error) {
	bounds, err := e.db.Index(name)
	if err != nil {
		return adjacency{}, err
	}
	vals, err := e.db.Index(name + "_vals")
	if err != nil {
		return adjacency{}, err
	}
	return adjacency{bounds: bounds, vals: vals}, nil
}

// ShippingPriority returns the limit orders with the highest revenue among
// orders placed before date by customers of segment, counting only lineitems
// shipped after date. Ties are broken by order date. Both joins walk the
// cust_ord and ord_li indexes; no hash table is probed.
func (e *Executor) ShippingPriority(ctx context.Context, segment, date string, limit int) ([]OrderRevenue, error) {
	start := time.Now()
	_, log := e.begin("shipping_priority")

	cust, err := e.db.Relation(tpch.Customer)
	if err != nil {
		return nil, err
	}
	ord, err := e.db.Relation(tpch.Orders)
	if err != nil {
		return nil, err
	}
	li, err := e.db.Relation(tpch.Lineitem)
	if err != nil {
		return nil, err
	}
	custOrd, err := e.adjacency(tpch.CustOrd)
	if err != nil {
		return nil, err
	}
	ordLi, err := e.adjacency(tpch.OrdLi)
	if err != nil {
		return nil, err
	}

	seg, err := dictColumnOf(cust, "c_mktsegment")
	if err != nil {
		return nil, err
	}
	// A segment wider than the column matches no customer.
	segEntry, found := 0, false
	if len(segment) <= seg.col.Descriptor().Size {
		if segEntry, found, err = seg.col.Find([]byte(segment)); err != nil {
			return nil, xerrors.Errorf("segment %q: %w", segment, err)
		}
	}
	if !found {
		log.Info("segment has no customers", zap.String("segment", segment))
		return []OrderRevenue{}, nil
	}

	orderDate, err := engine.Dict[types.Date](ord, "o_orderdate")
	if err != nil {
		return nil, err
	}
	orderKey, err := engine.Dict[types.Integer](ord, "o_orderkey")
	if err != nil {
		return nil, err
	}
	shipPriority, err := engine.Dict[types.Integer](ord, "o_shippriority")
	if err != nil {
		return nil, err
	}
	shipDate, err := engine.Dict[types.Date](li, "l_shipdate")
	if err != nil {
		return nil, err
	}
	price, err := engine.Dict[types.Numeric](li, "l_extendedprice")
	if err != nil {
		return nil, err
	}
	discount, err := engine.Dict[types.Numeric](li, "l_discount")
	if err != nil {
		return nil, err
	}

	// Orders qualify below orderBefore, lineitems from shipAfter on.
	orderBefore, err := orderDate.LowerBound([]byte(date))
	if err != nil {
		return nil, xerrors.Errorf("date %q: %w", date, err)
	}
	shipAfter, exact, err := shipDate.Find([]byte(date))
	if err != nil {
		return nil, xerrors.Errorf("date %q: %w", date, err)
	}
	if exact {
		shipAfter++
	}

	var pos [6][]uint32
	for i, c := range []struct {
		rel  *engine.Relation
		name string
	}{
		{ord, "o_orderdate"}, {ord, "o_orderkey"}, {ord, "o_shippriority"},
		{li, "l_shipdate"}, {li, "l_extendedprice"}, {li, "l_discount"},
	} {
		if pos[i], err = e.columnPositions(c.rel, c.name); err != nil {
			return nil, err
		}
	}
	odPos, okPos, spPos, sdPos, pPos, dPos := pos[0], pos[1], pos[2], pos[3], pos[4], pos[5]

	custRows := seg.rows(segEntry)
	ms := split(len(custRows), e.cfg.VectorSize, nil)
	parts := make([][]OrderRevenue, len(ms))
	err = e.run(ctx, ms, func(slot int, m morsel) {
		var out []OrderRevenue
		for _, c := range custRows[m.lo:m.hi] {
			for _, o := range custOrd.matches(c) {
				if int(odPos[o]) >= orderBefore {
					continue
				}
				var revenue int64
				shipped := false
				for _, l := range ordLi.matches(o) {
					if int(sdPos[l]) < shipAfter {
						continue
					}
					shipped = true
					revenue += int64(price.Value(int(pPos[l]))) * (100 - int64(discount.Value(int(dPos[l]))))
				}
				if !shipped {
					continue
				}
				out = append(out, OrderRevenue{
					OrderKey:     orderKey.Value(int(okPos[o])),
					OrderDate:    orderDate.Value(int(odPos[o])),
					ShipPriority: shipPriority.Value(int(spPos[o])),
					Revenue:      revenue,
				})
			}
		}
		parts[slot] = out
	})
	if err != nil {
		return nil, err
	}

	rows := slices.Concat(parts...)
	slices.SortFunc(rows, func(a, b OrderRevenue) int {
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		if c := cmp.Compare(a.OrderDate, b.OrderDate); c != 0 {
			return c
		}
		return cmp.Compare(a.OrderKey, b.OrderKey)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []OrderRevenue{}
	}

	elapsed := time.Since(start)
	e.metrics.ObserveQuery("shipping_priority", elapsed)
	log.Info("shipping priority finished",
		zap.String("segment", segment),
		zap.String("date", date),
		zap.Int("customers", len(custRows)),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", elapsed))
	return rows, nil
}
