package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"offsetdb/internal/engine"
	"offsetdb/internal/models"
	"offsetdb/internal/query"
	"offsetdb/internal/tpch"
)

func newImportCmd() *cobra.Command {
	var (
		rebuild bool
		tables  []string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Parse the source files and write the binary cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(v)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			start := time.Now()
			db := engine.NewDatabase()
			if err := tpch.Import(cmd.Context(), e.cfg.DataDir, db, tpch.Options{
				Tables:  tables,
				Rebuild: rebuild,
				Log:     e.log,
				Metrics: e.metrics,
			}); err != nil {
				return err
			}
			if err := validate(db); err != nil {
				return err
			}
			return e.out.stats(models.Stats(db), time.Since(start))
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "remove the binary cache first")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "import only these tables")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load every table and print tuple and unique value counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(v)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			start := time.Now()
			db, ex, err := open(cmd.Context(), e)
			if err != nil {
				return err
			}
			ex.Close()
			return e.out.stats(models.Stats(db), time.Since(start))
		},
	}
}

func newPricingCmd() *cobra.Command {
	var (
		before string
		repeat int
	)
	cmd := &cobra.Command{
		Use:   "q1",
		Short: "Pricing summary: lineitem grouped by return flag and line status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkRepeat(repeat); err != nil {
				return err
			}
			e, err := setup(v)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			db, ex, err := open(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer ex.Close()
			li, err := db.Relation(tpch.Lineitem)
			if err != nil {
				return err
			}

			var res *query.Result
			for i := 0; i < repeat; i++ {
				start := time.Now()
				if res, err = ex.PricingSummary(cmd.Context(), before); err != nil {
					return err
				}
				e.out.timing("q1", i+1, li.NrTuples, time.Since(start))
			}
			if e.out.json {
				return e.out.emit(models.FromResult(res))
			}
			header := append([]string{}, res.Keys...)
			header = append(header, "count")
			for _, s := range res.Sums {
				header = append(header, "sum_"+s.Name, "avg_"+s.Name)
			}
			rows := make([][]string, 0, len(res.Groups))
			for _, g := range res.Groups {
				row := append([]string{}, g.Keys...)
				row = append(row, e.out.number(g.Count))
				for i, s := range res.Sums {
					row = append(row, res.Sum(g, i).StringFixed(int32(s.Scale)), res.Avg(g, i).StringFixed(int32(s.Scale)+2))
				}
				rows = append(rows, row)
			}
			return e.out.table(header, rows)
		},
	}
	cmd.Flags().StringVar(&before, "before", query.PricingBoundary, "only rows shipped before this date")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "number of timed runs")
	return cmd
}

func newShippingCmd() *cobra.Command {
	var (
		segment string
		date    string
		limit   int
		repeat  int
	)
	cmd := &cobra.Command{
		Use:   "q3",
		Short: "Shipping priority: unshipped orders with the highest revenue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkRepeat(repeat); err != nil {
				return err
			}
			e, err := setup(v)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			db, ex, err := open(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer ex.Close()
			tuples := 0
			for _, r := range db.Relations() {
				tuples += r.NrTuples
			}

			var rows []query.OrderRevenue
			for i := 0; i < repeat; i++ {
				start := time.Now()
				if rows, err = ex.ShippingPriority(cmd.Context(), segment, date, limit); err != nil {
					return err
				}
				e.out.timing("q3", i+1, tuples, time.Since(start))
			}
			out := models.FromOrders(rows)
			if e.out.json {
				return e.out.emit(out)
			}
			table := make([][]string, 0, len(out))
			for _, r := range out {
				table = append(table, []string{
					strconv.Itoa(int(r.OrderKey)), r.Revenue, r.OrderDate, strconv.Itoa(int(r.ShipPriority)),
				})
			}
			return e.out.table([]string{"l_orderkey", "revenue", "o_orderdate", "o_shippriority"}, table)
		},
	}
	cmd.Flags().StringVar(&segment, "segment", "BUILDING", "customer market segment")
	cmd.Flags().StringVar(&date, "date", "1995-03-15", "orders before and lineitems shipped after this date")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of orders, 0 for all")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "number of timed runs")
	return cmd
}

func checkRepeat(repeat int) error {
	if repeat < 1 {
		return xerrors.Errorf("--repeat must be at least 1, got %d", repeat)
	}
	return nil
}

// open imports every table, from the cache when possible.
func open(ctx context.Context, e *env) (*engine.Database, *query.Executor, error) {
	db := engine.NewDatabase()
	if err := tpch.Import(ctx, e.cfg.DataDir, db, tpch.Options{Log: e.log, Metrics: e.metrics}); err != nil {
		return nil, nil, err
	}
	ex, err := query.NewExecutor(db, e.cfg, e.log, e.metrics)
	if err != nil {
		return nil, nil, err
	}
	return db, ex, nil
}

func validate(db *engine.Database) error {
	for _, r := range db.Relations() {
		if err := r.Validate(); err != nil {
			return xerrors.Errorf("validating %s: %w", r.Name, err)
		}
	}
	return nil
}
