package tpch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"offsetdb/internal/engine"
	"offsetdb/internal/logging"
	"offsetdb/internal/metrics"
)

// Options tunes Import. The zero value imports every table and index.
type Options struct {
	// Tables restricts the import to these names. Indexes whose tables
	// are not all imported are skipped.
	Tables []string
	// Rebuild removes the binary cache before importing.
	Rebuild bool
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Import loads the schema from dir into db. Tables are imported
// concurrently, each by a single sequential parser; join indexes are built
// once all tables are present.
func Import(ctx context.Context, dir string, db *engine.Database, opts Options) error {
	log := logging.OrNop(opts.Log)
	start := time.Now()

	tables, err := selectTables(opts.Tables)
	if err != nil {
		return err
	}
	if opts.Rebuild {
		for _, t := range tables {
			if err := engine.ClearCache(dir, t.File, t.Columns); err != nil {
				return err
			}
		}
	}

	im := engine.NewImporter(dir, log, opts.Metrics)
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tables {
		g.Go(func() error {
			_, err := im.Import(gctx, db, t.Name, t.File, t.Columns)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	loaded := make(map[string]bool, len(tables))
	for _, t := range tables {
		loaded[t.Name] = true
	}
	for _, idx := range Indexes() {
		if !loaded[idx.From] || !loaded[idx.To] {
			continue
		}
		t := time.Now()
		if err := engine.BuildIndex(db, idx.Name, idx.From, idx.FromColumn, idx.To, idx.ToColumn); err != nil {
			return xerrors.Errorf("building index %s: %w", idx.Name, err)
		}
		log.Info("join index built", zap.String("index", idx.Name), zap.Duration("elapsed", time.Since(t)))
	}

	log.Info("import finished", zap.Int("tables", len(tables)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func selectTables(names []string) ([]Table, error) {
	if len(names) == 0 {
		return Tables(), nil
	}
	out := make([]Table, 0, len(names))
	for _, name := range names {
		t, ok := TableNamed(name)
		if !ok {
			return nil, &engine.LookupError{What: "relation", Name: name, Reason: "not part of the schema"}
		}
		out = append(out, t)
	}
	return out, nil
}
