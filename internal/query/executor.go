package query

import (
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"offsetdb/internal/config"
	"offsetdb/internal/engine"
	"offsetdb/internal/intersect"
	"offsetdb/internal/logging"
	"offsetdb/internal/metrics"
	"offsetdb/internal/sysutil"
)

// Executor runs queries over a loaded database. The database is read-only
// while queries run, so one Executor may serve concurrent queries.
type Executor struct {
	db      *engine.Database
	cfg     config.Config
	x       intersect.Intersector
	pool    *ants.Pool
	log     *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	positions map[string][]uint32
}

func NewExecutor(db *engine.Database, cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	x, err := intersect.New(cfg.UseSimdIntersection, cfg.LaneWidth)
	if err != nil {
		return nil, err
	}
	log = logging.OrNop(log)
	pool, err := ants.NewPool(cfg.Workers, ants.WithPanicHandler(func(v any) {
		log.Error("morsel worker panic", zap.Any("value", v))
	}))
	if err != nil {
		return nil, xerrors.Errorf("creating worker pool: %w", err)
	}
	log.Debug("executor ready",
		zap.Int("workers", cfg.Workers),
		zap.Int("lanes", x.Lanes()),
		zap.Int("vector_size", cfg.VectorSize))
	return &Executor{
		db:        db,
		cfg:       cfg,
		x:         x,
		pool:      pool,
		log:       log,
		metrics:   m,
		positions: make(map[string][]uint32),
	}, nil
}

// Close releases the worker pool.
func (e *Executor) Close() {
	e.pool.Release()
}

// begin drops OS caches when configured and returns a run ID for logging.
func (e *Executor) begin(name string) (string, *zap.Logger) {
	id := uuid.NewString()
	log := e.log.With(zap.String("query", name), zap.String("run_id", id))
	if e.cfg.ClearCaches {
		if err := sysutil.ClearOSCaches(); err != nil {
			log.Warn("clearing OS caches failed", zap.Error(err))
		}
	}
	return id, log
}

// columnPositions returns the row to dictionary position mapping of one
// column, computing it on first use.
func (e *Executor) columnPositions(rel *engine.Relation, name string) ([]uint32, error) {
	key := rel.Name + "." + name
	e.mu.Lock()
	defer e.mu.Unlock()
	if pos, ok := e.positions[key]; ok {
		return pos, nil
	}
	col, err := rel.Column(name)
	if err != nil {
		return nil, err
	}
	ri, err := rel.RowIndex(name)
	if err != nil {
		return nil, err
	}
	pos := engine.Positions(col, ri)
	e.positions[key] = pos
	return pos, nil
}
