package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"offsetdb/internal/logging"
	"offsetdb/internal/metrics"
)

const fieldSep = '|'

// Importer builds relations from pipe-delimited source files in dir and
// keeps their binary encoding in dir/cached.
type Importer struct {
	dir     string
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewImporter(dir string, log *zap.Logger, m *metrics.Metrics) *Importer {
	return &Importer{dir: dir, log: logging.OrNop(log), metrics: m}
}

// Import loads relation name from the cache, or parses dir/file.tbl,
// encodes and caches it first when any column is missing from the cache.
// The relation is registered in db on success.
func (im *Importer) Import(ctx context.Context, db *Database, name, file string, cols []ColumnConfig) (*Relation, error) {
	start := time.Now()
	rel := NewRelation(name)
	rel.File = file
	for _, c := range cols {
		col, err := newDictionary(c.Type)
		if err != nil {
			return nil, xerrors.Errorf("column %s.%s: %w", name, c.Name, err)
		}
		rel.insert(c.Name, col, nil)
	}

	cacheDir := filepath.Join(im.dir, CacheDirName)
	if err := os.MkdirAll(cacheDir, 0o777); err != nil {
		return nil, &IOError{Op: "create cache dir", Path: cacheDir, Err: err}
	}

	hit := cached(cacheDir, file, cols)
	im.metrics.CacheLookup(name, hit)
	if !hit {
		im.log.Info("cache miss, parsing source", zap.String("relation", name))
		src := filepath.Join(im.dir, file+".tbl")
		f, err := os.Open(src)
		if err != nil {
			return nil, &IOError{Op: "open source", Path: src, Err: err}
		}
		built, err := parse(ctx, f, name, rel, cols)
		f.Close()
		if err != nil {
			return nil, err
		}
		if err := writeCache(cacheDir, file, built); err != nil {
			return nil, err
		}
	}

	if err := im.load(cacheDir, rel, cols); err != nil {
		return nil, err
	}
	db.Add(rel)

	elapsed := time.Since(start)
	im.metrics.ObserveImport(name, rel.NrTuples, elapsed)
	im.log.Info("relation loaded",
		zap.String("relation", name),
		zap.Bool("cached", hit),
		zap.Int("tuples", rel.NrTuples),
		zap.Int("columns", len(cols)),
		zap.Duration("elapsed", elapsed))
	return rel, nil
}

// BuildRelation runs the parse and encode stages over in-memory lines
// without touching the cache.
func BuildRelation(name string, cols []ColumnConfig, lines []string) (*Relation, error) {
	rel := NewRelation(name)
	for _, c := range cols {
		col, err := newDictionary(c.Type)
		if err != nil {
			return nil, xerrors.Errorf("column %s.%s: %w", name, c.Name, err)
		}
		rel.insert(c.Name, col, nil)
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	built, err := parse(context.Background(), &buf, name, rel, cols)
	if err != nil {
		return nil, err
	}
	for i, c := range cols {
		rel.insert(c.Name, built[i].col, built[i].ri)
	}
	if len(cols) > 0 {
		rel.NrTuples = len(built[0].ri)
	}
	return rel, nil
}

type encodedColumn struct {
	name string
	col  Column
	ri   RowIndex
}

// parse reads one record per line, feeding each configured field into its
// column builder, then encodes every column.
func parse(ctx context.Context, r io.Reader, name string, rel *Relation, cols []ColumnConfig) ([]encodedColumn, error) {
	builders := make([]columnBuilder, len(cols))
	for i, c := range cols {
		builders[i] = rel.columns[c.Name].newBuilder()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var row uint32
	line := 0
	for sc.Scan() {
		line++
		if line%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rest := bytes.TrimSuffix(sc.Bytes(), []byte{'\r'})
		if len(rest) == 0 {
			continue
		}
		for i, c := range cols {
			field, tail, found := bytes.Cut(rest, []byte{fieldSep})
			if !found && i < len(cols)-1 {
				return nil, &ConsistencyError{Relation: name, Column: c.Name, Line: line, Reason: "missing field"}
			}
			if err := builders[i].add(field, row); err != nil {
				return nil, &ConsistencyError{Relation: name, Column: c.Name, Line: line, Reason: "unparsable field", Err: err}
			}
			rest = tail
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Errorf("reading %s: %w", name, err)
	}

	out := make([]encodedColumn, len(cols))
	for i, c := range cols {
		col, ri := builders[i].build()
		out[i] = encodedColumn{name: c.Name, col: col, ri: ri}
	}
	return out, nil
}

func writeCache(cacheDir, file string, cols []encodedColumn) error {
	for _, c := range cols {
		if err := writeDictionary(dictionaryPath(cacheDir, file, c.name), c.col); err != nil {
			return err
		}
		if err := writeRowIndex(rowIndexPath(cacheDir, file, c.name), c.ri); err != nil {
			return err
		}
	}
	return nil
}

// load reads every column back from the cache. Row index lengths are
// compared column to column starting from zero, and more than one change
// of length fails the import.
func (im *Importer) load(cacheDir string, rel *Relation, cols []ColumnConfig) error {
	size, diffs := 0, 0
	for _, c := range cols {
		ri, err := readRowIndex(rowIndexPath(cacheDir, rel.File, c.Name))
		if err != nil {
			return cacheError(rel.Name, c.Name, err)
		}
		col := rel.columns[c.Name]
		data, err := readFile(dictionaryPath(cacheDir, rel.File, c.Name))
		if err != nil {
			return err
		}
		if err := col.decodeRecords(data); err != nil {
			return &ConsistencyError{Relation: rel.Name, Column: c.Name, Reason: "truncated dictionary", Err: err}
		}
		end := 0
		if n := col.Len(); n > 0 {
			end = int(col.Offset(n - 1))
		}
		if end != len(ri) {
			return &ConsistencyError{Relation: rel.Name, Column: c.Name, Reason: "final offset does not match row index length"}
		}
		rel.insert(c.Name, col, ri)

		old := size
		size = len(ri)
		if old != size {
			diffs++
		}
	}
	if diffs > 1 {
		return &ConsistencyError{Relation: rel.Name, Reason: "columns differ in size"}
	}
	rel.NrTuples = size
	return nil
}

func cacheError(relation, column string, err error) error {
	var ioErr *IOError
	if errors.As(err, &ioErr) || errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return &ConsistencyError{Relation: relation, Column: column, Reason: "truncated row index", Err: err}
}
