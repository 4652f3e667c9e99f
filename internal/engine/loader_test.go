package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offsetdb/internal/types"
)

func lineitemColumns(t *testing.T) []ColumnConfig {
	t.Helper()
	char1, err := types.CharType(1)
	require.NoError(t, err)
	num, err := types.NumericType(12, 2)
	require.NoError(t, err)
	return []ColumnConfig{
		{Name: "l_returnflag", Type: char1},
		{Name: "l_linestatus", Type: char1},
		{Name: "l_shipdate", Type: types.DateType()},
		{Name: "l_quantity", Type: num},
	}
}

const lineitemSource = `A|O|1998-01-01|5|
A|O|1998-02-01|3|
B|F|1997-01-01|10|
A|F|1998-01-01|7|
B|O|1998-01-01|2|
A|O|1990-01-01|1|
`

func writeSource(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file+".tbl"), []byte(content), 0o644))
}

func TestImportBuildsDictionaryAndRowIndex(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lineitem", lineitemSource)

	db := NewDatabase()
	rel, err := NewImporter(dir, nil, nil).Import(context.Background(), db, "lineitem", "lineitem", lineitemColumns(t))
	require.NoError(t, err)
	require.Equal(t, 6, rel.NrTuples)
	require.NoError(t, rel.Validate())

	flags, err := Dict[types.Char](rel, "l_returnflag")
	require.NoError(t, err)
	require.Len(t, flags.Entries, 2)
	assert.Equal(t, Entry[types.Char]{Value: "A", Offset: 4}, flags.Entries[0])
	assert.Equal(t, Entry[types.Char]{Value: "B", Offset: 6}, flags.Entries[1])

	ri, err := rel.RowIndex("l_returnflag")
	require.NoError(t, err)
	assert.Equal(t, RowIndex{0, 1, 3, 5, 2, 4}, ri)
	assert.Equal(t, []uint32{2, 4}, flags.Rows(ri, 1))

	qty, err := Dict[types.Numeric](rel, "l_quantity")
	require.NoError(t, err)
	assert.Equal(t, types.Numeric(100), qty.Entries[0].Value)
	assert.Equal(t, types.Numeric(1000), qty.Entries[len(qty.Entries)-1].Value)

	got, err := db.Relation("lineitem")
	require.NoError(t, err)
	assert.Same(t, rel, got)
}

func TestImportFromCacheIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lineitem", lineitemSource)
	cols := lineitemColumns(t)

	cold, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	require.NoError(t, err)
	for _, c := range cols {
		assert.FileExists(t, filepath.Join(dir, CacheDirName, "lineitem_"+c.Name))
		assert.FileExists(t, filepath.Join(dir, CacheDirName, "lineitem_"+c.Name+"_rowIndex"))
	}

	// The source is no longer needed once every column is cached.
	require.NoError(t, os.Remove(filepath.Join(dir, "lineitem.tbl")))
	warm, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	require.NoError(t, err)

	assert.Equal(t, cold.NrTuples, warm.NrTuples)
	for _, c := range cols {
		assert.Equal(t, cold.columns[c.Name], warm.columns[c.Name], c.Name)
		assert.Equal(t, cold.rowIndexes[c.Name], warm.rowIndexes[c.Name], c.Name)
	}
}

func TestPartialCacheIsRebuilt(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lineitem", lineitemSource)
	cols := lineitemColumns(t)

	_, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, CacheDirName, "lineitem_l_quantity_rowIndex")))

	rel, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	require.NoError(t, err)
	assert.Equal(t, 6, rel.NrTuples)
	assert.FileExists(t, filepath.Join(dir, CacheDirName, "lineitem_l_quantity_rowIndex"))
}

func TestImportMissingSource(t *testing.T) {
	_, err := NewImporter(t.TempDir(), nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", lineitemColumns(t))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open source", ioErr.Op)
}

func TestImportCacheDirNotCreatable(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the cache directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(dir, CacheDirName), nil, 0o644))
	_, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", lineitemColumns(t))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "create cache dir", ioErr.Op)
}

func TestImportRejectsMismatchedRowIndexes(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lineitem", lineitemSource)
	cols := lineitemColumns(t)
	_, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	require.NoError(t, err)

	// Replace two columns with a consistent but shorter encoding.
	short, err := BuildRelation("lineitem", cols, []string{"A|O|1998-01-01|5"})
	require.NoError(t, err)
	cacheDir := filepath.Join(dir, CacheDirName)
	for _, name := range []string{"l_linestatus", "l_quantity"} {
		require.NoError(t, writeDictionary(dictionaryPath(cacheDir, "lineitem", name), short.columns[name]))
		require.NoError(t, writeRowIndex(rowIndexPath(cacheDir, "lineitem", name), short.rowIndexes[name]))
	}

	_, err = NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.Equal(t, "lineitem", consErr.Relation)
}

func TestImportDetectsTruncatedDictionary(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lineitem", lineitemSource)
	cols := lineitemColumns(t)
	_, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	require.NoError(t, err)

	path := filepath.Join(dir, CacheDirName, "lineitem_l_shipdate")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))

	_, err = NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.Equal(t, "l_shipdate", consErr.Column)
}

func TestImportRejectsEmptyDictionaryWithRows(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lineitem", lineitemSource)
	cols := lineitemColumns(t)
	_, err := NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	require.NoError(t, err)

	path := filepath.Join(dir, CacheDirName, "lineitem_l_quantity")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err = NewImporter(dir, nil, nil).Import(context.Background(), NewDatabase(), "lineitem", "lineitem", cols)
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.Equal(t, "l_quantity", consErr.Column)
	assert.Equal(t, "final offset does not match row index length", consErr.Reason)
}

func TestImportRejectsUnsupportedType(t *testing.T) {
	cols := []ColumnConfig{{Name: "c", Type: types.Descriptor{Logical: types.LogicalChar, Size: 3}}}
	_, err := NewImporter(t.TempDir(), nil, nil).Import(context.Background(), NewDatabase(), "r", "r", cols)
	var cfgErr *types.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

func TestParseReportsMalformedLine(t *testing.T) {
	_, err := BuildRelation("lineitem", lineitemColumns(t), []string{"A|O|1998-01-01|5", "A|O"})
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.Equal(t, 2, consErr.Line)

	_, err = BuildRelation("lineitem", lineitemColumns(t), []string{"A|O|not-a-date|5"})
	require.ErrorAs(t, err, &consErr)
	assert.Equal(t, "l_shipdate", consErr.Column)
}
