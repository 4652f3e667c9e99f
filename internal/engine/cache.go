package engine

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/multierr"
	"golang.org/x/exp/mmap"
)

// CacheDirName is created next to the source files.
const CacheDirName = "cached"

func dictionaryPath(cacheDir, file, column string) string {
	return filepath.Join(cacheDir, file+"_"+column)
}

func rowIndexPath(cacheDir, file, column string) string {
	return filepath.Join(cacheDir, file+"_"+column+"_rowIndex")
}

// cached reports whether both binary files exist for every column. A
// partially cached relation counts as not cached.
func cached(cacheDir, file string, cols []ColumnConfig) bool {
	for _, c := range cols {
		for _, p := range []string{dictionaryPath(cacheDir, file, c.Name), rowIndexPath(cacheDir, file, c.Name)} {
			if _, err := os.Stat(p); err != nil {
				return false
			}
		}
	}
	return true
}

func writeDictionary(path string, col Column) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = col.appendRecords(buf.B[:0])
	return writeFile(path, buf.B)
}

func writeRowIndex(path string, ri RowIndex) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = slices.Grow(buf.B[:0], 4*len(ri))
	for _, row := range ri {
		buf.B = binary.LittleEndian.AppendUint32(buf.B, row)
	}
	return writeFile(path, buf.B)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &IOError{Op: "write cache", Path: path, Err: err}
	}
	return nil
}

// readFile maps a cache file and copies its contents out.
func readFile(path string) (data []byte, err error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open cache", Path: path, Err: err}
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()
	data = make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil {
		return nil, &IOError{Op: "read cache", Path: path, Err: err}
	}
	return data, nil
}

func readRowIndex(path string) (RowIndex, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, errors.New("row index file is not a whole number of uint32 records")
	}
	ri := make(RowIndex, len(data)/4)
	for i := range ri {
		ri[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return ri, nil
}

// ClearCache removes the cached files of one relation.
func ClearCache(dir, file string, cols []ColumnConfig) error {
	cacheDir := filepath.Join(dir, CacheDirName)
	var err error
	for _, c := range cols {
		for _, p := range []string{dictionaryPath(cacheDir, file, c.Name), rowIndexPath(cacheDir, file, c.Name)} {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = multierr.Append(err, &IOError{Op: "remove cache", Path: p, Err: rmErr})
			}
		}
	}
	return err
}
