package engine

import (
	"bytes"

	"github.com/zeebo/xxh3"

	"offsetdb/internal/types"
)

// BuildIndex joins from.fromCol with to.toCol once and stores the result as
// the adjacency list (name, name+"_vals"): for every row i of from,
// vals[bounds[i-1]:bounds[i]] are the rows of to with an equal key, in
// ascending row order.
//
// The hash table is built over the unique keys of to, and probed once per
// unique key of from.
func BuildIndex(db *Database, name, from, fromCol, to, toCol string) error {
	fromRel, err := db.Relation(from)
	if err != nil {
		return err
	}
	toRel, err := db.Relation(to)
	if err != nil {
		return err
	}
	fc, err := fromRel.Column(fromCol)
	if err != nil {
		return err
	}
	fri, err := fromRel.RowIndex(fromCol)
	if err != nil {
		return err
	}
	tc, err := toRel.Column(toCol)
	if err != nil {
		return err
	}
	tri, err := toRel.RowIndex(toCol)
	if err != nil {
		return err
	}
	if fd, td := fc.Descriptor(), tc.Descriptor(); fd.Logical != td.Logical || fd.RecordSize() != td.RecordSize() {
		return &types.ConfigurationError{Logical: fd.Logical, Size: fd.Size, Reason: "join key types differ: " + fd.String() + " vs " + td.String()}
	}

	table := newKeyTable(tc)
	// matchOf[i] is the entry of to matching entry i of from, or -1.
	matchOf := make([]int32, fc.Len())
	var key []byte
	for i := range matchOf {
		key = fc.AppendKey(key[:0], i)
		matchOf[i] = table.lookup(key)
	}

	pos := Positions(fc, fri)
	bounds := make([]uint32, len(pos))
	vals := make([]uint32, 0, len(tri))
	for row, p := range pos {
		if m := matchOf[p]; m >= 0 {
			lo, hi := tc.Range(int(m))
			vals = append(vals, tri[lo:hi]...)
		}
		bounds[row] = uint32(len(vals))
	}
	db.SetIndex(name, bounds, vals)
	return nil
}

// keyTable is a chained hash table from encoded key to dictionary entry.
type keyTable struct {
	keySize int
	keys    []byte
	heads   []int32
	next    []int32
	mask    uint64
}

func newKeyTable(col Column) *keyTable {
	n := col.Len()
	buckets := 1
	for buckets < 2*n {
		buckets <<= 1
	}
	t := &keyTable{
		heads: make([]int32, buckets),
		next:  make([]int32, n),
		mask:  uint64(buckets - 1),
	}
	for i := range t.heads {
		t.heads[i] = -1
	}
	for i := 0; i < n; i++ {
		t.keys = col.AppendKey(t.keys, i)
	}
	if n > 0 {
		t.keySize = len(t.keys) / n
	}
	for i := 0; i < n; i++ {
		b := xxh3.Hash(t.key(i)) & t.mask
		t.next[i] = t.heads[b]
		t.heads[b] = int32(i)
	}
	return t
}

func (t *keyTable) key(i int) []byte {
	return t.keys[i*t.keySize : (i+1)*t.keySize]
}

func (t *keyTable) lookup(key []byte) int32 {
	if len(t.next) == 0 {
		return -1
	}
	for i := t.heads[xxh3.Hash(key)&t.mask]; i >= 0; i = t.next[i] {
		if bytes.Equal(t.key(int(i)), key) {
			return i
		}
	}
	return -1
}
