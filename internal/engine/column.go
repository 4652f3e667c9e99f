package engine

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/google/btree"

	"offsetdb/internal/types"
)

// RowIndex holds a relation's row numbers grouped by the dictionary entry
// of one column, in ascending value order. Each entry's rows are sorted.
type RowIndex []uint32

// Entry is one unique value of a column. Offset is the number of rows
// covered by this entry and all entries before it, so the entry's rows are
// RowIndex[previous.Offset:Offset].
type Entry[T types.Value] struct {
	Value  T
	Offset uint32
}

// Column is the type-erased view of a dictionary column. Exactly one
// implementation exists per physical value type, see newDictionary.
type Column interface {
	Descriptor() types.Descriptor
	// Len is the number of unique values.
	Len() int
	Offset(i int) uint32
	// Range is the half-open row index range of entry i.
	Range(i int) (lo, hi uint32)
	Format(i int) string
	// LowerBound returns the first entry whose value is not less than the
	// parsed text.
	LowerBound(text []byte) (int, error)
	// Find returns the entry holding exactly the parsed text.
	Find(text []byte) (int, bool, error)
	// Number returns the raw integer value of Integer and Numeric entries.
	Number(i int) (int64, bool)
	// AppendKey appends the fixed-width encoding of entry i's value.
	AppendKey(dst []byte, i int) []byte

	recordSize() int
	appendRecords(dst []byte) []byte
	decodeRecords(src []byte) error
	newBuilder() columnBuilder
}

// Dictionary is a column of sorted unique values tagged with offsets.
type Dictionary[T types.Value] struct {
	codec   types.Codec[T]
	Entries []Entry[T]
}

// newDictionary is the single point mapping a type descriptor onto its
// physical representation.
func newDictionary(desc types.Descriptor) (Column, error) {
	switch desc.Logical {
	case types.LogicalInteger:
		return makeDictionary[types.Integer](desc)
	case types.LogicalDate:
		return makeDictionary[types.Date](desc)
	case types.LogicalNumeric:
		return makeDictionary[types.Numeric](desc)
	case types.LogicalChar:
		return makeDictionary[types.Char](desc)
	case types.LogicalVarchar:
		return makeDictionary[types.Varchar](desc)
	default:
		return nil, &types.ConfigurationError{Logical: desc.Logical, Reason: "unknown type"}
	}
}

func makeDictionary[T types.Value](desc types.Descriptor) (Column, error) {
	if _, err := types.Lookup(desc.Logical, desc.Size, desc.Precision); err != nil {
		return nil, err
	}
	codec, err := types.CodecFor[T](desc)
	if err != nil {
		return nil, err
	}
	return &Dictionary[T]{codec: codec}, nil
}

// NewDictionary builds a column directly from entries, for callers that
// already hold encoded data.
func NewDictionary[T types.Value](desc types.Descriptor, entries []Entry[T]) (*Dictionary[T], error) {
	codec, err := types.CodecFor[T](desc)
	if err != nil {
		return nil, err
	}
	return &Dictionary[T]{codec: codec, Entries: entries}, nil
}

func (d *Dictionary[T]) Descriptor() types.Descriptor { return d.codec.Descriptor() }

func (d *Dictionary[T]) Len() int { return len(d.Entries) }

func (d *Dictionary[T]) Offset(i int) uint32 { return d.Entries[i].Offset }

func (d *Dictionary[T]) Range(i int) (lo, hi uint32) {
	if i > 0 {
		lo = d.Entries[i-1].Offset
	}
	return lo, d.Entries[i].Offset
}

func (d *Dictionary[T]) Value(i int) T { return d.Entries[i].Value }

func (d *Dictionary[T]) Format(i int) string { return d.codec.Format(d.Entries[i].Value) }

// Search returns the first entry whose value is not less than v.
func (d *Dictionary[T]) Search(v T) int {
	i, _ := slices.BinarySearchFunc(d.Entries, v, func(e Entry[T], t T) int {
		return cmp.Compare(e.Value, t)
	})
	return i
}

// Rows returns the row numbers holding entry i's value.
func (d *Dictionary[T]) Rows(ri RowIndex, i int) []uint32 {
	lo, hi := d.Range(i)
	return ri[lo:hi]
}

func (d *Dictionary[T]) LowerBound(text []byte) (int, error) {
	v, err := d.codec.Parse(text)
	if err != nil {
		return 0, err
	}
	return d.Search(v), nil
}

func (d *Dictionary[T]) Find(text []byte) (int, bool, error) {
	v, err := d.codec.Parse(text)
	if err != nil {
		return 0, false, err
	}
	i := d.Search(v)
	return i, i < len(d.Entries) && d.Entries[i].Value == v, nil
}

func (d *Dictionary[T]) Number(i int) (int64, bool) {
	switch v := any(d.Entries[i].Value).(type) {
	case types.Integer:
		return int64(v), true
	case types.Numeric:
		return int64(v), true
	default:
		return 0, false
	}
}

func (d *Dictionary[T]) AppendKey(dst []byte, i int) []byte {
	n := len(dst)
	dst = slices.Grow(dst, d.codec.Size())[:n+d.codec.Size()]
	d.codec.Put(dst[n:], d.Entries[i].Value)
	return dst
}

func (d *Dictionary[T]) recordSize() int { return d.codec.Size() + 4 }

func (d *Dictionary[T]) appendRecords(dst []byte) []byte {
	size := d.codec.Size()
	for _, e := range d.Entries {
		n := len(dst)
		dst = slices.Grow(dst, size+4)[:n+size+4]
		d.codec.Put(dst[n:], e.Value)
		binary.LittleEndian.PutUint32(dst[n+size:], e.Offset)
	}
	return dst
}

func (d *Dictionary[T]) decodeRecords(src []byte) error {
	rec := d.recordSize()
	if len(src)%rec != 0 {
		return fmt.Errorf("%d bytes is not a multiple of the %d byte record", len(src), rec)
	}
	size := d.codec.Size()
	d.Entries = make([]Entry[T], 0, len(src)/rec)
	for off := 0; off < len(src); off += rec {
		d.Entries = append(d.Entries, Entry[T]{
			Value:  d.codec.Get(src[off:]),
			Offset: binary.LittleEndian.Uint32(src[off+size:]),
		})
	}
	return nil
}

// columnBuilder collects (value, row) pairs of one column while a source
// file is parsed and turns them into a dictionary and row index.
type columnBuilder interface {
	add(field []byte, row uint32) error
	build() (Column, RowIndex)
}

type bucket[T types.Value] struct {
	value T
	rows  []uint32
}

type dictionaryBuilder[T types.Value] struct {
	codec types.Codec[T]
	tree  *btree.BTreeG[*bucket[T]]
	probe bucket[T]
	rows  int
}

func (d *Dictionary[T]) newBuilder() columnBuilder {
	return &dictionaryBuilder[T]{
		codec: d.codec,
		tree: btree.NewG[*bucket[T]](32, func(a, b *bucket[T]) bool {
			return a.value < b.value
		}),
	}
}

func (b *dictionaryBuilder[T]) add(field []byte, row uint32) error {
	v, err := b.codec.Parse(field)
	if err != nil {
		return err
	}
	b.probe.value = v
	if found, ok := b.tree.Get(&b.probe); ok {
		found.rows = append(found.rows, row)
	} else {
		b.tree.ReplaceOrInsert(&bucket[T]{value: v, rows: []uint32{row}})
	}
	b.rows++
	return nil
}

// build walks the unique values in ascending order, emitting one entry per
// value whose offset closes the value's rows in the row index.
func (b *dictionaryBuilder[T]) build() (Column, RowIndex) {
	dict := &Dictionary[T]{codec: b.codec, Entries: make([]Entry[T], 0, b.tree.Len())}
	ri := make(RowIndex, 0, b.rows)
	b.tree.Ascend(func(bk *bucket[T]) bool {
		ri = append(ri, bk.rows...)
		dict.Entries = append(dict.Entries, Entry[T]{Value: bk.value, Offset: uint32(len(ri))})
		return true
	})
	return dict, ri
}

// Positions maps every row number to the dictionary entry holding its value.
func Positions(col Column, ri RowIndex) []uint32 {
	pos := make([]uint32, len(ri))
	for i := 0; i < col.Len(); i++ {
		lo, hi := col.Range(i)
		for _, row := range ri[lo:hi] {
			pos[row] = uint32(i)
		}
	}
	return pos
}
