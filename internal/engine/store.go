package engine

import (
	"slices"
	"sort"
	"sync"

	"offsetdb/internal/types"
)

// ColumnConfig names a column and its type. Used only while importing and
// (de)serializing the binary cache.
type ColumnConfig struct {
	Name string
	Type types.Descriptor
}

// Relation holds dictionary columns and their row indexes. All row indexes
// have length NrTuples and every dictionary's final offset equals NrTuples.
// A relation is read-only once loaded.
type Relation struct {
	Name     string
	File     string
	NrTuples int

	order      []string
	columns    map[string]Column
	rowIndexes map[string]RowIndex
}

func NewRelation(name string) *Relation {
	return &Relation{
		Name:       name,
		File:       name,
		columns:    make(map[string]Column),
		rowIndexes: make(map[string]RowIndex),
	}
}

func (r *Relation) insert(name string, col Column, ri RowIndex) {
	if _, ok := r.columns[name]; !ok {
		r.order = append(r.order, name)
	}
	r.columns[name] = col
	r.rowIndexes[name] = ri
}

// Columns lists column names in declaration order.
func (r *Relation) Columns() []string { return slices.Clone(r.order) }

func (r *Relation) Column(name string) (Column, error) {
	col, ok := r.columns[name]
	if !ok {
		return nil, &LookupError{What: "column", Name: name, Relation: r.Name}
	}
	return col, nil
}

func (r *Relation) RowIndex(name string) (RowIndex, error) {
	ri, ok := r.rowIndexes[name]
	if !ok {
		return nil, &LookupError{What: "row index", Name: name, Relation: r.Name}
	}
	return ri, nil
}

// Dict returns a column with its concrete value type.
func Dict[T types.Value](r *Relation, name string) (*Dictionary[T], error) {
	col, err := r.Column(name)
	if err != nil {
		return nil, err
	}
	d, ok := col.(*Dictionary[T])
	if !ok {
		return nil, &LookupError{What: "column", Name: name, Relation: r.Name, Reason: "stored as " + col.Descriptor().String()}
	}
	return d, nil
}

// Database holds relations and secondary join indexes. Relations may be
// registered concurrently during import; afterwards it is only read.
type Database struct {
	mu        sync.RWMutex
	relations map[string]*Relation
	indexes   map[string][]uint32
}

func NewDatabase() *Database {
	return &Database{
		relations: make(map[string]*Relation),
		indexes:   make(map[string][]uint32),
	}
}

func (db *Database) Add(r *Relation) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.relations[r.Name] = r
}

func (db *Database) Relation(name string) (*Relation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.relations[name]
	if !ok {
		return nil, &LookupError{What: "relation", Name: name}
	}
	return r, nil
}

// Relations returns every relation sorted by name.
func (db *Database) Relations() []*Relation {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Relation, 0, len(db.relations))
	for _, r := range db.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetIndex stores an adjacency list as the pair (name, name+"_vals").
func (db *Database) SetIndex(name string, bounds, vals []uint32) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.indexes[name] = bounds
	db.indexes[name+"_vals"] = vals
}

// Index returns one half of an adjacency list; callers pair name with
// name+"_vals" themselves.
func (db *Database) Index(name string) ([]uint32, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	idx, ok := db.indexes[name]
	if !ok {
		return nil, &LookupError{What: "index", Name: name}
	}
	return idx, nil
}

// Matches returns the half-open range of index name+"_vals" belonging to row.
func Matches(bounds []uint32, row int) (lo, hi uint32) {
	if row > 0 {
		lo = bounds[row-1]
	}
	return lo, bounds[row]
}
