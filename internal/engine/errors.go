package engine

import (
	"fmt"
	"strings"
)

// IOError reports a missing source file or an unusable cache directory.
type IOError struct {
	Op   string // "open source", "create cache dir", "write cache", ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ConsistencyError reports data that violates the store's invariants:
// malformed source lines, truncated cache files, or row indexes of one
// relation that disagree in length.
type ConsistencyError struct {
	Relation string
	Column   string // empty for relation-level problems
	Line     int    // 1-based source line, 0 if not applicable
	Reason   string
	Err      error
}

func (e *ConsistencyError) Error() string {
	var parts []string
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("inconsistent data in %s.%s", e.Relation, e.Column))
	} else {
		parts = append(parts, fmt.Sprintf("inconsistent data in %s", e.Relation))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, " - ")
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

// LookupError reports a relation, column or index name that is not in the
// database, or a column read with the wrong value type.
type LookupError struct {
	What     string // "relation", "column", "row index", "index"
	Name     string
	Relation string
	Reason   string
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.What, e.Name)
	if e.Relation != "" {
		msg = fmt.Sprintf("%s %q not found in %s", e.What, e.Name, e.Relation)
	}
	switch {
	case e.Reason != "" && e.Relation != "":
		msg = fmt.Sprintf("%s %q in %s: %s", e.What, e.Name, e.Relation, e.Reason)
	case e.Reason != "":
		msg = fmt.Sprintf("%s %q: %s", e.What, e.Name, e.Reason)
	}
	return msg
}
