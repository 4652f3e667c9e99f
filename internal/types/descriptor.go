package types

import (
	"fmt"
	"strings"
)

// Logical is the tag of the closed set of column types the store can hold.
type Logical uint8

const (
	LogicalInvalid Logical = iota
	LogicalInteger
	LogicalNumeric
	LogicalDate
	LogicalChar
	LogicalVarchar
)

func (l Logical) String() string {
	switch l {
	case LogicalInteger:
		return "Integer"
	case LogicalNumeric:
		return "Numeric"
	case LogicalDate:
		return "Date"
	case LogicalChar:
		return "Char"
	case LogicalVarchar:
		return "Varchar"
	default:
		return "Invalid"
	}
}

// Descriptor describes a column's logical type and, through it, the fixed
// width of its binary records.
//
// Size is the declared width for Char and Varchar and the total digit count
// for Numeric. Precision is the number of digits after the decimal point and
// is only meaningful for Numeric.
type Descriptor struct {
	Logical   Logical
	Size      int
	Precision int
}

func (d Descriptor) String() string {
	switch d.Logical {
	case LogicalNumeric:
		return fmt.Sprintf("Numeric(%d,%d)", d.Size, d.Precision)
	case LogicalChar, LogicalVarchar:
		return fmt.Sprintf("%s(%d)", d.Logical, d.Size)
	default:
		return d.Logical.String()
	}
}

// RecordSize is the number of bytes one encoded value occupies on disk.
func (d Descriptor) RecordSize() int {
	switch d.Logical {
	case LogicalInteger, LogicalDate:
		return 4
	case LogicalNumeric:
		return 8
	case LogicalChar:
		return d.Size
	case LogicalVarchar:
		return 1 + d.Size
	default:
		return 0
	}
}

var (
	numericShapes = [][2]int{{12, 2}, {18, 2}}
	charWidths    = []int{1, 6, 7, 9, 10, 11, 12, 15, 18, 22, 25}
	varcharWidths = []int{11, 12, 22, 23, 25, 40, 44, 55, 79, 101, 117, 152, 199}
)

// Catalogue enumerates every descriptor the store supports.
func Catalogue() []Descriptor {
	out := []Descriptor{{Logical: LogicalInteger}, {Logical: LogicalDate}}
	for _, s := range numericShapes {
		out = append(out, Descriptor{Logical: LogicalNumeric, Size: s[0], Precision: s[1]})
	}
	for _, w := range charWidths {
		out = append(out, Descriptor{Logical: LogicalChar, Size: w})
	}
	for _, w := range varcharWidths {
		out = append(out, Descriptor{Logical: LogicalVarchar, Size: w})
	}
	return out
}

// Lookup validates a requested type against the catalogue.
func Lookup(logical Logical, size, precision int) (Descriptor, error) {
	d := Descriptor{Logical: logical}
	switch logical {
	case LogicalInteger, LogicalDate:
		return d, nil
	case LogicalNumeric:
		d.Size, d.Precision = size, precision
		for _, s := range numericShapes {
			if s[0] == size && s[1] == precision {
				return d, nil
			}
		}
		return Descriptor{}, &ConfigurationError{Logical: logical, Size: size, Precision: precision, Reason: "unknown numeric precision"}
	case LogicalChar:
		d.Size = size
		if contains(charWidths, size) {
			return d, nil
		}
		return Descriptor{}, &ConfigurationError{Logical: logical, Size: size, Reason: "unknown char size"}
	case LogicalVarchar:
		d.Size = size
		if contains(varcharWidths, size) {
			return d, nil
		}
		return Descriptor{}, &ConfigurationError{Logical: logical, Size: size, Reason: "unknown varchar size"}
	default:
		return Descriptor{}, &ConfigurationError{Logical: logical, Reason: "unknown type"}
	}
}

func IntegerType() Descriptor { return Descriptor{Logical: LogicalInteger} }

func DateType() Descriptor { return Descriptor{Logical: LogicalDate} }

func NumericType(size, precision int) (Descriptor, error) {
	return Lookup(LogicalNumeric, size, precision)
}

func CharType(width int) (Descriptor, error) { return Lookup(LogicalChar, width, 0) }

func VarcharType(width int) (Descriptor, error) { return Lookup(LogicalVarchar, width, 0) }

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ConfigurationError reports a type outside the supported catalogue, or a
// value type requested for a column of a different logical type.
type ConfigurationError struct {
	Logical   Logical
	Size      int
	Precision int
	Reason    string
}

func (e *ConfigurationError) Error() string {
	parts := []string{fmt.Sprintf("configuration error for %s", e.Logical)}
	if e.Size != 0 {
		parts = append(parts, fmt.Sprintf("size=%d", e.Size))
	}
	if e.Precision != 0 {
		parts = append(parts, fmt.Sprintf("precision=%d", e.Precision))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return strings.Join(parts, " - ")
}
