package types

import (
	"bytes"
	"encoding/binary"
	"strconv"
)

// Codec parses text into, and moves fixed-width binary records in and out
// of, one physical value type.
type Codec[T Value] interface {
	Descriptor() Descriptor
	Parse(field []byte) (T, error)
	// Size is the encoded width of a value in bytes.
	Size() int
	// Put encodes v into dst[:Size()].
	Put(dst []byte, v T)
	// Get decodes src[:Size()].
	Get(src []byte) T
	Format(v T) string
}

// CodecFor returns the codec of a descriptor, failing when the descriptor's
// logical type is not represented by T.
func CodecFor[T Value](d Descriptor) (Codec[T], error) {
	var c any
	switch d.Logical {
	case LogicalInteger:
		c = integerCodec{}
	case LogicalDate:
		c = dateCodec{}
	case LogicalNumeric:
		c = numericCodec{desc: d}
	case LogicalChar:
		c = charCodec{desc: d}
	case LogicalVarchar:
		c = varcharCodec{desc: d}
	default:
		return nil, &ConfigurationError{Logical: d.Logical, Reason: "unknown type"}
	}
	typed, ok := c.(Codec[T])
	if !ok {
		return nil, &ConfigurationError{Logical: d.Logical, Size: d.Size, Precision: d.Precision, Reason: "value type does not match column type"}
	}
	return typed, nil
}

type integerCodec struct{}

func (integerCodec) Descriptor() Descriptor { return IntegerType() }
func (integerCodec) Parse(field []byte) (Integer, error) { return ParseInteger(field) }
func (integerCodec) Size() int { return 4 }
func (integerCodec) Put(dst []byte, v Integer) { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (integerCodec) Get(src []byte) Integer { return Integer(binary.LittleEndian.Uint32(src)) }
func (integerCodec) Format(v Integer) string { return strconv.FormatInt(int64(v), 10) }

type dateCodec struct{}

func (dateCodec) Descriptor() Descriptor { return DateType() }
func (dateCodec) Parse(field []byte) (Date, error) { return ParseDate(field) }
func (dateCodec) Size() int { return 4 }
func (dateCodec) Put(dst []byte, v Date) { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (dateCodec) Get(src []byte) Date { return Date(binary.LittleEndian.Uint32(src)) }
func (dateCodec) Format(v Date) string { return v.String() }

type numericCodec struct{ desc Descriptor }

func (c numericCodec) Descriptor() Descriptor { return c.desc }
func (c numericCodec) Parse(field []byte) (Numeric, error) {
	return ParseNumeric(field, c.desc.Size, c.desc.Precision)
}
func (numericCodec) Size() int { return 8 }
func (numericCodec) Put(dst []byte, v Numeric) { binary.LittleEndian.PutUint64(dst, uint64(v)) }
func (numericCodec) Get(src []byte) Numeric { return Numeric(binary.LittleEndian.Uint64(src)) }
func (c numericCodec) Format(v Numeric) string { return v.Format(c.desc.Precision) }

type charCodec struct{ desc Descriptor }

func (c charCodec) Descriptor() Descriptor { return c.desc }
func (c charCodec) Parse(field []byte) (Char, error) {
	return ParseChar(field, c.desc.Size)
}
func (c charCodec) Size() int { return c.desc.Size }
func (c charCodec) Put(dst []byte, v Char) {
	n := copy(dst[:c.desc.Size], v)
	clear(dst[n:c.desc.Size])
}
func (c charCodec) Get(src []byte) Char {
	return Char(bytes.TrimRight(src[:c.desc.Size], "\x00"))
}
func (charCodec) Format(v Char) string { return string(v) }

type varcharCodec struct{ desc Descriptor }

func (c varcharCodec) Descriptor() Descriptor { return c.desc }
func (c varcharCodec) Parse(field []byte) (Varchar, error) {
	return ParseVarchar(field, c.desc.Size)
}
func (c varcharCodec) Size() int { return 1 + c.desc.Size }
func (c varcharCodec) Put(dst []byte, v Varchar) {
	dst[0] = byte(len(v))
	n := copy(dst[1:1+c.desc.Size], v)
	clear(dst[1+n : 1+c.desc.Size])
}
func (c varcharCodec) Get(src []byte) Varchar {
	n := int(src[0])
	if n > c.desc.Size {
		n = c.desc.Size
	}
	return Varchar(src[1 : 1+n])
}
func (varcharCodec) Format(v Varchar) string { return string(v) }
