package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Physical representations of the dictionary value types. Each is ordered
// and comparable, so dictionaries can be sorted and binary searched directly.
type (
	Integer int32
	// Date is a Julian day number.
	Date int32
	// Numeric is a fixed-point decimal stored as value × 10^precision.
	Numeric int64
	// Char is fixed width and stored zero padded.
	Char string
	// Varchar is stored as a length byte followed by its declared width.
	Varchar string
)

// Value is the closed set of physical types a dictionary column may hold.
type Value interface {
	Integer | Date | Numeric | Char | Varchar
}

var numericShifts = [...]int64{
	1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000,
	1000000000, 10000000000, 100000000000, 1000000000000, 10000000000000,
	100000000000000, 1000000000000000, 10000000000000000, 100000000000000000,
	1000000000000000000,
}

// Shift returns 10^precision.
func Shift(precision int) int64 { return numericShifts[precision] }

// NumericFromInteger widens an integer to a fixed-point value.
func NumericFromInteger(i Integer, precision int) Numeric {
	return Numeric(int64(i) * numericShifts[precision])
}

// Rescale converts a raw value between two precisions.
func (n Numeric) Rescale(from, to int) Numeric {
	if to >= from {
		return Numeric(int64(n) * numericShifts[to-from])
	}
	return Numeric(int64(n) / numericShifts[from-to])
}

// Decimal returns the value as an arbitrary precision decimal.
func (n Numeric) Decimal(precision int) decimal.Decimal {
	return decimal.New(int64(n), -int32(precision))
}

// Format renders the raw value with the given number of fractional digits.
func (n Numeric) Format(precision int) string {
	return n.Decimal(precision).StringFixed(int32(precision))
}

// DateFromCivil converts a calendar date to its Julian day number.
func DateFromCivil(year, month, day int) Date {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return Date(day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045)
}

// Civil splits a Julian day number into year, month and day.
func (d Date) Civil() (year, month, day int) {
	a := int(d) + 32044
	b := (4*a + 3) / 146097
	c := a - (146097*b)/4
	dd := (4*c + 3) / 1461
	e := c - (1461*dd)/4
	m := (5*e + 2) / 153
	day = e - (153*m+2)/5 + 1
	month = m + 3 - 12*(m/10)
	year = 100*b + dd - 4800 + m/10
	return year, month, day
}

func (d Date) String() string {
	y, m, dd := d.Civil()
	return fmt.Sprintf("%04d-%02d-%02d", y, m, dd)
}
