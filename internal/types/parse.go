package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var errEmptyField = errors.New("empty field")

// ParseInteger parses "-123" -> -123 without allocating.
func ParseInteger(b []byte) (Integer, error) {
	if len(b) == 0 {
		return 0, errEmptyField
	}
	field := b
	neg := false
	if b[0] == '-' || b[0] == '+' {
		neg = b[0] == '-'
		b = b[1:]
		if len(b) == 0 {
			return 0, fmt.Errorf("invalid integer %q", field)
		}
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid integer %q: digit %q", field, c)
		}
		n = n*10 + int64(c-'0')
		if n > 1<<31 {
			return 0, fmt.Errorf("integer %q out of range", field)
		}
	}
	if neg {
		n = -n
	}
	if n > 1<<31-1 {
		return 0, fmt.Errorf("integer %q out of range", field)
	}
	return Integer(n), nil
}

// ParseDate parses "2021-07-25" into a Julian day number.
func ParseDate(b []byte) (Date, error) {
	if len(b) != 10 || b[4] != '-' || b[7] != '-' {
		return 0, fmt.Errorf("invalid date %q", b)
	}
	y, ok1 := digits(b[0:4])
	m, ok2 := digits(b[5:7])
	d, ok3 := digits(b[8:10])
	if !ok1 || !ok2 || !ok3 || m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, fmt.Errorf("invalid date %q", b)
	}
	date := DateFromCivil(y, m, d)
	// Day numbers past the end of the month roll over, so round-trip.
	if yy, mm, dd := date.Civil(); yy != y || mm != m || dd != d {
		return 0, fmt.Errorf("invalid date %q: no day %d in %04d-%02d", b, d, y, m)
	}
	return date, nil
}

func digits(b []byte) (int, bool) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// ParseNumeric parses "123.45" into its raw fixed-point representation.
func ParseNumeric(b []byte, size, precision int) (Numeric, error) {
	if len(b) == 0 {
		return 0, errEmptyField
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return 0, err
	}
	shifted := d.Shift(int32(precision))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("numeric %q has more than %d fractional digits", b, precision)
	}
	limit := decimal.New(1, int32(size))
	if shifted.Abs().GreaterThanOrEqual(limit) {
		return 0, fmt.Errorf("numeric %q exceeds %d digits", b, size)
	}
	return Numeric(shifted.IntPart()), nil
}

// ParseChar checks the text fits the declared width.
func ParseChar(b []byte, width int) (Char, error) {
	if len(b) > width {
		return "", fmt.Errorf("char %q exceeds width %d", b, width)
	}
	return Char(b), nil
}

// ParseVarchar checks the text fits the declared width.
func ParseVarchar(b []byte, width int) (Varchar, error) {
	if len(b) > width {
		return "", fmt.Errorf("varchar %q exceeds width %d", b, width)
	}
	return Varchar(b), nil
}
