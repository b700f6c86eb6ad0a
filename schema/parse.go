package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseKind parses the String form of a Kind, e.g. "float32".
func ParseKind(s string) (Kind, error) {
	for k := Int8; k <= Float64; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidAttribute, s)
}

// ParseCellType parses the String form of a CellType: "uint8" or "float32x2".
func ParseCellType(s string) (CellType, error) {
	name, count, tuple := strings.Cut(s, "x")
	k, err := ParseKind(name)
	if err != nil {
		return CellType{}, err
	}
	c := Scalar(k)
	if tuple {
		if c.Count, err = strconv.Atoi(count); err != nil {
			return CellType{}, fmt.Errorf("%w: tuple length %q", ErrInvalidAttribute, count)
		}
	}
	return c, c.Validate()
}

// ParseDimType parses "int32" or "int64".
func ParseDimType(s string) (DimType, error) {
	for _, t := range []DimType{DimInt32, DimInt64} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown dimension type %q", ErrInvalidDimension, s)
}

// ParseOrder parses "row-major" or "col-major"; "row" and "col" are
// accepted too.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "row-major", "row":
		return RowMajor, nil
	case "col-major", "col":
		return ColMajor, nil
	}
	return 0, fmt.Errorf("%w: unknown order %q", ErrInvalidDimension, s)
}
