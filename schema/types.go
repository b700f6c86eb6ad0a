package schema

import (
	"fmt"
	"math"
)

// DimType is the integer type coordinates of a dimension are declared with.
type DimType uint8

const (
	DimInt32 DimType = iota + 1
	DimInt64
)

func (t DimType) String() string {
	switch t {
	case DimInt32:
		return "int32"
	case DimInt64:
		return "int64"
	default:
		return fmt.Sprintf("DimType(%d)", uint8(t))
	}
}

func (t DimType) bounds() (lo, hi int64, ok bool) {
	switch t {
	case DimInt32:
		return math.MinInt32, math.MaxInt32, true
	case DimInt64:
		return math.MinInt64, math.MaxInt64, true
	default:
		return 0, 0, false
	}
}

// Kind is a fixed-size scalar type.
type Kind uint8

const (
	Int8 Kind = iota + 1
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

// Size returns the size of one scalar in bytes, or 0 for an unknown kind.
func (k Kind) Size() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// CellType is the fixed-size type of one attribute cell: a scalar Kind
// repeated Count times (Count == 1 for plain scalars).
type CellType struct {
	Kind  Kind
	Count int
}

// Scalar returns the cell type of a single k.
func Scalar(k Kind) CellType { return CellType{Kind: k, Count: 1} }

// Tuple returns the cell type of a fixed-length tuple of n k values.
func Tuple(k Kind, n int) CellType { return CellType{Kind: k, Count: n} }

// Size returns the cell size in bytes.
func (c CellType) Size() int { return c.Kind.Size() * c.Count }

// Validate checks that the cell type is one of the supported variants.
func (c CellType) Validate() error {
	if c.Kind.Size() == 0 {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidAttribute, uint8(c.Kind))
	}
	if c.Count < 1 || c.Count > math.MaxUint16 {
		return fmt.Errorf("%w: tuple length %d", ErrInvalidAttribute, c.Count)
	}
	return nil
}

func (c CellType) String() string {
	if c.Count == 1 {
		return c.Kind.String()
	}
	return fmt.Sprintf("%sx%d", c.Kind, c.Count)
}

// Order is a linearization of a multi-dimensional index space.
type Order uint8

const (
	// RowMajor varies the last dimension fastest.
	RowMajor Order = iota + 1
	// ColMajor varies the first dimension fastest.
	ColMajor
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColMajor:
		return "col-major"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// Valid reports whether o is a known order.
func (o Order) Valid() bool { return o == RowMajor || o == ColMajor }
