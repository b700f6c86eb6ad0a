package model

import (
	"fmt"
	"strings"
)

// Range is a closed interval [Lo, Hi] on a single dimension.
type Range struct {
	Lo int64
	Hi int64
}

// Len returns the number of coordinates in the range (0 if Lo > Hi).
func (r Range) Len() int64 {
	if r.Hi < r.Lo {
		return 0
	}
	return r.Hi - r.Lo + 1
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v int64) bool {
	return v >= r.Lo && v <= r.Hi
}

// String returns the range as "[lo,hi]".
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Lo, r.Hi)
}

// Region is a hyper-rectangle: one Range per dimension in domain order.
type Region []Range

// R is shorthand for building a Region from lo/hi pairs.
//
//	model.R(1, 2, 2, 4) // rows [1,2], cols [2,4]
func R(bounds ...int64) Region {
	if len(bounds)%2 != 0 {
		panic("model: R requires lo/hi pairs")
	}
	r := make(Region, 0, len(bounds)/2)
	for i := 0; i < len(bounds); i += 2 {
		r = append(r, Range{Lo: bounds[i], Hi: bounds[i+1]})
	}
	return r
}

// Rank returns the number of dimensions.
func (r Region) Rank() int { return len(r) }

// Shape returns the extent of the region along each dimension.
func (r Region) Shape() []int64 {
	shape := make([]int64, len(r))
	for i, rg := range r {
		shape[i] = rg.Len()
	}
	return shape
}

// NumCells returns the number of cells in the region.
func (r Region) NumCells() int64 {
	if len(r) == 0 {
		return 0
	}
	n := int64(1)
	for _, rg := range r {
		n *= rg.Len()
	}
	return n
}

// Clone returns a copy of the region.
func (r Region) Clone() Region {
	out := make(Region, len(r))
	copy(out, r)
	return out
}

func (r Region) String() string {
	parts := make([]string, len(r))
	for i, rg := range r {
		parts[i] = rg.String()
	}
	return strings.Join(parts, "x")
}
