package schema

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/hupe1980/tessera/internal/conv"
	"github.com/hupe1980/tessera/model"
)

// Dimension is one axis of a Domain.
type Dimension struct {
	Name string
	// Type defaults to DimInt64 when zero.
	Type DimType
	// Lo and Hi are the closed bounds of the dimension.
	Lo, Hi int64
	// Extent is the tile extent along this dimension.
	Extent int64
}

// Span returns the number of coordinates in [Lo, Hi].
func (d Dimension) Span() int64 { return d.Hi - d.Lo + 1 }

// Bounds returns the dimension bounds as a Range.
func (d Dimension) Bounds() model.Range { return model.Range{Lo: d.Lo, Hi: d.Hi} }

// NumTiles returns the number of tiles along this dimension, counting a
// trailing partial tile.
func (d Dimension) NumTiles() int64 {
	span := d.Span()
	n := span / d.Extent
	if span%d.Extent != 0 {
		n++
	}
	return n
}

func (d Dimension) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDimension)
	}
	tlo, thi, ok := d.Type.bounds()
	if !ok {
		return fmt.Errorf("%w: %q has unknown type %d", ErrInvalidDimension, d.Name, uint8(d.Type))
	}
	if d.Lo > d.Hi {
		return fmt.Errorf("%w: %q has lo %d > hi %d", ErrInvalidDimension, d.Name, d.Lo, d.Hi)
	}
	if d.Lo < tlo || d.Hi > thi {
		return fmt.Errorf("%w: %q bounds [%d,%d] do not fit %s", ErrInvalidDimension, d.Name, d.Lo, d.Hi, d.Type)
	}
	span := d.Hi - d.Lo + 1
	if span <= 0 {
		return fmt.Errorf("%w: %q span overflows int64", ErrInvalidDimension, d.Name)
	}
	if d.Extent <= 0 {
		return fmt.Errorf("%w: %q has non-positive tile extent %d", ErrInvalidDimension, d.Name, d.Extent)
	}
	if d.Extent > span {
		return fmt.Errorf("%w: %q tile extent %d exceeds span %d", ErrInvalidDimension, d.Name, d.Extent, span)
	}
	return nil
}

// Domain is the immutable coordinate space of an array.
type Domain struct {
	dims     []Dimension
	cells    int64
	capacity int64
}

// DefineDomain validates dims and returns the Domain they describe. The
// order of dims defines coordinate order.
func DefineDomain(dims ...Dimension) (*Domain, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: domain needs at least one dimension", ErrInvalidDimension)
	}

	d := &Domain{dims: make([]Dimension, len(dims))}
	seen := make(map[string]struct{}, len(dims))
	cells, capacity := uint64(1), uint64(1)

	for i, dim := range dims {
		if dim.Type == 0 {
			dim.Type = DimInt64
		}
		if err := dim.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[dim.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate dimension name %q", ErrInvalidDimension, dim.Name)
		}
		seen[dim.Name] = struct{}{}

		var ok bool
		if cells, ok = mulInt64(cells, uint64(dim.Span())); !ok {
			return nil, fmt.Errorf("%w: domain cell count overflows int64", ErrInvalidDimension)
		}
		if capacity, ok = mulInt64(capacity, uint64(dim.Extent)); !ok {
			return nil, fmt.Errorf("%w: tile capacity overflows int64", ErrInvalidDimension)
		}
		d.dims[i] = dim
	}

	// In-tile offsets are tracked in 32-bit bitmaps.
	if _, err := conv.Int64ToUint32(int64(capacity)); err != nil {
		return nil, fmt.Errorf("%w: tile capacity %d: %w", ErrInvalidDimension, capacity, err)
	}

	d.cells = int64(cells)
	d.capacity = int64(capacity)
	return d, nil
}

func mulInt64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return lo, true
}

// Rank returns the number of dimensions.
func (d *Domain) Rank() int { return len(d.dims) }

// Dimension returns the i-th dimension.
func (d *Domain) Dimension(i int) Dimension { return d.dims[i] }

// Dimensions returns a copy of the dimensions in order.
func (d *Domain) Dimensions() []Dimension {
	out := make([]Dimension, len(d.dims))
	copy(out, d.dims)
	return out
}

// DimensionIndex returns the position of the named dimension.
func (d *Domain) DimensionIndex(name string) (int, bool) {
	for i, dim := range d.dims {
		if dim.Name == name {
			return i, true
		}
	}
	return 0, false
}

// NumCells returns the number of cells in the domain.
func (d *Domain) NumCells() int64 { return d.cells }

// TileCapacity returns the number of cells in a full tile.
func (d *Domain) TileCapacity() int64 { return d.capacity }

// Full returns the region spanning the whole domain.
func (d *Domain) Full() model.Region {
	r := make(model.Region, len(d.dims))
	for i, dim := range d.dims {
		r[i] = dim.Bounds()
	}
	return r
}

// CheckCoord verifies that coord has the domain's rank and lies within its
// bounds.
func (d *Domain) CheckCoord(coord []int64) error {
	if len(coord) != len(d.dims) {
		return fmt.Errorf("%w: coordinate rank %d, domain rank %d", ErrInvalidRegion, len(coord), len(d.dims))
	}
	for i, c := range coord {
		dim := d.dims[i]
		if c < dim.Lo || c > dim.Hi {
			return &OutOfDomainError{Dim: dim.Name, Lo: c, Hi: c, Bounds: dim.Bounds()}
		}
	}
	return nil
}

// CheckRegion verifies that r has the domain's rank, no empty ranges and lies
// within the domain bounds.
func (d *Domain) CheckRegion(r model.Region) error {
	if len(r) != len(d.dims) {
		return fmt.Errorf("%w: region rank %d, domain rank %d", ErrInvalidRegion, len(r), len(d.dims))
	}
	for i, rg := range r {
		dim := d.dims[i]
		if rg.Lo > rg.Hi {
			return fmt.Errorf("%w: dimension %q has empty range %s", ErrInvalidRegion, dim.Name, rg)
		}
		if rg.Lo < dim.Lo || rg.Hi > dim.Hi {
			return &OutOfDomainError{Dim: dim.Name, Lo: rg.Lo, Hi: rg.Hi, Bounds: dim.Bounds()}
		}
	}
	return nil
}

// Equal reports whether two domains have identical dimensions.
func (d *Domain) Equal(o *Domain) bool {
	if d == nil || o == nil {
		return d == o
	}
	if len(d.dims) != len(o.dims) {
		return false
	}
	for i := range d.dims {
		if d.dims[i] != o.dims[i] {
			return false
		}
	}
	return true
}
