package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/tessera/model"
	"github.com/hupe1980/tessera/schema"
)

// TileCoord is the position of a tile in the tile grid.
type TileCoord []int64

// Key returns a stable string form, e.g. "0_1".
func (t TileCoord) Key() string {
	var b strings.Builder
	for i, v := range t {
		if i > 0 {
			b.WriteByte('_')
		}
		b.WriteString(strconv.FormatInt(v, 10))
	}
	return b.String()
}

// ParseKey parses the output of TileCoord.Key.
func ParseKey(key string) (TileCoord, error) {
	parts := strings.Split(key, "_")
	tc := make(TileCoord, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("layout: invalid tile key %q: %w", key, err)
		}
		tc[i] = v
	}
	return tc, nil
}

// Equal reports whether two tile coordinates are identical.
func (t TileCoord) Equal(o TileCoord) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// Layout is the tile geometry of a domain. It is immutable and safe for
// concurrent use.
type Layout struct {
	dom       *schema.Domain
	lo        []int64
	hi        []int64
	extent    []int64
	ntiles    []int64
	strides   []int64 // in-tile cell strides
	tstrides  []int64 // tile grid strides
	cellOrder schema.Order
	tileOrder schema.Order
	capacity  int64
}

// New returns the layout of dom with the given cell and tile orders.
func New(dom *schema.Domain, cellOrder, tileOrder schema.Order) *Layout {
	rank := dom.Rank()
	l := &Layout{
		dom:       dom,
		lo:        make([]int64, rank),
		hi:        make([]int64, rank),
		extent:    make([]int64, rank),
		ntiles:    make([]int64, rank),
		cellOrder: cellOrder,
		tileOrder: tileOrder,
		capacity:  dom.TileCapacity(),
	}
	for i := 0; i < rank; i++ {
		d := dom.Dimension(i)
		l.lo[i], l.hi[i], l.extent[i] = d.Lo, d.Hi, d.Extent
		l.ntiles[i] = d.NumTiles()
	}
	l.strides = strides(l.extent, cellOrder)
	l.tstrides = strides(l.ntiles, tileOrder)
	return l
}

// ForSchema returns the layout of s.
func ForSchema(s *schema.Schema) *Layout {
	return New(s.Domain(), s.CellOrder(), s.TileOrder())
}

// strides returns the linearization strides of shape in the given order.
func strides(shape []int64, order schema.Order) []int64 {
	n := len(shape)
	st := make([]int64, n)
	if n == 0 {
		return st
	}
	if order == schema.ColMajor {
		st[0] = 1
		for i := 1; i < n; i++ {
			st[i] = st[i-1] * shape[i-1]
		}
		return st
	}
	st[n-1] = 1
	for i := n - 2; i >= 0; i-- {
		st[i] = st[i+1] * shape[i+1]
	}
	return st
}

// Rank returns the number of dimensions.
func (l *Layout) Rank() int { return len(l.lo) }

// Capacity returns the number of cells in a full tile.
func (l *Layout) Capacity() int64 { return l.capacity }

// Tiles returns the number of tiles along each dimension.
func (l *Layout) Tiles() []int64 {
	out := make([]int64, len(l.ntiles))
	copy(out, l.ntiles)
	return out
}

// NumTiles returns the total number of tiles in the grid.
func (l *Layout) NumTiles() int64 {
	n := int64(1)
	for _, t := range l.ntiles {
		n *= t
	}
	return n
}

// CellOrder returns the in-tile cell order.
func (l *Layout) CellOrder() schema.Order { return l.cellOrder }

// TileOrder returns the tile visiting order.
func (l *Layout) TileOrder() schema.Order { return l.tileOrder }

// TileOf returns the tile containing coord.
func (l *Layout) TileOf(coord []int64) (TileCoord, error) {
	if err := l.dom.CheckCoord(coord); err != nil {
		return nil, err
	}
	tc := make(TileCoord, len(coord))
	for i, c := range coord {
		tc[i] = (c - l.lo[i]) / l.extent[i]
	}
	return tc, nil
}

// Encode maps a coordinate to its tile and in-tile offset.
func (l *Layout) Encode(coord []int64) (TileCoord, int64, error) {
	if err := l.dom.CheckCoord(coord); err != nil {
		return nil, 0, err
	}
	tc := make(TileCoord, len(coord))
	var off int64
	for i, c := range coord {
		rel := c - l.lo[i]
		tc[i] = rel / l.extent[i]
		off += (rel % l.extent[i]) * l.strides[i]
	}
	return tc, off, nil
}

// Decode maps a tile and in-tile offset back to a coordinate. It fails for
// tiles outside the grid and for offsets that address padding cells of a
// boundary tile.
func (l *Layout) Decode(tile TileCoord, offset int64) ([]int64, error) {
	if err := l.CheckTile(tile); err != nil {
		return nil, err
	}
	if offset < 0 || offset >= l.capacity {
		return nil, fmt.Errorf("%w: offset %d outside tile capacity %d", schema.ErrOutOfDomain, offset, l.capacity)
	}
	coord := make([]int64, len(tile))
	rem := offset
	for _, i := range l.majorToMinor() {
		local := rem / l.strides[i]
		rem %= l.strides[i]
		c := l.lo[i] + tile[i]*l.extent[i] + local
		if c > l.hi[i] {
			return nil, fmt.Errorf("%w: offset %d addresses padding of tile %s", schema.ErrOutOfDomain, offset, tile.Key())
		}
		coord[i] = c
	}
	return coord, nil
}

// majorToMinor returns dimension indices from the slowest to the fastest
// varying in cell order.
func (l *Layout) majorToMinor() []int {
	n := len(l.lo)
	idx := make([]int, n)
	for k := range idx {
		if l.cellOrder == schema.ColMajor {
			idx[k] = n - 1 - k
		} else {
			idx[k] = k
		}
	}
	return idx
}

// CheckTile verifies that tile lies inside the tile grid.
func (l *Layout) CheckTile(tile TileCoord) error {
	if len(tile) != len(l.ntiles) {
		return fmt.Errorf("%w: tile rank %d, domain rank %d", schema.ErrInvalidRegion, len(tile), len(l.ntiles))
	}
	for i, t := range tile {
		if t < 0 || t >= l.ntiles[i] {
			return fmt.Errorf("%w: tile %s outside tile grid", schema.ErrOutOfDomain, tile.Key())
		}
	}
	return nil
}

// TileOrigin returns the coordinate of the first cell of tile.
func (l *Layout) TileOrigin(tile TileCoord) []int64 {
	origin := make([]int64, len(tile))
	for i, t := range tile {
		origin[i] = l.lo[i] + t*l.extent[i]
	}
	return origin
}

// TileRegion returns the valid (domain-clipped) cells of tile as a region.
func (l *Layout) TileRegion(tile TileCoord) model.Region {
	r := make(model.Region, len(tile))
	for i, t := range tile {
		lo := l.lo[i] + t*l.extent[i]
		hi := lo + l.extent[i] - 1
		if hi > l.hi[i] {
			hi = l.hi[i]
		}
		r[i] = model.Range{Lo: lo, Hi: hi}
	}
	return r
}

// TileShape returns the valid extent of tile along each dimension.
func (l *Layout) TileShape(tile TileCoord) []int64 {
	return l.TileRegion(tile).Shape()
}

// ValidCells returns the number of in-domain cells of tile. It equals
// Capacity for interior tiles and is smaller for boundary tiles.
func (l *Layout) ValidCells(tile TileCoord) int64 {
	return l.TileRegion(tile).NumCells()
}

// TileID returns the position of tile in tile order.
func (l *Layout) TileID(tile TileCoord) int64 {
	var id int64
	for i, t := range tile {
		id += t * l.tstrides[i]
	}
	return id
}
