package columnar

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/tessera/internal/layout"
)

// Tile is one attribute's buffer for one tile coordinate.
type Tile struct {
	Attr     int
	Coord    layout.TileCoord
	CellSize int
	// Data holds capacity*CellSize bytes. Tiles handed out by a Reader
	// share Data with the cache and must not be modified.
	Data []byte
	// Written holds the in-tile offsets that carry data.
	Written *roaring.Bitmap
}

func newTile(attr int, tc layout.TileCoord, cellSize int, capacity int64) *Tile {
	return &Tile{
		Attr:     attr,
		Coord:    tc,
		CellSize: cellSize,
		Data:     make([]byte, capacity*int64(cellSize)),
		Written:  roaring.New(),
	}
}

// Capacity returns the number of cells the tile can hold.
func (t *Tile) Capacity() int64 {
	return int64(len(t.Data) / t.CellSize)
}

// Cells returns the bytes of n cells starting at in-tile offset off.
func (t *Tile) Cells(off, n int64) []byte {
	cs := int64(t.CellSize)
	return t.Data[off*cs : (off+n)*cs]
}

// Covers reports whether every cell in [off, off+n) has been written.
// On false it also returns the first unwritten offset.
func (t *Tile) Covers(off, n int64) (bool, int64) {
	return covers(t.Written, off, n)
}

func covers(written *roaring.Bitmap, off, n int64) (bool, int64) {
	want := roaring.New()
	want.AddRange(uint64(off), uint64(off+n))
	if want.AndCardinality(written) == uint64(n) {
		return true, -1
	}
	want.AndNot(written)
	return false, int64(want.Minimum())
}

// WriteRun copies src into the tile starting at in-tile offset off and marks
// the cells written. len(src) must be a multiple of CellSize.
func (t *Tile) WriteRun(off int64, src []byte) {
	n := int64(len(src) / t.CellSize)
	copy(t.Cells(off, n), src)
	t.Written.AddRange(uint64(off), uint64(off+n))
}

func (t *Tile) clone() *Tile {
	c := *t
	c.Data = make([]byte, len(t.Data))
	copy(c.Data, t.Data)
	c.Written = t.Written.Clone()
	return &c
}
