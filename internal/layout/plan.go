package layout

import (
	"github.com/hupe1980/tessera/model"
	"github.com/hupe1980/tessera/schema"
)

// Run is a contiguous run of cells shared by a tile and a region buffer.
// Both offsets are in cells.
type Run struct {
	TileOffset   int64
	BufferOffset int64
	Len          int64
}

// Overlap is the intersection of a region with one tile.
type Overlap struct {
	Tile TileCoord
	// Box is the intersection in domain coordinates.
	Box  model.Region
	Runs []Run
}

// Cells returns the number of cells covered by the overlap.
func (o Overlap) Cells() int64 { return o.Box.NumCells() }

// Plan resolves region into the ordered (tile order) sequence of tiles it
// touches. Together the runs cover every cell of region exactly once, and
// BufferOffset addresses the region's canonical cell order.
func (l *Layout) Plan(region model.Region) ([]Overlap, error) {
	if err := l.dom.CheckRegion(region); err != nil {
		return nil, err
	}

	rank := len(region)
	tlo := make([]int64, rank)
	thi := make([]int64, rank)
	for i, rg := range region {
		tlo[i] = (rg.Lo - l.lo[i]) / l.extent[i]
		thi[i] = (rg.Hi - l.lo[i]) / l.extent[i]
	}

	bufStrides := strides(region.Shape(), l.cellOrder)
	fast := rank - 1
	if l.cellOrder == schema.ColMajor {
		fast = 0
	}

	var plan []Overlap
	tile := make([]int64, rank)
	copy(tile, tlo)
	for {
		tc := make(TileCoord, rank)
		copy(tc, tile)
		plan = append(plan, l.overlap(tc, region, bufStrides, fast))

		if !next(tile, tlo, thi, l.tileOrder) {
			break
		}
	}
	return plan, nil
}

func (l *Layout) overlap(tc TileCoord, region model.Region, bufStrides []int64, fast int) Overlap {
	rank := len(tc)
	origin := l.TileOrigin(tc)
	box := make(model.Region, rank)
	for i := range tc {
		lo := max(region[i].Lo, origin[i])
		hi := min(region[i].Hi, origin[i]+l.extent[i]-1)
		box[i] = model.Range{Lo: lo, Hi: hi}
	}

	runLen := box[fast].Len()
	nruns := box.NumCells() / runLen
	runs := make([]Run, 0, nruns)

	// Iterate the box with the fast dimension pinned to its lower bound.
	lo := make([]int64, rank)
	hi := make([]int64, rank)
	for i, rg := range box {
		lo[i], hi[i] = rg.Lo, rg.Hi
	}
	hi[fast] = lo[fast]

	pos := make([]int64, rank)
	copy(pos, lo)
	for {
		var toff, boff int64
		for i, c := range pos {
			toff += (c - origin[i]) * l.strides[i]
			boff += (c - region[i].Lo) * bufStrides[i]
		}
		runs = append(runs, Run{TileOffset: toff, BufferOffset: boff, Len: runLen})

		if !next(pos, lo, hi, l.cellOrder) {
			break
		}
	}

	return Overlap{Tile: tc, Box: box, Runs: runs}
}

// next advances idx within [lo, hi] odometer-style in the given order and
// reports false once every position has been visited.
func next(idx, lo, hi []int64, order schema.Order) bool {
	n := len(idx)
	for k := 0; k < n; k++ {
		i := n - 1 - k
		if order == schema.ColMajor {
			i = k
		}
		if idx[i] < hi[i] {
			idx[i]++
			return true
		}
		idx[i] = lo[i]
	}
	return false
}
