// Package columnar stores attribute data tile by tile.
//
// Each attribute of an array is kept in its own set of tiles. A tile holds
// capacity cells of one attribute laid out in cell order, cell i occupying
// bytes [i*cellSize, (i+1)*cellSize). Alongside the bytes every tile tracks
// which in-tile offsets have ever been written, so a cell that was never
// written can be told apart from one that holds zero.
//
// A Reader serves tiles from the manifest it was opened with. Tile blobs go
// through a shared block cache and concurrent misses for the same blob are
// coalesced into one load.
//
// A Writer keeps copy-on-write pending tiles in memory, charged against the
// engine's memory budget, until Flush writes them as new immutable blobs
// and publishes the next manifest:
//
//	w := columnar.NewWriter(r, manifests)
//	t, err := w.AllocateOrFetchTile(ctx, attr, tc)
//	...
//	m, err := w.Flush(ctx)
package columnar
