package columnar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/tessera/internal/cache"
	"github.com/hupe1980/tessera/internal/hash"
	"github.com/hupe1980/tessera/internal/layout"
	"github.com/hupe1980/tessera/internal/manifest"
	"golang.org/x/sync/errgroup"
)

// TilePath returns the blob name of a tile written by commit id.
func TilePath(attr int, tc layout.TileCoord, commit uint64) string {
	return fmt.Sprintf("tiles/%d/%s-%d.tile", attr, tc.Key(), commit)
}

// Writer accumulates pending tiles on top of a base manifest.
// A Writer is not safe for concurrent use.
type Writer struct {
	r         *Reader
	manifests *manifest.Store
	pending   []map[string]*Tile
	reserved  int64
}

// NewWriter creates a writer whose pending tiles start from the tiles
// served by r and are published through manifests.
func NewWriter(r *Reader, manifests *manifest.Store) *Writer {
	return &Writer{
		r:         r,
		manifests: manifests,
		pending:   make([]map[string]*Tile, len(r.cellSizes)),
	}
}

// Reader returns the reader over the writer's base manifest.
func (w *Writer) Reader() *Reader { return w.r }

// Pending returns the number of pending tiles.
func (w *Writer) Pending() int {
	n := 0
	for _, p := range w.pending {
		n += len(p)
	}
	return n
}

// Reserved returns the bytes reserved against the memory budget.
func (w *Writer) Reserved() int64 { return w.reserved }

// AllocateOrFetchTile returns the pending tile of attribute attr at tc,
// creating it if needed: as a private copy of the committed tile, or zero
// filled with an empty written set if the tile was never written.
func (w *Writer) AllocateOrFetchTile(ctx context.Context, attr int, tc layout.TileCoord) (*Tile, error) {
	if err := w.r.layout.CheckTile(tc); err != nil {
		return nil, err
	}
	key := tc.Key()
	if t, ok := w.pending[attr][key]; ok {
		return t, nil
	}

	size := int64(w.r.cellSizes[attr]) * w.r.layout.Capacity()
	if err := w.r.opts.Resources.AcquireMemory(size); err != nil {
		return nil, err
	}

	var t *Tile
	committed, err := w.r.Tile(ctx, attr, tc)
	switch {
	case err == nil:
		t = committed.clone()
	case errors.Is(err, ErrTileNotFound):
		t = newTile(attr, tc, w.r.cellSizes[attr], w.r.layout.Capacity())
	default:
		w.r.opts.Resources.ReleaseMemory(size)
		return nil, err
	}

	if w.pending[attr] == nil {
		w.pending[attr] = make(map[string]*Tile)
	}
	w.pending[attr][key] = t
	w.reserved += size
	return t, nil
}

// Prepare allocates the pending tiles that every overlap of every listed
// attribute needs. Either all tiles are available afterwards or none of the
// tiles created by this call remain.
func (w *Writer) Prepare(ctx context.Context, attrs []int, plan []layout.Overlap) ([][]*Tile, error) {
	type created struct {
		attr int
		key  string
	}
	var fresh []created

	tiles := make([][]*Tile, len(attrs))
	for i, attr := range attrs {
		tiles[i] = make([]*Tile, len(plan))
		for j, ov := range plan {
			_, existed := w.pending[attr][ov.Tile.Key()]
			t, err := w.AllocateOrFetchTile(ctx, attr, ov.Tile)
			if err != nil {
				for _, c := range fresh {
					w.drop(c.attr, c.key)
				}
				return nil, err
			}
			if !existed {
				fresh = append(fresh, created{attr, ov.Tile.Key()})
			}
			tiles[i][j] = t
		}
	}
	return tiles, nil
}

// WriteOverlap copies the runs of ov from src, laid out in the region's
// canonical cell order, into the pending tile t.
func WriteOverlap(t *Tile, ov layout.Overlap, src []byte) {
	cs := int64(t.CellSize)
	for _, run := range ov.Runs {
		t.WriteRun(run.TileOffset, src[run.BufferOffset*cs:(run.BufferOffset+run.Len)*cs])
	}
}

func (w *Writer) drop(attr int, key string) {
	t, ok := w.pending[attr][key]
	if !ok {
		return
	}
	delete(w.pending[attr], key)
	size := int64(len(t.Data))
	w.reserved -= size
	w.r.opts.Resources.ReleaseMemory(size)
}

// Discard drops all pending tiles and releases their memory.
func (w *Writer) Discard() {
	w.r.opts.Resources.ReleaseMemory(w.reserved)
	w.reserved = 0
	for i := range w.pending {
		w.pending[i] = nil
	}
}

// Flush writes every pending tile as a new immutable blob and publishes the
// next manifest. With nothing pending it returns the base manifest and
// publishes nothing. On error the pending tiles are kept and the base
// manifest remains current.
func (w *Writer) Flush(ctx context.Context) (*manifest.Manifest, error) {
	base := w.r.manifest
	if w.Pending() == 0 {
		return base, nil
	}
	commit := base.ID + 1

	var dirty []*Tile
	for _, p := range w.pending {
		for _, t := range p {
			dirty = append(dirty, t)
		}
	}
	slices.SortFunc(dirty, func(a, b *Tile) int {
		if a.Attr != b.Attr {
			return a.Attr - b.Attr
		}
		return strings.Compare(a.Coord.Key(), b.Coord.Key())
	})

	infos := make([]*manifest.TileInfo, len(dirty))
	rc := w.r.opts.Resources

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rc.MaxWorkers())
	for i, t := range dirty {
		g.Go(func() error {
			if err := rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer rc.ReleaseWorker()

			if err := rc.AcquireIO(gctx, len(t.Data)); err != nil {
				return err
			}
			path := TilePath(t.Attr, t.Coord, commit)
			if err := w.r.store.Put(gctx, path, t.Data); err != nil {
				return fmt.Errorf("write tile %s: %w", path, err)
			}
			infos[i] = &manifest.TileInfo{
				Coord:    slices.Clone(t.Coord),
				Path:     path,
				Size:     int64(len(t.Data)),
				Checksum: hash.CRC32C(t.Data),
				Written:  t.Written.Clone(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	next := base.Clone()
	for i, t := range dirty {
		next.SetTile(t.Attr, t.Coord.Key(), infos[i])
	}
	if err := w.manifests.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("publish manifest: %w", err)
	}

	// Pending memory is released before the flushed bytes are offered to
	// the cache, which charges them again.
	w.Discard()
	if c := w.r.opts.Cache; c != nil {
		for i, t := range dirty {
			c.Add(ctx, cache.Key{Array: w.r.uri, Path: infos[i].Path}, t.Data)
		}
	}
	w.r = NewReader(w.r.uri, w.r.store, w.r.schema, next, w.r.opts)
	return next, nil
}
