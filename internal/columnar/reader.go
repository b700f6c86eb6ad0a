package columnar

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/tessera/blobstore"
	"github.com/hupe1980/tessera/internal/cache"
	"github.com/hupe1980/tessera/internal/hash"
	"github.com/hupe1980/tessera/internal/layout"
	"github.com/hupe1980/tessera/internal/manifest"
	"github.com/hupe1980/tessera/internal/resource"
	"github.com/hupe1980/tessera/schema"
	"golang.org/x/sync/singleflight"
)

// Options carries the engine-wide services a Reader uses.
// Every field is optional.
type Options struct {
	Cache     cache.TileCache
	Resources *resource.Controller
	// Loads coalesces concurrent loads of the same blob. Share one group
	// per engine so readers of the same array benefit from each other.
	Loads *singleflight.Group
}

// Reader serves the committed tiles of one manifest.
type Reader struct {
	uri       string
	store     blobstore.BlobStore
	schema    *schema.Schema
	layout    *layout.Layout
	manifest  *manifest.Manifest
	cellSizes []int
	opts      Options
}

// NewReader creates a reader over the tiles referenced by m.
func NewReader(uri string, store blobstore.BlobStore, s *schema.Schema, m *manifest.Manifest, opts Options) *Reader {
	if opts.Loads == nil {
		opts.Loads = &singleflight.Group{}
	}
	sizes := make([]int, s.NumAttributes())
	for i := range sizes {
		sizes[i] = s.AttributeAt(i).Type.Size()
	}
	return &Reader{
		uri:       uri,
		store:     store,
		schema:    s,
		layout:    layout.ForSchema(s),
		manifest:  m,
		cellSizes: sizes,
		opts:      opts,
	}
}

// Manifest returns the manifest the reader serves.
func (r *Reader) Manifest() *manifest.Manifest { return r.manifest }

// Layout returns the tile layout of the array.
func (r *Reader) Layout() *layout.Layout { return r.layout }

// CellSize returns the cell size in bytes of attribute attr.
func (r *Reader) CellSize(attr int) int { return r.cellSizes[attr] }

// Tile returns the committed tile of attribute attr at tc. The returned
// tile is shared and must be treated as read-only.
func (r *Reader) Tile(ctx context.Context, attr int, tc layout.TileCoord) (*Tile, error) {
	key := tc.Key()
	ti, ok := r.manifest.Tile(attr, key)
	if !ok {
		return nil, &UnwrittenError{Attribute: r.schema.AttributeAt(attr).Name, Tile: key, Offset: -1}
	}

	data, err := r.load(ctx, ti, int64(r.cellSizes[attr])*r.layout.Capacity())
	if err != nil {
		return nil, err
	}
	return &Tile{
		Attr:     attr,
		Coord:    tc,
		CellSize: r.cellSizes[attr],
		Data:     data,
		Written:  ti.Written,
	}, nil
}

// ReadCells returns n cells of attribute attr starting at in-tile offset
// off. Every requested cell must have been written.
func (r *Reader) ReadCells(ctx context.Context, attr int, tc layout.TileCoord, off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > r.layout.Capacity() {
		return nil, fmt.Errorf("%w: cells [%d,%d) outside tile capacity %d", schema.ErrInvalidRegion, off, off+n, r.layout.Capacity())
	}
	t, err := r.Tile(ctx, attr, tc)
	if err != nil {
		return nil, err
	}
	if ok, first := t.Covers(off, n); !ok {
		return nil, &UnwrittenError{Attribute: r.schema.AttributeAt(attr).Name, Tile: tc.Key(), Offset: first}
	}
	out := make([]byte, n*int64(t.CellSize))
	copy(out, t.Cells(off, n))
	return out, nil
}

// CheckPlan reports, from the manifest alone, whether every cell of plan
// has been written for attribute attr. It loads no tile data.
func (r *Reader) CheckPlan(attr int, plan []layout.Overlap) error {
	for _, ov := range plan {
		key := ov.Tile.Key()
		ti, ok := r.manifest.Tile(attr, key)
		if !ok {
			return &UnwrittenError{Attribute: r.schema.AttributeAt(attr).Name, Tile: key, Offset: -1}
		}
		for _, run := range ov.Runs {
			if ok, first := covers(ti.Written, run.TileOffset, run.Len); !ok {
				return &UnwrittenError{Attribute: r.schema.AttributeAt(attr).Name, Tile: key, Offset: first}
			}
		}
	}
	return nil
}

// ReadOverlap copies the runs of ov for attribute attr into dst, which is
// laid out in the region's canonical cell order.
func (r *Reader) ReadOverlap(ctx context.Context, attr int, ov layout.Overlap, dst []byte) error {
	t, err := r.Tile(ctx, attr, ov.Tile)
	if err != nil {
		return err
	}
	cs := int64(t.CellSize)
	for _, run := range ov.Runs {
		if ok, first := t.Covers(run.TileOffset, run.Len); !ok {
			return &UnwrittenError{Attribute: r.schema.AttributeAt(attr).Name, Tile: ov.Tile.Key(), Offset: first}
		}
		copy(dst[run.BufferOffset*cs:(run.BufferOffset+run.Len)*cs], t.Cells(run.TileOffset, run.Len))
	}
	return nil
}

func (r *Reader) load(ctx context.Context, ti *manifest.TileInfo, want int64) ([]byte, error) {
	ck := cache.Key{Array: r.uri, Path: ti.Path}
	if r.opts.Cache != nil {
		if b, ok := r.opts.Cache.Get(ctx, ck); ok {
			return b, nil
		}
	}

	v, err, _ := r.opts.Loads.Do(r.uri+"\x00"+ti.Path, func() (any, error) {
		if err := r.opts.Resources.AcquireIO(ctx, int(ti.Size)); err != nil {
			return nil, err
		}
		data, err := blobstore.ReadAll(ctx, r.store, ti.Path)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, fmt.Errorf("%w: blob %s missing", ErrCorrupt, ti.Path)
			}
			return nil, err
		}
		if int64(len(data)) != want || int64(len(data)) != ti.Size {
			return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrCorrupt, ti.Path, len(data), want)
		}
		if sum := hash.CRC32C(data); sum != ti.Checksum {
			return nil, fmt.Errorf("%w: %s checksum %08x, want %08x", ErrCorrupt, ti.Path, sum, ti.Checksum)
		}
		if r.opts.Cache != nil {
			r.opts.Cache.Add(ctx, ck, data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
