package columnar

import (
	"context"
	"testing"

	"github.com/hupe1980/tessera/blobstore"
	"github.com/hupe1980/tessera/internal/cache"
	"github.com/hupe1980/tessera/internal/layout"
	"github.com/hupe1980/tessera/internal/manifest"
	"github.com/hupe1980/tessera/internal/resource"
	"github.com/hupe1980/tessera/model"
	"github.com/hupe1980/tessera/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *blobstore.MemoryStore
	schema    *schema.Schema
	manifests *manifest.Store
	opts      Options
}

func newFixture(t *testing.T, rc *resource.Controller) *fixture {
	t.Helper()
	dom, err := schema.DefineDomain(
		schema.Dimension{Name: "rows", Lo: 1, Hi: 4, Extent: 2},
		schema.Dimension{Name: "cols", Lo: 1, Hi: 4, Extent: 2},
	)
	require.NoError(t, err)
	s, err := schema.DefineSchema(dom, []schema.Attribute{
		{Name: "a1", Type: schema.Scalar(schema.Uint8)},
		{Name: "a2", Type: schema.Tuple(schema.Float32, 2)},
	}, false)
	require.NoError(t, err)

	store := blobstore.NewMemoryStore()
	ms := manifest.NewStore(store)
	require.NoError(t, ms.Save(context.Background(), manifest.New(s.AttributeNames())))

	return &fixture{
		store:     store,
		schema:    s,
		manifests: ms,
		opts: Options{
			Cache:     cache.NewLRU(1<<20, rc),
			Resources: rc,
		},
	}
}

func (f *fixture) reader(t *testing.T) *Reader {
	t.Helper()
	m, err := f.manifests.Load(context.Background())
	require.NoError(t, err)
	return NewReader("mem://arr", f.store, f.schema, m, f.opts)
}

func (f *fixture) write(t *testing.T, region model.Region, attr int, src []byte) {
	t.Helper()
	ctx := context.Background()
	w := NewWriter(f.reader(t), f.manifests)
	plan, err := w.Reader().Layout().Plan(region)
	require.NoError(t, err)
	tiles, err := w.Prepare(ctx, []int{attr}, plan)
	require.NoError(t, err)
	for j, ov := range plan {
		WriteOverlap(tiles[0][j], ov, src)
	}
	_, err = w.Flush(ctx)
	require.NoError(t, err)
}

func TestWriterFlushAndRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(97 + i)
	}
	f.write(t, model.R(1, 4, 1, 4), 0, src)

	r := f.reader(t)
	assert.Equal(t, uint64(2), r.Manifest().ID)
	assert.Equal(t, 4, r.Manifest().NumTiles())

	ti, ok := r.Manifest().Tile(0, "0_0")
	require.True(t, ok)
	assert.Equal(t, "tiles/0/0_0-2.tile", ti.Path)

	// Tile (0,1) holds rows 1-2, cols 3-4: values 99,100,103,104.
	cells, err := r.ReadCells(ctx, 0, layout.TileCoord{0, 1}, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{99, 100, 103, 104}, cells)

	plan, err := r.Layout().Plan(model.R(1, 2, 2, 4))
	require.NoError(t, err)
	dst := make([]byte, 6)
	for _, ov := range plan {
		require.NoError(t, r.ReadOverlap(ctx, 0, ov, dst))
	}
	assert.Equal(t, []byte{98, 99, 100, 102, 103, 104}, dst)

	_, err = r.Tile(ctx, 1, layout.TileCoord{0, 0})
	assert.ErrorIs(t, err, ErrTileNotFound)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPartialWritesMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.write(t, model.R(1, 1, 1, 2), 0, []byte{1, 2})
	f.write(t, model.R(2, 2, 2, 2), 0, []byte{9})

	r := f.reader(t)
	cells, err := r.ReadCells(ctx, 0, layout.TileCoord{0, 0}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, cells)

	cells, err = r.ReadCells(ctx, 0, layout.TileCoord{0, 0}, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, cells)

	_, err = r.ReadCells(ctx, 0, layout.TileCoord{0, 0}, 0, 4)
	var uw *UnwrittenError
	require.ErrorAs(t, err, &uw)
	assert.Equal(t, int64(2), uw.Offset)
	assert.ErrorIs(t, err, ErrTileNotFound)

	_, err = r.ReadCells(ctx, 0, layout.TileCoord{0, 0}, 3, 2)
	assert.ErrorIs(t, err, schema.ErrInvalidRegion)
}

func TestWriterMemoryLimit(t *testing.T) {
	ctx := context.Background()
	// a2 tiles are 4 cells * 8 bytes = 32 bytes.
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 40})
	f := newFixture(t, rc)

	w := NewWriter(f.reader(t), f.manifests)
	plan, err := w.Reader().Layout().Plan(model.R(1, 4, 1, 2))
	require.NoError(t, err)
	require.Len(t, plan, 2)

	_, err = w.Prepare(ctx, []int{1}, plan)
	require.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Zero(t, w.Pending())
	assert.Zero(t, w.Reserved())
	assert.Zero(t, rc.MemoryUsage())

	_, err = w.Prepare(ctx, []int{1}, plan[:1])
	require.NoError(t, err)
	assert.Equal(t, int64(32), rc.MemoryUsage())

	w.Discard()
	assert.Zero(t, rc.MemoryUsage())

	m, err := w.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID, "nothing pending publishes nothing")
}

func TestCopyOnWriteKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.write(t, model.R(1, 2, 1, 2), 0, []byte{1, 2, 3, 4})

	before := f.reader(t)

	w := NewWriter(f.reader(t), f.manifests)
	tile, err := w.AllocateOrFetchTile(ctx, 0, layout.TileCoord{0, 0})
	require.NoError(t, err)
	tile.WriteRun(0, []byte{42})

	again, err := w.AllocateOrFetchTile(ctx, 0, layout.TileCoord{0, 0})
	require.NoError(t, err)
	assert.Same(t, tile, again)

	_, err = w.AllocateOrFetchTile(ctx, 0, layout.TileCoord{5, 0})
	assert.Error(t, err)

	_, err = w.Flush(ctx)
	require.NoError(t, err)

	old, err := before.ReadCells(ctx, 0, layout.TileCoord{0, 0}, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, old)

	cur, err := f.reader(t).ReadCells(ctx, 0, layout.TileCoord{0, 0}, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 2, 3, 4}, cur)
}

func TestCorruptTile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.opts.Cache = nil
	f.write(t, model.R(1, 2, 1, 2), 0, []byte{1, 2, 3, 4})

	require.NoError(t, f.store.Put(ctx, TilePath(0, layout.TileCoord{0, 0}, 2), []byte{1, 2, 3, 5}))
	_, err := f.reader(t).Tile(ctx, 0, layout.TileCoord{0, 0})
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, err, model.ErrStorageIO)

	require.NoError(t, f.store.Put(ctx, TilePath(0, layout.TileCoord{0, 0}, 2), []byte{1}))
	_, err = f.reader(t).Tile(ctx, 0, layout.TileCoord{0, 0})
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, f.store.Delete(ctx, TilePath(0, layout.TileCoord{0, 0}, 2)))
	_, err = f.reader(t).Tile(ctx, 0, layout.TileCoord{0, 0})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTileCovers(t *testing.T) {
	tile := newTile(0, layout.TileCoord{0}, 2, 8)
	assert.Equal(t, int64(8), tile.Capacity())

	tile.WriteRun(2, []byte{1, 1, 2, 2, 3, 3})
	ok, _ := tile.Covers(2, 3)
	assert.True(t, ok)

	ok, first := tile.Covers(1, 3)
	assert.False(t, ok)
	assert.Equal(t, int64(1), first)

	ok, first = tile.Covers(3, 4)
	assert.False(t, ok)
	assert.Equal(t, int64(5), first)
	assert.Equal(t, []byte{2, 2, 3, 3}, tile.Cells(3, 2))
}

func TestCheckPlan(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, model.R(1, 2, 1, 2), 0, []byte{1, 2, 3, 4})
	f.write(t, model.R(1, 1, 3, 3), 0, []byte{5})

	r := f.reader(t)
	check := func(attr int, region model.Region) error {
		plan, err := r.Layout().Plan(region)
		require.NoError(t, err)
		return r.CheckPlan(attr, plan)
	}

	require.NoError(t, check(0, model.R(1, 2, 1, 2)))
	require.NoError(t, check(0, model.R(1, 1, 1, 3)))

	var uw *UnwrittenError
	err := check(0, model.R(1, 3, 1, 2))
	require.ErrorAs(t, err, &uw)
	assert.Equal(t, "1_0", uw.Tile)
	assert.Equal(t, int64(-1), uw.Offset)

	err = check(0, model.R(1, 2, 3, 3))
	require.ErrorAs(t, err, &uw)
	assert.Equal(t, "0_1", uw.Tile)
	assert.Equal(t, int64(2), uw.Offset)

	err = check(1, model.R(1, 1, 1, 1))
	require.ErrorIs(t, err, ErrTileNotFound)
}
