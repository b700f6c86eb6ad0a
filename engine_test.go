package tessera_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/tessera"
	"github.com/hupe1980/tessera/blobstore"
	"github.com/hupe1980/tessera/internal/fs"
	"github.com/hupe1980/tessera/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSchema(t *testing.T, extent int64, opts ...schema.Option) *schema.Schema {
	t.Helper()
	dom, err := schema.DefineDomain(
		schema.Dimension{Name: "rows", Type: schema.DimInt32, Lo: 1, Hi: 4, Extent: extent},
		schema.Dimension{Name: "cols", Type: schema.DimInt32, Lo: 1, Hi: 4, Extent: extent},
	)
	require.NoError(t, err)
	s, err := schema.DefineSchema(dom, []schema.Attribute{
		{Name: "a1", Type: schema.Scalar(schema.Uint8)},
		{Name: "a2", Type: schema.Tuple(schema.Float32, 2)},
	}, false, opts...)
	require.NoError(t, err)
	return s
}

func tutorialBuffers() map[string]tessera.Buffer {
	a1 := make([]uint8, 16)
	a2 := make([]float32, 32)
	for i := range 16 {
		a1[i] = uint8(97 + i)
		a2[2*i] = float32(float64(i+1) + 0.1)
		a2[2*i+1] = float32(float64(i+1) + 0.2)
	}
	return map[string]tessera.Buffer{
		"a1": tessera.NewBuffer(a1...),
		"a2": tessera.NewTupleBuffer(2, a2...),
	}
}

func newMemEngine(t *testing.T, opts ...tessera.Option) *tessera.Engine {
	t.Helper()
	opts = append([]tessera.Option{tessera.WithStorage(blobstore.NewMemoryResolver())}, opts...)
	eng := tessera.New(opts...)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// createTutorial creates the 4x4 array and commits the full-domain write.
func createTutorial(t *testing.T, eng *tessera.Engine, uri string, extent int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, eng.CreateArray(ctx, uri, newSchema(t, extent)))
	require.NoError(t, eng.Do(ctx, uri, tessera.ModeWrite, func(w *tessera.Session) error {
		return w.Write(ctx, tessera.R(1, 4, 1, 4), tutorialBuffers())
	}))
}

func readA1(t *testing.T, eng *tessera.Engine, uri string, region tessera.Region) ([]uint8, error) {
	t.Helper()
	ctx := context.Background()
	r, err := eng.OpenArray(ctx, uri, tessera.ModeRead)
	require.NoError(t, err)
	defer r.Close()
	res, err := r.Read(ctx, region, "a1")
	if err != nil {
		return nil, err
	}
	return tessera.ValuesOf[uint8](res, "a1")
}

func TestTutorial(t *testing.T) {
	ctx := context.Background()

	for _, extent := range []int64{4, 2, 3, 1} {
		eng := newMemEngine(t)
		createTutorial(t, eng, "mem://quickstart_dense", extent)

		r, err := eng.OpenArray(ctx, "mem://quickstart_dense", tessera.ModeRead)
		require.NoError(t, err)

		res, err := r.Read(ctx, tessera.R(1, 2, 2, 4))
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, res.Attributes())

		a1, err := tessera.ValuesOf[uint8](res, "a1")
		require.NoError(t, err)
		assert.Equal(t, []uint8{98, 99, 100, 102, 103, 104}, a1, "extent %d", extent)

		a2, err := tessera.ValuesOf[float32](res, "a2")
		require.NoError(t, err)
		assert.Equal(t, []float32{2.1, 2.2, 3.1, 3.2, 4.1, 4.2, 6.1, 6.2, 7.1, 7.2, 8.1, 8.2}, a2, "extent %d", extent)

		full, err := r.Read(ctx, tessera.R(1, 4, 1, 4))
		require.NoError(t, err)
		want := tutorialBuffers()
		for _, name := range []string{"a1", "a2"} {
			b, ok := full.Buffer(name)
			require.True(t, ok)
			assert.Equal(t, want[name].Data, b.Data, "extent %d attribute %s", extent, name)
		}

		only, err := r.Read(ctx, tessera.R(1, 2, 2, 4), "a1")
		require.NoError(t, err)
		assert.Equal(t, 1, only.Len())
		_, ok := only.Buffer("a2")
		assert.False(t, ok)

		_, err = r.Read(ctx, tessera.R(1, 2, 2, 4), "a3")
		require.ErrorIs(t, err, tessera.ErrUnknownAttribute)
		require.ErrorIs(t, err, tessera.ErrSchema)

		require.NoError(t, r.Close())
	}
}

func TestColMajorCellOrder(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	s := newSchema(t, 2, schema.WithCellOrder(schema.ColMajor), schema.WithTileOrder(schema.ColMajor))
	require.NoError(t, eng.CreateArray(ctx, "mem://col", s))

	// Cells of region rows [1,2] x cols [1,3] in column-major order.
	in := []uint8{11, 21, 12, 22, 13, 23}
	require.NoError(t, eng.Do(ctx, "mem://col", tessera.ModeWrite, func(w *tessera.Session) error {
		return w.Write(ctx, tessera.R(1, 2, 1, 3), map[string]tessera.Buffer{"a1": tessera.NewBuffer(in...)})
	}))

	got, err := readA1(t, eng, "mem://col", tessera.R(1, 2, 1, 3))
	require.NoError(t, err)
	assert.Equal(t, in, got)

	got, err = readA1(t, eng, "mem://col", tessera.R(2, 2, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []uint8{22, 23}, got)
}

func TestCreateArray(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	s := newSchema(t, 2)

	ok, err := eng.ArrayExists(ctx, "mem://a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, eng.CreateArray(ctx, "mem://a", s))

	ok, err = eng.ArrayExists(ctx, "mem://a")
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := eng.LoadSchema(ctx, "mem://a")
	require.NoError(t, err)
	assert.True(t, s.Equal(loaded))

	err = eng.CreateArray(ctx, "mem://a", s)
	require.ErrorIs(t, err, tessera.ErrAlreadyExists)
	require.ErrorIs(t, err, tessera.ErrConcurrency)

	_, err = eng.OpenArray(ctx, "mem://missing", tessera.ModeRead)
	require.ErrorIs(t, err, tessera.ErrSchemaNotFound)
	require.ErrorIs(t, err, tessera.ErrNotFound)

	_, err = eng.LoadSchema(ctx, "mem://")
	require.ErrorIs(t, err, tessera.ErrNotFound)

	_, err = schema.DefineSchema(s.Domain(), s.Attributes(), true)
	require.ErrorIs(t, err, schema.ErrSparseUnsupported)
}

func TestFreshArrayIsEmpty(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	require.NoError(t, eng.CreateArray(ctx, "mem://a", newSchema(t, 2)))

	r, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint64(1), r.Commit())
	_, ok := r.NonEmptyDomain()
	assert.False(t, ok)

	_, err = r.Read(ctx, tessera.R(1, 1, 1, 1))
	require.ErrorIs(t, err, tessera.ErrTileNotFound)
	require.ErrorIs(t, err, tessera.ErrNotFound)
}

func TestShapeMismatchLeavesNoPartialWrite(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	createTutorial(t, eng, "mem://a", 2)

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)

	// a1 is well formed, a2 is one cell short.
	err = w.Write(ctx, tessera.R(1, 2, 1, 2), map[string]tessera.Buffer{
		"a1": tessera.NewBuffer[uint8](1, 2, 3, 4),
		"a2": tessera.NewTupleBuffer[float32](2, 1, 1, 2, 2, 3, 3),
	})
	var shape *tessera.ShapeMismatchError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "a2", shape.Attribute)
	assert.Equal(t, int64(4), shape.Expected)
	assert.Equal(t, int64(3), shape.Actual)
	require.ErrorIs(t, err, tessera.ErrShapeMismatch)

	// A ragged byte length is a shape mismatch too.
	err = w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{
		"a2": {Type: schema.Tuple(schema.Float32, 2), Data: make([]byte, 7)},
	})
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, int64(-1), shape.Actual)

	require.NoError(t, w.Close())

	got, err := readA1(t, eng, "mem://a", tessera.R(1, 2, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []uint8{97, 98, 101, 102}, got)
}

func TestWriteValidation(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	require.NoError(t, eng.CreateArray(ctx, "mem://a", newSchema(t, 2)))

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	defer w.Abort()

	tests := []struct {
		name    string
		region  tessera.Region
		buffers map[string]tessera.Buffer
		want    error
	}{
		{
			name:    "no buffers",
			region:  tessera.R(1, 1, 1, 1),
			buffers: map[string]tessera.Buffer{},
			want:    tessera.ErrAttributeSchemaMismatch,
		},
		{
			name:    "unknown attribute",
			region:  tessera.R(1, 1, 1, 1),
			buffers: map[string]tessera.Buffer{"nope": tessera.NewBuffer[uint8](1)},
			want:    tessera.ErrAttributeSchemaMismatch,
		},
		{
			name:    "wrong type",
			region:  tessera.R(1, 1, 1, 1),
			buffers: map[string]tessera.Buffer{"a1": tessera.NewBuffer[int8](1)},
			want:    tessera.ErrAttributeSchemaMismatch,
		},
		{
			name:    "outside domain",
			region:  tessera.R(0, 1, 1, 1),
			buffers: map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1, 2)},
			want:    tessera.ErrOutOfDomain,
		},
		{
			name:    "inverted range",
			region:  tessera.R(2, 1, 1, 1),
			buffers: map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1)},
			want:    tessera.ErrInvalidRegion,
		},
		{
			name:    "wrong rank",
			region:  tessera.R(1, 1),
			buffers: map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1)},
			want:    tessera.ErrDomain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Write(ctx, tt.region, tt.buffers)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDomainErrorsTouchNoStorage(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{BlobStore: blobstore.NewMemoryStore()}
	eng := tessera.New(tessera.WithStorage(singleStore{store}), tessera.WithTileCacheSize(0))
	defer eng.Close()

	createTutorial(t, eng, "mem://a", 2)

	r, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	defer r.Close()

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	defer w.Abort()

	before := store.opens.Load()
	_, err = r.Read(ctx, tessera.R(3, 5, 1, 1))
	require.ErrorIs(t, err, tessera.ErrOutOfDomain)
	_, err = r.Read(ctx, tessera.R(1, 1, -1, 0), "a1")
	require.ErrorIs(t, err, tessera.ErrDomain)
	err = w.Write(ctx, tessera.R(4, 5, 4, 4), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1, 2)})
	require.ErrorIs(t, err, tessera.ErrOutOfDomain)
	assert.Equal(t, before, store.opens.Load())
}

func TestSessionModes(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	createTutorial(t, eng, "mem://a", 2)

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)

	_, err = eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.ErrorIs(t, err, tessera.ErrIncompatibleMode)
	require.ErrorIs(t, err, tessera.ErrConcurrency)

	// Readers coexist with the writer.
	r1, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	r2, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)

	_, err = w.Read(ctx, tessera.R(1, 1, 1, 1))
	require.ErrorIs(t, err, tessera.ErrIncompatibleMode)
	err = r1.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1)})
	require.ErrorIs(t, err, tessera.ErrIncompatibleMode)

	require.NoError(t, w.Close())
	require.NoError(t, r1.Close())
	require.NoError(t, r2.Close())

	// The lease is free again.
	w, err = eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Other arrays are independent.
	require.NoError(t, eng.CreateArray(ctx, "mem://b", newSchema(t, 2)))
	w, err = eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	wb, err := eng.OpenArray(ctx, "mem://b", tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, wb.Close())
	require.NoError(t, w.Close())

	_, err = eng.OpenArray(ctx, "mem://a", tessera.Mode(9))
	require.ErrorIs(t, err, tessera.ErrIncompatibleMode)
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mc := &tessera.BasicMetricsCollector{}
	eng := newMemEngine(t, tessera.WithMetricsCollector(mc))
	createTutorial(t, eng, "mem://a", 2)

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](200)}))
	require.NoError(t, w.Close())
	commits := mc.GetStats().CommitCount
	require.NoError(t, w.Close())
	assert.Equal(t, commits, mc.GetStats().CommitCount)

	err = w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1)})
	require.ErrorIs(t, err, tessera.ErrClosed)

	r, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Read(ctx, tessera.R(1, 1, 1, 1))
	require.ErrorIs(t, err, tessera.ErrClosed)
}

func TestWriteVisibility(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	createTutorial(t, eng, "mem://a", 2)

	before, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	defer before.Close()

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 2), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1, 2)}))

	// Not visible before Close.
	got, err := readA1(t, eng, "mem://a", tessera.R(1, 1, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []uint8{97, 98}, got)

	require.NoError(t, w.Close())

	got, err = readA1(t, eng, "mem://a", tessera.R(1, 1, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2}, got)

	// A reader opened earlier keeps its snapshot.
	res, err := before.Read(ctx, tessera.R(1, 1, 1, 2), "a1")
	require.NoError(t, err)
	old, err := tessera.ValuesOf[uint8](res, "a1")
	require.NoError(t, err)
	assert.Equal(t, []uint8{97, 98}, old)
	assert.Less(t, before.Commit(), w.Commit())

	// a2 was not part of the second write and keeps its value.
	r, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	defer r.Close()
	res, err = r.Read(ctx, tessera.R(1, 1, 1, 1), "a2")
	require.NoError(t, err)
	a2, err := tessera.ValuesOf[float32](res, "a2")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.1, 1.2}, a2)
}

func TestPartialWritesAcrossSessions(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	require.NoError(t, eng.CreateArray(ctx, "mem://a", newSchema(t, 4)))

	write := func(region tessera.Region, vals ...uint8) {
		require.NoError(t, eng.Do(ctx, "mem://a", tessera.ModeWrite, func(w *tessera.Session) error {
			return w.Write(ctx, region, map[string]tessera.Buffer{"a1": tessera.NewBuffer(vals...)})
		}))
	}
	write(tessera.R(1, 1, 1, 4), 1, 2, 3, 4)
	write(tessera.R(2, 2, 1, 4), 5, 6, 7, 8)

	got, err := readA1(t, eng, "mem://a", tessera.R(1, 2, 1, 4))
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6, 7, 8}, got)

	_, err = readA1(t, eng, "mem://a", tessera.R(2, 3, 1, 1))
	require.ErrorIs(t, err, tessera.ErrTileNotFound)

	// a2 was never written.
	r, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Read(ctx, tessera.R(1, 1, 1, 1), "a2")
	require.ErrorIs(t, err, tessera.ErrTileNotFound)

	box, ok := r.NonEmptyDomain()
	require.True(t, ok)
	assert.Equal(t, tessera.R(1, 2, 1, 4), box)
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	createTutorial(t, eng, "mem://a", 2)

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, tessera.R(1, 4, 1, 4), map[string]tessera.Buffer{"a1": tessera.NewBuffer(make([]uint8, 16)...)}))
	assert.Positive(t, eng.MemoryUsage())
	w.Abort()
	w.Abort()
	require.NoError(t, w.Close())

	got, err := readA1(t, eng, "mem://a", tessera.R(1, 1, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []uint8{97, 98}, got)

	w, err = eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	w.Abort()
}

func TestDo(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	createTutorial(t, eng, "mem://a", 2)

	boom := errors.New("boom")
	err := eng.Do(ctx, "mem://a", tessera.ModeWrite, func(w *tessera.Session) error {
		if err := w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](0)}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = eng.Do(ctx, "mem://a", tessera.ModeWrite, func(w *tessera.Session) error {
			_ = w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](0)})
			panic("boom")
		})
	})

	got, err := readA1(t, eng, "mem://a", tessera.R(1, 1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []uint8{97}, got)

	// Both failures gave the lease back.
	err = eng.Do(ctx, "mem://a", tessera.ModeRead, func(r *tessera.Session) error {
		res, err := r.Query().Do(ctx)
		if err != nil {
			return err
		}
		b, ok := res.Buffer("a1")
		assert.True(t, ok)
		assert.Equal(t, int64(16), b.Len())
		return nil
	})
	require.NoError(t, err)
}

func TestAbandonedSessionReleasesLease(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	require.NoError(t, eng.CreateArray(ctx, "mem://a", newSchema(t, 2)))

	func() {
		w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
		require.NoError(t, err)
		require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1)}))
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
		if err != nil {
			return false
		}
		w.Abort()
		return true
	}, 5*time.Second, 10*time.Millisecond)

	_, err := readA1(t, eng, "mem://a", tessera.R(1, 1, 1, 1))
	require.ErrorIs(t, err, tessera.ErrTileNotFound)
}

func TestMemoryLimit(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t, tessera.WithMemoryLimit(64), tessera.WithTileCacheSize(0))
	require.NoError(t, eng.CreateArray(ctx, "mem://a", newSchema(t, 4)))

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	defer w.Abort()

	// One a2 tile holds 16 cells of 8 bytes.
	err = w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a2": tessera.NewTupleBuffer[float32](2, 1, 2)})
	require.ErrorIs(t, err, tessera.ErrMemoryLimitExceeded)
	require.ErrorIs(t, err, tessera.ErrStorageIO)
	assert.True(t, tessera.IsRetryable(err))
	assert.Zero(t, eng.MemoryUsage())

	// a1 fits.
	require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](1)}))
	assert.Equal(t, int64(16), eng.MemoryUsage())
}

func TestConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	createTutorial(t, eng, "mem://a", 2)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := eng.Do(ctx, "mem://a", tessera.ModeRead, func(r *tessera.Session) error {
				for range 20 {
					res, err := r.Read(ctx, tessera.R(1, 2, 2, 4), "a1")
					if err != nil {
						return err
					}
					got, err := tessera.ValuesOf[uint8](res, "a1")
					if err != nil {
						return err
					}
					if string(got) != "bcdfgh" {
						return errors.New("unexpected cells " + string(got))
					}
				}
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestEngineClose(t *testing.T) {
	ctx := context.Background()
	eng := tessera.New(tessera.WithStorage(blobstore.NewMemoryResolver()))
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	err := eng.CreateArray(ctx, "mem://a", newSchema(t, 2))
	require.ErrorIs(t, err, tessera.ErrClosed)
	_, err = eng.ArrayExists(ctx, "mem://a")
	require.ErrorIs(t, err, tessera.ErrClosed)
}

func TestLocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "quickstart_dense")

	eng := tessera.New()
	createTutorial(t, eng, dir, 4)
	require.NoError(t, eng.Close())

	for _, name := range []string{tessera.SchemaFileName, "CURRENT", "tiles/0/0_0-2.tile", "tiles/1/0_0-2.tile"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	// A new engine sees the committed array, also through a file:// URI.
	eng = tessera.New()
	defer eng.Close()
	got, err := readA1(t, eng, "file://"+dir, tessera.R(1, 2, 2, 4))
	require.NoError(t, err)
	assert.Equal(t, []uint8{98, 99, 100, 102, 103, 104}, got)
}

func TestLocalWriteLockAcrossEngines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e1 := tessera.New()
	defer e1.Close()
	e2 := tessera.New()
	defer e2.Close()

	require.NoError(t, e1.CreateArray(ctx, dir, newSchema(t, 2)))

	w, err := e1.OpenArray(ctx, dir, tessera.ModeWrite)
	require.NoError(t, err)

	_, err = e2.OpenArray(ctx, dir, tessera.ModeWrite)
	require.ErrorIs(t, err, tessera.ErrIncompatibleMode)

	r, err := e2.OpenArray(ctx, dir, tessera.ModeRead)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	require.NoError(t, w.Close())

	w, err = e2.OpenArray(ctx, dir, tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestCommitFailureKeepsPreviousCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	faulty := fs.NewFaultyFS(nil)

	eng := tessera.New(tessera.WithFileSystem(faulty), tessera.WithTileCacheSize(0))
	defer eng.Close()
	createTutorial(t, eng, dir, 2)

	w, err := eng.OpenArray(ctx, dir, tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](0)}))

	faulty.AddRule("-3.tile", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	err = w.Close()
	require.ErrorIs(t, err, tessera.ErrStorageIO)
	assert.True(t, tessera.IsRetryable(err))
	faulty.Reset()

	got, err := readA1(t, eng, dir, tessera.R(1, 1, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []uint8{97, 98}, got)

	// The lease was released despite the failure.
	w, err = eng.OpenArray(ctx, dir, tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestManifestFailureKeepsPreviousCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	faulty := fs.NewFaultyFS(nil)

	eng := tessera.New(tessera.WithFileSystem(faulty))
	defer eng.Close()
	createTutorial(t, eng, dir, 2)

	w, err := eng.OpenArray(ctx, dir, tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](0)}))

	faulty.AddRule("CURRENT", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	err = w.Close()
	require.ErrorIs(t, err, tessera.ErrStorageIO)
	faulty.Reset()

	got, err := readA1(t, eng, dir, tessera.R(1, 1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []uint8{97}, got)
}

type countingStore struct {
	blobstore.BlobStore
	opens atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	s.opens.Add(1)
	return s.BlobStore.Open(ctx, name)
}

type singleStore struct{ store blobstore.BlobStore }

func (r singleStore) Resolve(string) (blobstore.BlobStore, error) { return r.store, nil }

func TestCommitAfterClose(t *testing.T) {
	ctx := context.Background()
	eng := newMemEngine(t)
	createTutorial(t, eng, "mem://a", 2)

	w, err := eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), w.Commit())
	require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](7)}))
	assert.Equal(t, uint64(2), w.Commit())
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(3), w.Commit())

	r, err := eng.OpenArray(ctx, "mem://a", tessera.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, w.Commit(), r.Commit())
	require.NoError(t, r.Close())

	// Nothing pending publishes nothing.
	w, err = eng.OpenArray(ctx, "mem://a", tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(3), w.Commit())

	// A failed commit keeps the base commit.
	ffs := fs.NewFaultyFS(nil)
	dir := t.TempDir()
	leng := tessera.New(tessera.WithFileSystem(ffs))
	defer leng.Close()
	createTutorial(t, leng, dir, 2)
	w, err = leng.OpenArray(ctx, dir, tessera.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, tessera.R(1, 1, 1, 1), map[string]tessera.Buffer{"a1": tessera.NewBuffer[uint8](7)}))
	ffs.AddRule("CURRENT", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	require.Error(t, w.Close())
	assert.Equal(t, uint64(2), w.Commit())
}

func TestReadOfUnwrittenRegionFailsBeforeLoading(t *testing.T) {
	ctx := context.Background()
	dom, err := schema.DefineDomain(schema.Dimension{Name: "x", Lo: 0, Hi: 1<<30 - 1, Extent: 1 << 20})
	require.NoError(t, err)
	s, err := schema.DefineSchema(dom, []schema.Attribute{{Name: "v", Type: schema.Scalar(schema.Float64)}}, false)
	require.NoError(t, err)

	store := &countingStore{BlobStore: blobstore.NewMemoryStore()}
	eng := tessera.New(tessera.WithStorage(singleStore{store}), tessera.WithTileCacheSize(0))
	defer eng.Close()
	require.NoError(t, eng.CreateArray(ctx, "mem://big", s))
	require.NoError(t, eng.Do(ctx, "mem://big", tessera.ModeWrite, func(w *tessera.Session) error {
		return w.Write(ctx, tessera.R(0, 9), map[string]tessera.Buffer{"v": tessera.NewBuffer(make([]float64, 10)...)})
	}))

	r, err := eng.OpenArray(ctx, "mem://big", tessera.ModeRead)
	require.NoError(t, err)
	defer r.Close()
	opens := store.opens.Load()

	// 2^30 float64 cells would need 8 GiB of output.
	_, err = r.Read(ctx, dom.Full())
	require.ErrorIs(t, err, tessera.ErrTileNotFound)

	// The tile exists but cells 10.. were never written.
	_, err = r.Read(ctx, tessera.R(5, 20))
	require.ErrorIs(t, err, tessera.ErrTileNotFound)
	assert.Equal(t, opens, store.opens.Load())

	_, err = r.Read(ctx, tessera.R(0, 9))
	require.NoError(t, err)
	assert.Greater(t, store.opens.Load(), opens)
}
