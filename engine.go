package tessera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/tessera/blobstore"
	"github.com/hupe1980/tessera/internal/cache"
	"github.com/hupe1980/tessera/internal/columnar"
	"github.com/hupe1980/tessera/internal/manifest"
	"github.com/hupe1980/tessera/internal/resource"
	"github.com/hupe1980/tessera/model"
	"github.com/hupe1980/tessera/schema"
	"golang.org/x/sync/singleflight"
)

// SchemaFileName is the blob holding the schema descriptor of an array.
const SchemaFileName = "__schema.bin"

// Mode is the capability a session holds on an array.
type Mode = model.Mode

const (
	ModeRead  = model.ModeRead
	ModeWrite = model.ModeWrite
)

// Region is a hyper-rectangle with one closed range per dimension.
type Region = model.Region

// Range is a closed interval on one dimension.
type Range = model.Range

// R builds a Region from lo/hi pairs: R(1, 2, 2, 4) is rows [1,2], cols [2,4].
func R(bounds ...int64) Region { return model.R(bounds...) }

// Engine is the entry point for creating and opening arrays. It owns the
// state shared by its sessions: the write lease table, the tile cache and
// the resource controller.
//
// An Engine is safe for concurrent use; each Session must be used by one
// goroutine at a time.
type Engine struct {
	opts  options
	rc    *resource.Controller
	cache cache.TileCache
	loads singleflight.Group

	mu      sync.Mutex
	writers map[string]struct{}
	closed  bool
}

// New creates an Engine.
func New(optFns ...Option) *Engine {
	o := applyOptions(optFns)
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		MaxWorkers:         o.flushWorkers,
		IOLimitBytesPerSec: o.ioLimit,
	})
	e := &Engine{
		opts:    o,
		rc:      rc,
		writers: make(map[string]struct{}),
	}
	if o.tileCacheSize > 0 {
		e.cache = cache.NewSharded(o.tileCacheSize, rc)
	}
	return e
}

// Close releases the tile cache. Sessions must be closed first.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

// MemoryUsage returns the bytes currently held by pending tiles and the
// tile cache.
func (e *Engine) MemoryUsage() int64 { return e.rc.MemoryUsage() }

func (e *Engine) resolve(uri string) (blobstore.BlobStore, string, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, "", ErrClosed
	}

	store, err := e.opts.resolver.Resolve(uri)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q: %w", ErrSchemaNotFound, uri, err)
	}
	return store, arrayKey(uri, store), nil
}

// arrayKey identifies an array independently of how its URI was spelled.
func arrayKey(uri string, store blobstore.BlobStore) string {
	if r, ok := store.(interface{ Root() string }); ok {
		return "file://" + r.Root()
	}
	return strings.TrimPrefix(uri, "mem://")
}

// CreateArray persists schema s and an empty tile index at uri.
func (e *Engine) CreateArray(ctx context.Context, uri string, s *schema.Schema) (err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordCreate(time.Since(start), err)
		e.opts.logger.LogCreate(ctx, uri, err)
	}()

	if s == nil {
		return fmt.Errorf("%w: nil schema", ErrSchema)
	}
	if s.Sparse() {
		return schema.ErrSparseUnsupported
	}

	store, key, err := e.resolve(uri)
	if err != nil {
		return err
	}

	if err := checkAbsent(ctx, store, uri); err != nil {
		return err
	}

	// Hold the write lease so a concurrent create cannot interleave, then
	// check again under it.
	release, err := e.acquireWriter(key, store)
	if err != nil {
		return err
	}
	defer release()

	if err := checkAbsent(ctx, store, uri); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.WriteBinary(&buf); err != nil {
		return translateError(err)
	}
	if err := manifest.NewStore(store).Save(ctx, manifest.New(s.AttributeNames())); err != nil {
		return translateError(err)
	}
	// The descriptor goes last: an array exists once its schema is visible.
	if err := store.Put(ctx, SchemaFileName, buf.Bytes()); err != nil {
		return translateError(err)
	}
	return nil
}

func checkAbsent(ctx context.Context, store blobstore.BlobStore, uri string) error {
	exists, err := schemaExists(ctx, store)
	if err != nil {
		return translateError(err)
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, uri)
	}
	return nil
}

func schemaExists(ctx context.Context, store blobstore.BlobStore) (bool, error) {
	b, err := store.Open(ctx, SchemaFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, b.Close()
}

// ArrayExists reports whether an array is present at uri.
func (e *Engine) ArrayExists(ctx context.Context, uri string) (bool, error) {
	store, _, err := e.resolve(uri)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return false, err
		}
		return false, nil
	}
	ok, err := schemaExists(ctx, store)
	return ok, translateError(err)
}

// LoadSchema reads the schema of the array at uri.
func (e *Engine) LoadSchema(ctx context.Context, uri string) (*schema.Schema, error) {
	store, _, err := e.resolve(uri)
	if err != nil {
		return nil, err
	}
	return loadSchema(ctx, store, uri)
}

func loadSchema(ctx context.Context, store blobstore.BlobStore, uri string) (*schema.Schema, error) {
	data, err := blobstore.ReadAll(ctx, store, SchemaFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrSchemaNotFound, uri)
		}
		return nil, translateError(err)
	}
	s, err := schema.ReadBinary(bytes.NewReader(data))
	if err != nil {
		return nil, translateError(err)
	}
	return s, nil
}

// acquireWriter takes the write lease of an array: in process through the
// lease table, across processes through the store's lock if it has one.
func (e *Engine) acquireWriter(key string, store blobstore.BlobStore) (func(), error) {
	e.mu.Lock()
	if _, busy := e.writers[key]; busy {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: write session already open on %s", ErrIncompatibleMode, key)
	}
	e.writers[key] = struct{}{}
	e.mu.Unlock()

	var lock io.Closer
	if l, ok := store.(blobstore.Locker); ok {
		var err error
		if lock, err = l.TryLock(); err != nil {
			e.releaseWriter(key)
			return nil, translateError(err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if lock != nil {
				if err := lock.Close(); err != nil {
					e.opts.logger.Warn("release array lock failed", "array", key, "error", err)
				}
			}
			e.releaseWriter(key)
		})
	}, nil
}

func (e *Engine) releaseWriter(key string) {
	e.mu.Lock()
	delete(e.writers, key)
	e.mu.Unlock()
}

// OpenArray opens a session on the array at uri. A read session sees the
// commit that is current when it opens. At most one write session may be
// open per array; a second attempt fails with ErrIncompatibleMode.
func (e *Engine) OpenArray(ctx context.Context, uri string, mode Mode) (sess *Session, err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordOpen(mode, time.Since(start), err)
		var commit uint64
		if sess != nil {
			commit = sess.Commit()
		}
		e.opts.logger.LogOpen(ctx, uri, mode, commit, err)
	}()

	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrIncompatibleMode, mode)
	}

	store, key, err := e.resolve(uri)
	if err != nil {
		return nil, err
	}
	s, err := loadSchema(ctx, store, uri)
	if err != nil {
		return nil, err
	}

	res := &sessionResources{}
	if mode == ModeWrite {
		if res.release, err = e.acquireWriter(key, store); err != nil {
			return nil, err
		}
	}

	manifests := manifest.NewStore(store)
	m, err := manifests.Load(ctx)
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		m = manifest.New(s.AttributeNames())
	case err != nil:
		res.free()
		return nil, translateError(err)
	}

	reader := columnar.NewReader(key, store, s, m, columnar.Options{
		Cache:     e.cache,
		Resources: e.rc,
		Loads:     &e.loads,
	})

	sess = &Session{
		engine: e,
		uri:    uri,
		mode:   mode,
		schema: s,
		reader: reader,
		res:    res,
		log:    e.opts.logger.WithArray(uri),
	}
	if mode == ModeWrite {
		res.writer = columnar.NewWriter(reader, manifests)
	}
	sess.cleanup = runtime.AddCleanup(sess, (*sessionResources).free, res)
	return sess, nil
}

// Do opens a session, runs fn and ends the session on every exit path:
// it is closed (committing writes) when fn succeeds, and aborted when fn
// returns an error or panics.
func (e *Engine) Do(ctx context.Context, uri string, mode Mode, fn func(*Session) error) (err error) {
	sess, err := e.OpenArray(ctx, uri, mode)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			sess.Abort()
			panic(p)
		}
	}()

	if err := fn(sess); err != nil {
		sess.Abort()
		return err
	}
	return sess.CloseContext(ctx)
}
