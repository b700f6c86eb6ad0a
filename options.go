package tessera

import (
	"log/slog"

	"github.com/hupe1980/tessera/blobstore"
	"github.com/hupe1980/tessera/internal/fs"
)

const (
	// DefaultTileCacheSize is the default capacity of the shared tile cache.
	DefaultTileCacheSize = 64 << 20
	// DefaultFlushWorkers is the default number of tiles written in parallel
	// when a write session is closed.
	DefaultFlushWorkers = 4
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	resolver         blobstore.Resolver
	fs               fs.FileSystem
	tileCacheSize    int64
	memoryLimit      int64
	ioLimit          int64
	flushWorkers     int64
}

// Option configures an Engine.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &tessera.BasicMetricsCollector{}
//	eng := tessera.New(tessera.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Writes: %d, Avg latency: %dns\n", stats.WriteCount, stats.WriteAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := tessera.NewJSONLogger(slog.LevelInfo)
//	eng := tessera.New(tessera.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithStorage sets the resolver that maps array URIs to blob stores.
// The default resolves URIs to local directories.
//
//	eng := tessera.New(tessera.WithStorage(blobstore.NewMemoryResolver()))
func WithStorage(r blobstore.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithFileSystem sets the filesystem used by the default local resolver.
// It has no effect together with WithStorage.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithTileCacheSize sets the capacity in bytes of the tile cache shared by
// all sessions of the engine. Zero disables caching.
func WithTileCacheSize(bytes int64) Option {
	return func(o *options) {
		o.tileCacheSize = bytes
	}
}

// WithMemoryLimit bounds the memory held by pending tiles of write sessions
// and by the tile cache. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit caps the tile bytes moved to and from storage per second.
// Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithFlushWorkers sets how many tiles are written in parallel on commit.
func WithFlushWorkers(n int) Option {
	return func(o *options) {
		o.flushWorkers = int64(n)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		tileCacheSize:    DefaultTileCacheSize,
		flushWorkers:     DefaultFlushWorkers,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.resolver == nil {
		o.resolver = blobstore.LocalResolver{FS: o.fs}
	}
	return o
}
