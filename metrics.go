package tessera

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/tessera/model"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prometheus subpackage provides a ready-made implementation.
type MetricsCollector interface {
	// RecordCreate is called after each CreateArray.
	RecordCreate(duration time.Duration, err error)

	// RecordOpen is called after each OpenArray.
	RecordOpen(mode model.Mode, duration time.Duration, err error)

	// RecordWrite is called after each Session.Write with the number of
	// cells per attribute in the written region.
	RecordWrite(cells int64, duration time.Duration, err error)

	// RecordRead is called after each Session.Read with the number of
	// cells per attribute in the read region.
	RecordRead(cells int64, duration time.Duration, err error)

	// RecordCommit is called after a write session is closed. tiles and
	// bytes describe the tile blobs written.
	RecordCommit(tiles int, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, error)             {}
func (NoopMetricsCollector) RecordOpen(model.Mode, time.Duration, error)   {}
func (NoopMetricsCollector) RecordWrite(int64, time.Duration, error)       {}
func (NoopMetricsCollector) RecordRead(int64, time.Duration, error)        {}
func (NoopMetricsCollector) RecordCommit(int, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CreateCount      atomic.Int64
	CreateErrors     atomic.Int64
	OpenReadCount    atomic.Int64
	OpenWriteCount   atomic.Int64
	OpenErrors       atomic.Int64
	WriteCount       atomic.Int64
	WriteErrors      atomic.Int64
	WriteCells       atomic.Int64
	WriteTotalNanos  atomic.Int64
	ReadCount        atomic.Int64
	ReadErrors       atomic.Int64
	ReadCells        atomic.Int64
	ReadTotalNanos   atomic.Int64
	CommitCount      atomic.Int64
	CommitErrors     atomic.Int64
	CommitTiles      atomic.Int64
	CommitBytes      atomic.Int64
	CommitTotalNanos atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(_ time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(mode model.Mode, _ time.Duration, err error) {
	if err != nil {
		b.OpenErrors.Add(1)
		return
	}
	if mode == model.ModeWrite {
		b.OpenWriteCount.Add(1)
	} else {
		b.OpenReadCount.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(cells int64, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteCells.Add(cells)
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(cells int64, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ReadCells.Add(cells)
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(tiles int, bytes int64, duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
		return
	}
	b.CommitTiles.Add(int64(tiles))
	b.CommitBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:    b.CreateCount.Load(),
		CreateErrors:   b.CreateErrors.Load(),
		OpenReadCount:  b.OpenReadCount.Load(),
		OpenWriteCount: b.OpenWriteCount.Load(),
		OpenErrors:     b.OpenErrors.Load(),
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		WriteCells:     b.WriteCells.Load(),
		WriteAvgNanos:  avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		ReadCount:      b.ReadCount.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		ReadCells:      b.ReadCells.Load(),
		ReadAvgNanos:   avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		CommitCount:    b.CommitCount.Load(),
		CommitErrors:   b.CommitErrors.Load(),
		CommitTiles:    b.CommitTiles.Load(),
		CommitBytes:    b.CommitBytes.Load(),
		CommitAvgNanos: avg(b.CommitTotalNanos.Load(), b.CommitCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount    int64
	CreateErrors   int64
	OpenReadCount  int64
	OpenWriteCount int64
	OpenErrors     int64
	WriteCount     int64
	WriteErrors    int64
	WriteCells     int64
	WriteAvgNanos  int64
	ReadCount      int64
	ReadErrors     int64
	ReadCells      int64
	ReadAvgNanos   int64
	CommitCount    int64
	CommitErrors   int64
	CommitTiles    int64
	CommitBytes    int64
	CommitAvgNanos int64
}
