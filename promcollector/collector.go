package promcollector

import (
	"time"

	"github.com/hupe1980/tessera"
	"github.com/hupe1980/tessera/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "tessera"

// Collector implements tessera.MetricsCollector on Prometheus vectors.
type Collector struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	cells     *prometheus.CounterVec
	tiles     prometheus.Counter
	bytes     prometheus.Counter
}

var _ tessera.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg. A nil reg
// registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of array operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Array operations by outcome",
		}, []string{"op", "status"}),
		cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cells_total",
			Help:      "Cells moved by successful reads and writes",
		}, []string{"op"}),
		tiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "committed_tiles_total",
			Help:      "Tiles published by successful commits",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "committed_bytes_total",
			Help:      "Tile bytes published by successful commits",
		}),
	}
	reg.MustRegister(c.opLatency, c.ops, c.cells, c.tiles, c.bytes)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordCreate implements tessera.MetricsCollector.
func (c *Collector) RecordCreate(d time.Duration, err error) {
	c.observe("create", d, err)
}

// RecordOpen implements tessera.MetricsCollector.
func (c *Collector) RecordOpen(mode model.Mode, d time.Duration, err error) {
	c.observe("open_"+mode.String(), d, err)
}

// RecordWrite implements tessera.MetricsCollector.
func (c *Collector) RecordWrite(cells int64, d time.Duration, err error) {
	c.observe("write", d, err)
	if err == nil {
		c.cells.WithLabelValues("write").Add(float64(cells))
	}
}

// RecordRead implements tessera.MetricsCollector.
func (c *Collector) RecordRead(cells int64, d time.Duration, err error) {
	c.observe("read", d, err)
	if err == nil {
		c.cells.WithLabelValues("read").Add(float64(cells))
	}
}

// RecordCommit implements tessera.MetricsCollector.
func (c *Collector) RecordCommit(tiles int, bytes int64, d time.Duration, err error) {
	c.observe("commit", d, err)
	if err == nil {
		c.tiles.Add(float64(tiles))
		c.bytes.Add(float64(bytes))
	}
}
