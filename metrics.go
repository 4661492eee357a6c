package gmmseg

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordInitialize is called after each hierarchical initialization.
	RecordInitialize(duration time.Duration, err error)

	// RecordUpdate is called after each statistics/finalize/normalize pass.
	RecordUpdate(duration time.Duration, err error)

	// RecordDataTerm is called after each dense probability evaluation.
	// pixels is the number of pixels evaluated.
	RecordDataTerm(pixels int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInitialize(time.Duration, error)   {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)       {}
func (NoopMetricsCollector) RecordDataTerm(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InitializeCount      atomic.Int64
	InitializeErrors     atomic.Int64
	InitializeTotalNanos atomic.Int64
	UpdateCount          atomic.Int64
	UpdateErrors         atomic.Int64
	UpdateTotalNanos     atomic.Int64
	DataTermCount        atomic.Int64
	DataTermErrors       atomic.Int64
	DataTermPixels       atomic.Int64
	DataTermTotalNanos   atomic.Int64
}

// RecordInitialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInitialize(duration time.Duration, err error) {
	b.InitializeCount.Add(1)
	b.InitializeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InitializeErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	b.UpdateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordDataTerm implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDataTerm(pixels int, duration time.Duration, err error) {
	b.DataTermCount.Add(1)
	b.DataTermPixels.Add(int64(pixels))
	b.DataTermTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DataTermErrors.Add(1)
	}
}
