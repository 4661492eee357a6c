package gmmseg

import (
	"github.com/hupe1980/gmmseg/resource"
)

type options struct {
	logger      *Logger
	metrics     MetricsCollector
	tileSize    int
	parallelism int
	controller  *resource.Controller
}

// Option configures model construction.
type Option func(*options)

// WithLogger configures structured logging. The default discards all output,
// which is the right choice for library embedding.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for monitoring the
// pipeline stages. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithTileSize overrides the tile edge length used by the parallel passes.
// Smaller tiles increase scheduling overhead; larger tiles reduce the
// effectiveness of the per-tile presence skip. The default is 32.
func WithTileSize(size int) Option {
	return func(o *options) {
		o.tileSize = size
	}
}

// WithParallelism bounds the number of concurrently processed tiles per
// pass. Zero or negative means one worker per tile (scheduler-limited).
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithResourceController attaches an admission controller. When set, model
// construction reserves scratch and output memory against its budget and
// each pipeline run takes a run slot, so concurrent segmentations cannot
// exceed the configured limits.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}
