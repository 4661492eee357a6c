package gmmseg

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/hupe1980/gmmseg/internal/gmm"
	"github.com/hupe1980/gmmseg/internal/mat3"
	"github.com/hupe1980/gmmseg/internal/tile"
	"github.com/hupe1980/gmmseg/modelstore"
	"github.com/hupe1980/gmmseg/snapshot"
)

// Channels is the only supported pixel channel count.
const Channels = gmm.Channels

// MaxClusters bounds mixtureCount * gaussiansPerMixture.
const MaxClusters = gmm.MaxClusters

// inputScale converts the [0,1] network output domain into the 0-255
// integer domain used for moment accumulation.
const inputScale = 255

// ErrResourceExhausted is returned when a configured resource controller
// cannot admit the model's buffers.
var ErrResourceExhausted = errors.New("resource budget exhausted")

// Model fits one Gaussian mixture per labeled group on a single image and
// evaluates per-pixel mixture probabilities. It is not safe for concurrent
// use; parallelism lives inside each pipeline pass.
type Model struct {
	opts options

	width               int
	height              int
	mixtureCount        int
	gaussiansPerMixture int

	core *gmm.Model

	reserved int64
	closed   bool
}

// NewModel validates the inputs and builds a model. image is row-major with
// Channels float32 values per pixel in [0,1]; labels holds one int32 per
// pixel in [-1, mixtureCount-1]. All validation failures wrap
// ErrInvalidInput and happen before any parallel pass is dispatched.
func NewModel(image []float32, labels []int32, width, height, mixtureCount, gaussiansPerMixture int, optFns ...Option) (*Model, error) {
	opts := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if width <= 0 || height <= 0 {
		return nil, &ErrInvalidGeometry{Width: width, Height: height}
	}
	npix := width * height
	if len(image) != npix*Channels {
		return nil, &ErrBufferSizeMismatch{Buffer: "image", Expected: npix * Channels, Actual: len(image)}
	}
	if len(labels) != npix {
		return nil, &ErrBufferSizeMismatch{Buffer: "labels", Expected: npix, Actual: len(labels)}
	}
	if err := validateMixtureSpec(mixtureCount, gaussiansPerMixture); err != nil {
		return nil, err
	}
	for i, l := range labels {
		if l < -1 || l >= int32(mixtureCount) {
			return nil, &ErrLabelOutOfRange{Pixel: i, Label: l, Max: int32(mixtureCount) - 1}
		}
	}

	m := &Model{
		opts:                opts,
		width:               width,
		height:              height,
		mixtureCount:        mixtureCount,
		gaussiansPerMixture: gaussiansPerMixture,
	}

	m.reserved = estimateBytes(width, height, mixtureCount*gaussiansPerMixture, opts.tileSize)
	if !opts.controller.TryAcquireMemory(m.reserved) {
		return nil, ErrResourceExhausted
	}

	m.core = gmm.New(gmm.Config{
		Width:               width,
		Height:              height,
		MixtureCount:        mixtureCount,
		GaussiansPerMixture: gaussiansPerMixture,
		TileSize:            opts.tileSize,
		Parallelism:         opts.parallelism,
	}, convertPixels(image), labels)

	opts.logger.Debug("model created",
		"width", width, "height", height,
		"mixtures", mixtureCount, "gaussians_per_mixture", gaussiansPerMixture)

	return m, nil
}

// Close releases memory reserved against the resource controller. It is a
// no-op when no controller is configured.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.opts.controller.ReleaseMemory(m.reserved)
}

// Initialize bootstraps the cluster set from the hard labels by hierarchical
// binary splitting, growing each mixture from one cluster up to
// gaussiansPerMixture clusters.
func (m *Model) Initialize(ctx context.Context) error {
	start := time.Now()
	err := m.core.Initialize(ctx)
	m.opts.metrics.RecordInitialize(time.Since(start), err)
	if err != nil {
		m.opts.logger.Error("initialize failed", "error", err)
		return err
	}
	m.opts.logger.Debug("initialize done", "duration", time.Since(start))
	return nil
}

// Update runs one statistics + finalize + weight-normalization pass over the
// full cluster set (a single EM-style refinement).
func (m *Model) Update(ctx context.Context) error {
	start := time.Now()
	err := m.core.Update(ctx)
	m.opts.metrics.RecordUpdate(time.Since(start), err)
	if err != nil {
		m.opts.logger.Error("update failed", "error", err)
		return err
	}
	m.opts.logger.Debug("update done", "duration", time.Since(start))
	return nil
}

// DataTerm evaluates the normalized per-pixel mixture probabilities into
// dst, which must hold mixtureCount*width*height float32 values and is
// written mixture-major. Outputs sum to 1 per pixel unless every mixture
// responds with exactly zero there, in which case all outputs are zero.
func (m *Model) DataTerm(ctx context.Context, dst []float32) error {
	npix := m.width * m.height
	if len(dst) != m.mixtureCount*npix {
		return &ErrBufferSizeMismatch{Buffer: "output", Expected: m.mixtureCount * npix, Actual: len(dst)}
	}

	start := time.Now()
	err := m.core.DataTerm(ctx, dst)
	m.opts.metrics.RecordDataTerm(npix, time.Since(start), err)
	if err != nil {
		m.opts.logger.Error("data term failed", "error", err)
		return err
	}
	return nil
}

// Export copies the fitted cluster parameters into a snapshot, suitable for
// encoding and publishing via the snapshot and modelstore packages.
func (m *Model) Export() *snapshot.Model {
	clusters := m.core.Clusters()
	out := &snapshot.Model{
		MixtureCount:        m.mixtureCount,
		GaussiansPerMixture: m.gaussiansPerMixture,
		Clusters:            make([]snapshot.Cluster, len(clusters)),
	}
	for i, cl := range clusters {
		out.Clusters[i] = snapshot.Cluster{
			Count:      cl.Count,
			Mean:       cl.Mean,
			Cov:        [6]float64(cl.Cov),
			Det:        cl.Det,
			Inv:        [6]float64(cl.Inv),
			CommonTerm: cl.CommonTerm,
		}
	}
	return out
}

// Restore loads previously fitted cluster parameters, e.g. from a decoded
// snapshot, so DataTerm can run without refitting. The snapshot's mixture
// shape must match the model's.
func (m *Model) Restore(s *snapshot.Model) error {
	if s.MixtureCount != m.mixtureCount || s.GaussiansPerMixture != m.gaussiansPerMixture {
		return &ErrInvalidMixtureSpec{
			MixtureCount:        s.MixtureCount,
			GaussiansPerMixture: s.GaussiansPerMixture,
			Reason:              "snapshot shape does not match model",
		}
	}

	clusters := make([]gmm.Cluster, len(s.Clusters))
	for i, cl := range s.Clusters {
		clusters[i] = gmm.Cluster{
			Count:      cl.Count,
			Mean:       cl.Mean,
			Cov:        mat3.Sym(cl.Cov),
			Det:        cl.Det,
			Inv:        mat3.Sym(cl.Inv),
			CommonTerm: cl.CommonTerm,
		}
	}
	if !m.core.SetClusters(clusters) {
		return &ErrBufferSizeMismatch{
			Buffer:   "snapshot clusters",
			Expected: m.mixtureCount * m.gaussiansPerMixture,
			Actual:   len(clusters),
		}
	}
	return nil
}

// SaveSnapshot encodes the fitted parameters and writes them to the store.
// When a resource controller with an IO limit is configured, the write is
// throttled against it.
func (m *Model) SaveSnapshot(ctx context.Context, store modelstore.Store, name string, compression snapshot.Compression) error {
	data, err := snapshot.Encode(m.Export(), compression)
	if err != nil {
		return err
	}
	if err := m.opts.controller.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return err
	}
	m.opts.logger.Debug("snapshot saved", "name", name, "bytes", len(data))
	return nil
}

// LoadSnapshot reads a previously saved snapshot from the store and restores
// its parameters into the model, so DataTerm can run without refitting.
func (m *Model) LoadSnapshot(ctx context.Context, store modelstore.Store, name string) error {
	data, err := modelstore.ReadAll(ctx, store, name)
	if err != nil {
		return err
	}
	if err := m.opts.controller.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	decoded, err := snapshot.Decode(data)
	if err != nil {
		return err
	}
	return m.Restore(decoded)
}

// ComputeMixtureProbabilities runs the full pipeline once: Initialize,
// Update, DataTerm. It returns a dense (mixtureCount, height, width) buffer
// of probabilities summing to 1 across the mixture axis per pixel.
func ComputeMixtureProbabilities(ctx context.Context, image []float32, labels []int32, width, height, mixtureCount, gaussiansPerMixture int, optFns ...Option) ([]float32, error) {
	opts := options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.controller.AcquireRun(ctx); err != nil {
		return nil, err
	}
	defer opts.controller.ReleaseRun()

	m, err := NewModel(image, labels, width, height, mixtureCount, gaussiansPerMixture, optFns...)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := m.Update(ctx); err != nil {
		return nil, err
	}

	dst := make([]float32, mixtureCount*width*height)
	if err := m.DataTerm(ctx, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

func validateMixtureSpec(mixtureCount, gaussiansPerMixture int) error {
	spec := func(reason string) error {
		return &ErrInvalidMixtureSpec{
			MixtureCount:        mixtureCount,
			GaussiansPerMixture: gaussiansPerMixture,
			Reason:              reason,
		}
	}

	if mixtureCount < 1 || gaussiansPerMixture < 1 {
		return spec("counts must be positive")
	}
	total := mixtureCount * gaussiansPerMixture
	if total < 2 {
		return spec("total cluster count must be at least 2")
	}
	if total&(total-1) != 0 {
		return spec("total cluster count must be expressible as repeated doubling from 2")
	}
	if total > MaxClusters {
		return spec("total cluster count exceeds the supported maximum")
	}
	return nil
}

// convertPixels maps [0,1] inputs into the 0-255 integer domain. Values are
// clamped, so slightly out-of-range network outputs stay finite.
func convertPixels(image []float32) []float32 {
	out := make([]float32, len(image))
	for i, v := range image {
		s := float64(v) * inputScale
		if s < 0 {
			s = 0
		} else if s > inputScale {
			s = inputScale
		}
		out[i] = float32(math.Round(s))
	}
	return out
}

func estimateBytes(width, height, clusters, tileSize int) int64 {
	grid := tile.NewGrid(width, height, tileSize)
	npix := int64(width) * int64(height)

	const momentsSize = 10 * 8
	pixels := npix * Channels * 4
	labels := npix * 4
	scratch := int64(grid.NumTiles()) * int64(clusters) * momentsSize
	output := npix * int64(clusters) * 4
	return pixels + labels + scratch + output
}
