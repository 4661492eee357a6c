// Package gmm fits one Gaussian mixture model per labeled group directly on
// image pixels and evaluates the resulting densities. The pipeline is a
// fixed sequence of parallel passes: per-tile sufficient statistics, global
// finalization, hierarchical splitting up to the target cluster count, and
// a final per-pixel density evaluation.
//
// This is an internal package - external users should use the gmmseg package.
package gmm

import (
	"context"

	"github.com/hupe1980/gmmseg/internal/mat3"
	"github.com/hupe1980/gmmseg/internal/tile"
)

// Channels is the only supported channel count.
const Channels = 3

// CovarianceEpsilon is added to each covariance diagonal entry during
// finalization so the matrix stays non-singular for tight clusters.
const CovarianceEpsilon = 1e-3

// MaxClusters bounds mixtureCount * gaussiansPerMixture so per-tile cluster
// presence fits a single 64-bit mask.
const MaxClusters = 64

// Cluster is one Gaussian component. Count, Mean, Cov and Det are valid
// after finalization; Inv only when finalization was asked for it;
// CommonTerm after weight normalization.
type Cluster struct {
	Count      float64
	Mean       [3]float64
	Cov        mat3.Sym
	Det        float64
	Inv        mat3.Sym
	CommonTerm float64
}

// Config describes the fixed geometry of one fitting problem.
type Config struct {
	Width               int
	Height              int
	MixtureCount        int
	GaussiansPerMixture int
	TileSize            int
	Parallelism         int
}

func (c Config) clusterCount() int {
	return c.MixtureCount * c.GaussiansPerMixture
}

// Model holds the mutable state of one image's mixture fit. It is not safe
// for concurrent use; the parallelism lives inside each pass.
//
// Cluster storage is rank-interleaved: the cluster of split rank j in
// mixture mi sits at index j*MixtureCount + mi. Rank 0 clusters therefore
// coincide with the initial label values.
type Model struct {
	cfg    Config
	pixels []float32 // 0..255 integer domain, Channels per pixel
	labels *LabelMap

	clusters []Cluster
	ranks    int // live split ranks per mixture, in [1, GaussiansPerMixture]

	grid    tile.Grid
	scratch *scratch
}

// New assembles a model over pre-validated buffers. pixels must already be
// converted to the 0..255 domain and labels must hold values in
// [-1, MixtureCount-1].
func New(cfg Config, pixels []float32, labels []int32) *Model {
	grid := tile.NewGrid(cfg.Width, cfg.Height, cfg.TileSize)

	return &Model{
		cfg:      cfg,
		pixels:   pixels,
		labels:   NewLabelMap(labels, cfg.clusterCount()),
		clusters: make([]Cluster, cfg.clusterCount()),
		ranks:    1,
		grid:     grid,
		scratch:  newScratch(grid.NumTiles(), cfg.clusterCount()),
	}
}

// pixelAt returns pixel i as a float64 triple.
func (m *Model) pixelAt(i int) [3]float64 {
	off := i * Channels
	return [3]float64{
		float64(m.pixels[off]),
		float64(m.pixels[off+1]),
		float64(m.pixels[off+2]),
	}
}

// live returns the number of cluster slots currently in use.
func (m *Model) live() int {
	return m.ranks * m.cfg.MixtureCount
}

// Initialize bootstraps the model from the hard labels: alternating
// statistics/finalize/split rounds grow each mixture from one cluster to
// GaussiansPerMixture clusters along its principal variance axes.
func (m *Model) Initialize(ctx context.Context) error {
	for m.ranks < m.cfg.GaussiansPerMixture {
		if err := m.reduceStatistics(ctx); err != nil {
			return err
		}
		m.finalize(false)

		splits := m.findSplits()
		for mi, cand := range splits {
			if cand == nil {
				continue
			}
			if err := m.applySplit(ctx, cand, m.ranks*m.cfg.MixtureCount+mi); err != nil {
				return err
			}
		}
		m.ranks++
	}
	return nil
}

// Update runs one statistics + finalize + weight-normalization pass over the
// full cluster set. It is a single EM-style refinement, not an iterated fit.
func (m *Model) Update(ctx context.Context) error {
	m.ranks = m.cfg.GaussiansPerMixture
	if err := m.reduceStatistics(ctx); err != nil {
		return err
	}
	m.finalize(true)
	m.normalizeWeights()
	return nil
}

// Clusters returns a copy of the cluster records.
func (m *Model) Clusters() []Cluster {
	out := make([]Cluster, len(m.clusters))
	copy(out, m.clusters)
	return out
}

// SetClusters restores cluster records, e.g. from a decoded snapshot. The
// slice length must match the configured cluster count.
func (m *Model) SetClusters(clusters []Cluster) bool {
	if len(clusters) != len(m.clusters) {
		return false
	}
	copy(m.clusters, clusters)
	m.ranks = m.cfg.GaussiansPerMixture
	return true
}

// Labels exposes the label map for tests and diagnostics.
func (m *Model) Labels() *LabelMap {
	return m.labels
}
