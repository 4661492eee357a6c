package gmm

import (
	"context"

	"github.com/hupe1980/gmmseg/internal/mat3"
)

// relabelChunk is the batch size used when walking a cluster's membership
// bitmap during split application.
const relabelChunk = 4096

// splitCandidate describes one pending cluster bisection.
type splitCandidate struct {
	cluster    int
	eigenvalue float64
	threshold  float64
	axis       [3]float64
}

// findSplits picks, for every mixture, the live cluster with the largest
// principal variance. A candidate replaces the incumbent only when its
// eigenvalue is strictly greater, so exact ties resolve to the lowest
// cluster index. Mixtures whose clusters are all degenerate (eigenvalue 0)
// yield no candidate.
func (m *Model) findSplits() []*splitCandidate {
	splits := make([]*splitCandidate, m.cfg.MixtureCount)

	for mi := 0; mi < m.cfg.MixtureCount; mi++ {
		var best *splitCandidate
		for j := 0; j < m.ranks; j++ {
			c := j*m.cfg.MixtureCount + mi
			cl := &m.clusters[c]
			if cl.Count == 0 {
				continue
			}

			val, axis := mat3.MaxEigen(cl.Cov)
			if best != nil && val <= best.eigenvalue {
				continue
			}
			if best == nil && val <= 0 {
				continue
			}
			best = &splitCandidate{
				cluster:    c,
				eigenvalue: val,
				threshold:  mat3.Dot(axis, cl.Mean),
				axis:       axis,
			}
		}
		splits[mi] = best
	}
	return splits
}

// applySplit relabels the chosen cluster's pixels: colors whose projection
// onto the principal axis exceeds the mean's projection move to the new
// sibling cluster. Membership is walked in fixed chunks off the cluster's
// bitmap; each pixel is decided exactly once.
func (m *Model) applySplit(ctx context.Context, cand *splitCandidate, newCluster int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	it := m.labels.Members(cand.cluster).ManyIterator()
	buf := make([]uint32, relabelChunk)
	var moved []uint32

	for {
		n := it.NextMany(buf)
		if n == 0 {
			break
		}
		for _, p := range buf[:n] {
			if mat3.Dot(cand.axis, m.pixelAt(int(p))) > cand.threshold {
				moved = append(moved, p)
			}
		}
	}

	m.labels.Move(moved, cand.cluster, newCluster)
	return nil
}
