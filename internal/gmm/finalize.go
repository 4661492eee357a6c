package gmm

import (
	"math"

	"github.com/hupe1980/gmmseg/internal/mat3"
)

// finalize folds the per-tile partials into global sufficient statistics and
// converts them into mean, covariance, determinant and (when requested)
// inverse covariance per cluster. Zero-count clusters finalize to the zero
// record so they contribute nothing downstream.
func (m *Model) finalize(withInverse bool) {
	for c := 0; c < m.live(); c++ {
		sum := m.scratch.treeReduce(c)

		n := sum[mN]
		if n == 0 {
			m.clusters[c] = Cluster{}
			continue
		}

		norm := 1.0 / n
		mean := [3]float64{sum[mX] * norm, sum[mY] * norm, sum[mZ] * norm}

		var cov mat3.Sym
		cov[mat3.XX] = sum[mXX]*norm - mean[0]*mean[0] + CovarianceEpsilon
		cov[mat3.XY] = sum[mXY]*norm - mean[0]*mean[1]
		cov[mat3.XZ] = sum[mXZ]*norm - mean[0]*mean[2]
		cov[mat3.YY] = sum[mYY]*norm - mean[1]*mean[1] + CovarianceEpsilon
		cov[mat3.YZ] = sum[mYZ]*norm - mean[1]*mean[2]
		cov[mat3.ZZ] = sum[mZZ]*norm - mean[2]*mean[2] + CovarianceEpsilon

		cl := Cluster{
			Count: n,
			Mean:  mean,
			Cov:   cov,
			Det:   cov.Det(),
		}
		if withInverse {
			cl.Inv = cov.Inverse(cl.Det)
		}
		m.clusters[c] = cl
	}
}

// normalizeWeights computes the fused "common term" per cluster:
// count / (sqrt(det) * pair count). Clusters are paired two-at-a-time by
// split rank within their mixture, the pair being the two sub-components
// produced by one split; a mixture with a single component forms a
// singleton pair. The term folds the local mixing weight and the Gaussian
// normalizing prefactor into the single constant used by dense evaluation;
// shared factors cancel in the final cross-mixture normalization.
func (m *Model) normalizeWeights() {
	mixtures := m.cfg.MixtureCount
	for mi := 0; mi < mixtures; mi++ {
		for r := 0; r < m.ranks; r += 2 {
			pair := []int{r*mixtures + mi}
			if r+1 < m.ranks {
				pair = append(pair, (r+1)*mixtures+mi)
			}

			var pairCount float64
			for _, c := range pair {
				pairCount += m.clusters[c].Count
			}

			for _, c := range pair {
				cl := &m.clusters[c]
				if pairCount <= 0 || cl.Det <= 0 {
					cl.CommonTerm = 0
					continue
				}
				cl.CommonTerm = cl.Count / (math.Sqrt(cl.Det) * pairCount)
			}
		}
	}
}
