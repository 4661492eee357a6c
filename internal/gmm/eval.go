package gmm

import (
	"context"
	"math"

	"github.com/hupe1980/gmmseg/internal/tile"
)

// DataTerm evaluates the per-pixel posterior density of every top-level
// mixture and writes the normalized probabilities into dst, mixture-major:
// dst[mi*width*height + pixel]. dst must have mixtureCount*width*height
// elements.
//
// When every mixture responds with exactly zero at a pixel, all of that
// pixel's outputs are zero rather than NaN. Degenerate clusters carry a zero
// common term and so contribute nothing.
func (m *Model) DataTerm(ctx context.Context, dst []float32) error {
	npix := m.cfg.Width * m.cfg.Height
	mc := m.cfg.MixtureCount

	return m.grid.Run(ctx, m.cfg.Parallelism, func(t tile.Tile) error {
		resp := make([]float64, mc)

		for y := t.Y0; y < t.Y1; y++ {
			row := y * m.cfg.Width
			for x := t.X0; x < t.X1; x++ {
				idx := row + x
				p := m.pixelAt(idx)

				total := 0.0
				for mi := 0; mi < mc; mi++ {
					sum := 0.0
					for j := 0; j < m.cfg.GaussiansPerMixture; j++ {
						cl := &m.clusters[j*mc+mi]
						if cl.CommonTerm == 0 {
							continue
						}
						v := [3]float64{p[0] - cl.Mean[0], p[1] - cl.Mean[1], p[2] - cl.Mean[2]}
						sum += cl.CommonTerm * math.Exp(-0.5*cl.Inv.QuadForm(v))
					}
					resp[mi] = sum
					total += sum
				}

				if total > 0 {
					for mi := 0; mi < mc; mi++ {
						dst[mi*npix+idx] = float32(resp[mi] / total)
					}
				} else {
					for mi := 0; mi < mc; mi++ {
						dst[mi*npix+idx] = 0
					}
				}
			}
		}
		return nil
	})
}
