package gmm

import (
	"context"

	"github.com/hupe1980/gmmseg/internal/tile"
)

// momentCount is the number of raw sufficient statistics per cluster:
// {1, x, y, z, x2, xy, xz, y2, yz, z2}.
const momentCount = 10

// Raw-moment slots within a moments record.
const (
	mN = iota
	mX
	mY
	mZ
	mXX
	mXY
	mXZ
	mYY
	mYZ
	mZZ
)

type moments [momentCount]float64

func (a *moments) add(b *moments) {
	for i := range a {
		a[i] += b[i]
	}
}

func (a *moments) accumulate(p [3]float64) {
	a[mN]++
	a[mX] += p[0]
	a[mY] += p[1]
	a[mZ] += p[2]
	a[mXX] += p[0] * p[0]
	a[mXY] += p[0] * p[1]
	a[mXZ] += p[0] * p[2]
	a[mYY] += p[1] * p[1]
	a[mYZ] += p[1] * p[2]
	a[mZZ] += p[2] * p[2]
}

// scratch holds per-tile partial statistics and presence masks. It is sized
// once for the maximum cluster count and reused across rounds.
type scratch struct {
	tiles    int
	clusters int

	// partials is cluster-major: partials[c*tiles : (c+1)*tiles] holds the
	// per-tile records of cluster c, contiguous for the cross-tile reduce.
	partials []moments

	// presence[t] has bit c set when tile t contains at least one pixel of
	// cluster c. Computed once per pass, then used to skip empty tiles in
	// the per-cluster loop.
	presence []uint64

	// reduceBuf is reused by the cross-tile tree reduction.
	reduceBuf []moments
}

func newScratch(tiles, clusters int) *scratch {
	return &scratch{
		tiles:     tiles,
		clusters:  clusters,
		partials:  make([]moments, tiles*clusters),
		presence:  make([]uint64, tiles),
		reduceBuf: make([]moments, tiles),
	}
}

// reduceStatistics computes per-tile sufficient statistics for every live
// cluster. Tiles are processed in parallel; each tile writes only to its own
// slots, so the pass is race-free by construction.
func (m *Model) reduceStatistics(ctx context.Context) error {
	live := m.live()
	labels := m.labels.Raw()
	sc := m.scratch

	return m.grid.Run(ctx, m.cfg.Parallelism, func(t tile.Tile) error {
		// Discovery pass: record which clusters appear in this tile at all.
		var mask uint64
		for y := t.Y0; y < t.Y1; y++ {
			row := y * m.cfg.Width
			for x := t.X0; x < t.X1; x++ {
				if l := labels[row+x]; l >= 0 {
					mask |= 1 << uint(l)
				}
			}
		}
		sc.presence[t.Index] = mask

		for c := 0; c < live; c++ {
			part := &sc.partials[c*sc.tiles+t.Index]
			*part = moments{}
			if mask&(1<<uint(c)) == 0 {
				continue
			}
			for y := t.Y0; y < t.Y1; y++ {
				row := y * m.cfg.Width
				for x := t.X0; x < t.X1; x++ {
					idx := row + x
					if labels[idx] == int32(c) {
						part.accumulate(m.pixelAt(idx))
					}
				}
			}
		}
		return nil
	})
}

// treeReduce folds the per-tile partials of one cluster into a single record
// using the same halving-stride schedule as a parallel tree reduction. The
// fold order is fixed, so results are identical across runs regardless of
// how the preceding tile pass was scheduled.
func (sc *scratch) treeReduce(cluster int) moments {
	n := sc.tiles
	buf := sc.reduceBuf[:n]
	copy(buf, sc.partials[cluster*sc.tiles:cluster*sc.tiles+n])

	stride := 1
	for stride < n {
		stride <<= 1
	}
	for stride >>= 1; stride >= 1; stride >>= 1 {
		for i := 0; i < stride && i+stride < n; i++ {
			buf[i].add(&buf[i+stride])
		}
	}
	if n == 0 {
		return moments{}
	}
	return buf[0]
}
