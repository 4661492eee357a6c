// Package hausdorff computes a morphological approximation of the
// Hausdorff distance between two segmentation masks on a 3D voxel grid.
//
// The distance is measured in the Chebyshev metric: one unit equals one
// dilation with a full 3x3x3 structuring element, so the directed
// distance from mask A to mask B is the number of dilations of A needed
// to cover B. The robustness percentile makes the metric less sensitive
// to outliers by ignoring the most distant fraction of voxels.
package hausdorff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is returned for malformed masks or parameters.
var ErrInvalidInput = errors.New("hausdorff: invalid input")

// Dims describes the voxel grid shape. Masks are indexed as
// mask[(x*Y+y)*Z+z] with x in [0,X), y in [0,Y), z in [0,Z).
type Dims struct {
	X, Y, Z int
}

// Volume returns the number of voxels in the grid.
func (d Dims) Volume() int {
	return d.X * d.Y * d.Z
}

type point struct {
	x, y, z int32
}

// ComputeHausdorffDistance returns the symmetric Hausdorff distance
// between the foreground voxel sets of reference and candidate.
// Foreground is any voxel with a nonzero value.
//
// robustnessPercentile must be in (0, 1]; 1 gives the classic maximum,
// smaller values drop the most distant voxels before taking the
// maximum. Returns an error when either mask has no foreground.
func ComputeHausdorffDistance(ctx context.Context, reference, candidate []uint8, dims Dims, robustnessPercentile float64) (int, error) {
	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return 0, fmt.Errorf("%w: non-positive dims %+v", ErrInvalidInput, dims)
	}
	if len(reference) != dims.Volume() || len(candidate) != dims.Volume() {
		return 0, fmt.Errorf("%w: mask length %d/%d does not match dims volume %d",
			ErrInvalidInput, len(reference), len(candidate), dims.Volume())
	}
	if robustnessPercentile <= 0 || robustnessPercentile > 1 {
		return 0, fmt.Errorf("%w: robustness percentile %v outside (0, 1]", ErrInvalidInput, robustnessPercentile)
	}

	ref := foreground(reference, dims)
	cand := foreground(candidate, dims)
	if len(ref) == 0 || len(cand) == 0 {
		return 0, fmt.Errorf("%w: empty foreground (reference %d voxels, candidate %d voxels)",
			ErrInvalidInput, len(ref), len(cand))
	}

	dRef, err := directed(ctx, ref, cand, robustnessPercentile)
	if err != nil {
		return 0, err
	}
	dCand, err := directed(ctx, cand, ref, robustnessPercentile)
	if err != nil {
		return 0, err
	}

	if dCand > dRef {
		return dCand, nil
	}
	return dRef, nil
}

// foreground collects the coordinates of all nonzero voxels.
func foreground(mask []uint8, dims Dims) []point {
	var pts []point
	i := 0
	for x := 0; x < dims.X; x++ {
		for y := 0; y < dims.Y; y++ {
			for z := 0; z < dims.Z; z++ {
				if mask[i] != 0 {
					pts = append(pts, point{int32(x), int32(y), int32(z)})
				}
				i++
			}
		}
	}
	return pts
}

// directed computes the robust directed distance from src to dst: the
// percentile over dst voxels of the Chebyshev distance to the nearest
// src voxel.
func directed(ctx context.Context, src, dst []point, percentile float64) (int, error) {
	dists := make([]int32, len(dst))

	workers := runtime.GOMAXPROCS(0)
	if workers > len(dst) {
		workers = len(dst)
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(dst) + workers - 1) / workers
	for start := 0; start < len(dst); start += chunk {
		start := start
		end := start + chunk
		if end > len(dst) {
			end = len(dst)
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				dists[i] = nearestChebyshev(dst[i], src)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	sort.Slice(dists, func(i, j int) bool { return dists[i] < dists[j] })

	// Keep the closest fraction of voxels and report the largest
	// remaining distance. percentile == 1 keeps everything.
	keep := int(math.Ceil(percentile * float64(len(dists))))
	if keep < 1 {
		keep = 1
	}
	if keep > len(dists) {
		keep = len(dists)
	}
	return int(dists[keep-1]), nil
}

// nearestChebyshev returns the Chebyshev distance from p to the nearest
// point in pts.
func nearestChebyshev(p point, pts []point) int32 {
	best := int32(math.MaxInt32)
	for _, q := range pts {
		d := chebyshev(p, q)
		if d < best {
			best = d
			if best == 0 {
				break
			}
		}
	}
	return best
}

func chebyshev(a, b point) int32 {
	d := abs32(a.x - b.x)
	if dy := abs32(a.y - b.y); dy > d {
		d = dy
	}
	if dz := abs32(a.z - b.z); dz > d {
		d = dz
	}
	return d
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
