// Package tile partitions an image into fixed-size rectangular tiles and
// dispatches per-tile work across a bounded set of workers. Each tile is
// owned by exactly one worker per pass, so passes never race on tile-local
// state.
//
// This is an internal package - external users should use the gmmseg package.
package tile

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is the default tile edge length in pixels.
const DefaultSize = 32

// Tile is a rectangular pixel region, [X0,X1) x [Y0,Y1).
type Tile struct {
	Index int
	X0    int
	Y0    int
	X1    int
	Y1    int
}

// Pixels returns the number of pixels covered by the tile.
func (t Tile) Pixels() int {
	return (t.X1 - t.X0) * (t.Y1 - t.Y0)
}

// Grid covers a width x height image with size x size tiles. Border tiles
// are clipped to the image.
type Grid struct {
	Width  int
	Height int
	Size   int

	tilesX int
	tilesY int
}

// NewGrid creates a grid. If size <= 0 the default tile size is used.
func NewGrid(width, height, size int) Grid {
	if size <= 0 {
		size = DefaultSize
	}
	return Grid{
		Width:  width,
		Height: height,
		Size:   size,
		tilesX: (width + size - 1) / size,
		tilesY: (height + size - 1) / size,
	}
}

// NumTiles returns the total tile count.
func (g Grid) NumTiles() int {
	return g.tilesX * g.tilesY
}

// At returns the i-th tile in row-major tile order.
func (g Grid) At(i int) Tile {
	tx, ty := i%g.tilesX, i/g.tilesX

	t := Tile{
		Index: i,
		X0:    tx * g.Size,
		Y0:    ty * g.Size,
	}
	t.X1 = t.X0 + g.Size
	if t.X1 > g.Width {
		t.X1 = g.Width
	}
	t.Y1 = t.Y0 + g.Size
	if t.Y1 > g.Height {
		t.Y1 = g.Height
	}
	return t
}

// Run executes fn once per tile on up to limit concurrent workers and waits
// for the whole pass to finish before returning. A pass is a barrier: the
// caller may read every tile's output after Run returns. If limit <= 0 the
// errgroup default (unbounded) is used.
func (g Grid) Run(ctx context.Context, limit int, fn func(Tile) error) error {
	eg, _ := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}

	for i := 0; i < g.NumTiles(); i++ {
		t := g.At(i)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(t)
		})
	}

	return eg.Wait()
}
