// Package blocks walks the 8x8 block grid of an RGBA8888 image and fans block
// ranges out to workers.
package blocks

import (
	"math"
	"runtime"
	"sync"

	"github.com/digitorus/pixelmark/dct"
)

// Position is a (u, v) DCT coefficient index.
type Position struct{ U, V int }

// Positions are the mid-band coefficients carrying the watermark, in slot order.
// They skip the DC term and the highest frequencies.
var Positions = [...]Position{
	{1, 2}, {2, 1}, {2, 2}, {1, 3}, {3, 1},
	{2, 3}, {3, 2}, {3, 3}, {1, 4}, {4, 1},
	{2, 4}, {4, 2}, {3, 4}, {4, 3}, {4, 4},
}

// PerBlock is the number of coefficient slots per block.
const PerBlock = len(Positions)

// Grid describes the complete 8x8 blocks of an image. Trailing rows and columns that
// do not fill a block are not part of the grid.
type Grid struct {
	Width, Height int
	Cols, Rows    int
}

// NewGrid returns the grid of a width x height image.
func NewGrid(width, height int) Grid {
	g := Grid{Width: width, Height: height}
	if width > 0 && height > 0 {
		g.Cols = width / dct.N
		g.Rows = height / dct.N
	}
	return g
}

// Count is the number of blocks.
func (g Grid) Count() int { return g.Cols * g.Rows }

// Slots is the number of coefficient slots.
func (g Grid) Slots() int { return g.Count() * PerBlock }

// Stride is the byte length of one RGBA8888 row.
func (g Grid) Stride() int { return g.Width * 4 }

// Partial reports whether pixels outside the grid are left unprocessed.
func (g Grid) Partial() bool {
	return g.Width%dct.N != 0 || g.Height%dct.N != 0
}

// Origin returns the top-left pixel of block b, blocks numbered in row-major order.
func (g Grid) Origin(b int) (x, y int) {
	return (b % g.Cols) * dct.N, (b / g.Cols) * dct.N
}

// Valid reports whether pix is a complete RGBA8888 buffer for the grid's dimensions.
// Dimensions whose byte size does not fit in an int are never valid.
func (g Grid) Valid(pix []byte) bool {
	if g.Width < 0 || g.Height < 0 {
		return false
	}
	if g.Width == 0 || g.Height == 0 {
		return len(pix) == 0
	}
	return g.Width <= math.MaxInt/4/g.Height && len(pix) == g.Width*g.Height*4
}

// Run calls fn over contiguous [start, end) ranges covering n blocks, using at most
// workers goroutines. workers <= 0 selects runtime.NumCPU(). fn must only touch
// state owned by its range.
func Run(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
