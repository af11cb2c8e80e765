// Package dct implements the orthonormal 8x8 type-II discrete cosine transform and
// its inverse, as used by JPEG, together with BT.601 luminance helpers.
//
//	F(u,v) = 1/4 a(u) a(v) sum_x sum_y f(x,y) cos((2x+1)u pi/16) cos((2y+1)v pi/16)
//
// with a(0) = 1/sqrt(2) and a(k) = 1 otherwise. Blocks are indexed [row][column],
// so F[u][v] is vertical frequency u and horizontal frequency v.
package dct

import (
	"math"
	"sync"
)

// N is the block edge length.
const N = 8

// Block is an 8x8 grid of samples or coefficients, indexed [row][column].
type Block [N][N]float64

// basis[k][x] = 1/2 a(k) cos((2x+1)k pi/16). The 1-D transform with this table is
// orthonormal; applying it to rows and columns yields the 1/4 a(u) a(v) scaling.
var basis = sync.OnceValue(func() *[N][N]float64 {
	var t [N][N]float64
	for k := 0; k < N; k++ {
		a := 1.0
		if k == 0 {
			a = 1 / math.Sqrt2
		}
		for x := 0; x < N; x++ {
			t[k][x] = 0.5 * a * math.Cos(float64(2*x+1)*float64(k)*math.Pi/(2*N))
		}
	}
	return &t
})

// Forward returns the DCT coefficients of src.
func Forward(src *Block) Block {
	c := basis()
	var tmp, out Block
	// rows: tmp[y][v] = sum_x c[v][x] src[y][x]
	for y := 0; y < N; y++ {
		for v := 0; v < N; v++ {
			var s float64
			for x := 0; x < N; x++ {
				s += c[v][x] * src[y][x]
			}
			tmp[y][v] = s
		}
	}
	// columns: out[u][v] = sum_y c[u][y] tmp[y][v]
	for u := 0; u < N; u++ {
		for v := 0; v < N; v++ {
			var s float64
			for y := 0; y < N; y++ {
				s += c[u][y] * tmp[y][v]
			}
			out[u][v] = s
		}
	}
	return out
}

// Inverse returns the samples whose DCT coefficients are src.
func Inverse(src *Block) Block {
	c := basis()
	var tmp, out Block
	// columns: tmp[y][v] = sum_u c[u][y] src[u][v]
	for y := 0; y < N; y++ {
		for v := 0; v < N; v++ {
			var s float64
			for u := 0; u < N; u++ {
				s += c[u][y] * src[u][v]
			}
			tmp[y][v] = s
		}
	}
	// rows: out[y][x] = sum_v c[v][x] tmp[y][v]
	for y := 0; y < N; y++ {
		for x := 0; x < N; x++ {
			var s float64
			for v := 0; v < N; v++ {
				s += c[v][x] * tmp[y][v]
			}
			out[y][x] = s
		}
	}
	return out
}
