// Package embed spreads a payload over the mid-band DCT coefficients of an image.
//
// Every complete 8x8 block is transformed to the frequency domain and each of its
// fifteen mid-band coefficients is shifted by bit * chip * strength, where bit is the
// payload bit assigned to the slot (+1/-1), chip is the seed's pseudo-random value
// and strength the embedding amplitude. The 256-bit payload repeats across all slots
// of the image; extraction votes over the repetitions.
package embed

import (
	"errors"
	"fmt"
	"math"

	"github.com/digitorus/pixelmark/dct"
	"github.com/digitorus/pixelmark/internal/blocks"
	"github.com/digitorus/pixelmark/payload"
	"github.com/digitorus/pixelmark/prseq"
	"github.com/digitorus/pixelmark/seal"
)

// DefaultStrength is the coefficient amplitude. Higher values survive more
// compression and are more visible.
const DefaultStrength = 8.0

// ErrInvalidBuffer is returned when the pixel buffer does not hold width*height
// RGBA8888 pixels.
var ErrInvalidBuffer = errors.New("embed: buffer size does not match dimensions")

// Options configure an embedding.
type Options struct {
	// Strength is the amplitude added to each coefficient. Zero selects
	// DefaultStrength.
	Strength float64

	// Workers bounds the goroutines processing blocks. Zero selects
	// runtime.NumCPU().
	Workers int

	// Sealer, when set, encrypts the payload fields before spreading.
	Sealer seal.Sealer
}

// Option is a functional option for Embed.
type Option func(*Options)

// WithStrength sets the embedding amplitude.
func WithStrength(s float64) Option {
	return func(o *Options) { o.Strength = s }
}

// WithWorkers sets the number of block workers.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithSealer encrypts the payload fields with s.
func WithSealer(s seal.Sealer) Option {
	return func(o *Options) { o.Sealer = s }
}

// Strength returns the effective amplitude for a configured value.
func Strength(s float64) float64 {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return DefaultStrength
	}
	return s
}

// Embed returns a watermarked copy of an RGBA8888 buffer. pix is not modified.
// Pixels outside the complete 8x8 block grid and all alpha values are copied
// unchanged. Images without a single complete block are returned as a plain copy.
func Embed(pix []byte, width, height int, p payload.Payload, seed string, opts ...Option) ([]byte, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	strength := Strength(o.Strength)

	g := blocks.NewGrid(width, height)
	if !g.Valid(pix) {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrInvalidBuffer, width, height, max(width*height*4, 0), len(pix))
	}

	encoded, err := seal.Encode(o.Sealer, seed, p)
	if err != nil {
		return nil, fmt.Errorf("embed: seal payload: %w", err)
	}

	out := make([]byte, len(pix))
	copy(out, pix)

	n := g.Count()
	if n == 0 {
		return out, nil
	}

	chips := prseq.Generate(seed, g.Slots())
	stride := g.Stride()

	blocks.Run(n, o.Workers, func(start, end int) {
		var lum, delta dct.Block
		for b := start; b < end; b++ {
			x0, y0 := g.Origin(b)
			dct.LoadLuma(pix, stride, x0, y0, &lum)
			coeffs := dct.Forward(&lum)

			base := b * blocks.PerBlock
			for i, pos := range blocks.Positions {
				slot := base + i
				bit := -1.0
				if payload.Bit(&encoded, slot%payload.Bits) == 1 {
					bit = 1.0
				}
				coeffs[pos.U][pos.V] += bit * float64(chips[slot]) * strength
			}

			marked := dct.Inverse(&coeffs)
			for y := range delta {
				for x := range delta[y] {
					delta[y][x] = marked[y][x] - lum[y][x]
				}
			}
			dct.ApplyLuma(out, pix, stride, x0, y0, &delta)
		}
	})

	return out, nil
}
