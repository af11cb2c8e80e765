// Package extract recovers a payload spread by package embed.
//
// Extraction mirrors the embedder's block walk: every mid-band coefficient is
// multiplied by the seed's chip for its slot, votes are averaged per payload bit over
// all repetitions, and the sign of the average decides the bit. The decided bits
// must form a structurally valid payload; any other outcome means no watermark was
// found for the seed.
package extract

import (
	"errors"
	"math"

	"github.com/digitorus/pixelmark/dct"
	"github.com/digitorus/pixelmark/embed"
	"github.com/digitorus/pixelmark/internal/blocks"
	"github.com/digitorus/pixelmark/payload"
	"github.com/digitorus/pixelmark/prseq"
	"github.com/digitorus/pixelmark/seal"
)

// DetectionThreshold is the confidence above which HasSignature reports a mark.
const DetectionThreshold = 0.3

var (
	// ErrInvalidBuffer indicates the buffer does not hold width*height RGBA8888 pixels.
	ErrInvalidBuffer = errors.New("extract: buffer size does not match dimensions")
	// ErrNoBlocks indicates the image has no complete 8x8 block.
	ErrNoBlocks = errors.New("extract: image has no complete 8x8 block")
)

// Options configure an extraction.
type Options struct {
	// Strength normalises the confidence; it must match the embedding strength.
	// Zero selects embed.DefaultStrength.
	Strength float64

	// Workers bounds the goroutines processing blocks. Zero selects
	// runtime.NumCPU().
	Workers int

	// Sealer opens sealed payload fields.
	Sealer seal.Sealer
}

// Option is a functional option for extraction.
type Option func(*Options)

// WithStrength sets the strength used to normalise confidence.
func WithStrength(s float64) Option {
	return func(o *Options) { o.Strength = s }
}

// WithWorkers sets the number of block workers.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithSealer opens sealed payload fields with s.
func WithSealer(s seal.Sealer) Option {
	return func(o *Options) { o.Sealer = s }
}

// Analysis is the complete outcome of a despreading pass.
type Analysis struct {
	// Bits are the decided payload bits, most significant first.
	Bits [payload.Bits]uint8
	// Votes are the mean despread votes per bit.
	Votes [payload.Bits]float64
	// Encoded is Bits packed into bytes.
	Encoded [payload.Size]byte
	// Confidence is the mean absolute vote divided by the strength, clamped to [0,1].
	Confidence float64
	// Blocks is the number of complete blocks read.
	Blocks int
	// Redundancy is the mean number of repetitions per payload bit.
	Redundancy float64

	// Payload is valid only when Err is nil.
	Payload payload.Payload
	// Err is nil when a payload was decoded, otherwise the reason none was found.
	Err error
}

// Found reports whether a structurally valid payload was decoded.
func (a *Analysis) Found() bool {
	return a.Err == nil
}

// Result is a decoded payload with its confidence.
type Result struct {
	Payload    payload.Payload
	Confidence float64
}

// Analyze despreads an RGBA8888 buffer with seed. It never panics on foreign or
// malformed input; problems are reported through Analysis.Err.
func Analyze(pix []byte, width, height int, seed string, opts ...Option) *Analysis {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	strength := embed.Strength(o.Strength)

	a := &Analysis{}
	g := blocks.NewGrid(width, height)
	if !g.Valid(pix) {
		a.Err = ErrInvalidBuffer
		return a
	}
	n := g.Count()
	if n == 0 {
		a.Err = ErrNoBlocks
		return a
	}
	a.Blocks = n
	a.Redundancy = float64(g.Slots()) / payload.Bits

	chips := prseq.Generate(seed, g.Slots())
	votes := make([]float64, g.Slots())
	stride := g.Stride()

	blocks.Run(n, o.Workers, func(start, end int) {
		var lum dct.Block
		for b := start; b < end; b++ {
			x0, y0 := g.Origin(b)
			dct.LoadLuma(pix, stride, x0, y0, &lum)
			coeffs := dct.Forward(&lum)
			base := b * blocks.PerBlock
			for i, pos := range blocks.Positions {
				votes[base+i] = coeffs[pos.U][pos.V] * float64(chips[base+i])
			}
		}
	})

	// Sum in slot order so the result does not depend on scheduling.
	var acc [payload.Bits]float64
	var cnt [payload.Bits]int
	for slot, v := range votes {
		acc[slot%payload.Bits] += v
		cnt[slot%payload.Bits]++
	}

	var total float64
	for k := range acc {
		if cnt[k] > 0 {
			a.Votes[k] = acc[k] / float64(cnt[k])
		}
		if a.Votes[k] > 0 {
			a.Bits[k] = 1
		}
		total += math.Abs(a.Votes[k])
	}
	a.Confidence = min(max(total/payload.Bits/strength, 0), 1)
	a.Encoded = payload.PackBits(a.Bits[:])
	a.Payload, a.Err = seal.Decode(o.Sealer, seed, a.Encoded)
	return a
}

// Extract returns the payload hidden in an RGBA8888 buffer under seed. It reports
// false when no structurally valid payload is present, whatever the confidence.
func Extract(pix []byte, width, height int, seed string, opts ...Option) (*Result, bool) {
	a := Analyze(pix, width, height, seed, opts...)
	if !a.Found() {
		return nil, false
	}
	return &Result{Payload: a.Payload, Confidence: a.Confidence}, true
}

// HasSignature reports whether a payload decodes under seed with a confidence above
// DetectionThreshold.
func HasSignature(pix []byte, width, height int, seed string, opts ...Option) bool {
	r, ok := Extract(pix, width, height, seed, opts...)
	return ok && r.Confidence > DetectionThreshold
}
