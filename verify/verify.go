// Package verify examines an image for a watermark and reports the outcome as a
// Response that serialises to JSON.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/digitorus/pixelmark/extract"
	"github.com/digitorus/pixelmark/internal/blocks"
	"github.com/digitorus/pixelmark/payload"
)

// DefaultOptions returns the default verification options.
func DefaultOptions() *Options {
	return &Options{
		Threshold:    extract.DetectionThreshold,
		MaxClockSkew: 5 * time.Minute,
	}
}

// Image verifies an RGBA8888 buffer against seed. It always returns a Response; the
// reason a watermark was not accepted is available from Response.Err.
func Image(pix []byte, width, height int, seed string, options *Options) *Response {
	if options == nil {
		options = DefaultOptions()
	}
	threshold := options.Threshold
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		threshold = extract.DetectionThreshold
	}
	now := time.Now
	if options.Now != nil {
		now = options.Now
	}

	g := blocks.NewGrid(width, height)
	resp := &Response{
		Image: ImageInfo{
			Width:      width,
			Height:     height,
			Blocks:     g.Count(),
			Redundancy: float64(g.Slots()) / payload.Bits,
			Partial:    g.Partial(),
		},
		Detection: Detection{Threshold: threshold, Verdict: Invalid},
		CheckedAt: now().UTC(),
	}

	if !g.Valid(pix) {
		resp.fail(&ValidationError{
			Msg: fmt.Sprintf("pixel buffer of %d bytes does not match %dx%d RGBA8888", len(pix), width, height),
			Err: extract.ErrInvalidBuffer,
		})
		return resp
	}
	sum := sha256.Sum256(pix)
	resp.Image.Hash = hex.EncodeToString(sum[:])

	a := extract.Analyze(pix, width, height, seed,
		extract.WithStrength(options.Strength),
		extract.WithWorkers(options.Workers),
		extract.WithSealer(options.Sealer),
	)
	if errors.Is(a.Err, extract.ErrNoBlocks) {
		resp.fail(&ValidationError{Msg: "image is smaller than one 8x8 block", Err: a.Err})
		return resp
	}
	resp.Detection.Confidence = a.Confidence

	if a.Redundancy < 1 {
		resp.warn("image carries %d coefficient slots for %d payload bits; some bits are never embedded", g.Slots(), payload.Bits)
	}
	if g.Partial() {
		resp.warn("%d trailing columns and %d trailing rows are outside the block grid and were not examined", width%8, height%8)
	}

	if !a.Found() {
		resp.Detection.Verdict = Unmarked
		resp.fail(&NotFoundError{Msg: "no watermark found for seed", Err: a.Err})
		return resp
	}

	resp.Detection.Found = true
	resp.Payload = newPayloadInfo(a.Payload)
	resp.decoded = &a.Payload

	if t := a.Payload.Time(); t.After(now().Add(options.MaxClockSkew)) {
		resp.warn("payload timestamp %s is in the future", t.Format(time.RFC3339))
	}

	if a.Confidence <= threshold {
		resp.Detection.Verdict = Weak
		resp.fail(&PolicyError{Msg: fmt.Sprintf("confidence %.3f does not exceed threshold %.3f", a.Confidence, threshold)})
		return resp
	}
	resp.Detection.Verdict = Marked
	return resp
}

// Err returns nil for a Marked response, otherwise a *ValidationError,
// *NotFoundError or *PolicyError describing why the image was not accepted.
func (r *Response) Err() error {
	if r.err != nil {
		return r.err
	}
	switch r.Detection.Verdict {
	case Marked:
		return nil
	case Weak:
		return &PolicyError{Msg: r.Error}
	case Unmarked:
		return &NotFoundError{Msg: r.Error}
	default:
		return &ValidationError{Msg: r.Error}
	}
}

// Decoded returns the payload exactly as decoded. It is only available on responses
// returned by Image, not on responses read back from JSON.
func (r *Response) Decoded() (payload.Payload, bool) {
	if r.decoded == nil {
		return payload.Payload{}, false
	}
	return *r.decoded, true
}

func (r *Response) fail(err error) {
	r.err = err
	r.Error = err.Error()
}

func (r *Response) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func newPayloadInfo(p payload.Payload) *PayloadInfo {
	return &PayloadInfo{
		Timestamp:   p.Timestamp,
		Time:        p.Time(),
		IP:          p.IP().String(),
		Fingerprint: p.FingerprintHex(),
		Platform:    p.Platform,
	}
}
