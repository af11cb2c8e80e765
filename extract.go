package pixelmark

import (
	"github.com/digitorus/pixelmark/verify"
)

// execute performs the search if not already done (lazy execution).
func (b *ExtractBuilder) execute() {
	if b.executed {
		return
	}
	b.executed = true

	r := b.img.raster
	b.resp = verify.Image(r.Pix, r.Width, r.Height, b.seed, &verify.Options{
		Strength:     b.strength,
		Threshold:    b.threshold,
		Workers:      b.workers,
		Sealer:       b.sealer,
		MaxClockSkew: verify.DefaultOptions().MaxClockSkew,
	})
}

// Found reports whether a structurally valid payload decoded, whatever its
// confidence.
func (b *ExtractBuilder) Found() bool {
	b.execute()
	return b.resp.Detection.Found
}

// Payload returns the decoded payload and whether one was found.
func (b *ExtractBuilder) Payload() (Payload, bool) {
	b.execute()
	return b.resp.Decoded()
}

// Confidence returns the detection confidence in [0, 1].
func (b *ExtractBuilder) Confidence() float64 {
	b.execute()
	return b.resp.Detection.Confidence
}

// HasSignature reports whether a payload decoded with a confidence above the
// threshold.
func (b *ExtractBuilder) HasSignature() bool {
	b.execute()
	return b.resp.Detection.Verdict == verify.Marked
}

// Response returns the full verification response.
func (b *ExtractBuilder) Response() *verify.Response {
	b.execute()
	return b.resp
}

// Err returns nil when the image carries a mark above the threshold, otherwise the
// reason it does not. Triggers the search if not already executed.
func (b *ExtractBuilder) Err() error {
	b.execute()
	return b.resp.Err()
}
