package verify

import (
	"time"

	"github.com/digitorus/pixelmark/payload"
	"github.com/digitorus/pixelmark/seal"
)

// Verdict summarises a detection.
type Verdict string

const (
	// Marked means a payload decoded with a confidence above the threshold.
	Marked Verdict = "marked"
	// Weak means a payload decoded but its confidence is at or below the threshold.
	Weak Verdict = "weak"
	// Unmarked means no payload decoded under the seed.
	Unmarked Verdict = "unmarked"
	// Invalid means the input could not be examined.
	Invalid Verdict = "invalid"
)

// Options contains options for watermark verification
type Options struct {
	// Strength must match the embedding strength; it normalises the confidence.
	// Zero selects the default embedding strength.
	Strength float64

	// Threshold is the confidence a payload must exceed to be reported as Marked.
	// It is used as given, so zero accepts every decoded payload. NaN or infinity
	// selects extract.DetectionThreshold, which DefaultOptions also sets.
	Threshold float64

	// Workers bounds the goroutines used for despreading. Zero selects runtime.NumCPU().
	Workers int

	// Sealer opens payloads embedded with a sealer.
	Sealer seal.Sealer

	// MaxClockSkew is the tolerance for payload timestamps in the future. Timestamps
	// further ahead than Now+MaxClockSkew produce a warning.
	MaxClockSkew time.Duration

	// Now returns the reference time for timestamp checks. If nil, time.Now is used.
	Now func() time.Time
}

// PayloadInfo is the decoded payload in presentation form.
type PayloadInfo struct {
	Timestamp   uint32    `json:"timestamp"`
	Time        time.Time `json:"time"`
	IP          string    `json:"ip"`
	Fingerprint string    `json:"fingerprint"`
	Platform    uint8     `json:"platform"`
}

// ImageInfo describes the examined raster.
type ImageInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Blocks     int     `json:"blocks"`
	Redundancy float64 `json:"redundancy"`
	Partial    bool    `json:"partial"`
	Hash       string  `json:"hash"`
}

// Detection contains the statistical outcome of the extraction.
type Detection struct {
	Found      bool    `json:"found"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
	Verdict    Verdict `json:"verdict"`
}

// Response is the result of verifying one image against one seed.
type Response struct {
	Error string `json:"error,omitempty"`

	Image     ImageInfo    `json:"image"`
	Detection Detection    `json:"detection"`
	Payload   *PayloadInfo `json:"payload,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`

	err     error
	decoded *payload.Payload
}
