package pixelmark

import (
	"github.com/digitorus/pixelmark/images"
	"github.com/digitorus/pixelmark/payload"
	"github.com/digitorus/pixelmark/seal"
	"github.com/digitorus/pixelmark/verify"
)

// Payload is an alias for payload.Payload.
type Payload = payload.Payload

// Format is an alias for images.Format.
type Format = images.Format

const (
	// PNG is lossless and keeps alpha; it is the default output format.
	PNG = images.PNG
	// JPEG is lossy; marks survive high qualities.
	JPEG = images.JPEG
	// BMP is lossless.
	BMP = images.BMP
	// TIFF is lossless (Deflate).
	TIFF = images.TIFF
	// QOI is lossless.
	QOI = images.QOI
)

// Result contains the result of a Write operation.
type Result struct {
	Format Format
	Width  int
	Height int

	// Blocks is the number of 8x8 blocks that carry the mark.
	Blocks int
	// Redundancy is the mean number of times each payload bit was embedded.
	Redundancy float64

	// Size is the number of bytes written.
	Size int64
	// SHA256 is the hex digest of the written file.
	SHA256 string
}

// EmbedBuilder configures a watermark embedding. It is created by Image.Embed.
type EmbedBuilder struct {
	img     *Image
	payload Payload
	seed    string

	strength float64
	workers  int
	sealer   seal.Sealer
	format   Format
	quality  int

	// Lazy execution state
	executed bool
	pix      []byte
	err      error
}

// Strength sets the embedding amplitude. Extraction must use the same value.
func (b *EmbedBuilder) Strength(s float64) *EmbedBuilder {
	b.strength = s
	return b
}

// Workers bounds the goroutines used for embedding.
func (b *EmbedBuilder) Workers(n int) *EmbedBuilder {
	b.workers = n
	return b
}

// Seal encrypts the payload fields with s before spreading them.
func (b *EmbedBuilder) Seal(s seal.Sealer) *EmbedBuilder {
	b.sealer = s
	return b
}

// Format selects the output format for Write. By default the source format is kept
// when it is lossless and encodable, otherwise PNG is written.
func (b *EmbedBuilder) Format(f Format) *EmbedBuilder {
	b.format = f
	return b
}

// Quality sets the JPEG quality for Write.
func (b *EmbedBuilder) Quality(q int) *EmbedBuilder {
	b.quality = q
	return b
}

// ExtractBuilder configures a watermark search. It is created by Image.Extract and
// executes lazily on the first call to a result method.
type ExtractBuilder struct {
	img  *Image
	seed string

	strength  float64
	threshold float64
	workers   int
	sealer    seal.Sealer

	// Lazy execution state
	executed bool
	resp     *verify.Response
}

// Strength sets the strength the mark was embedded with.
func (b *ExtractBuilder) Strength(s float64) *ExtractBuilder {
	b.strength = s
	return b
}

// Threshold sets the confidence HasSignature requires, extract.DetectionThreshold
// by default. Zero accepts any decoded payload.
func (b *ExtractBuilder) Threshold(t float64) *ExtractBuilder {
	b.threshold = t
	return b
}

// Workers bounds the goroutines used for extraction.
func (b *ExtractBuilder) Workers(n int) *ExtractBuilder {
	b.workers = n
	return b
}

// Seal opens payloads embedded with s.
func (b *ExtractBuilder) Seal(s seal.Sealer) *ExtractBuilder {
	b.sealer = s
	return b
}
