// Package pixelmark embeds and recovers invisible watermarks in raster images.
//
// A watermark is a 256-bit payload (timestamp, IPv4 origin, fingerprint and platform
// code) spread over the mid-band DCT coefficients of every 8x8 block under a
// pseudo-random pattern derived from a seed. Only holders of the seed can find it.
//
// Basic usage:
//
//	img, err := pixelmark.OpenFile("photo.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := img.Embed(p, "photo-42").Write(output)
//
//	found := img.Extract("photo-42")
//	if found.HasSignature() {
//	    fmt.Println(found.Payload())
//	}
package pixelmark

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/digitorus/pixelmark/extract"
	"github.com/digitorus/pixelmark/images"
	"golang.org/x/text/unicode/norm"
)

// Image is a decoded raster that can be watermarked or examined.
type Image struct {
	raster  *images.Raster
	workers int
}

// Open decodes an image in any supported format from r.
func Open(r io.Reader) (*Image, error) {
	raster, err := images.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return &Image{raster: raster}, nil
}

// OpenFile is a convenience method to decode an image from a file on disk.
func OpenFile(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Open(file)
}

// FromRGBA wraps a tightly packed RGBA8888 buffer. The buffer is not copied and is
// never modified.
func FromRGBA(pix []byte, width, height int) (*Image, error) {
	raster, err := images.NewRaster(pix, width, height)
	if err != nil {
		return nil, err
	}
	return &Image{raster: raster}, nil
}

// FromImage converts an image.Image.
func FromImage(img image.Image) *Image {
	return &Image{raster: images.FromImage(img)}
}

// SetWorkers bounds the goroutines used by subsequent operations on this image.
// Zero, the default, uses one per CPU.
func (i *Image) SetWorkers(n int) {
	i.workers = n
}

// Width returns the width in pixels.
func (i *Image) Width() int { return i.raster.Width }

// Height returns the height in pixels.
func (i *Image) Height() int { return i.raster.Height }

// Format returns the container the image was decoded from, or images.Unknown.
func (i *Image) Format() Format { return i.raster.Format }

// Pixels returns the RGBA8888 buffer. Callers must not modify it.
func (i *Image) Pixels() []byte { return i.raster.Pix }

// Embed begins watermarking a copy of the image with p under seed. Nothing is
// computed until Pixels or Write is called on the returned builder.
func (i *Image) Embed(p Payload, seed string) *EmbedBuilder {
	return &EmbedBuilder{
		img:     i,
		payload: p,
		seed:    normalizeSeed(seed),
		workers: i.workers,
	}
}

// Extract prepares a lazy search for a watermark under seed. The search runs on the
// first call to a result method.
func (i *Image) Extract(seed string) *ExtractBuilder {
	return &ExtractBuilder{
		img:       i,
		seed:      normalizeSeed(seed),
		threshold: extract.DetectionThreshold,
		workers:   i.workers,
	}
}

// normalizeSeed maps canonically equivalent Unicode seeds to the same bytes, so a
// seed typed on different systems selects the same pattern.
func normalizeSeed(seed string) string {
	return norm.NFC.String(seed)
}
