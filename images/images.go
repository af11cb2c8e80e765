// Package images converts image files to and from the RGBA8888 rasters the watermark
// engine operates on.
//
// Decoding sniffs the container format and supports PNG, JPEG, GIF, BMP, TIFF, WebP
// and QOI. Encoding supports every format except GIF and WebP, whose palette
// quantisation and missing encoder would destroy or prevent a mark.
package images

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif" // registers the GIF decoder
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // registers the WebP decoder
)

// DefaultJPEGQuality is the quality used when EncodeOptions leaves it unset.
const DefaultJPEGQuality = 95

// ErrUnsupportedFormat is returned for formats that cannot be decoded or encoded.
var ErrUnsupportedFormat = errors.New("images: unsupported format")

// Format identifies an image container.
type Format int

const (
	// Unknown is the zero Format.
	Unknown Format = iota
	PNG
	JPEG
	GIF
	BMP
	TIFF
	WebP
	QOI
)

var formatNames = map[Format]string{
	PNG:  "png",
	JPEG: "jpeg",
	GIF:  "gif",
	BMP:  "bmp",
	TIFF: "tiff",
	WebP: "webp",
	QOI:  "qoi",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// Lossy reports whether encoding in f degrades the pixels.
func (f Format) Lossy() bool {
	return f == JPEG || f == WebP
}

// Encodable reports whether Encode supports f.
func (f Format) Encodable() bool {
	switch f {
	case PNG, JPEG, BMP, TIFF, QOI:
		return true
	}
	return false
}

// ParseFormat maps a format name or file extension ("png", ".jpg", "TIFF") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	case "webp":
		return WebP, nil
	case "qoi":
		return QOI, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Raster is a tightly packed RGBA8888 image. Pix holds Width*Height*4 bytes, rows
// top to bottom, non-premultiplied alpha.
type Raster struct {
	Pix    []byte
	Width  int
	Height int

	// Format is the container the raster was decoded from, Unknown otherwise.
	Format Format
}

// NewRaster wraps pix without copying. It fails when the length does not match.
func NewRaster(pix []byte, width, height int) (*Raster, error) {
	if width < 0 || height < 0 || len(pix) != width*height*4 {
		return nil, fmt.Errorf("images: %dx%d raster needs %d bytes, got %d", width, height, max(width*height*4, 0), len(pix))
	}
	return &Raster{Pix: pix, Width: width, Height: height}, nil
}

// FromImage converts any image to a Raster. Straight-alpha sources are copied
// exactly; other models go through premultiplied conversion.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	if m, ok := img.(*image.NRGBA); ok {
		w, h := b.Dx(), b.Dy()
		pix := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			i := m.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*w*4:(y+1)*w*4], m.Pix[i:i+w*4])
		}
		return &Raster{Pix: pix, Width: w, Height: h}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Raster{Pix: dst.Pix, Width: b.Dx(), Height: b.Dy()}
}

// Image returns the raster as an image sharing its pixels.
func (r *Raster) Image() *image.NRGBA {
	return &image.NRGBA{Pix: r.Pix, Stride: r.Width * 4, Rect: image.Rect(0, 0, r.Width, r.Height)}
}

// Decode reads an image in any supported format.
func Decode(r io.Reader) (*Raster, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("images: decode: %w", err)
	}
	raster := FromImage(img)
	raster.Format, _ = ParseFormat(name)
	return raster, nil
}

// EncodeOptions tune Encode.
type EncodeOptions struct {
	// Quality is the JPEG quality in [1,100]. Zero selects DefaultJPEGQuality.
	Quality int
}

// Encode writes r in format f.
func Encode(w io.Writer, r *Raster, f Format, opts *EncodeOptions) error {
	if r == nil || len(r.Pix) != r.Width*r.Height*4 {
		return errors.New("images: invalid raster")
	}
	img := r.Image()

	var err error
	switch f {
	case PNG:
		err = png.Encode(w, img)
	case JPEG:
		quality := DefaultJPEGQuality
		if opts != nil && opts.Quality > 0 {
			quality = min(opts.Quality, 100)
		}
		// JPEG has no alpha: colour channels are written as if opaque.
		opaque := &image.RGBA{Pix: r.Pix, Stride: r.Width * 4, Rect: img.Rect}
		err = jpeg.Encode(w, opaque, &jpeg.Options{Quality: quality})
	case BMP:
		err = bmp.Encode(w, img)
	case TIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case QOI:
		err = qoi.Encode(w, img)
	default:
		return fmt.Errorf("%w for encoding: %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("images: encode %s: %w", f, err)
	}
	return nil
}
