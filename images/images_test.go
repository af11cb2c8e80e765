package images_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"strings"
	"testing"

	"github.com/digitorus/pixelmark/embed"
	"github.com/digitorus/pixelmark/extract"
	"github.com/digitorus/pixelmark/images"
	"github.com/digitorus/pixelmark/internal/testimg"
	"github.com/digitorus/pixelmark/payload"
)

func opaque(pix []byte) []byte {
	out := bytes.Clone(pix)
	for i := 3; i < len(out); i += 4 {
		out[i] = 0xFF
	}
	return out
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    images.Format
		wantErr bool
	}{
		{"png", images.PNG, false},
		{".PNG", images.PNG, false},
		{"jpg", images.JPEG, false},
		{"jpeg", images.JPEG, false},
		{"gif", images.GIF, false},
		{"bmp", images.BMP, false},
		{".tif", images.TIFF, false},
		{"tiff", images.TIFF, false},
		{"webp", images.WebP, false},
		{"qoi", images.QOI, false},
		{"heic", images.Unknown, true},
		{"", images.Unknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := images.ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, images.ErrUnsupportedFormat) {
				t.Errorf("error %v does not wrap ErrUnsupportedFormat", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatProperties(t *testing.T) {
	if !images.JPEG.Lossy() || images.PNG.Lossy() {
		t.Error("Lossy() misclassifies JPEG or PNG")
	}
	for _, f := range []images.Format{images.GIF, images.WebP, images.Unknown} {
		if f.Encodable() {
			t.Errorf("%s reported encodable", f)
		}
	}
	if images.QOI.String() != "qoi" || images.Format(99).String() != "unknown" {
		t.Error("String() mismatch")
	}
}

func TestLosslessRoundTrip(t *testing.T) {
	pix := opaque(testimg.Smooth(1, 40, 24))
	for _, f := range []images.Format{images.PNG, images.BMP, images.TIFF, images.QOI} {
		t.Run(f.String(), func(t *testing.T) {
			r, err := images.NewRaster(pix, 40, 24)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := images.Encode(&buf, r, f, nil); err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			got, err := images.Decode(&buf)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got.Format != f {
				t.Errorf("Format = %s, want %s", got.Format, f)
			}
			if got.Width != 40 || got.Height != 24 {
				t.Fatalf("size = %dx%d", got.Width, got.Height)
			}
			if !bytes.Equal(got.Pix, pix) {
				t.Error("pixels changed in a lossless round trip")
			}
		})
	}
}

func TestPNGKeepsAlpha(t *testing.T) {
	pix := testimg.Smooth(2, 32, 32)
	r, _ := images.NewRaster(pix, 32, 32)
	var buf bytes.Buffer
	if err := images.Encode(&buf, r, images.PNG, nil); err != nil {
		t.Fatal(err)
	}
	got, err := images.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Pix, pix) {
		t.Error("translucent pixels changed in a PNG round trip")
	}
}

func TestJPEGQuality(t *testing.T) {
	r, _ := images.NewRaster(testimg.Smooth(3, 64, 64), 64, 64)
	var low, high bytes.Buffer
	if err := images.Encode(&low, r, images.JPEG, &images.EncodeOptions{Quality: 30}); err != nil {
		t.Fatal(err)
	}
	if err := images.Encode(&high, r, images.JPEG, nil); err != nil {
		t.Fatal(err)
	}
	if low.Len() >= high.Len() {
		t.Errorf("quality 30 (%d bytes) not smaller than default (%d bytes)", low.Len(), high.Len())
	}
	got, err := images.Decode(&high)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format != images.JPEG {
		t.Errorf("Format = %s", got.Format)
	}
}

func TestDecodeGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 8, 8), color.Palette{color.Black, color.White})
	pal.SetColorIndex(3, 3, 1)
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatal(err)
	}
	got, err := images.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Format != images.GIF {
		t.Errorf("Format = %s", got.Format)
	}
	i := (3*8 + 3) * 4
	if got.Pix[i] != 0xFF || got.Pix[0] != 0 {
		t.Error("palette not expanded")
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := images.Decode(strings.NewReader("definitely not an image"))
	if !errors.Is(err, images.ErrUnsupportedFormat) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedFormat", err)
	}
	_, err = images.Decode(strings.NewReader("\x89PNG\r\n\x1a\n truncated"))
	if err == nil {
		t.Error("Decode() accepted a truncated PNG")
	}
}

func TestEncodeErrors(t *testing.T) {
	r, _ := images.NewRaster(make([]byte, 16), 2, 2)
	for _, f := range []images.Format{images.GIF, images.WebP, images.Unknown} {
		if err := images.Encode(&bytes.Buffer{}, r, f, nil); !errors.Is(err, images.ErrUnsupportedFormat) {
			t.Errorf("Encode(%s) error = %v", f, err)
		}
	}
	bad := &images.Raster{Pix: make([]byte, 3), Width: 2, Height: 2}
	if err := images.Encode(&bytes.Buffer{}, bad, images.PNG, nil); err == nil {
		t.Error("Encode() accepted a short raster")
	}
	if _, err := images.NewRaster(make([]byte, 15), 2, 2); err == nil {
		t.Error("NewRaster() accepted a short buffer")
	}
}

func TestFromImageOffset(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 20, 14, 22))
	src.SetNRGBA(11, 21, color.NRGBA{1, 2, 3, 4})
	r := images.FromImage(src.SubImage(image.Rect(11, 21, 13, 22)))
	if r.Width != 2 || r.Height != 1 {
		t.Fatalf("size = %dx%d", r.Width, r.Height)
	}
	if !bytes.Equal(r.Pix[:4], []byte{1, 2, 3, 4}) {
		t.Errorf("first pixel = %v", r.Pix[:4])
	}
}

func TestWatermarkSurvivesPNG(t *testing.T) {
	p := payload.Payload{Timestamp: 1700000000, IPv4: [4]byte{10, 0, 0, 1}, Platform: 9}
	marked, err := embed.Embed(testimg.Smooth(4, 64, 64), 64, 64, p, "png-file")
	if err != nil {
		t.Fatal(err)
	}
	r, _ := images.NewRaster(marked, 64, 64)
	var buf bytes.Buffer
	if err := images.Encode(&buf, r, images.PNG, nil); err != nil {
		t.Fatal(err)
	}
	got, err := images.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	res, ok := extract.Extract(got.Pix, got.Width, got.Height, "png-file")
	if !ok || res.Payload != p {
		t.Errorf("Extract() = %v, %v", res, ok)
	}
}
