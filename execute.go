package pixelmark

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/digitorus/pixelmark/embed"
	"github.com/digitorus/pixelmark/images"
	"github.com/digitorus/pixelmark/internal/blocks"
	"github.com/digitorus/pixelmark/payload"
	"github.com/mattetti/filebuffer"
)

// execute embeds the mark if not already done (lazy execution).
func (b *EmbedBuilder) execute() {
	if b.executed {
		return
	}
	b.executed = true

	r := b.img.raster
	b.pix, b.err = embed.Embed(r.Pix, r.Width, r.Height, b.payload, b.seed,
		embed.WithStrength(b.strength),
		embed.WithWorkers(b.workers),
		embed.WithSealer(b.sealer),
	)
	if b.err != nil {
		b.err = fmt.Errorf("failed to embed watermark: %w", b.err)
	}
}

// Pixels returns the watermarked RGBA8888 buffer.
func (b *EmbedBuilder) Pixels() ([]byte, error) {
	b.execute()
	return b.pix, b.err
}

// Image returns the watermarked image.
func (b *EmbedBuilder) Image() (*Image, error) {
	pix, err := b.Pixels()
	if err != nil {
		return nil, err
	}
	img, err := FromRGBA(pix, b.img.Width(), b.img.Height())
	if err != nil {
		return nil, err
	}
	img.workers = b.img.workers
	return img, nil
}

// outputFormat resolves the format Write encodes to.
func (b *EmbedBuilder) outputFormat() Format {
	if b.format != images.Unknown {
		return b.format
	}
	if f := b.img.Format(); f.Encodable() && !f.Lossy() {
		return f
	}
	return PNG
}

// Write embeds the watermark, encodes the result and writes it to output. The
// encoded file is staged in memory and hashed while it is copied to output.
func (b *EmbedBuilder) Write(output io.Writer) (*Result, error) {
	pix, err := b.Pixels()
	if err != nil {
		return nil, err
	}

	format := b.outputFormat()
	raster := &images.Raster{Pix: pix, Width: b.img.Width(), Height: b.img.Height()}
	buf := filebuffer.New([]byte{})
	if err := images.Encode(buf, raster, format, &images.EncodeOptions{Quality: b.quality}); err != nil {
		return nil, err
	}
	if _, err := buf.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(output, h), buf)
	if err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	g := blocks.NewGrid(raster.Width, raster.Height)
	return &Result{
		Format:     format,
		Width:      raster.Width,
		Height:     raster.Height,
		Blocks:     g.Count(),
		Redundancy: float64(g.Slots()) / payload.Bits,
		Size:       n,
		SHA256:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}
