package evidence

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/cryptobyte"
)

const bundleMagic = "PXEV"

const bundleVersion = 1

// maxBundleSize bounds the decompressed size of a bundle.
const maxBundleSize = 16 << 20

// ErrInvalidBundle is returned for data that is not an evidence bundle.
var ErrInvalidBundle = errors.New("evidence: invalid bundle")

// Bundle is a signed report: the exact report bytes and their detached PKCS#7
// signature.
type Bundle struct {
	Report    []byte
	Signature []byte
}

// WriteTo writes the bundle zstd-compressed. It implements io.WriterTo.
func (b *Bundle) WriteTo(w io.Writer) (int64, error) {
	var builder cryptobyte.Builder
	builder.AddBytes([]byte(bundleMagic))
	builder.AddUint8(bundleVersion)
	builder.AddUint32LengthPrefixed(func(c *cryptobyte.Builder) { c.AddBytes(b.Report) })
	builder.AddUint32LengthPrefixed(func(c *cryptobyte.Builder) { c.AddBytes(b.Signature) })
	raw, err := builder.Bytes()
	if err != nil {
		return 0, fmt.Errorf("evidence: encode bundle: %w", err)
	}

	cw := &countingWriter{w: w}
	enc, err := zstd.NewWriter(cw, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, err
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		return cw.n, err
	}
	if err := enc.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadBundle reads a bundle written by WriteTo.
func ReadBundle(r io.Reader) (*Bundle, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxBundleSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(io.LimitReader(dec, maxBundleSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if len(raw) > maxBundleSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidBundle, maxBundleSize)
	}

	s := cryptobyte.String(raw)
	var magic []byte
	var version uint8
	var report, signature cryptobyte.String
	if !s.ReadBytes(&magic, len(bundleMagic)) || !bytes.Equal(magic, []byte(bundleMagic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidBundle)
	}
	if !s.ReadUint8(&version) || version != bundleVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidBundle, version)
	}
	if !s.ReadUint32LengthPrefixed(&report) || !s.ReadUint32LengthPrefixed(&signature) || !s.Empty() {
		return nil, fmt.Errorf("%w: truncated", ErrInvalidBundle)
	}
	return &Bundle{
		Report:    bytes.Clone(report),
		Signature: bytes.Clone(signature),
	}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
