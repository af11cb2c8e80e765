// Package testimg builds deterministic fixtures for tests: synthetic RGBA8888
// images, pixel perturbations, lossy round trips and a throwaway signing identity.
package testimg

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"image"
	"image/jpeg"
	"log"
	"math/big"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/image/draw"
)

// Smooth returns a width x height RGBA8888 buffer: a bilinear blend of four random
// corner colours plus per-channel noise of at most +-2, with random alpha. Channel
// values stay inside [58, 197], leaving headroom for embedding and test noise
// without clamping. The same seed yields the same image.
func Smooth(seed uint64, width, height int) []byte {
	r := mrand.New(mrand.NewPCG(seed, 0x706978656c6d6b))
	var corners [4][3]float64
	for i := range corners {
		for c := range corners[i] {
			corners[i][c] = 60 + r.Float64()*135
		}
	}

	pix := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		fy := float64(y) / float64(max(height-1, 1))
		for x := 0; x < width; x++ {
			fx := float64(x) / float64(max(width-1, 1))
			i := (y*width + x) * 4
			for c := 0; c < 3; c++ {
				top := corners[0][c]*(1-fx) + corners[1][c]*fx
				bottom := corners[2][c]*(1-fx) + corners[3][c]*fx
				v := top*(1-fy) + bottom*fy + float64(r.IntN(5)-2)
				pix[i+c] = uint8(v + 0.5)
			}
			pix[i+3] = uint8(r.IntN(256))
		}
	}
	return pix
}

// Uniform returns a width x height RGBA8888 buffer of independent uniform random
// bytes. Such images carry as much mid-band energy as a full strength mark.
func Uniform(seed uint64, width, height int) []byte {
	r := mrand.New(mrand.NewPCG(seed, 0x756e69666f726d))
	pix := make([]byte, width*height*4)
	for i := range pix {
		pix[i] = uint8(r.IntN(256))
	}
	return pix
}

// Noise returns a copy of pix with every R, G and B value moved by a uniform random
// integer in [-amp, amp], clamped to [0, 255]. Alpha is copied.
func Noise(pix []byte, amp int, seed uint64) []byte {
	r := mrand.New(mrand.NewPCG(seed, 0x6e6f697365))
	out := make([]byte, len(pix))
	for i, v := range pix {
		if i%4 == 3 {
			out[i] = v
			continue
		}
		out[i] = uint8(min(max(int(v)+r.IntN(2*amp+1)-amp, 0), 255))
	}
	return out
}

// RGBA wraps an RGBA8888 buffer as an image without copying.
func RGBA(pix []byte, width, height int) *image.RGBA {
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
}

// Pixels converts any image to an RGBA8888 buffer.
func Pixels(img image.Image) []byte {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix
}

// RecompressJPEG encodes an RGBA8888 buffer as JPEG at quality and decodes it back.
func RecompressJPEG(t testing.TB, pix []byte, width, height, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, RGBA(pix, width, height), &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("jpeg decode: %v", err)
	}
	return Pixels(img)
}

// Identity is a self-signed signing key and certificate.
type Identity struct {
	Key  crypto.Signer
	Cert *x509.Certificate
}

// NewIdentity issues a self-signed P-256 certificate for commonName.
func NewIdentity(t testing.TB, commonName string) *Identity {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		Fail(t, "failed to generate P-256 key: %v", err)
	}

	serialNumber, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"Pixelmark Test Org"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		Fail(t, "failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		Fail(t, "failed to parse certificate: %v", err)
	}
	return &Identity{Key: key, Cert: cert}
}

// WritePEM stores the identity as cert.pem and key.pem (PKCS#8) in dir and returns
// both paths.
func (id *Identity) WritePEM(t testing.TB, dir string) (certPath, keyPath string) {
	keyDER, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		Fail(t, "failed to marshal key: %v", err)
	}
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Cert.Raw})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		Fail(t, "failed to write certificate: %v", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		Fail(t, "failed to write key: %v", err)
	}
	return certPath, keyPath
}

// Fail reports a fixture error on t, or exits when t is nil (examples).
func Fail(t testing.TB, format string, args ...interface{}) {
	if t != nil {
		t.Helper()
		t.Fatalf(format, args...)
	}
	log.Fatalf(format, args...)
}
