// Package seal encrypts the caller fields of an encoded payload before they are
// spread into an image.
//
// Watermarks without a sealer only obscure the payload behind the seed's spreading
// pattern; anyone holding the seed reads it. A Sealer additionally hides the fields
// from seed holders who lack the secret. The magic marker and checksum are computed
// over the sealed bytes, so an image can be checked for a structurally valid mark
// without the secret. The keystream gives confidentiality only: 256 bits leave no
// room for an authentication tag.
package seal

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/digitorus/pixelmark/payload"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

// MinSecretSize is the shortest accepted secret.
const MinSecretSize = 16

var info = []byte("pixelmark payload v1")

// ErrShortSecret is returned for secrets shorter than MinSecretSize.
var ErrShortSecret = errors.New("seal: secret too short")

// Sealer transforms the field bytes (0..16) of an encoded payload for one seed.
// Seal and Open are inverse operations; both leave magic and checksum to the caller.
type Sealer interface {
	Seal(seed string, b *[payload.Size]byte) error
	Open(seed string, b *[payload.Size]byte) error
}

// ChaCha20 seals fields with a ChaCha20 keystream whose key is
// HKDF-SHA256(secret, salt=seed, info="pixelmark payload v1") and a zero nonce.
// A seed must mark a single payload; reusing it for a different payload reuses the
// keystream.
type ChaCha20 struct {
	secret []byte
}

// New returns a ChaCha20 sealer for secret.
func New(secret []byte) (*ChaCha20, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrShortSecret
	}
	return &ChaCha20{secret: append([]byte(nil), secret...)}, nil
}

// Seal encrypts the field bytes in place.
func (c *ChaCha20) Seal(seed string, b *[payload.Size]byte) error {
	return c.xor(seed, b)
}

// Open decrypts the field bytes in place.
func (c *ChaCha20) Open(seed string, b *[payload.Size]byte) error {
	return c.xor(seed, b)
}

func (c *ChaCha20) xor(seed string, b *[payload.Size]byte) error {
	key := make([]byte, chacha20.KeySize)
	kdf := hkdf.New(sha256.New, c.secret, []byte(seed), info)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return fmt.Errorf("seal: derive key: %w", err)
	}
	nonce := make([]byte, chacha20.NonceSize)
	s, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	s.XORKeyStream(b[:payload.FieldsSize], b[:payload.FieldsSize])
	return nil
}

// Encode encodes p and seals its fields with s. A nil s is plain payload.Encode.
func Encode(s Sealer, seed string, p payload.Payload) ([payload.Size]byte, error) {
	b := payload.Encode(p)
	if s == nil {
		return b, nil
	}
	if err := s.Seal(seed, &b); err != nil {
		return b, err
	}
	payload.Finalize(&b)
	return b, nil
}

// Decode checks the structure of b, opens its fields with s and unpacks the payload.
// A nil s is plain payload.Decode.
func Decode(s Sealer, seed string, b [payload.Size]byte) (payload.Payload, error) {
	if s == nil {
		return payload.Decode(b[:])
	}
	if err := payload.Check(b[:]); err != nil {
		return payload.Payload{}, err
	}
	if err := s.Open(seed, &b); err != nil {
		return payload.Payload{}, err
	}
	payload.Finalize(&b)
	return payload.Decode(b[:])
}
