// Package payload packs and unpacks the forensic provenance record carried by a
// watermark.
//
// The encoded form is always 32 bytes (256 bits):
//
//	0-3:   Timestamp (big-endian uint32, seconds since the Unix epoch)
//	4-7:   IPv4 address of the origin
//	8-15:  Fingerprint (truncated user hash)
//	16:    Platform code
//	17-18: Magic ("ES")
//	19-31: Checksum, byte i = (XOR of bytes 0..18) XOR (i-19)
package payload

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"time"
)

const (
	// Size is the length in bytes of an encoded payload.
	Size = 32
	// Bits is the number of payload bits spread over an image.
	Bits = Size * 8

	// FieldsSize is the number of bytes holding caller data.
	FieldsSize = 17

	magicOffset    = 17
	checksumOffset = 19
)

// Magic marks a structurally valid payload.
var Magic = [2]byte{'E', 'S'}

var (
	// ErrTooShort indicates fewer than Size bytes were supplied.
	ErrTooShort = errors.New("payload too short")
	// ErrBadMagic indicates the magic marker does not match.
	ErrBadMagic = errors.New("payload magic mismatch")
	// ErrChecksum indicates a checksum byte does not match.
	ErrChecksum = errors.New("payload checksum mismatch")
)

// Payload is the provenance record embedded into an image.
type Payload struct {
	Timestamp   uint32  // seconds since the Unix epoch
	IPv4        [4]byte // origin address
	Fingerprint [8]byte // truncated user hash, see Fingerprint
	Platform    uint8   // platform code
}

// Time returns the timestamp as a UTC time.
func (p Payload) Time() time.Time {
	return time.Unix(int64(p.Timestamp), 0).UTC()
}

// IP returns the origin address.
func (p Payload) IP() netip.Addr {
	return netip.AddrFrom4(p.IPv4)
}

// FingerprintHex returns the fingerprint as lowercase hex.
func (p Payload) FingerprintHex() string {
	return hex.EncodeToString(p.Fingerprint[:])
}

func (p Payload) String() string {
	return fmt.Sprintf("ts=%d ip=%s fp=%s platform=%d", p.Timestamp, p.IP(), p.FingerprintHex(), p.Platform)
}

// Encode packs p into its 32-byte wire form.
func Encode(p Payload) [Size]byte {
	var b [Size]byte
	binary.BigEndian.PutUint32(b[0:4], p.Timestamp)
	copy(b[4:8], p.IPv4[:])
	copy(b[8:16], p.Fingerprint[:])
	b[16] = p.Platform
	Finalize(&b)
	return b
}

// Finalize writes the magic marker and checksum over bytes 0..16 in place.
// Sealers call it after rewriting the field bytes.
func Finalize(b *[Size]byte) {
	b[magicOffset] = Magic[0]
	b[magicOffset+1] = Magic[1]
	sum := xorSum(b[:checksumOffset])
	for i := checksumOffset; i < Size; i++ {
		b[i] = sum ^ byte(i-checksumOffset)
	}
}

// Decode unpacks a payload, checking the magic marker and checksum.
// An error is the normal outcome for images that carry no watermark.
func Decode(b []byte) (Payload, error) {
	if err := Check(b); err != nil {
		return Payload{}, err
	}
	return Payload{
		Timestamp:   binary.BigEndian.Uint32(b[0:4]),
		IPv4:        [4]byte(b[4:8]),
		Fingerprint: [8]byte(b[8:16]),
		Platform:    b[16],
	}, nil
}

// Check validates the structure of an encoded payload without unpacking it.
func Check(b []byte) error {
	if len(b) < Size {
		return ErrTooShort
	}
	if b[magicOffset] != Magic[0] || b[magicOffset+1] != Magic[1] {
		return ErrBadMagic
	}
	sum := xorSum(b[:checksumOffset])
	for i := checksumOffset; i < Size; i++ {
		if b[i] != sum^byte(i-checksumOffset) {
			return ErrChecksum
		}
	}
	return nil
}

func xorSum(b []byte) byte {
	var s byte
	for _, v := range b {
		s ^= v
	}
	return s
}

// Fingerprint truncates the SHA-256 of id to the 8 bytes a payload carries.
func Fingerprint(id string) [8]byte {
	sum := sha256.Sum256([]byte(id))
	return [8]byte(sum[:8])
}

// ParseIPv4 parses a dotted IPv4 address; IPv4-mapped IPv6 forms are accepted.
func ParseIPv4(s string) ([4]byte, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return [4]byte{}, fmt.Errorf("invalid ip address: %w", err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return [4]byte{}, fmt.Errorf("not an IPv4 address: %s", s)
	}
	return addr.As4(), nil
}
