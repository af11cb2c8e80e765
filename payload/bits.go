package payload

// Bit returns payload bit k of an encoded payload, most significant bit first.
func Bit(b *[Size]byte, k int) uint8 {
	return (b[k>>3] >> (7 - uint(k&7))) & 1
}

// PackBits packs Bits decided bits (0 or 1, most significant first) into bytes.
// Any non-zero value counts as a set bit.
func PackBits(bits []uint8) [Size]byte {
	var b [Size]byte
	for k := 0; k < Bits && k < len(bits); k++ {
		if bits[k] != 0 {
			b[k>>3] |= 1 << (7 - uint(k&7))
		}
	}
	return b
}
