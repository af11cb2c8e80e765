// Package prseq derives the bipolar spreading sequence shared by embedding and
// extraction.
//
// The sequence is HMAC-SHA-256 in counter mode keyed by the seed: block c is
// HMAC(seed, uint32be(c)) for c = 0, 1, 2, ... and every output byte contributes one
// chip, +1 when its least-significant bit is set and -1 otherwise. Without the seed
// the pattern cannot be predicted, and distinct seeds per image keep the patterns of
// different images uncorrelated.
package prseq

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// Generate returns n chips in {-1, +1} derived from seed.
// It is a pure function of (seed, n): a prefix of a longer sequence equals the
// shorter one.
func Generate(seed string, n int) []int8 {
	if n <= 0 {
		return nil
	}
	seq := make([]int8, 0, n)

	mac := hmac.New(sha256.New, []byte(seed))
	var ctr [4]byte
	var sum []byte
	for c := uint32(0); len(seq) < n; c++ {
		binary.BigEndian.PutUint32(ctr[:], c)
		mac.Reset()
		mac.Write(ctr[:])
		sum = mac.Sum(sum[:0])
		for _, b := range sum {
			if len(seq) == n {
				break
			}
			if b&1 == 1 {
				seq = append(seq, 1)
			} else {
				seq = append(seq, -1)
			}
		}
	}
	return seq
}
