// Package bitrev implements the bit-reversal permutation used to align FFT
// butterfly output order with canonical evaluation order. The permutation is
// generic over the element type so the same routine reorders scalars, curve
// points, cells and proofs.
package bitrev

import (
	"errors"
	"math/bits"
)

// ErrLength is returned when the input length is not a power of two.
var ErrLength = errors.New("bitrev: length must be a positive power of two")

// IsPowerOfTwo reports whether v is a positive power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// ReverseBits reverses the low bitLen bits of v. Bits above bitLen must be
// zero.
func ReverseBits(v, bitLen uint64) uint64 {
	if bitLen == 0 {
		return v
	}
	return bits.Reverse64(v) >> (64 - bitLen)
}

// Permute reorders values in place so that the element at index i moves to
// the index obtained by reversing the bits of i. The permutation is an
// involution: applying it twice restores the original order.
func Permute[T any](values []T) error {
	n := uint64(len(values))
	if !IsPowerOfTwo(n) {
		return ErrLength
	}
	logN := uint64(bits.TrailingZeros64(n))
	for i := uint64(0); i < n; i++ {
		r := ReverseBits(i, logN)
		if r > i {
			values[i], values[r] = values[r], values[i]
		}
	}
	return nil
}
