// Package buf holds overflow-safe size arithmetic and bounded slicing.
package buf

import "math"

// AddSaturating adds two non-negative sizes, clamping to math.MaxInt.
func AddSaturating(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// MulSaturating multiplies two non-negative sizes, clamping to math.MaxInt.
// Used for count * elementSize requests such as calloc.
func MulSaturating(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

// Slice returns b[off:off+n] with its capacity capped at the end, or false
// when the range does not fit within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) || n > len(b)-off {
		return nil, false
	}
	return b[off : off+n : off+n], true
}
