package format

import "math"

// Size arithmetic for block stores.

// BodySize returns the payload bytes available in the head block of a used
// run: everything after the link header.
func BodySize(blockSize int) int {
	return blockSize - HeaderSize
}

// Blocks converts a byte count into the number of blocks an allocation of
// that size occupies.
//
// A request that fits in the body of a single block takes one block. Larger
// requests take a head block plus enough body blocks for the remainder,
// plus one more to cover the head block's reduced capacity:
//
//	Blocks(4, 8)  = 1
//	Blocks(5, 8)  = 3
//	Blocks(20, 8) = 4
//	Blocks(28, 8) = 5
//
// Blocks returns math.MaxInt for requests too large to express.
func Blocks(size, blockSize int) int {
	body := BodySize(blockSize)
	if size <= body {
		return 1
	}
	rest := size - body
	if rest > math.MaxInt-blockSize {
		return math.MaxInt
	}
	return 2 + (rest+blockSize-1)/blockSize
}

// Capacity returns the payload bytes of a used run of n blocks.
func Capacity(n, blockSize int) int {
	if n <= 0 {
		return 0
	}
	return n*blockSize - HeaderSize
}

// AlignDown rounds n down to a multiple of blockSize.
//
// Example:
//
//	AlignDown(130, 8) = 128
//	AlignDown(128, 8) = 128
func AlignDown(n, blockSize int) int {
	return n - n%blockSize
}

// ValidBlockSize reports whether blockSize can hold both link pairs and
// keeps 16-bit link fields naturally aligned.
func ValidBlockSize(blockSize int) bool {
	return blockSize >= MinBlockSize && blockSize%BlockAlignment == 0
}
