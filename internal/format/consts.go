// Package format describes the raw layout of a block store: fixed-size
// blocks addressed by 16-bit indices, each carrying a pair of physical
// links and, while free, a second pair of free-list links. Every read and
// write of those link fields goes through this package so the rest of the
// allocator never touches the bytes directly.
package format

const (
	// HeaderSize is the size of the per-block link header (next, prev).
	// Layout (little-endian):
	//   0x00  next  uint16  index of the physically following block; bit 15 = free flag
	//   0x02  prev  uint16  index of the physically preceding block; bit 15 = scratch tag
	HeaderSize = 4

	// FreeLinksSize is the size of the free-list links kept in the body of a
	// free block (nextFree, prevFree). In a used block these bytes are payload.
	FreeLinksSize = 4

	// MinBlockSize is the smallest block that can hold both link pairs.
	MinBlockSize = HeaderSize + FreeLinksSize

	// BlockAlignment is the granularity block sizes must respect.
	BlockAlignment = 4

	// DefaultBlockSize matches the classic 8-byte block (4-byte body).
	DefaultBlockSize = 8

	// FreeMask is the free flag carried by the high bit of a next link.
	FreeMask = 0x8000

	// IndexMask strips flag bits from a link.
	IndexMask = 0x7FFF

	// MaxBlocks is the largest number of blocks a 15-bit index can address.
	MaxBlocks = IndexMask + 1

	// Sentinel is the index of block 0: never allocated, head of the free list.
	Sentinel = 0

	// FirstBlock is the index of the first block that can be handed out.
	FirstBlock = 1
)
