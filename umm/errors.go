package umm

import "errors"

var (
	// ErrBadConfig indicates a heap configuration that cannot describe a block store.
	ErrBadConfig = errors.New("umm: bad heap configuration")

	// ErrAddressSpace indicates a heap whose address range does not fit in 32 bits.
	ErrAddressSpace = errors.New("umm: heap exceeds 32-bit address space")

	// ErrUnknownHeap indicates a heap id that was never registered with a Manager.
	ErrUnknownHeap = errors.New("umm: unknown heap id")

	// ErrDuplicateHeap indicates a heap id registered twice.
	ErrDuplicateHeap = errors.New("umm: heap id already registered")

	// ErrOverlap indicates two heaps whose address ranges intersect.
	ErrOverlap = errors.New("umm: heap address ranges overlap")

	// ErrCorrupt matches every *Corruption via errors.Is.
	ErrCorrupt = errors.New("umm: heap corruption")
)
