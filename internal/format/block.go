package format

import "fmt"

// Store is a view over the raw bytes of a block store.
//
// Block layout (little-endian):
//
//	Offset  Size  Description
//	0x00    2     next. Index of the following block, 0 for the terminal block.
//	              Bit 15 set => this block starts a free run.
//	0x02    2     prev. Index of the preceding block. Bit 15 is scratch space
//	              used by integrity checking and is clear between operations.
//	0x04    2     nextFree. Free runs only: next run on the free list.
//	0x06    2     prevFree. Free runs only: previous run on the free list.
//	0x08    ...   Remaining body bytes (block sizes above 8).
//
// In a used block everything from 0x04 on is payload.
type Store struct {
	Mem       []byte
	BlockSize int
	Count     int
}

// NewStore carves mem into blocks of blockSize bytes. Trailing bytes that do
// not fill a whole block are ignored.
func NewStore(mem []byte, blockSize int) (Store, error) {
	if !ValidBlockSize(blockSize) {
		return Store{}, fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}
	count := len(mem) / blockSize
	if count > MaxBlocks {
		return Store{}, fmt.Errorf("%w: %d > %d", ErrTooManyBlocks, count, MaxBlocks)
	}
	if count < 2 {
		return Store{}, fmt.Errorf("%w: %d", ErrTooFewBlocks, count)
	}
	return Store{
		Mem:       mem[:count*blockSize],
		BlockSize: blockSize,
		Count:     count,
	}, nil
}

// Offset returns the byte offset of block c.
func (s Store) Offset(c int) int {
	return c * s.BlockSize
}

// PayloadOffset returns the byte offset of the payload of block c.
func (s Store) PayloadOffset(c int) int {
	return c*s.BlockSize + HeaderSize
}

// Valid reports whether c names a block of this store.
func (s Store) Valid(c int) bool {
	return c >= 0 && c < s.Count
}

// NextRaw returns the next link of c with its flag bit.
func (s Store) NextRaw(c int) uint16 {
	return ReadU16(s.Mem, s.Offset(c))
}

// PrevRaw returns the prev link of c with its tag bit.
func (s Store) PrevRaw(c int) uint16 {
	return ReadU16(s.Mem, s.Offset(c)+2)
}

// Next returns the index of the block following c.
func (s Store) Next(c int) int {
	return int(s.NextRaw(c) & IndexMask)
}

// Prev returns the index of the block preceding c.
func (s Store) Prev(c int) int {
	return int(s.PrevRaw(c) & IndexMask)
}

// IsFree reports whether c starts a free run.
func (s Store) IsFree(c int) bool {
	return s.NextRaw(c)&FreeMask != 0
}

// SetNext links c to n and sets or clears the free flag of c.
func (s Store) SetNext(c, n int, free bool) {
	v := uint16(n) & IndexMask
	if free {
		v |= FreeMask
	}
	PutU16(s.Mem, s.Offset(c), v)
}

// SetFree sets or clears the free flag of c, keeping its next link.
func (s Store) SetFree(c int, free bool) {
	s.SetNext(c, s.Next(c), free)
}

// SetPrev links c back to p and clears the scratch tag.
func (s Store) SetPrev(c, p int) {
	PutU16(s.Mem, s.Offset(c)+2, uint16(p)&IndexMask)
}

// Tagged reports whether the scratch tag of c is set.
func (s Store) Tagged(c int) bool {
	return s.PrevRaw(c)&FreeMask != 0
}

// SetTag sets or clears the scratch tag of c.
func (s Store) SetTag(c int, tag bool) {
	v := s.PrevRaw(c) & IndexMask
	if tag {
		v |= FreeMask
	}
	PutU16(s.Mem, s.Offset(c)+2, v)
}

// NextFree returns the free-list successor of c.
func (s Store) NextFree(c int) int {
	return int(ReadU16(s.Mem, s.Offset(c)+HeaderSize) & IndexMask)
}

// PrevFree returns the free-list predecessor of c.
func (s Store) PrevFree(c int) int {
	return int(ReadU16(s.Mem, s.Offset(c)+HeaderSize+2) & IndexMask)
}

// SetNextFree sets the free-list successor of c.
func (s Store) SetNextFree(c, n int) {
	PutU16(s.Mem, s.Offset(c)+HeaderSize, uint16(n)&IndexMask)
}

// SetPrevFree sets the free-list predecessor of c.
func (s Store) SetPrevFree(c, p int) {
	PutU16(s.Mem, s.Offset(c)+HeaderSize+2, uint16(p)&IndexMask)
}

// RunEnd returns the index one past the last block of the run starting at c.
// The terminal run links back to the sentinel, so its end is Count.
func (s Store) RunEnd(c int) int {
	n := s.Next(c)
	if n == Sentinel {
		return s.Count
	}
	return n
}

// Run returns the number of blocks in the run starting at c.
func (s Store) Run(c int) int {
	return s.RunEnd(c) - c
}

// Reset lays out an empty store: the sentinel followed by one free run that
// spans every remaining block.
func (s Store) Reset() {
	clear(s.Mem[:s.Offset(FirstBlock+1)])

	s.SetNext(Sentinel, FirstBlock, false)
	s.SetPrev(Sentinel, FirstBlock)
	s.SetNextFree(Sentinel, FirstBlock)
	s.SetPrevFree(Sentinel, FirstBlock)

	s.SetNext(FirstBlock, Sentinel, true)
	s.SetPrev(FirstBlock, Sentinel)
	s.SetNextFree(FirstBlock, Sentinel)
	s.SetPrevFree(FirstBlock, Sentinel)
}
