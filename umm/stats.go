package umm

// Stats are running counters kept by a heap. They are updated inside the
// critical section and cost O(1) per operation, unlike Info which walks
// the whole store.
type Stats struct {
	FreeBlocks    int // blocks currently on the free list
	FreeBlocksMin int // low-water mark of FreeBlocks since init or the last reset

	OOMCount         uint64 // allocations that returned Nil for a non-zero request
	AllocCount       uint64
	AllocZeroCount   uint64
	FreeCount        uint64
	FreeNilCount     uint64
	ReallocCount     uint64
	ReallocZeroCount uint64

	AllocMaxSize  int // largest request that succeeded
	LastAllocSize int

	Splits         uint64
	AssimilateUp   uint64
	AssimilateDown uint64
}

func (s *Stats) takeFree(blocks int) {
	s.FreeBlocks -= blocks
	s.lowWater()
}

// absorb charges blocks merged into a growing allocation. The low-water
// mark is left alone until the unused tail has been given back.
func (s *Stats) absorb(blocks int) {
	s.FreeBlocks -= blocks
}

func (s *Stats) lowWater() {
	if s.FreeBlocks < s.FreeBlocksMin {
		s.FreeBlocksMin = s.FreeBlocks
	}
}

func (s *Stats) giveFree(blocks int) {
	s.FreeBlocks += blocks
}

func (s *Stats) noteAlloc(size int) {
	s.LastAllocSize = size
	if size > s.AllocMaxSize {
		s.AllocMaxSize = size
	}
}

// Stats returns a snapshot of the running counters.
func (h *Heap) Stats() Stats {
	lvl := h.cs.Enter()
	defer h.cs.Exit(lvl)
	h.initLocked()
	return h.stats
}

// ResetFreeBlocksMin sets the free-blocks low-water mark to the current free
// block count and returns the previous mark.
func (h *Heap) ResetFreeBlocksMin() int {
	lvl := h.cs.Enter()
	defer h.cs.Exit(lvl)
	h.initLocked()
	prev := h.stats.FreeBlocksMin
	h.stats.FreeBlocksMin = h.stats.FreeBlocks
	return prev
}

// FreeBytesFast returns the free byte count from the running counters
// without walking the store. It matches FreeBytes on a consistent heap.
func (h *Heap) FreeBytesFast() int {
	return h.Stats().FreeBlocks * h.st.BlockSize
}
