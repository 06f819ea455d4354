package umm

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/esp8266/Arduino-sub008/internal/buf"
	"github.com/esp8266/Arduino-sub008/internal/format"
	"github.com/esp8266/Arduino-sub008/internal/logger"
)

// Runtime debug flag for allocation tracing - controlled by UMM_LOG_ALLOC env var.
var logAlloc = os.Getenv("UMM_LOG_ALLOC") != ""

// Ptr is the address of a payload handed out by a heap.
type Ptr uint32

// Nil is the null pointer. No heap ever hands it out.
const Nil Ptr = 0

func (p Ptr) String() string {
	return fmt.Sprintf("0x%08x", uint32(p))
}

// Add returns p moved by n bytes.
func (p Ptr) Add(n int) Ptr {
	return Ptr(int64(p) + int64(n))
}

// Heap is one block store plus the free-list engine that manages it.
//
// All methods are safe for concurrent use as long as the configured
// CriticalSection provides mutual exclusion (the default does).
type Heap struct {
	id   HeapID
	name string
	cfg  Config
	base uint32
	st   format.Store
	cs   CriticalSection

	oom          *OOMTracker
	onCorruption CorruptionHandler

	ready bool
	stats Stats
	marks []mark

	closeOnce sync.Once
	closeErr  error
}

// BlockInfo describes one run of blocks as seen by Walk.
type BlockInfo struct {
	Index  int  // index of the first block of the run
	Blocks int  // number of blocks in the run
	Free   bool // true when the run is on the free list
	Addr   Ptr  // payload address of the run
}

// New creates a heap from cfg. The block store is laid out lazily by the
// first operation or by Init.
func New(cfg Config) (*Heap, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mem := cfg.Memory
	if mem == nil {
		mem = make([]byte, format.AlignDown(cfg.Size, cfg.BlockSize))
	}
	st, err := format.NewStore(mem, cfg.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	if uint64(cfg.Base)+uint64(len(st.Mem)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: base %#x + %d bytes", ErrAddressSpace, cfg.Base, len(st.Mem))
	}

	return &Heap{
		id:           HeapDRAM,
		name:         cfg.Name,
		cfg:          cfg,
		base:         cfg.Base,
		st:           st,
		cs:           cfg.Section,
		oom:          cfg.OOM,
		onCorruption: cfg.OnCorruption,
	}, nil
}

// Init lays out the block store: the sentinel block followed by a single
// free run covering everything else. Calling it again has no effect.
func (h *Heap) Init() {
	lvl := h.cs.Enter()
	h.initLocked()
	h.cs.Exit(lvl)
}

func (h *Heap) initLocked() {
	if h.ready {
		return
	}
	h.st.Reset()
	free := h.st.Count - format.FirstBlock
	h.stats = Stats{FreeBlocks: free, FreeBlocksMin: free}
	h.ready = true
	h.trace("init", "blocks", h.st.Count, "blockSize", h.st.BlockSize)
}

// Close releases the backing memory if the configuration supplied a
// Release function. The heap must not be used afterwards.
func (h *Heap) Close() error {
	h.closeOnce.Do(func() {
		if h.cfg.Release != nil {
			h.closeErr = h.cfg.Release()
		}
	})
	return h.closeErr
}

// ID returns the id the heap was registered under (HeapDRAM when standalone).
func (h *Heap) ID() HeapID { return h.id }

// Name returns the configured name.
func (h *Heap) Name() string { return h.name }

// Config returns the effective configuration.
func (h *Heap) Config() Config { return h.cfg }

// Base returns the address of the first byte of the heap.
func (h *Heap) Base() Ptr { return Ptr(h.base) }

// Size returns the heap size in bytes.
func (h *Heap) Size() int { return len(h.st.Mem) }

// NumBlocks returns the number of blocks, the sentinel included.
func (h *Heap) NumBlocks() int { return h.st.Count }

// BlockSizeBytes returns the size of one block.
func (h *Heap) BlockSizeBytes() int { return h.st.BlockSize }

// Contains reports whether p lies inside the heap's address range.
func (h *Heap) Contains(p Ptr) bool {
	a := uint64(p)
	return a >= uint64(h.base) && a < uint64(h.base)+uint64(len(h.st.Mem))
}

// ptrOf returns the payload address of block c.
func (h *Heap) ptrOf(c int) Ptr {
	return Ptr(h.base + uint32(h.st.PayloadOffset(c)))
}

// blockOf recovers the block index behind a payload address.
func (h *Heap) blockOf(p Ptr) (int, bool) {
	if !h.Contains(p) {
		return 0, false
	}
	off := int(uint32(p)-h.base) - format.HeaderSize
	if off < 0 || off%h.st.BlockSize != 0 {
		return 0, false
	}
	c := off / h.st.BlockSize
	if c < format.FirstBlock || c >= h.st.Count {
		return 0, false
	}
	return c, true
}

// ownedBlock resolves raw to the head block of a live allocation. user is
// the pointer the caller passed, for reporting.
func (h *Heap) ownedBlock(raw, user Ptr) (int, *Corruption) {
	s := h.st
	c, ok := h.blockOf(raw)
	if !ok {
		return 0, h.corruption(KindBadPointer, user, user, -1, "address is not a payload of this heap")
	}
	prev := s.Prev(c)
	if !s.Valid(prev) || prev >= c {
		return 0, h.corruption(KindBadPointer, user, user, c, "block is not the start of an allocation")
	}
	if s.Next(prev) != c {
		if s.IsFree(prev) && s.RunEnd(prev) > c {
			return 0, h.corruption(KindDoubleFree, user, user, c, "block lies inside free run %d", prev)
		}
		return 0, h.corruption(KindBadPointer, user, user, c, "block is not the start of an allocation")
	}
	if n := s.Next(c); n != format.Sentinel && (n <= c || !s.Valid(n)) {
		return 0, h.corruption(KindBadPointer, user, user, c, "block links forward to %d", n)
	}
	if s.IsFree(c) {
		return 0, h.corruption(KindDoubleFree, user, user, c, "block is already free")
	}
	return c, nil
}

// resolveLocked maps a caller pointer to its head block, verifying guard
// bytes first when poisoning is enabled.
func (h *Heap) resolveLocked(p Ptr) (int, *Corruption) {
	if !h.poisoned() {
		return h.ownedBlock(p, p)
	}
	if uint32(p) < poisonPrefix {
		return 0, h.corruption(KindBadPointer, p, p, -1, "address below poison prefix")
	}
	c, cor := h.ownedBlock(p.Add(-poisonPrefix), p)
	if cor != nil {
		return 0, cor
	}
	if cor := h.checkPoisonBlock(c); cor != nil {
		return 0, cor
	}
	if h.cfg.Poison == PoisonLite {
		if cor := h.checkPoisonNeighbors(c); cor != nil {
			return 0, cor
		}
	}
	return c, nil
}

// userRegionLocked returns the store offset and usable length of the
// allocation behind p.
func (h *Heap) userRegionLocked(p Ptr) (off, n int, ok bool) {
	raw := p
	if h.poisoned() {
		if uint32(p) < poisonPrefix {
			return 0, 0, false
		}
		raw = p.Add(-poisonPrefix)
	}
	c, cor := h.ownedBlock(raw, p)
	if cor != nil {
		return 0, 0, false
	}
	off = h.st.PayloadOffset(c)
	capacity := format.Capacity(h.st.Run(c), h.st.BlockSize)
	if !h.poisoned() {
		return off, capacity, true
	}
	total := h.envelopeLen(c)
	if total < poisonOverhead || total > capacity {
		return 0, 0, false
	}
	return off + poisonPrefix, total - poisonOverhead, true
}

// Bytes returns the first n bytes of the allocation behind p, or nil when
// p is not a live allocation or n exceeds its usable size. The slice
// aliases heap memory and is valid until p is freed or resized.
func (h *Heap) Bytes(p Ptr, n int) []byte {
	if p == Nil || n < 0 {
		return nil
	}
	lvl := h.cs.Enter()
	defer h.cs.Exit(lvl)
	h.initLocked()

	off, usable, ok := h.userRegionLocked(p)
	if !ok || n > usable {
		return nil
	}
	b, _ := buf.Slice(h.st.Mem, off, n)
	return b
}

// UsableSize returns how many bytes the caller may use at p: the requested
// length for poisoned heaps, the whole run payload otherwise. Zero when p
// is not a live allocation.
func (h *Heap) UsableSize(p Ptr) int {
	if p == Nil {
		return 0
	}
	lvl := h.cs.Enter()
	defer h.cs.Exit(lvl)
	h.initLocked()

	_, usable, ok := h.userRegionLocked(p)
	if !ok {
		return 0
	}
	return usable
}

// Walk calls fn for every run of blocks in address order until fn returns
// false. fn runs inside the critical section and must not call back into
// the heap.
func (h *Heap) Walk(fn func(BlockInfo) bool) {
	lvl := h.cs.Enter()
	defer h.cs.Exit(lvl)
	h.initLocked()

	s := h.st
	for c, steps := s.Next(format.Sentinel), 0; c != format.Sentinel && s.Valid(c) && steps < s.Count; c, steps = s.Next(c), steps+1 {
		bi := BlockInfo{Index: c, Blocks: s.Run(c), Free: s.IsFree(c), Addr: h.ptrOf(c)}
		if !fn(bi) {
			return
		}
	}
}

func (h *Heap) trace(op string, args ...any) {
	if !logAlloc {
		return
	}
	logger.Debug("umm: "+op, append([]any{"heap", h.name}, args...)...)
}
