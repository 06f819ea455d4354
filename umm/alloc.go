package umm

import (
	"github.com/esp8266/Arduino-sub008/internal/buf"
	"github.com/esp8266/Arduino-sub008/internal/format"
)

// Alloc returns a pointer to at least size bytes, or Nil when size is zero
// or no free run is large enough. Exhaustion is recorded with the OOM
// tracker and leaves the heap unchanged.
func (h *Heap) Alloc(size int) Ptr {
	return h.alloc(size)
}

// Calloc allocates count*size zeroed bytes. The product saturates instead
// of wrapping, so an overflowing request fails like any other oversized one.
func (h *Heap) Calloc(count, size int) Ptr {
	if count < 0 || size < 0 {
		return Nil
	}
	total := buf.MulSaturating(count, size)
	p := h.alloc(total)
	if p == Nil {
		return Nil
	}
	clear(h.Bytes(p, total))
	return p
}

// Free releases the allocation at p. Free(Nil) does nothing. Pointers that
// were not handed out by this heap, or are already free, are reported as
// corruption and ignored.
func (h *Heap) Free(p Ptr) {
	lvl := h.cs.Enter()
	h.initLocked()
	if p == Nil {
		h.stats.FreeNilCount++
		h.cs.Exit(lvl)
		return
	}
	cor := h.freeLocked(p)
	h.cs.Exit(lvl)

	h.trace("free", "ptr", p.String())
	h.report(cor)
}

// Realloc resizes the allocation at p to size bytes and returns its new
// address, preserving the first min(old, new) bytes.
//
// Realloc(Nil, size) is Alloc(size). Realloc(p, 0) frees p and returns Nil.
// When the allocation cannot grow, Realloc returns Nil and p stays valid
// and untouched.
//
// Growth is tried in place first: into a free run above, then into a free
// run below (moving the payload down), then both. Only then is a new run
// allocated elsewhere and the payload copied over.
func (h *Heap) Realloc(p Ptr, size int) Ptr {
	if p == Nil {
		return h.alloc(size)
	}
	if size <= 0 {
		lvl := h.cs.Enter()
		h.initLocked()
		h.stats.ReallocZeroCount++
		cor := h.freeLocked(p)
		h.cs.Exit(lvl)
		h.report(cor)
		return Nil
	}

	lvl := h.cs.Enter()
	h.initLocked()
	h.stats.ReallocCount++

	c, cor := h.reallocResolve(p)
	if cor != nil {
		h.cs.Exit(lvl)
		h.report(cor)
		return Nil
	}

	s := h.st
	need := h.envelopeSize(size)
	blocks := format.Blocks(need, s.BlockSize)

	cur := s.Run(c)
	keep := format.Capacity(cur, s.BlockSize)
	if h.poisoned() {
		keep = h.envelopeLen(c)
	}

	nextBlocks := 0
	if n := s.Next(c); n != format.Sentinel && s.IsFree(n) {
		nextBlocks = s.Run(n)
	}
	prev := s.Prev(c)
	prevBlocks := 0
	if s.IsFree(prev) {
		prevBlocks = s.Run(prev)
	}

	switch {
	case cur >= blocks:
		// Already large enough; any excess is trimmed below.
	case cur+nextBlocks >= blocks:
		h.assimilateUp(c)
		h.stats.absorb(nextBlocks)
		cur += nextBlocks
	case prevBlocks > 0 && prevBlocks+cur >= blocks:
		old := c
		h.disconnect(prev)
		c = h.assimilateDown(c, false)
		h.stats.absorb(prevBlocks)
		cur += prevBlocks
		lvl = h.moveLocked(lvl, c, old, keep)
	case prevBlocks > 0 && prevBlocks+cur+nextBlocks >= blocks:
		old := c
		h.assimilateUp(c)
		h.disconnect(prev)
		c = h.assimilateDown(c, false)
		h.stats.absorb(prevBlocks + nextBlocks)
		cur += prevBlocks + nextBlocks
		lvl = h.moveLocked(lvl, c, old, keep)
	default:
		h.cs.Exit(lvl)
		return h.reallocElsewhere(p, size)
	}

	if cur > blocks {
		h.split(c, blocks, false)
		h.freeCore(c + blocks)
	}
	h.stats.lowWater()

	np := h.ptrOf(c)
	if h.poisoned() {
		np = h.poison(c, need)
	}
	h.cs.Exit(lvl)

	h.trace("realloc", "ptr", p.String(), "size", size, "new", np.String(), "blocks", blocks)
	return np
}

// alloc is the self-locking allocation entry point shared by Alloc,
// Calloc and the realloc fallback.
func (h *Heap) alloc(size int) Ptr {
	lvl := h.cs.Enter()
	h.initLocked()
	if size <= 0 {
		h.stats.AllocZeroCount++
		h.cs.Exit(lvl)
		return Nil
	}
	h.stats.AllocCount++

	if cor := h.integrityLocked(); cor != nil {
		h.cs.Exit(lvl)
		h.report(cor)
		return Nil
	}

	need := h.envelopeSize(size)
	blocks := format.Blocks(need, h.st.BlockSize)
	c := h.allocCore(blocks)

	p := Nil
	if c != format.Sentinel {
		p = h.ptrOf(c)
		if h.poisoned() {
			p = h.poison(c, need)
		}
		h.stats.noteAlloc(size)
	} else {
		h.stats.OOMCount++
	}
	h.cs.Exit(lvl)

	if p == Nil {
		h.recordOOM(size)
		return Nil
	}
	h.trace("alloc", "size", size, "blocks", blocks, "ptr", p.String())
	return p
}

// freeLocked validates p and returns its run to the free list.
func (h *Heap) freeLocked(p Ptr) *Corruption {
	if cor := h.integrityLocked(); cor != nil {
		return cor
	}
	c, cor := h.resolveLocked(p)
	if cor != nil {
		return cor
	}
	h.stats.FreeCount++
	h.freeCore(c)
	return nil
}

func (h *Heap) reallocResolve(p Ptr) (int, *Corruption) {
	if cor := h.integrityLocked(); cor != nil {
		return 0, cor
	}
	return h.resolveLocked(p)
}

// reallocElsewhere allocates a new run, copies the payload and frees the old
// run, each step through the public self-locking entry points.
func (h *Heap) reallocElsewhere(p Ptr, size int) Ptr {
	np := h.alloc(size)
	if np == Nil {
		return Nil
	}
	n := min(h.UsableSize(p), h.UsableSize(np))
	copy(h.Bytes(np, n), h.Bytes(p, n))
	h.Free(p)

	h.trace("realloc moved", "ptr", p.String(), "size", size, "new", np.String())
	return np
}
