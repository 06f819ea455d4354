package umm

import (
	"math"

	"github.com/esp8266/Arduino-sub008/internal/format"
)

// Free-list engine primitives. Everything here runs inside the heap's
// critical section and maintains the store invariants:
//
//   - no two physically adjacent runs are both free
//   - next/prev links and nextFree/prevFree links are mutually consistent
//   - following next from the sentinel visits strictly increasing indices

// split carves the run at c into [c, c+blocks) and [c+blocks, end). The new
// upper run inherits c's old next link and takes the given free flag; c
// keeps the lower part and is marked used. Free-list links are left to the
// caller.
func (h *Heap) split(c, blocks int, free bool) {
	s := h.st
	r := c + blocks
	n := s.Next(c)

	s.SetNext(r, n, free)
	s.SetPrev(r, c)
	s.SetPrev(n, r)
	s.SetNext(c, r, false)

	h.stats.Splits++
}

// disconnect unlinks the free run c from the free list and clears its free flag.
func (h *Heap) disconnect(c int) {
	s := h.st
	pf, nf := s.PrevFree(c), s.NextFree(c)
	s.SetNextFree(pf, nf)
	s.SetPrevFree(nf, pf)
	s.SetFree(c, false)
}

// assimilateUp merges the run following c into c when it is free. c must
// not be flagged free. Returns the number of blocks absorbed.
func (h *Heap) assimilateUp(c int) int {
	s := h.st
	n := s.Next(c)
	if n == format.Sentinel || !s.IsFree(n) {
		return 0
	}
	run := s.Run(n)
	h.disconnect(n)

	nn := s.Next(n)
	s.SetPrev(nn, c)
	s.SetNext(c, nn, false)

	h.stats.AssimilateUp++
	return run
}

// assimilateDown merges c into the run preceding it and returns the index of
// the surviving run. The survivor keeps its free-list position; free sets
// its flag.
func (h *Heap) assimilateDown(c int, free bool) int {
	s := h.st
	p := s.Prev(c)
	n := s.Next(c)
	s.SetNext(p, n, free)
	s.SetPrev(n, p)

	h.stats.AssimilateDown++
	return p
}

// findFree searches the free list for a run of at least blocks blocks
// according to the configured policy. Returns the sentinel when none fits.
func (h *Heap) findFree(blocks int) (int, int) {
	s := h.st
	best, bestRun := format.Sentinel, math.MaxInt

	cf := s.NextFree(format.Sentinel)
	for steps := 0; cf != format.Sentinel && s.Valid(cf) && steps < s.Count; steps++ {
		run := s.Run(cf)
		if run >= blocks && run < bestRun {
			best, bestRun = cf, run
			if h.cfg.Policy == FirstFit || run == blocks {
				break
			}
		}
		cf = s.NextFree(cf)
	}
	return best, bestRun
}

// allocCore takes blocks blocks off the free list and returns the index of
// the new used run, or the sentinel when nothing fits. The heap is not
// modified on failure.
func (h *Heap) allocCore(blocks int) int {
	s := h.st
	if blocks >= s.Count {
		return format.Sentinel
	}
	c, run := h.findFree(blocks)
	if c == format.Sentinel {
		return format.Sentinel
	}

	if run == blocks {
		h.disconnect(c)
	} else {
		// The remainder takes c's place in the free list.
		h.split(c, blocks, true)
		r := c + blocks
		pf, nf := s.PrevFree(c), s.NextFree(c)

		s.SetNextFree(pf, r)
		s.SetPrevFree(r, pf)

		s.SetPrevFree(nf, r)
		s.SetNextFree(r, nf)
	}

	h.stats.takeFree(blocks)
	return c
}

// freeCore returns the used run c to the free list, merging it with free
// neighbours on both sides.
func (h *Heap) freeCore(c int) {
	s := h.st
	h.stats.giveFree(s.Run(c))

	h.assimilateUp(c)

	if s.IsFree(s.Prev(c)) {
		h.assimilateDown(c, true)
		return
	}

	// No free run below: push c on the head of the free list.
	nf := s.NextFree(format.Sentinel)
	s.SetPrevFree(nf, c)
	s.SetNextFree(c, nf)
	s.SetPrevFree(c, format.Sentinel)
	s.SetNextFree(format.Sentinel, c)
	s.SetFree(c, true)
}

// moveLocked copies n payload bytes from block src to block dst. Unless guard
// bytes are in play, the copy runs with the critical section suspended: by
// now dst is fully linked and marked used, so no other operation touches
// its payload. Returns the level to exit with.
func (h *Heap) moveLocked(lvl Level, dst, src, n int) Level {
	s := h.st
	d, o := s.PayloadOffset(dst), s.PayloadOffset(src)
	if h.poisoned() {
		copy(s.Mem[d:d+n], s.Mem[o:o+n])
		return lvl
	}
	h.cs.Exit(lvl)
	copy(s.Mem[d:d+n], s.Mem[o:o+n])
	return h.cs.Enter()
}
