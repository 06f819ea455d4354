package umm

import (
	"github.com/esp8266/Arduino-sub008/internal/format"
)

// mark remembers a prev field before the free-list walk tags it.
type mark struct {
	block int
	raw   uint16
}

// CheckIntegrity walks the free list and then the whole-heap list and
// verifies that both are mutually consistent. It never repairs anything.
// The first mismatch is reported through the corruption handler and
// CheckIntegrity returns false.
func (h *Heap) CheckIntegrity() bool {
	lvl := h.cs.Enter()
	h.initLocked()
	cor := h.checkIntegrityLocked()
	h.cs.Exit(lvl)

	if cor != nil {
		h.report(cor)
		return false
	}
	return true
}

// integrityLocked runs the check only when the heap is configured to check
// on every operation.
func (h *Heap) integrityLocked() *Corruption {
	if !h.cfg.Integrity {
		return nil
	}
	return h.checkIntegrityLocked()
}

func (h *Heap) checkIntegrityLocked() *Corruption {
	h.marks = h.marks[:0]
	cor := h.integrityPasses()
	if cor != nil {
		// Put every tagged field back the way it was, including fields
		// that turned out to be payload bytes.
		for i := len(h.marks) - 1; i >= 0; i-- {
			m := h.marks[i]
			format.PutU16(h.st.Mem, h.st.Offset(m.block)+2, m.raw)
		}
	}
	return cor
}

func (h *Heap) integrityPasses() *Corruption {
	s := h.st
	bad := func(c int, msg string, args ...any) *Corruption {
		addr := Nil
		if s.Valid(c) {
			addr = h.ptrOf(c)
		}
		return h.corruption(KindIntegrity, addr, Nil, c, msg, args...)
	}

	if s.IsFree(format.Sentinel) {
		return bad(format.Sentinel, "sentinel is flagged free")
	}

	// Pass 1: free list, tagging every node.
	prev := format.Sentinel
	cur := s.NextFree(format.Sentinel)
	for cur != format.Sentinel {
		if !s.Valid(cur) {
			return bad(prev, "free list links to %d, outside [0, %d)", cur, s.Count)
		}
		if len(h.marks) >= s.Count {
			return bad(cur, "free list does not terminate")
		}
		if s.PrevFree(cur) != prev {
			return bad(cur, "prevFree is %d, expected %d", s.PrevFree(cur), prev)
		}
		if s.Tagged(cur) {
			return bad(cur, "free list visits block twice")
		}
		h.marks = append(h.marks, mark{block: cur, raw: s.PrevRaw(cur)})
		s.SetTag(cur, true)

		prev = cur
		cur = s.NextFree(cur)
	}
	if s.PrevFree(format.Sentinel) != prev {
		return bad(format.Sentinel, "sentinel prevFree is %d, expected %d", s.PrevFree(format.Sentinel), prev)
	}

	// Pass 2: whole-heap list in address order, clearing tags.
	freeRuns := 0
	prev = format.Sentinel
	cur = s.Next(format.Sentinel)
	for cur != format.Sentinel {
		if !s.Valid(cur) {
			return bad(prev, "next links to %d, outside [0, %d)", cur, s.Count)
		}
		if cur <= prev {
			return bad(prev, "next links backwards to %d", cur)
		}
		if s.Prev(cur) != prev {
			return bad(cur, "prev is %d, expected %d", s.Prev(cur), prev)
		}
		free := s.IsFree(cur)
		if free != s.Tagged(cur) {
			if free {
				return bad(cur, "free run is missing from the free list")
			}
			return bad(cur, "used run is on the free list")
		}
		if free {
			if prev != format.Sentinel && s.IsFree(prev) {
				return bad(cur, "adjacent free runs %d and %d", prev, cur)
			}
			freeRuns++
			s.SetTag(cur, false)
		}

		prev = cur
		cur = s.Next(cur)
	}
	if s.Prev(format.Sentinel) != prev {
		return bad(format.Sentinel, "sentinel prev is %d, expected terminal %d", s.Prev(format.Sentinel), prev)
	}
	if freeRuns != len(h.marks) {
		return bad(format.Sentinel, "free list holds %d nodes, heap has %d free runs", len(h.marks), freeRuns)
	}
	return nil
}
