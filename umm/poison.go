package umm

import (
	"github.com/esp8266/Arduino-sub008/internal/buf"
	"github.com/esp8266/Arduino-sub008/internal/format"
)

// Guard bytes surround every live allocation on a poisoned heap:
//
//	Offset      Size  Description
//	0x00        4     Total envelope length, prefix and both guards included
//	0x04        4     Leading guard, PoisonByte
//	0x08        n     User bytes
//	0x08+n      4     Trailing guard, PoisonByte
//
// Callers get a pointer to offset 0x08.
const (
	PoisonByte = 0xa5

	poisonLen      = 4
	poisonLenField = 4
	poisonPrefix   = poisonLenField + poisonLen
	poisonOverhead = poisonPrefix + poisonLen
)

func (h *Heap) poisoned() bool {
	return h.cfg.Poison != PoisonOff
}

// envelopeSize returns how many bytes the engine must hand out for a
// request of size bytes.
func (h *Heap) envelopeSize(size int) int {
	if !h.poisoned() {
		return size
	}
	return buf.AddSaturating(size, poisonOverhead)
}

// envelopeLen reads the recorded envelope length of the used run c.
func (h *Heap) envelopeLen(c int) int {
	return int(format.ReadU32(h.st.Mem, h.st.PayloadOffset(c)))
}

// poison writes the envelope for a total-byte allocation at c and returns
// the user pointer.
func (h *Heap) poison(c, total int) Ptr {
	s := h.st
	off := s.PayloadOffset(c)
	format.PutU32(s.Mem, off, uint32(total))
	fill(s.Mem[off+poisonLenField : off+poisonPrefix])
	fill(s.Mem[off+total-poisonLen : off+total])
	return h.ptrOf(c).Add(poisonPrefix)
}

func fill(b []byte) {
	for i := range b {
		b[i] = PoisonByte
	}
}

// checkGuard returns the offset of the first byte in b that is not a guard
// byte, or -1.
func checkGuard(b []byte) int {
	for i, v := range b {
		if v != PoisonByte {
			return i
		}
	}
	return -1
}

// checkPoisonBlock verifies the envelope of the used run c.
func (h *Heap) checkPoisonBlock(c int) *Corruption {
	s := h.st
	off := s.PayloadOffset(c)
	user := h.ptrOf(c).Add(poisonPrefix)

	total := h.envelopeLen(c)
	capacity := format.Capacity(s.Run(c), s.BlockSize)
	if total < poisonOverhead || total > capacity {
		return h.corruption(KindPoison, h.ptrOf(c), user, c,
			"envelope length %d outside [%d, %d]", total, poisonOverhead, capacity)
	}
	before := off + poisonLenField
	if i := checkGuard(s.Mem[before : before+poisonLen]); i >= 0 {
		addr := h.ptrOf(c).Add(poisonLenField + i)
		return h.corruption(KindPoison, addr, user, c,
			"leading guard byte %d is %#02x", i, s.Mem[before+i])
	}
	after := off + total - poisonLen
	if i := checkGuard(s.Mem[after : after+poisonLen]); i >= 0 {
		addr := h.ptrOf(c).Add(total - poisonLen + i)
		return h.corruption(KindPoison, addr, user, c,
			"trailing guard byte %d is %#02x", i, s.Mem[after+i])
	}
	return nil
}

// checkPoisonNeighbors verifies the physically adjacent used runs of c.
func (h *Heap) checkPoisonNeighbors(c int) *Corruption {
	s := h.st
	if p := s.Prev(c); p != format.Sentinel && !s.IsFree(p) {
		if cor := h.checkPoisonBlock(p); cor != nil {
			return cor
		}
	}
	if n := s.Next(c); n != format.Sentinel && !s.IsFree(n) {
		if cor := h.checkPoisonBlock(n); cor != nil {
			return cor
		}
	}
	return nil
}

// CheckPoison verifies the guards of every live allocation. It returns true
// when the heap is not poisoned. The first damaged guard is reported
// through the corruption handler.
func (h *Heap) CheckPoison() bool {
	if !h.poisoned() {
		return true
	}
	lvl := h.cs.Enter()
	h.initLocked()
	cor := h.checkPoisonAllLocked()
	h.cs.Exit(lvl)

	if cor != nil {
		h.report(cor)
		return false
	}
	return true
}

func (h *Heap) checkPoisonAllLocked() *Corruption {
	s := h.st
	for c, steps := s.Next(format.Sentinel), 0; c != format.Sentinel && s.Valid(c) && steps < s.Count; c, steps = s.Next(c), steps+1 {
		if s.IsFree(c) {
			continue
		}
		if cor := h.checkPoisonBlock(c); cor != nil {
			return cor
		}
	}
	return nil
}
