package umm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esp8266/Arduino-sub008/internal/format"
)

// memAt returns the store offset of a poisoned user pointer.
func memAt(h *Heap, p Ptr) int {
	return int(uint32(p) - h.base)
}

func TestPoison_Envelope(t *testing.T) {
	h, _ := newTestHeap(t, 64, withPoison(PoisonFull))

	p := h.Alloc(10)
	require.NotEqual(t, Nil, p)
	assert.Equal(t, 1, blockIndex(h, p.Add(-poisonPrefix)))
	assert.Equal(t, 10, h.UsableSize(p))
	assert.Nil(t, h.Bytes(p, 11), "guard bytes are not user memory")

	off := memAt(h, p)
	assert.Equal(t, uint32(10+poisonOverhead), format.ReadU32(h.st.Mem, off-poisonPrefix))
	assert.Equal(t, []byte{PoisonByte, PoisonByte, PoisonByte, PoisonByte}, h.st.Mem[off-4:off])
	assert.Equal(t, []byte{PoisonByte, PoisonByte, PoisonByte, PoisonByte}, h.st.Mem[off+10:off+14])
	assert.True(t, h.CheckPoison())
}

func TestPoison_CatchesOverrun(t *testing.T) {
	h, r := newTestHeap(t, 64, withPoison(PoisonFull))
	p := h.Alloc(10)
	require.NotEqual(t, Nil, p)
	before := h.FreeBytes()

	h.st.Mem[memAt(h, p)+10] = 0 // one byte past the request

	h.Free(p)
	c := r.last(t)
	assert.Equal(t, KindPoison, c.Kind)
	assert.Equal(t, p.Add(10), c.Addr)
	assert.Equal(t, p, c.Alloc)
	assert.Equal(t, before, h.FreeBytes(), "damaged block must not be released")
	assert.False(t, h.st.IsFree(1))
}

func TestPoison_CatchesUnderrun(t *testing.T) {
	h, r := newTestHeap(t, 64, withPoison(PoisonFull))
	p := h.Alloc(10)
	require.NotEqual(t, Nil, p)

	h.st.Mem[memAt(h, p)-1] = 0

	assert.Equal(t, Nil, h.Realloc(p, 40))
	c := r.last(t)
	assert.Equal(t, KindPoison, c.Kind)
	assert.Equal(t, p.Add(-1), c.Addr)
}

func TestPoison_LiteChecksNeighbours(t *testing.T) {
	for _, tc := range []struct {
		mode    PoisonMode
		reports int
	}{
		{PoisonFull, 0},
		{PoisonLite, 1},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			h, r := newTestHeap(t, 64, withPoison(tc.mode))
			a := h.Alloc(10)
			b := h.Alloc(10)
			require.NotEqual(t, Nil, b)

			h.st.Mem[memAt(h, a)+10] = 0 // overrun a, then free b

			h.Free(b)
			require.Len(t, r.got, tc.reports)
			if tc.reports > 0 {
				assert.Equal(t, KindPoison, r.got[0].Kind)
				assert.Equal(t, a.Add(10), r.got[0].Addr)
			}
		})
	}
}

func TestPoison_CheckPoisonWalksAllBlocks(t *testing.T) {
	h, r := newTestHeap(t, 64, withPoison(PoisonFull))
	var live []Ptr
	for range 4 {
		live = append(live, h.Alloc(6))
	}
	assert.True(t, h.CheckPoison())

	h.st.Mem[memAt(h, live[2])+6] ^= 0xff
	assert.False(t, h.CheckPoison())
	assert.Equal(t, live[2].Add(6), r.last(t).Addr)
}

func TestPoison_ReallocKeepsEnvelope(t *testing.T) {
	h, _ := newTestHeap(t, 128, withPoison(PoisonLite))
	lo := h.Alloc(3)
	p := h.Alloc(10)
	hi := h.Alloc(3)
	require.NotEqual(t, Nil, hi)
	fillPattern(h.Bytes(p, 10), 42)

	h.Free(lo)
	q := h.Realloc(p, 40)
	require.NotEqual(t, Nil, q)
	assert.Equal(t, 40, h.UsableSize(q))
	requirePattern(t, h.Bytes(q, 10), 42)
	assert.True(t, h.CheckPoison())

	q = h.Realloc(q, 5)
	assert.Equal(t, 5, h.UsableSize(q))
	requirePattern(t, h.Bytes(q, 5), 42)
	assert.True(t, h.CheckPoison())

	assert.Equal(t, Nil, h.Realloc(q, 0))
	assertInvariants(t, h)
}

func TestPoison_Calloc(t *testing.T) {
	h, _ := newTestHeap(t, 64, withPoison(PoisonFull))
	p := h.Calloc(3, 5)
	require.NotEqual(t, Nil, p)
	assert.Equal(t, make([]byte, 15), h.Bytes(p, 15))
	assert.True(t, h.CheckPoison())
}

func TestPoison_OffAlwaysPasses(t *testing.T) {
	h, _ := newTestHeap(t, 16)
	p := h.Alloc(4)
	require.NotEqual(t, Nil, p)
	assert.Equal(t, 4, h.UsableSize(p), "unpoisoned heaps hand out the whole run")
	assert.True(t, h.CheckPoison())
}
