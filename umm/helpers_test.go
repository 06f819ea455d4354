package umm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esp8266/Arduino-sub008/internal/format"
)

// reports collects corruption reports instead of panicking.
type reports struct {
	got []*Corruption
}

func (r *reports) handle(c *Corruption) {
	r.got = append(r.got, c)
}

func (r *reports) last(t *testing.T) *Corruption {
	t.Helper()
	require.NotEmpty(t, r.got, "expected a corruption report")
	return r.got[len(r.got)-1]
}

// newTestHeap builds a heap of the given number of blocks. Options can
// adjust the config before the size is derived from the block size.
func newTestHeap(t *testing.T, blocks int, opts ...func(*Config)) (*Heap, *reports) {
	t.Helper()
	r := &reports{}
	cfg := Config{OnCorruption: r.handle}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Size == 0 {
		bs := cfg.BlockSize
		if bs == 0 {
			bs = format.DefaultBlockSize
		}
		cfg.Size = blocks * bs
	}
	h, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, blocks, h.NumBlocks())
	return h, r
}

func withPoison(m PoisonMode) func(*Config) {
	return func(c *Config) { c.Poison = m }
}

func withPolicy(p Policy) func(*Config) {
	return func(c *Config) { c.Policy = p }
}

// assertInvariants checks everything the allocator promises between calls.
func assertInvariants(t *testing.T, h *Heap) {
	t.Helper()
	require.True(t, h.CheckIntegrity(), "integrity check failed")

	prevFree := false
	total := 0
	h.Walk(func(b BlockInfo) bool {
		require.False(t, prevFree && b.Free, "adjacent free runs at block %d", b.Index)
		prevFree = b.Free
		total += b.Blocks
		return true
	})
	require.Equal(t, h.NumBlocks()-1, total, "runs must cover every block but the sentinel")
	require.Equal(t, h.FreeBytes(), h.FreeBytesFast(), "running free count drifted")
}

// blockIndex returns the block index behind a raw (unpoisoned) pointer.
func blockIndex(h *Heap, p Ptr) int {
	c, ok := h.blockOf(p)
	if !ok {
		return -1
	}
	return c
}

func fillPattern(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func requirePattern(t *testing.T, b []byte, seed byte) {
	t.Helper()
	for i := range b {
		require.Equal(t, seed+byte(i), b[i], "byte %d", i)
	}
}
