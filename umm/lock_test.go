package umm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelSection_Nesting(t *testing.T) {
	l := &LevelSection{Mask: 5}

	outer := l.Enter()
	assert.Equal(t, Level(0), outer)
	assert.Equal(t, Level(5), l.Level())

	inner := l.Enter()
	assert.Equal(t, Level(5), inner)
	assert.Equal(t, 2, l.Depth())

	l.Exit(inner)
	assert.Equal(t, Level(5), l.Level())
	l.Exit(outer)
	assert.Equal(t, Level(0), l.Level())
	assert.Equal(t, 0, l.Depth())
}

func TestLevelSection_DefaultMask(t *testing.T) {
	var l LevelSection
	prev := l.Enter()
	assert.Equal(t, Level(15), l.Level())
	l.Exit(prev)
	assert.Equal(t, Level(0), l.Level())
}

// TestLevelSection_RestoredOnEveryPath drives every entry point, including
// the failure and copy-outside-the-section paths, and checks that the level
// always returns to where it started.
func TestLevelSection_RestoredOnEveryPath(t *testing.T) {
	l := &LevelSection{}
	h, _ := newTestHeap(t, 32, func(c *Config) { c.Section = l })

	check := func(what string) {
		t.Helper()
		require.Equal(t, Level(0), l.Level(), what)
		require.Equal(t, 0, l.Depth(), what)
	}

	a := h.Alloc(12)
	b := h.Alloc(4)
	g := h.Alloc(4)
	check("alloc")
	h.Free(a)
	check("free")
	b = h.Realloc(b, 12) // grows down, copying outside the section
	require.NotEqual(t, Nil, b)
	check("realloc down")
	require.Equal(t, Nil, h.Alloc(1000))
	check("oom")
	b = h.Realloc(b, 100)
	check("realloc move")
	h.Free(Nil)
	h.Free(g.Add(1))
	check("bad free")
	h.Info(Nil, true)
	h.CheckIntegrity()
	h.CheckPoison()
	h.UsableSize(b)
	h.Bytes(b, 1)
	h.Stats()
	check("queries")
}

func TestNopSection(t *testing.T) {
	h, _ := newTestHeap(t, 16, func(c *Config) { c.Section = NopSection{} })
	p := h.Alloc(20)
	require.NotEqual(t, Nil, p)
	assert.Equal(t, 88, h.FreeBytes())
}

func TestMutexSection_ConcurrentUse(t *testing.T) {
	h, _ := newTestHeap(t, 4096)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				n := 1 + (w*31+i*7)%64
				p := h.Alloc(n)
				if p == Nil {
					continue
				}
				b := h.Bytes(p, n)
				fillPattern(b, byte(w))
				if i%3 == 0 {
					p = h.Realloc(p, n*2)
				}
				if p != Nil {
					h.Free(p)
				}
			}
		}()
	}
	wg.Wait()

	assertInvariants(t, h)
	assert.Equal(t, (h.NumBlocks()-1)*h.BlockSizeBytes(), h.FreeBytes())
}
