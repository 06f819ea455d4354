package umm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esp8266/Arduino-sub008/internal/format"
)

func TestNew_Defaults(t *testing.T) {
	h, err := New(Config{Size: 130})
	require.NoError(t, err)

	cfg := h.Config()
	assert.Equal(t, "heap", cfg.Name)
	assert.Equal(t, 8, cfg.BlockSize)
	assert.Equal(t, DefaultBase, cfg.Base)
	assert.Equal(t, BestFit, cfg.Policy)
	assert.Equal(t, PoisonOff, cfg.Poison)
	assert.NotNil(t, cfg.OOM)
	assert.IsType(t, &MutexSection{}, cfg.Section)

	assert.Equal(t, 128, h.Size(), "size rounds down to whole blocks")
	assert.Equal(t, 16, h.NumBlocks())
	assert.Equal(t, Ptr(DefaultBase), h.Base())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []error
	}{
		{"no size", Config{}, []error{ErrBadConfig}},
		{"odd block size", Config{Size: 128, BlockSize: 10}, []error{ErrBadConfig}},
		{"tiny block size", Config{Size: 128, BlockSize: 4}, []error{ErrBadConfig}},
		{"one block", Config{Size: 8}, []error{ErrBadConfig, format.ErrTooFewBlocks}},
		{"too many blocks", Config{Size: (format.MaxBlocks + 1) * 8}, []error{ErrBadConfig, format.ErrTooManyBlocks}},
		{"unaligned base", Config{Size: 128, Base: 0x1002}, []error{ErrBadConfig}},
		{"address space", Config{Size: 4096, Base: 0xFFFFF000}, []error{ErrAddressSpace}},
		{"policy", Config{Size: 128, Policy: 9}, []error{ErrBadConfig}},
		{"poison", Config{Size: 128, Poison: 9}, []error{ErrBadConfig}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			for _, want := range tt.want {
				assert.True(t, errors.Is(err, want), "%v is not %v", err, want)
			}
		})
	}
}

func TestNew_ExternalMemory(t *testing.T) {
	mem := make([]byte, 64*16)
	released := 0
	h, err := New(Config{
		Memory:    mem,
		BlockSize: 16,
		Release:   func() error { released++; return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, 64, h.NumBlocks())

	p := h.Alloc(100)
	require.NotEqual(t, Nil, p)
	copy(h.Bytes(p, 5), "hello")
	off := int(uint32(p) - uint32(h.Base()))
	assert.Equal(t, "hello", string(mem[off:off+5]), "heap writes through to the caller's memory")

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, 1, released)
}

func TestInit_Idempotent(t *testing.T) {
	h, _ := newTestHeap(t, 16)
	h.Init()
	p := h.Alloc(20)
	require.NotEqual(t, Nil, p)
	h.Init()
	assert.Equal(t, 88, h.FreeBytes(), "second Init must not reset the store")
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"":          BestFit,
		"best-fit":  BestFit,
		"BEST_FIT":  BestFit,
		"first":     FirstFit,
		"first-fit": FirstFit,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolicy("worst-fit")
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestParsePoisonMode(t *testing.T) {
	for _, m := range []PoisonMode{PoisonOff, PoisonFull, PoisonLite} {
		got, err := ParsePoisonMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParsePoisonMode("heavy")
	assert.ErrorIs(t, err, ErrBadConfig)
}
