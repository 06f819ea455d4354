package umm

import (
	"fmt"
	"strings"

	"github.com/esp8266/Arduino-sub008/internal/format"
)

// DefaultBase is the address of the first byte of a heap when Config.Base is zero.
const DefaultBase uint32 = 0x3FFE8000

// Policy selects how the free list is searched.
type Policy uint8

const (
	// BestFit walks the whole free list and takes the smallest run that fits.
	BestFit Policy = iota
	// FirstFit takes the first run that fits.
	FirstFit
)

func (p Policy) String() string {
	switch p {
	case BestFit:
		return "best-fit"
	case FirstFit:
		return "first-fit"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// ParsePolicy accepts "best-fit" and "first-fit" (case-insensitive, "_" or "-").
func ParsePolicy(s string) (Policy, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "_", "-") {
	case "", "best-fit", "best":
		return BestFit, nil
	case "first-fit", "first":
		return FirstFit, nil
	}
	return 0, fmt.Errorf("%w: unknown policy %q", ErrBadConfig, s)
}

// PoisonMode selects guard-byte checking around live allocations.
type PoisonMode uint8

const (
	// PoisonOff hands out payloads without guards.
	PoisonOff PoisonMode = iota
	// PoisonFull guards every allocation and verifies the guards of the
	// allocation being freed or resized.
	PoisonFull
	// PoisonLite additionally verifies the physically adjacent used blocks.
	PoisonLite
)

func (m PoisonMode) String() string {
	switch m {
	case PoisonOff:
		return "off"
	case PoisonFull:
		return "full"
	case PoisonLite:
		return "lite"
	default:
		return fmt.Sprintf("PoisonMode(%d)", uint8(m))
	}
}

// ParsePoisonMode accepts "off", "full" and "lite".
func ParsePoisonMode(s string) (PoisonMode, error) {
	switch strings.ToLower(s) {
	case "", "off", "none":
		return PoisonOff, nil
	case "full", "on":
		return PoisonFull, nil
	case "lite":
		return PoisonLite, nil
	}
	return 0, fmt.Errorf("%w: unknown poison mode %q", ErrBadConfig, s)
}

// Config describes one heap.
type Config struct {
	// Name labels the heap in logs and reports. Default: "heap".
	Name string

	// Size is the heap size in bytes, rounded down to whole blocks.
	// Ignored when Memory is set.
	Size int

	// BlockSize is the size of one block in bytes: a multiple of 4, at least 8.
	// Default: 8.
	BlockSize int

	// Base is the address of the first byte of the heap. Pointers handed out
	// by the heap are Base-relative. Default: DefaultBase.
	Base uint32

	// Policy selects best-fit (default) or first-fit search.
	Policy Policy

	// Poison selects guard-byte checking.
	Poison PoisonMode

	// Integrity runs a full integrity check at the start of every
	// allocate, free and resize. O(blocks) per call.
	Integrity bool

	// Section serializes mutation of the block store. Default: a mutex.
	Section CriticalSection

	// Memory backs the block store when set; otherwise the heap allocates it.
	Memory []byte

	// Release is called once by Close, typically to unmap Memory.
	Release func() error

	// OOM receives out-of-memory records. Default: a tracker owned by the heap.
	OOM *OOMTracker

	// OnCorruption is invoked when integrity or poison checking fails.
	// Default: PanicOnCorruption.
	OnCorruption CorruptionHandler
}

// DefaultConfig returns a best-fit configuration of size bytes in 8-byte blocks.
func DefaultConfig(size int) Config {
	return Config{Size: size}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "heap"
	}
	if c.BlockSize == 0 {
		c.BlockSize = format.DefaultBlockSize
	}
	if c.Base == 0 {
		c.Base = DefaultBase
	}
	if c.Section == nil {
		c.Section = &MutexSection{}
	}
	if c.OOM == nil {
		c.OOM = &OOMTracker{}
	}
	if c.OnCorruption == nil {
		c.OnCorruption = PanicOnCorruption
	}
	return c
}

func (c Config) validate() error {
	if !format.ValidBlockSize(c.BlockSize) {
		return fmt.Errorf("%w: block size %d must be a multiple of %d and at least %d",
			ErrBadConfig, c.BlockSize, format.BlockAlignment, format.MinBlockSize)
	}
	if c.Memory == nil && c.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrBadConfig, c.Size)
	}
	if c.Base%format.BlockAlignment != 0 {
		return fmt.Errorf("%w: base %#x is not %d-byte aligned", ErrBadConfig, c.Base, format.BlockAlignment)
	}
	if c.Policy > FirstFit {
		return fmt.Errorf("%w: %s", ErrBadConfig, c.Policy)
	}
	if c.Poison > PoisonLite {
		return fmt.Errorf("%w: %s", ErrBadConfig, c.Poison)
	}
	return nil
}
