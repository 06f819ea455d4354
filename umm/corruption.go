package umm

import (
	"fmt"

	"github.com/esp8266/Arduino-sub008/internal/logger"
)

// Kind classifies a corruption report.
type Kind uint8

const (
	// KindIntegrity: block or free-list links are inconsistent.
	KindIntegrity Kind = iota + 1
	// KindPoison: a guard region around a live allocation was overwritten.
	KindPoison
	// KindBadPointer: a pointer that was never handed out by the heap.
	KindBadPointer
	// KindDoubleFree: a pointer whose block is already free.
	KindDoubleFree
)

func (k Kind) String() string {
	switch k {
	case KindIntegrity:
		return "integrity"
	case KindPoison:
		return "poison"
	case KindBadPointer:
		return "bad pointer"
	case KindDoubleFree:
		return "double free"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Corruption describes the first inconsistency found by a check.
type Corruption struct {
	Kind   Kind
	Heap   string
	Addr   Ptr // first offending address; Nil when not tied to one
	Alloc  Ptr // allocation being acted on; Nil when not tied to one
	Block  int // block index; -1 when unknown
	Detail string
}

func (c *Corruption) Error() string {
	return fmt.Sprintf("umm: %s on heap %q at %s (block %d): %s", c.Kind, c.Heap, c.Addr, c.Block, c.Detail)
}

// Is makes errors.Is(c, ErrCorrupt) true.
func (c *Corruption) Is(target error) bool {
	return target == ErrCorrupt
}

// CorruptionHandler receives corruption reports. It runs outside the heap's
// critical section. When it returns, the operation that found the problem
// leaves the heap untouched: allocations return Nil and frees are skipped.
type CorruptionHandler func(*Corruption)

// PanicOnCorruption is the default handler: corruption is fatal.
func PanicOnCorruption(c *Corruption) {
	panic(c)
}

func (h *Heap) corruption(kind Kind, addr, alloc Ptr, block int, format string, args ...any) *Corruption {
	return &Corruption{
		Kind:   kind,
		Heap:   h.name,
		Addr:   addr,
		Alloc:  alloc,
		Block:  block,
		Detail: fmt.Sprintf(format, args...),
	}
}

func (h *Heap) report(c *Corruption) {
	if c == nil {
		return
	}
	logger.Error("umm: heap corruption",
		"heap", c.Heap,
		"kind", c.Kind.String(),
		"addr", c.Addr.String(),
		"alloc", c.Alloc.String(),
		"block", c.Block,
		"detail", c.Detail,
	)
	h.onCorruption(c)
}
