package umm

import "fmt"

// HeapID names a heap registered with a Manager.
type HeapID uint8

const (
	HeapDRAM HeapID = iota
	HeapIRAM
	HeapExternal
)

func (id HeapID) String() string {
	switch id {
	case HeapDRAM:
		return "dram"
	case HeapIRAM:
		return "iram"
	case HeapExternal:
		return "external"
	default:
		return fmt.Sprintf("heap%d", uint8(id))
	}
}

// ParseHeapID accepts the names printed by HeapID.String.
func ParseHeapID(s string) (HeapID, error) {
	switch s {
	case "dram", "":
		return HeapDRAM, nil
	case "iram":
		return HeapIRAM, nil
	case "external":
		return HeapExternal, nil
	}
	var n uint8
	if _, err := fmt.Sscanf(s, "heap%d", &n); err == nil {
		return HeapID(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHeap, s)
}

// maxSelectDepth bounds the Push/Pop stack.
const maxSelectDepth = 32

// Scope restores the heap selection captured by Manager.Use.
//
//	defer m.Use(umm.HeapIRAM).Restore()
type Scope struct {
	m    *Manager
	prev HeapID
	done bool
}

// Restore reselects the heap that was current when the scope was opened.
// Calling it more than once has no further effect.
func (s *Scope) Restore() {
	if s == nil || s.done {
		return
	}
	s.done = true
	s.m.Restore(s.prev)
}
