package umm

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/esp8266/Arduino-sub008/internal/logger"
)

// Manager owns a table of heaps and the current heap selection.
//
// Allocations go to the currently selected heap. Operations on an existing
// pointer go to the heap whose address range contains it, whatever the
// current selection. With a single heap, selection never changes anything.
type Manager struct {
	mu      sync.Mutex
	heaps   map[HeapID]*Heap
	ids     []HeapID // sorted
	current HeapID
	stack   []HeapID

	oom          *OOMTracker
	onCorruption CorruptionHandler
}

// NewManager creates an empty manager. Heaps added without their own
// corruption handler use handler (PanicOnCorruption when nil), and all
// heaps without their own tracker share one OOM tracker.
func NewManager(handler CorruptionHandler) *Manager {
	if handler == nil {
		handler = PanicOnCorruption
	}
	return &Manager{
		heaps:        make(map[HeapID]*Heap),
		oom:          &OOMTracker{},
		onCorruption: handler,
	}
}

// Add creates a heap from cfg and registers it under id. The first heap
// added becomes the current one.
func (m *Manager) Add(id HeapID, cfg Config) (*Heap, error) {
	if cfg.Name == "" {
		cfg.Name = id.String()
	}
	if cfg.OOM == nil {
		cfg.OOM = m.oom
	}
	if cfg.OnCorruption == nil {
		cfg.OnCorruption = m.onCorruption
	}
	h, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("heap %s: %w", id, err)
	}
	h.id = id

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.heaps[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateHeap, id)
	}
	lo, hi := uint64(h.base), uint64(h.base)+uint64(h.Size())
	for _, other := range m.heaps {
		olo, ohi := uint64(other.base), uint64(other.base)+uint64(other.Size())
		if lo < ohi && olo < hi {
			return nil, fmt.Errorf("%w: %s [%#x, %#x) and %s [%#x, %#x)",
				ErrOverlap, id, lo, hi, other.id, olo, ohi)
		}
	}

	if len(m.heaps) == 0 {
		m.current = id
	}
	m.heaps[id] = h
	m.ids = append(m.ids, id)
	slices.Sort(m.ids)

	logger.Debug("umm: heap added", "id", id.String(), "name", h.name, "base", h.Base().String(), "size", h.Size())
	return h, nil
}

// Heap returns the heap registered under id.
func (m *Manager) Heap(id HeapID) (*Heap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.heaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHeap, id)
	}
	return h, nil
}

// Heaps returns every registered heap ordered by id.
func (m *Manager) Heaps() []*Heap {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Heap, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.heaps[id])
	}
	return out
}

// Current returns the id of the selected heap.
func (m *Manager) Current() HeapID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Select makes id the current heap and returns the previous selection.
// Unknown ids leave the selection unchanged.
func (m *Manager) Select(id HeapID) HeapID {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.current
	if len(m.heaps) <= 1 {
		return prev
	}
	if _, ok := m.heaps[id]; !ok {
		logger.Debug("umm: select of unknown heap ignored", "id", id.String(), "current", prev.String())
		return prev
	}
	m.current = id
	return prev
}

// Restore reselects prev, as returned by Select.
func (m *Manager) Restore(prev HeapID) {
	m.Select(prev)
}

// Use selects id and returns a Scope that restores the previous selection.
func (m *Manager) Use(id HeapID) *Scope {
	return &Scope{m: m, prev: m.Select(id)}
}

// Push saves the current selection and selects id. It fails when id is
// unknown or the selection stack is full.
func (m *Manager) Push(id HeapID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.heaps[id]; !ok {
		logger.Debug("umm: push of unknown heap ignored", "id", id.String())
		return false
	}
	if len(m.stack) >= maxSelectDepth {
		logger.Debug("umm: heap selection stack full", "id", id.String())
		return false
	}
	m.stack = append(m.stack, m.current)
	m.current = id
	return true
}

// Pop restores the selection saved by the matching Push.
func (m *Manager) Pop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return false
	}
	m.current = m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return true
}

// Owner returns the heap whose address range contains p.
func (m *Manager) Owner(p Ptr) (*Heap, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.ids {
		if h := m.heaps[id]; h.Contains(p) {
			return h, true
		}
	}
	return nil, false
}

func (m *Manager) selected() *Heap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heaps[m.current]
}

// owner resolves p, reporting a foreign pointer as corruption.
func (m *Manager) owner(p Ptr) *Heap {
	h, ok := m.Owner(p)
	if !ok {
		c := &Corruption{
			Kind:   KindBadPointer,
			Addr:   p,
			Alloc:  p,
			Block:  -1,
			Detail: "address belongs to no heap",
		}
		logger.Error("umm: heap corruption", "kind", c.Kind.String(), "addr", p.String(), "detail", c.Detail)
		m.onCorruption(c)
	}
	return h
}

// Alloc allocates from the current heap.
func (m *Manager) Alloc(size int) Ptr {
	h := m.selected()
	if h == nil {
		return Nil
	}
	return h.Alloc(size)
}

// Calloc allocates zeroed memory from the current heap.
func (m *Manager) Calloc(count, size int) Ptr {
	h := m.selected()
	if h == nil {
		return Nil
	}
	return h.Calloc(count, size)
}

// Free releases p on the heap that owns it.
func (m *Manager) Free(p Ptr) {
	if p == Nil {
		if h := m.selected(); h != nil {
			h.Free(Nil)
		}
		return
	}
	if h := m.owner(p); h != nil {
		h.Free(p)
	}
}

// Realloc resizes p on the heap that owns it. Realloc(Nil, size) allocates
// from the current heap.
func (m *Manager) Realloc(p Ptr, size int) Ptr {
	if p == Nil {
		return m.Alloc(size)
	}
	h := m.owner(p)
	if h == nil {
		return Nil
	}
	return h.Realloc(p, size)
}

// Bytes returns the payload of p from the heap that owns it.
func (m *Manager) Bytes(p Ptr, n int) []byte {
	h, ok := m.Owner(p)
	if !ok {
		return nil
	}
	return h.Bytes(p, n)
}

// UsableSize returns the usable size of p on the heap that owns it.
func (m *Manager) UsableSize(p Ptr) int {
	h, ok := m.Owner(p)
	if !ok {
		return 0
	}
	return h.UsableSize(p)
}

// FreeBytes reports on the current heap.
func (m *Manager) FreeBytes() int {
	if h := m.selected(); h != nil {
		return h.FreeBytes()
	}
	return 0
}

// MaxContiguousFreeBytes reports on the current heap.
func (m *Manager) MaxContiguousFreeBytes() int {
	if h := m.selected(); h != nil {
		return h.MaxContiguousFreeBytes()
	}
	return 0
}

// BlockSizeBytes reports on the current heap.
func (m *Manager) BlockSizeBytes() int {
	if h := m.selected(); h != nil {
		return h.BlockSizeBytes()
	}
	return 0
}

// Info walks the heap that owns target, or the current heap when target is Nil.
func (m *Manager) Info(target Ptr, verbose bool) (HeapInfo, Ptr) {
	h := m.selected()
	if target != Nil {
		if o, ok := m.Owner(target); ok {
			h = o
		}
	}
	if h == nil {
		return HeapInfo{}, Nil
	}
	return h.Info(target, verbose)
}

// CheckIntegrity checks every heap and reports false if any check fails.
func (m *Manager) CheckIntegrity() bool {
	ok := true
	for _, h := range m.Heaps() {
		ok = h.CheckIntegrity() && ok
	}
	return ok
}

// CheckPoison checks every heap and reports false if any check fails.
func (m *Manager) CheckPoison() bool {
	ok := true
	for _, h := range m.Heaps() {
		ok = h.CheckPoison() && ok
	}
	return ok
}

// OOM returns the tracker shared by heaps added without their own.
func (m *Manager) OOM() *OOMTracker {
	return m.oom
}

// Close closes every heap.
func (m *Manager) Close() error {
	var errs []error
	for _, h := range m.Heaps() {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("heap %s: %w", h.id, err))
		}
	}
	return errors.Join(errs...)
}
