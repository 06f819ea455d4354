package umm

import (
	"runtime"
	"strings"
	"sync"

	"github.com/esp8266/Arduino-sub008/internal/logger"
)

// OOMRecord describes the most recent failed allocation.
type OOMRecord struct {
	Heap  string
	Size  int
	PC    uintptr
	File  string
	Line  int
	Count uint64 // failures recorded since the last Reset
}

// OOMTracker keeps the last out-of-memory record. It only observes: recording
// never changes allocator behaviour. A tracker may be shared by several heaps.
// The zero value is ready to use.
type OOMTracker struct {
	mu   sync.Mutex
	last OOMRecord
	ok   bool
}

// Record stores rec as the latest failure and bumps the failure count.
func (t *OOMTracker) Record(rec OOMRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec.Count = t.last.Count + 1
	t.last = rec
	t.ok = true
}

// Last returns the latest record and whether any failure was recorded.
func (t *OOMTracker) Last() (OOMRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.ok
}

// Count returns the number of failures recorded since the last Reset.
func (t *OOMTracker) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last.Count
}

// Reset forgets all records.
func (t *OOMTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = OOMRecord{}
	t.ok = false
}

// recordOOM captures the first caller outside the allocator.
func (h *Heap) recordOOM(size int) {
	rec := OOMRecord{Heap: h.name, Size: size}
	rec.PC, rec.File, rec.Line = callSite()
	h.oom.Record(rec)

	logger.Debug("umm: out of memory",
		"heap", h.name,
		"size", size,
		"file", rec.File,
		"line", rec.Line,
	)
}

func callSite() (uintptr, string, int) {
	var pcs [16]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !internalFrame(f.Function) {
			return f.PC, f.File, f.Line
		}
		if !more {
			return 0, "", 0
		}
	}
}

func internalFrame(fn string) bool {
	return strings.Contains(fn, "/umm.(*Heap).") || strings.Contains(fn, "/umm.(*Manager).")
}
