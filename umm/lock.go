package umm

import "sync"

// Level is the state a CriticalSection saves on Enter and restores on Exit.
type Level uint32

// CriticalSection serializes access to a block store.
//
// Enter returns the state to hand back to Exit. Every Enter is paired with
// exactly one Exit on every return path. The heap never calls Enter while
// already inside its own section; paths that need a nested allocation go
// through the public, self-locking entry points instead.
type CriticalSection interface {
	Enter() Level
	Exit(Level)
}

// MutexSection is a CriticalSection backed by sync.Mutex. Safe for use from
// any number of goroutines. The zero value is ready to use.
type MutexSection struct {
	mu sync.Mutex
}

func (m *MutexSection) Enter() Level {
	m.mu.Lock()
	return 0
}

func (m *MutexSection) Exit(Level) {
	m.mu.Unlock()
}

// NopSection performs no locking. Only for heaps confined to one goroutine.
type NopSection struct{}

func (NopSection) Enter() Level { return 0 }

func (NopSection) Exit(Level) {}

// LevelSection emulates an interrupt priority register on a single core:
// Enter raises the level to Mask and returns the previous level, Exit
// restores it. Sections nest. It provides no mutual exclusion between
// goroutines.
type LevelSection struct {
	// Mask is the level held inside the section. Default: 15.
	Mask Level

	level Level
	depth int
}

func (l *LevelSection) Enter() Level {
	prev := l.level
	mask := l.Mask
	if mask == 0 {
		mask = 15
	}
	if mask > l.level {
		l.level = mask
	}
	l.depth++
	return prev
}

func (l *LevelSection) Exit(prev Level) {
	l.level = prev
	l.depth--
}

// Level returns the current level.
func (l *LevelSection) Level() Level { return l.level }

// Depth returns how many sections are currently open.
func (l *LevelSection) Depth() int { return l.depth }
