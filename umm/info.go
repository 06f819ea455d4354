package umm

import (
	"math"

	"github.com/esp8266/Arduino-sub008/internal/format"
	"github.com/esp8266/Arduino-sub008/internal/logger"
)

// HeapInfo aggregates one traversal of the block store.
type HeapInfo struct {
	TotalEntries int
	UsedEntries  int
	FreeEntries  int

	TotalBlocks int
	UsedBlocks  int
	FreeBlocks  int

	// FreeBlocksSquared is the sum of the squared sizes of all free runs.
	FreeBlocksSquared uint64

	MaxFreeContiguousBlocks int
}

// FragmentationMetric returns 0 when all free space is one run and tends
// towards 100 as it splinters into many small runs. Zero when nothing is free.
func (i HeapInfo) FragmentationMetric() int {
	if i.FreeBlocks == 0 {
		return 0
	}
	return 100 - int(math.Sqrt(float64(i.FreeBlocksSquared))*100/float64(i.FreeBlocks))
}

// UsageMetric returns used blocks as a percentage of free blocks, or -1 when
// nothing is free.
func (i HeapInfo) UsageMetric() int {
	if i.FreeBlocks == 0 {
		return -1
	}
	return i.UsedBlocks * 100 / i.FreeBlocks
}

// Info walks the block store and returns aggregate counts. When target is
// the payload address of a free run, Info returns it as the second value;
// otherwise Nil. With verbose set every run is logged at debug level.
func (h *Heap) Info(target Ptr, verbose bool) (HeapInfo, Ptr) {
	lvl := h.cs.Enter()
	defer h.cs.Exit(lvl)
	h.initLocked()
	return h.infoLocked(target, verbose)
}

func (h *Heap) infoLocked(target Ptr, verbose bool) (HeapInfo, Ptr) {
	var info HeapInfo
	found := Nil
	s := h.st

	for c, steps := s.Next(format.Sentinel), 0; c != format.Sentinel && s.Valid(c) && steps < s.Count; c, steps = s.Next(c), steps+1 {
		run := s.Run(c)
		free := s.IsFree(c)

		info.TotalEntries++
		info.TotalBlocks += run

		if free {
			info.FreeEntries++
			info.FreeBlocks += run
			info.FreeBlocksSquared += uint64(run) * uint64(run)
			if run > info.MaxFreeContiguousBlocks {
				info.MaxFreeContiguousBlocks = run
			}
			if target != Nil && h.ptrOf(c) == target {
				found = target
			}
		} else {
			info.UsedEntries++
			info.UsedBlocks += run
		}

		if verbose {
			logger.Debug("umm: block",
				"heap", h.name,
				"index", c,
				"blocks", run,
				"free", free,
				"next", s.Next(c),
				"prev", s.Prev(c),
				"addr", h.ptrOf(c).String(),
			)
		}
	}

	if verbose {
		logger.Debug("umm: heap info",
			"heap", h.name,
			"entries", info.TotalEntries,
			"used", info.UsedBlocks,
			"free", info.FreeBlocks,
			"maxFree", info.MaxFreeContiguousBlocks,
		)
	}
	return info, found
}

// FreeBytes returns the total size of all free runs in bytes.
func (h *Heap) FreeBytes() int {
	info, _ := h.Info(Nil, false)
	return info.FreeBlocks * h.st.BlockSize
}

// MaxContiguousFreeBytes returns the size of the largest free run in bytes.
func (h *Heap) MaxContiguousFreeBytes() int {
	info, _ := h.Info(Nil, false)
	return info.MaxFreeContiguousBlocks * h.st.BlockSize
}
