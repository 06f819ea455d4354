// Package printer renders heap reports for people and for tools.
//
// Text output groups digits the way the chosen locale does; JSON output is
// locale-neutral.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/esp8266/Arduino-sub008/umm"
)

// Printer writes text reports in one locale.
type Printer struct {
	p *message.Printer
}

// New returns a Printer for tag.
func New(tag language.Tag) *Printer {
	return &Printer{p: message.NewPrinter(tag)}
}

// Default prints with English digit grouping.
var Default = New(language.English)

// WriteInfo writes the result of a heap walk.
func (pr *Printer) WriteInfo(w io.Writer, name string, info umm.HeapInfo, blockSize int) error {
	p := pr.p
	lines := []string{
		p.Sprintf("Heap %s:\n", name),
		p.Sprintf("  Entries:        %d total, %d used, %d free\n", info.TotalEntries, info.UsedEntries, info.FreeEntries),
		p.Sprintf("  Blocks:         %d total, %d used, %d free\n", info.TotalBlocks, info.UsedBlocks, info.FreeBlocks),
		p.Sprintf("  Free bytes:     %d\n", info.FreeBlocks*blockSize),
		p.Sprintf("  Largest free:   %d bytes (%d blocks)\n", info.MaxFreeContiguousBlocks*blockSize, info.MaxFreeContiguousBlocks),
		p.Sprintf("  Fragmentation:  %d%%\n", info.FragmentationMetric()),
	}
	if u := info.UsageMetric(); u >= 0 {
		lines = append(lines, p.Sprintf("  Usage:          %d%%\n", u))
	} else {
		lines = append(lines, "  Usage:          no free blocks\n")
	}
	return writeLines(w, lines)
}

// WriteStats writes the running counters of a heap.
func (pr *Printer) WriteStats(w io.Writer, name string, st umm.Stats, blockSize int) error {
	p := pr.p
	return writeLines(w, []string{
		p.Sprintf("Stats %s:\n", name),
		p.Sprintf("  Free blocks:    %d (low-water %d, %d bytes)\n", st.FreeBlocks, st.FreeBlocksMin, st.FreeBlocksMin*blockSize),
		p.Sprintf("  Alloc:          %d (%d zero-size, %d out of memory)\n", st.AllocCount, st.AllocZeroCount, st.OOMCount),
		p.Sprintf("  Free:           %d (%d nil)\n", st.FreeCount, st.FreeNilCount),
		p.Sprintf("  Realloc:        %d (%d to zero)\n", st.ReallocCount, st.ReallocZeroCount),
		p.Sprintf("  Largest alloc:  %d bytes (last %d)\n", st.AllocMaxSize, st.LastAllocSize),
		p.Sprintf("  Splits:         %d\n", st.Splits),
		p.Sprintf("  Merges:         %d up, %d down\n", st.AssimilateUp, st.AssimilateDown),
	})
}

// WriteOOM writes the last out-of-memory record, if any.
func (pr *Printer) WriteOOM(w io.Writer, rec umm.OOMRecord, ok bool) error {
	if !ok {
		_, err := io.WriteString(w, "OOM: none\n")
		return err
	}
	p := pr.p
	site := "unknown"
	if rec.File != "" {
		site = fmt.Sprintf("%s:%d", filepath.Base(rec.File), rec.Line)
	}
	return writeLines(w, []string{
		p.Sprintf("OOM: %d failures\n", rec.Count),
		p.Sprintf("  Last:           %d bytes on %s\n", rec.Size, rec.Heap),
		p.Sprintf("  Call site:      %s\n", site),
	})
}

// WriteInfo writes with the Default printer.
func WriteInfo(w io.Writer, name string, info umm.HeapInfo, blockSize int) error {
	return Default.WriteInfo(w, name, info, blockSize)
}

// WriteStats writes with the Default printer.
func WriteStats(w io.Writer, name string, st umm.Stats, blockSize int) error {
	return Default.WriteStats(w, name, st, blockSize)
}

// WriteOOM writes with the Default printer.
func WriteOOM(w io.Writer, rec umm.OOMRecord, ok bool) error {
	return Default.WriteOOM(w, rec, ok)
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := io.WriteString(w, l); err != nil {
			return err
		}
	}
	return nil
}

// BlockMap renders one character per block: '#' for the sentinel, then a
// letter per run, upper case for used runs and lower case for free ones.
// Consecutive runs cycle through the alphabet so boundaries stay visible.
// A width above zero wraps the map.
func BlockMap(h *umm.Heap, width int) string {
	var sb strings.Builder
	sb.Grow(h.NumBlocks() + h.NumBlocks()/max(width, 1) + 1)

	col := 0
	put := func(c byte) {
		if width > 0 && col == width {
			sb.WriteByte('\n')
			col = 0
		}
		sb.WriteByte(c)
		col++
	}

	put('#')
	n := 0
	h.Walk(func(b umm.BlockInfo) bool {
		c := byte('a' + n)
		if !b.Free {
			c = byte('A' + n)
		}
		n = (n + 1) % 26
		for range b.Blocks {
			put(c)
		}
		return true
	})
	return sb.String()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
