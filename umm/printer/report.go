package printer

import (
	"github.com/esp8266/Arduino-sub008/umm"
)

// HeapReport is the JSON form of everything known about one heap.
type HeapReport struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Base      string `json:"base"`
	Size      int    `json:"size"`
	BlockSize int    `json:"blockSize"`
	Blocks    int    `json:"blocks"`
	Policy    string `json:"policy"`
	Poison    string `json:"poison"`

	FreeBytes              int `json:"freeBytes"`
	MaxContiguousFreeBytes int `json:"maxContiguousFreeBytes"`
	Fragmentation          int `json:"fragmentation"`
	Usage                  int `json:"usage"`

	Info  umm.HeapInfo `json:"info"`
	Stats umm.Stats    `json:"stats"`
	Map   string       `json:"map,omitempty"`
}

// OOMReport is the JSON form of an OOM record.
type OOMReport struct {
	Recorded bool   `json:"recorded"`
	Heap     string `json:"heap,omitempty"`
	Size     int    `json:"size,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Count    uint64 `json:"count"`
}

// Report is the JSON document printed by tools.
type Report struct {
	Heaps []HeapReport `json:"heaps"`
	OOM   OOMReport    `json:"oom"`
}

// NewHeapReport snapshots h. withMap adds the block map.
func NewHeapReport(h *umm.Heap, withMap bool) HeapReport {
	info, _ := h.Info(umm.Nil, false)
	cfg := h.Config()
	r := HeapReport{
		ID:                     h.ID().String(),
		Name:                   h.Name(),
		Base:                   h.Base().String(),
		Size:                   h.Size(),
		BlockSize:              h.BlockSizeBytes(),
		Blocks:                 h.NumBlocks(),
		Policy:                 cfg.Policy.String(),
		Poison:                 cfg.Poison.String(),
		FreeBytes:              info.FreeBlocks * h.BlockSizeBytes(),
		MaxContiguousFreeBytes: info.MaxFreeContiguousBlocks * h.BlockSizeBytes(),
		Fragmentation:          info.FragmentationMetric(),
		Usage:                  info.UsageMetric(),
		Info:                   info,
		Stats:                  h.Stats(),
	}
	if withMap {
		r.Map = BlockMap(h, 0)
	}
	return r
}

// NewReport snapshots every heap of m plus its shared OOM tracker.
func NewReport(m *umm.Manager, withMap bool) Report {
	var r Report
	for _, h := range m.Heaps() {
		r.Heaps = append(r.Heaps, NewHeapReport(h, withMap))
	}
	rec, ok := m.OOM().Last()
	r.OOM = OOMReport{Recorded: ok, Count: rec.Count}
	if ok {
		r.OOM.Heap = rec.Heap
		r.OOM.Size = rec.Size
		r.OOM.File = rec.File
		r.OOM.Line = rec.Line
	}
	return r
}
