package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/esp8266/Arduino-sub008/internal/mmfile"
	"github.com/esp8266/Arduino-sub008/umm"
)

// Layout describes the heaps to build.
//
//	heaps:
//	  - id: dram
//	    size: 16384
//	  - id: iram
//	    size: 4096
//	    base: 0x40100000
//	    blockSize: 16
//	    poison: lite
//	    integrity: true
//	    backing: file:iram.bin
type Layout struct {
	Heaps []HeapSpec `yaml:"heaps"`
}

// HeapSpec is one heap of a Layout.
type HeapSpec struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Size      int    `yaml:"size"`
	BlockSize int    `yaml:"blockSize"`
	Base      uint32 `yaml:"base"`
	Policy    string `yaml:"policy"`
	Poison    string `yaml:"poison"`
	Integrity bool   `yaml:"integrity"`

	// Backing selects the memory behind the heap: empty for Go memory,
	// "anon" for an anonymous mapping, "file:<path>" for a shared file
	// mapping that leaves the final heap image on disk.
	Backing string `yaml:"backing"`
}

// loadLayout reads a layout file. An empty path yields a single DRAM heap
// of defaultSize bytes.
func loadLayout(path string, defaultSize int) (*Layout, error) {
	if path == "" {
		return &Layout{Heaps: []HeapSpec{{ID: "dram", Size: defaultSize}}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if len(l.Heaps) == 0 {
		return nil, fmt.Errorf("layout %s: no heaps", path)
	}
	return &l, nil
}

// config converts s to a heap configuration, mapping backing memory
// when requested.
func (s HeapSpec) config() (umm.Config, error) {
	policy, err := umm.ParsePolicy(s.Policy)
	if err != nil {
		return umm.Config{}, err
	}
	poison, err := umm.ParsePoisonMode(s.Poison)
	if err != nil {
		return umm.Config{}, err
	}
	cfg := umm.Config{
		Name:      s.Name,
		Size:      s.Size,
		BlockSize: s.BlockSize,
		Base:      s.Base,
		Policy:    policy,
		Poison:    poison,
		Integrity: s.Integrity,
	}

	switch {
	case s.Backing == "":
	case s.Backing == "anon":
		cfg.Memory, cfg.Release, err = mmfile.Anon(s.Size)
	case strings.HasPrefix(s.Backing, "file:"):
		cfg.Memory, cfg.Release, err = mmfile.Create(strings.TrimPrefix(s.Backing, "file:"), s.Size)
	default:
		err = fmt.Errorf("unknown backing %q", s.Backing)
	}
	if err != nil {
		return umm.Config{}, err
	}
	return cfg, nil
}

// build creates a manager holding every heap of the layout. Corruption is
// collected rather than fatal so the tool can report it.
func (l *Layout) build(sink *corruptionSink) (*umm.Manager, error) {
	m := umm.NewManager(sink.handle)
	for _, s := range l.Heaps {
		id, err := umm.ParseHeapID(s.ID)
		if err != nil {
			return nil, errors.Join(err, m.Close())
		}
		cfg, err := s.config()
		if err != nil {
			return nil, errors.Join(fmt.Errorf("heap %s: %w", s.ID, err), m.Close())
		}
		h, err := m.Add(id, cfg)
		if err != nil {
			if cfg.Release != nil {
				err = errors.Join(err, cfg.Release())
			}
			return nil, errors.Join(err, m.Close())
		}
		printVerbose("Built heap %s: %d bytes at %s\n", id, h.Size(), h.Base())
	}
	return m, nil
}

// corruptionSink records corruption reports.
type corruptionSink struct {
	reports []*umm.Corruption
}

func (c *corruptionSink) handle(r *umm.Corruption) {
	c.reports = append(c.reports, r)
}

// err returns the reports gathered so far as one error, and forgets them.
func (c *corruptionSink) err() error {
	if len(c.reports) == 0 {
		return nil
	}
	errs := make([]error, len(c.reports))
	for i, r := range c.reports {
		errs[i] = r
	}
	c.reports = nil
	return errors.Join(errs...)
}
