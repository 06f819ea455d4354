package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/esp8266/Arduino-sub008/umm"
)

// Workload is a named sequence of heap operations.
//
//	ops:
//	  - {op: alloc, name: a, size: 20}
//	  - {op: select, heap: iram}
//	  - {op: calloc, name: b, count: 4, size: 8}
//	  - {op: restore}
//	  - {op: realloc, name: a, size: 64}
//	  - {op: free, name: b}
//	  - {op: alloc, name: big, size: 100000, expect: nil}
//	  - {op: check}
type Workload struct {
	Ops []Op `yaml:"ops"`
}

// Op is one workload step.
type Op struct {
	Op     string `yaml:"op"`
	Name   string `yaml:"name"`
	Size   int    `yaml:"size"`
	Count  int    `yaml:"count"`
	Heap   string `yaml:"heap"`
	Expect string `yaml:"expect"` // "nil" or "ok"; empty accepts either
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workload.yaml>",
		Short: "Replay a workload against the heaps of a layout",
		Long: `The run command replays a YAML workload of alloc, calloc, realloc, free,
select, restore and check operations. Every allocation is filled with a
pattern that is verified on realloc and free, and all heaps are
integrity-checked after every step.

Example:
  ummctl run --layout heaps.yaml workload.yaml
  ummctl run workload.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(args[0])
		},
	}
	return cmd
}

func loadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workload %s: %w", path, err)
	}
	return &w, nil
}

func runWorkload(path string) (err error) {
	w, err := loadWorkload(path)
	if err != nil {
		return err
	}
	layout, err := loadLayout(layoutPath, defaultSize)
	if err != nil {
		return err
	}
	sink := &corruptionSink{}
	m, err := layout.build(sink)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	r := &replayer{m: m, live: make(map[string]allocation)}
	for i, op := range w.Ops {
		if err := r.step(op); err != nil {
			return fmt.Errorf("step %d (%s %s): %w", i, op.Op, op.Name, errors.Join(err, sink.err()))
		}
		m.CheckIntegrity()
		if err := sink.err(); err != nil {
			return fmt.Errorf("step %d (%s %s): %w", i, op.Op, op.Name, err)
		}
	}
	printVerbose("Replayed %d operations, %d allocations live\n", len(w.Ops), len(r.live))
	return report(m)
}

type allocation struct {
	p    umm.Ptr
	size int
	seed byte
}

type replayer struct {
	m     *umm.Manager
	live  map[string]allocation
	seeds byte
}

func (r *replayer) step(op Op) error {
	switch op.Op {
	case "alloc", "calloc":
		if _, ok := r.live[op.Name]; ok {
			return fmt.Errorf("allocation %q already live", op.Name)
		}
		var p umm.Ptr
		if op.Op == "alloc" {
			p = r.m.Alloc(op.Size)
		} else {
			p = r.m.Calloc(op.Count, op.Size)
		}
		size := op.Size
		if op.Op == "calloc" {
			size *= op.Count
		}
		printVerbose("%s %s %d -> %s\n", op.Op, op.Name, size, p)
		if err := expect(op, p); err != nil || p == umm.Nil {
			return err
		}
		if op.Op == "calloc" {
			for i, b := range r.m.Bytes(p, size) {
				if b != 0 {
					return fmt.Errorf("calloc byte %d is %#02x", i, b)
				}
			}
		}
		r.seeds++
		a := allocation{p: p, size: size, seed: r.seeds}
		fill(r.m.Bytes(p, size), a.seed)
		r.live[op.Name] = a

	case "realloc":
		a, ok := r.live[op.Name]
		if !ok {
			return fmt.Errorf("unknown allocation %q", op.Name)
		}
		q := r.m.Realloc(a.p, op.Size)
		printVerbose("realloc %s %d -> %s\n", op.Name, op.Size, q)
		if err := expect(op, q); err != nil {
			return err
		}
		switch {
		case op.Size == 0:
			delete(r.live, op.Name)
		case q == umm.Nil:
			return verify(r.m.Bytes(a.p, a.size), a.seed)
		default:
			if err := verify(r.m.Bytes(q, min(a.size, op.Size)), a.seed); err != nil {
				return err
			}
			a.p, a.size = q, op.Size
			fill(r.m.Bytes(q, a.size), a.seed)
			r.live[op.Name] = a
		}

	case "free":
		a, ok := r.live[op.Name]
		if !ok {
			return fmt.Errorf("unknown allocation %q", op.Name)
		}
		if err := verify(r.m.Bytes(a.p, a.size), a.seed); err != nil {
			return err
		}
		r.m.Free(a.p)
		delete(r.live, op.Name)
		printVerbose("free %s\n", op.Name)

	case "select":
		id, err := umm.ParseHeapID(op.Heap)
		if err != nil {
			return err
		}
		if !r.m.Push(id) {
			return fmt.Errorf("cannot select heap %s", id)
		}
		printVerbose("select %s\n", id)

	case "restore":
		if !r.m.Pop() {
			return errors.New("restore without select")
		}
		printVerbose("restore %s\n", r.m.Current())

	case "check":
		if !r.m.CheckIntegrity() || !r.m.CheckPoison() {
			return errors.New("heap check failed")
		}
		printVerbose("check ok\n")

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

func expect(op Op, p umm.Ptr) error {
	switch op.Expect {
	case "":
	case "nil":
		if p != umm.Nil {
			return fmt.Errorf("expected nil, got %s", p)
		}
	case "ok":
		if p == umm.Nil {
			return errors.New("expected an allocation, got nil")
		}
	default:
		return fmt.Errorf("unknown expectation %q", op.Expect)
	}
	return nil
}

func fill(b []byte, seed byte) {
	for i := range b {
		b[i] = seed ^ byte(i)
	}
}

func verify(b []byte, seed byte) error {
	for i, v := range b {
		if v != seed^byte(i) {
			return fmt.Errorf("payload byte %d is %#02x, want %#02x", i, v, seed^byte(i))
		}
	}
	return nil
}
