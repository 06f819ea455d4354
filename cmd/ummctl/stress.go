package main

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/esp8266/Arduino-sub008/umm"
	"github.com/esp8266/Arduino-sub008/umm/printer"
)

var (
	stressOps        int
	stressSeed       int64
	stressMaxSize    int
	stressCheckEvery int
	stressPoison     string
	stressPolicy     string
	stressBlockSize  int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressOps, "ops", 10000, "Number of random operations")
	cmd.Flags().Int64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&stressMaxSize, "max-alloc", 256, "Largest request in bytes")
	cmd.Flags().IntVar(&stressCheckEvery, "check-every", 1, "Integrity check interval in operations (0 disables)")
	cmd.Flags().StringVar(&stressPoison, "poison", "off", "Poison mode: off, full, lite")
	cmd.Flags().StringVar(&stressPolicy, "policy", "best-fit", "Fit policy: best-fit, first-fit")
	cmd.Flags().IntVar(&stressBlockSize, "block-size", 8, "Block size in bytes")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a random allocation workload with integrity checking",
		Long: `The stress command drives a single heap with a seeded random mix of
alloc, calloc, realloc and free, verifying payload contents and heap
integrity as it goes, then reports fragmentation and out-of-memory counts.

Example:
  ummctl stress --size 65536 --ops 100000 --seed 7
  ummctl stress --poison lite --policy first-fit --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	return cmd
}

// StressResult summarizes a stress run.
type StressResult struct {
	Ops           int    `json:"ops"`
	Seed          int64  `json:"seed"`
	Allocs        int    `json:"allocs"`
	Frees         int    `json:"frees"`
	Reallocs      int    `json:"reallocs"`
	Failed        int    `json:"failed"`
	Live          int    `json:"live"`
	FreeBytes     int    `json:"freeBytes"`
	MaxFreeBytes  int    `json:"maxContiguousFreeBytes"`
	Fragmentation int    `json:"fragmentation"`
	MinFreeBytes  int    `json:"minFreeBytes"`
	Policy        string `json:"policy"`
	Poison        string `json:"poison"`
}

type stressReport struct {
	Stress StressResult   `json:"stress"`
	Report printer.Report `json:"report"`
}

func runStress() (err error) {
	policy, err := umm.ParsePolicy(stressPolicy)
	if err != nil {
		return err
	}
	poison, err := umm.ParsePoisonMode(stressPoison)
	if err != nil {
		return err
	}
	if stressMaxSize <= 0 {
		return fmt.Errorf("--max-alloc must be positive, got %d", stressMaxSize)
	}

	sink := &corruptionSink{}
	m := umm.NewManager(sink.handle)
	h, err := m.Add(umm.HeapDRAM, umm.Config{
		Size:      defaultSize,
		BlockSize: stressBlockSize,
		Policy:    policy,
		Poison:    poison,
	})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	res, err := stress(h, sink, rand.New(rand.NewSource(stressSeed)), stressOps, stressMaxSize, stressCheckEvery)
	if err != nil {
		return err
	}
	res.Seed = stressSeed

	if jsonOut {
		return printJSON(stressReport{Stress: res, Report: printer.NewReport(m, verbose)})
	}
	printInfo("Stress: %d ops (seed %d, %s, poison %s)\n", res.Ops, res.Seed, res.Policy, res.Poison)
	printInfo("  Allocs:         %d (%d failed)\n", res.Allocs, res.Failed)
	printInfo("  Frees:          %d\n", res.Frees)
	printInfo("  Reallocs:       %d\n", res.Reallocs)
	printInfo("  Live at end:    %d\n", res.Live)
	printInfo("  Fragmentation:  %d%%\n", res.Fragmentation)
	printInfo("  Free low-water: %d bytes\n", res.MinFreeBytes)
	return report(m)
}

// stress runs ops random operations on h. Live allocations are kept at the
// end so the report shows a populated heap.
func stress(h *umm.Heap, sink *corruptionSink, rng *rand.Rand, ops, maxSize, checkEvery int) (StressResult, error) {
	res := StressResult{Ops: ops, Policy: h.Config().Policy.String(), Poison: h.Config().Poison.String()}
	var live []allocation
	var seed byte

	for i := range ops {
		switch op := rng.Intn(10); {
		case op < 4 || len(live) == 0:
			size := 1 + rng.Intn(maxSize)
			var p umm.Ptr
			if op == 0 {
				p = h.Calloc(1, size)
			} else {
				p = h.Alloc(size)
			}
			res.Allocs++
			if p == umm.Nil {
				res.Failed++
				break
			}
			seed++
			fill(h.Bytes(p, size), seed)
			live = append(live, allocation{p: p, size: size, seed: seed})

		case op < 7:
			k := rng.Intn(len(live))
			a := live[k]
			if err := verify(h.Bytes(a.p, a.size), a.seed); err != nil {
				return res, fmt.Errorf("op %d: free %s: %w", i, a.p, err)
			}
			h.Free(a.p)
			res.Frees++
			live[k] = live[len(live)-1]
			live = live[:len(live)-1]

		default:
			k := rng.Intn(len(live))
			a := live[k]
			size := 1 + rng.Intn(maxSize)
			q := h.Realloc(a.p, size)
			res.Reallocs++
			if q == umm.Nil {
				res.Failed++
				break
			}
			if err := verify(h.Bytes(q, min(a.size, size)), a.seed); err != nil {
				return res, fmt.Errorf("op %d: realloc %s -> %s: %w", i, a.p, q, err)
			}
			fill(h.Bytes(q, size), a.seed)
			live[k] = allocation{p: q, size: size, seed: a.seed}
		}

		if checkEvery > 0 && (i+1)%checkEvery == 0 {
			h.CheckIntegrity()
			h.CheckPoison()
		}
		if err := sink.err(); err != nil {
			return res, fmt.Errorf("op %d: %w", i, err)
		}
	}

	info, _ := h.Info(umm.Nil, false)
	res.Live = len(live)
	res.FreeBytes = info.FreeBlocks * h.BlockSizeBytes()
	res.MaxFreeBytes = info.MaxFreeContiguousBlocks * h.BlockSizeBytes()
	res.Fragmentation = info.FragmentationMetric()
	res.MinFreeBytes = h.Stats().FreeBlocksMin * h.BlockSizeBytes()
	printVerbose("Stress finished with %d live allocations\n", len(live))
	return res, nil
}
