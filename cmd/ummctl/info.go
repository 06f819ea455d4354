package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/esp8266/Arduino-sub008/umm"
	"github.com/esp8266/Arduino-sub008/umm/printer"
)

var (
	layoutPath  string
	defaultSize int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&layoutPath, "layout", "l", "", "Heap layout YAML file")
	rootCmd.PersistentFlags().IntVar(&defaultSize, "size", 4096, "Heap size in bytes when no layout is given")
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Build the heaps of a layout and report their initial state",
		Long: `The info command builds every heap described by the layout and prints
block counts, free space and configuration. With --verbose the block map of
each heap is printed too.

Example:
  ummctl info --layout heaps.yaml
  ummctl info --size 65536 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	return cmd
}

func runInfo() (err error) {
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

	return report(m)
}

// report prints every heap of m, then the OOM record.
func report(m *umm.Manager) error {
	if jsonOut {
		return printJSON(printer.NewReport(m, verbose))
	}
	if quiet {
		return nil
	}
	for _, h := range m.Heaps() {
		cfg := h.Config()
		printInfo("\n%s (%s): %d blocks of %d bytes at %s, %s, poison %s\n",
			h.ID(), h.Name(), h.NumBlocks(), h.BlockSizeBytes(), h.Base(), cfg.Policy, cfg.Poison)

		info, _ := h.Info(umm.Nil, false)
		if err := printer.WriteInfo(os.Stdout, h.Name(), info, h.BlockSizeBytes()); err != nil {
			return err
		}
		if err := printer.WriteStats(os.Stdout, h.Name(), h.Stats(), h.BlockSizeBytes()); err != nil {
			return err
		}
		printVerbose("Block map:\n%s\n", printer.BlockMap(h, 64))
	}
	rec, ok := m.OOM().Last()
	printInfo("\n")
	return printer.WriteOOM(os.Stdout, rec, ok)
}
