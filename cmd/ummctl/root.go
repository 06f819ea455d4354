package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/esp8266/Arduino-sub008/internal/logger"
	"github.com/esp8266/Arduino-sub008/umm/printer"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "ummctl",
	Short: "Build, exercise and inspect block-indexed heaps",
	Long: `ummctl builds one or more heaps from a YAML layout, replays allocation
workloads against them, runs randomized stress tests with integrity checking,
and reports heap usage, fragmentation and out-of-memory events.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Enable allocator logging at this level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit log records as JSON")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging routes allocator logs to stderr when --log-level is given.
func setupLogging(*cobra.Command, []string) error {
	if logLevel == "" {
		logger.Init(logger.Options{})
		return nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger.Init(logger.Options{Enabled: true, Writer: os.Stderr, Level: lvl, JSON: logJSON})
	return nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled.
// JSON output stays a single document, so progress lines are dropped.
func printVerbose(format string, args ...any) {
	if verbose && !quiet && !jsonOut {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	return printer.WriteJSON(os.Stdout, v)
}
