package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esp8266/Arduino-sub008/umm/printer"
)

const workload = `ops:
  - {op: alloc, name: a, size: 20}
  - {op: select, heap: iram}
  - {op: calloc, name: b, count: 4, size: 8, expect: ok}
  - {op: restore}
  - {op: realloc, name: a, size: 64}
  - {op: free, name: b}
  - {op: alloc, name: big, size: 100000, expect: nil}
  - {op: realloc, name: a, size: 8}
  - {op: check}
`

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name        string
		workload    string
		wantErr     string
		wantContain []string
	}{
		{
			name:     "mixed workload",
			workload: workload,
			wantContain: []string{
				"dram (dram)",
				"iram (iram)",
				"OOM: 1 failures",
				"100,000 bytes on dram",
				"Call site:      run.go:",
			},
		},
		{
			name:     "realloc to zero frees",
			workload: "ops:\n  - {op: alloc, name: a, size: 40}\n  - {op: realloc, name: a, size: 0, expect: nil}\n  - {op: free, name: a}\n",
			wantErr:  `unknown allocation "a"`,
		},
		{
			name:     "unexpected allocation",
			workload: "ops:\n  - {op: alloc, name: a, size: 10, expect: nil}\n",
			wantErr:  "expected nil",
		},
		{
			name:     "unexpected failure",
			workload: "ops:\n  - {op: alloc, name: a, size: 10000, expect: ok}\n",
			wantErr:  "expected an allocation",
		},
		{
			name:     "duplicate name",
			workload: "ops:\n  - {op: alloc, name: a, size: 10}\n  - {op: alloc, name: a, size: 10}\n",
			wantErr:  `allocation "a" already live`,
		},
		{
			name:     "unknown op",
			workload: "ops:\n  - {op: compact}\n",
			wantErr:  `unknown op "compact"`,
		},
		{
			name:     "restore without select",
			workload: "ops:\n  - {op: restore}\n",
			wantErr:  "restore without select",
		},
		{
			name:     "select unknown heap",
			workload: "ops:\n  - {op: select, heap: external}\n",
			wantErr:  "cannot select heap external",
		},
		{
			name:     "bad expectation",
			workload: "ops:\n  - {op: alloc, name: a, size: 10, expect: maybe}\n",
			wantErr:  `unknown expectation "maybe"`,
		},
		{
			name:     "not yaml",
			workload: "ops: [",
			wantErr:  "parse workload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			layoutPath = writeTestFile(t, "layout.yaml", twoHeapLayout)
			path := writeTestFile(t, "workload.yaml", tt.workload)

			output, err := captureOutput(t, func() error { return runWorkload(path) })
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestRunCommand_JSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	verbose = true
	layoutPath = writeTestFile(t, "layout.yaml", twoHeapLayout)
	path := writeTestFile(t, "workload.yaml", workload)

	output, err := captureOutput(t, func() error { return runWorkload(path) })
	require.NoError(t, err)
	assertJSON(t, output)

	var r printer.Report
	require.NoError(t, json.Unmarshal([]byte(output), &r))
	require.Len(t, r.Heaps, 2)
	assert.Equal(t, uint64(1), r.Heaps[1].Stats.FreeCount)
	assert.Equal(t, uint64(2), r.Heaps[0].Stats.ReallocCount)
	assert.True(t, r.OOM.Recorded)
	assert.Equal(t, "dram", r.OOM.Heap)
	assert.Equal(t, uint64(1), r.OOM.Count)
}

func TestRunCommand_Verbose(t *testing.T) {
	resetFlags()
	verbose = true
	layoutPath = writeTestFile(t, "layout.yaml", twoHeapLayout)
	path := writeTestFile(t, "workload.yaml", workload)

	output, err := captureOutput(t, func() error { return runWorkload(path) })
	require.NoError(t, err)
	assertContains(t, output, []string{
		"alloc a 20 -> 0x3ffe800c",
		"select iram",
		"restore dram",
		"free b",
		"alloc big 100000 -> 0x00000000",
		"check ok",
		"Replayed 9 operations, 1 allocations live",
	})
}

func TestRunCommand_MissingFile(t *testing.T) {
	resetFlags()
	_, err := captureOutput(t, func() error { return runWorkload("does-not-exist.yaml") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read workload")
}
