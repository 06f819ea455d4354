package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esp8266/Arduino-sub008/internal/logger"
)

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { logger.Init(logger.Options{}) })

	tests := []struct {
		level     string
		wantErr   bool
		wantDebug bool
	}{
		{level: ""},
		{level: "debug", wantDebug: true},
		{level: "WARN"},
		{level: "error+2"},
		{level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			resetFlags()
			logLevel = tt.level
			err := setupLogging(nil, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid --log-level")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, logger.Enabled(slog.LevelDebug))
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"info", "run", "stress", "version"})
}

func TestVersionCommand(t *testing.T) {
	resetFlags()
	output, err := captureOutput(t, func() error {
		versionCmd.Run(versionCmd, nil)
		return nil
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"ummctl", version})
}
