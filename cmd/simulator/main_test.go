package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lllypuk/dwidmapper/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{name: "json", level: "info", format: "json"},
		{name: "text", level: "debug", format: "text"},
		{name: "empty format defaults to json", level: "warn", format: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Log.Level = tt.level
			cfg.Log.Format = tt.format

			logger := setupLogger(cfg)

			assert.NotNil(t, logger)
			assert.Equal(t, logger, slog.Default())
			assert.Equal(t, tt.level == "debug", logger.Enabled(t.Context(), slog.LevelDebug))
		})
	}
}
