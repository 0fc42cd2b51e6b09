package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFor(t *testing.T) {
	tests := []struct {
		name        string
		appEnv      string
		level       string
		format      string
		version     string
		wantLevel   LogLevel
		wantFormat  LogFormat
		wantVersion string
		wantSource  bool
	}{
		{
			name:        "development defaults",
			appEnv:      "development",
			wantLevel:   LogLevelInfo,
			wantFormat:  LogFormatText,
			wantVersion: "dev",
		},
		{
			name:        "production uses json",
			appEnv:      "production",
			version:     "1.2.0",
			wantLevel:   LogLevelInfo,
			wantFormat:  LogFormatJSON,
			wantVersion: "1.2.0",
			wantSource:  true,
		},
		{
			name:        "explicit settings win",
			appEnv:      "production",
			level:       "DEBUG",
			format:      "Text",
			wantLevel:   LogLevelDebug,
			wantFormat:  LogFormatText,
			wantVersion: "unknown",
			wantSource:  true,
		},
		{
			name:        "unknown environment falls back to development",
			appEnv:      "test",
			level:       "warn",
			wantLevel:   LogLevelWarn,
			wantFormat:  LogFormatText,
			wantVersion: "dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ConfigFor(tt.appEnv, tt.level, tt.format, tt.version)
			assert.Equal(t, tt.wantLevel, cfg.Level)
			assert.Equal(t, tt.wantFormat, cfg.Format)
			assert.Equal(t, tt.wantVersion, cfg.ServiceVersion)
			assert.Equal(t, tt.wantSource, cfg.AddSource)
			assert.Equal(t, "daytask", cfg.ServiceName)
		})
	}
}

func newTestLogger(t *testing.T, appEnv, level, format string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := ConfigFor(appEnv, level, format, "0.3.0")
	cfg.Output = &buf
	cfg.AddSource = false
	return NewLogger(cfg), &buf
}

func TestNewLogger_ProductionEntry(t *testing.T) {
	logger, buf := newTestLogger(t, "production", "", "")
	ctx := WithCorrelationID(context.Background(), "cmd-42")

	logger.With("component", "tasksync").InfoContext(ctx, "task added", "task_id", "t1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task added", entry["msg"])
	assert.Equal(t, "daytask", entry["service"])
	assert.Equal(t, "0.3.0", entry["version"])
	assert.Equal(t, "cmd-42", entry[CorrelationIDKey])
	assert.Equal(t, "tasksync", entry["component"])
	assert.Equal(t, "t1", entry["task_id"])
}

func TestNewLogger_TextLevelFilter(t *testing.T) {
	logger, buf := newTestLogger(t, "development", "warn", "")

	logger.Info("anonymous task limit reached")
	logger.Warn("rejected invalid task", "error", "text is required")

	out := buf.String()
	assert.NotContains(t, out, "anonymous task limit reached")
	assert.Contains(t, out, "rejected invalid task")
	assert.Contains(t, out, `error="text is required"`)
	assert.NotContains(t, out, CorrelationIDKey)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected slog.Level
	}{
		{LogLevelDebug, slog.LevelDebug},
		{LogLevelWarn, slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{LogLevelError, slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			assert.Equal(t, tt.expected, parseSlogLevel(tt.input))
		})
	}
}
