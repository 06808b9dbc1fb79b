package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Defaults(t *testing.T) {
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_InvalidOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"scheme://nope"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestLogger_FieldsReachSink(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core)

	l.Info("matching started",
		String("report_id", "r1"),
		Int("paragraphs", 42),
		Float64("min_score", 0.35),
		Bool("cached", true),
	)

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "matching started", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "r1", fields["report_id"])
	assert.Equal(t, int64(42), fields["paragraphs"])
}

func TestLogger_WithAndNamed(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core).Named("aggregator").With(String("run_id", "abc"))

	l.Warn("report failed")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "aggregator", entries[0].LoggerName)
	assert.Equal(t, "abc", entries[0].ContextMap()["run_id"])
}

func TestSetLevel_AdjustsRuntimeLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := NewLogger(LogConfig{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	require.True(t, SetLevel(l, "error"))
	l.Info("suppressed after raise")
	l.Error("kept after raise")

	require.True(t, SetLevel(l.Named("sub"), "debug"), "derived loggers share the level")
	l.Debug("kept after lower")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.NotContains(t, out, "suppressed after raise")
	assert.Contains(t, out, "kept after raise")
	assert.Contains(t, out, "kept after lower")
}

func TestSetLevel_UnsupportedLoggers(t *testing.T) {
	assert.False(t, SetLevel(NewNopLogger(), "debug"))

	core, _ := observer.New(zapcore.InfoLevel)
	assert.False(t, SetLevel(NewLoggerFromCore(core), "debug"), "core-backed loggers have no shared level")
}

func TestErrField(t *testing.T) {
	assert.Equal(t, "<nil>", Err(nil).Value)
	assert.Equal(t, assert.AnError.Error(), Err(assert.AnError).Value)
	assert.Equal(t, "error", Err(assert.AnError).Key)
}

func TestDefault_SetAndGet(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l := NewNopLogger()
	SetDefault(l)
	assert.Equal(t, l, Default())

	// nil must be ignored
	SetDefault(nil)
	assert.Equal(t, l, Default())
}
