package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Info("hidden")
	log.Warn("shown", StudentID("s1"))
	log.Error("failed", Err(errors.New("boom")))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "s1", entries[0].Fields["student_id"])
	assert.Equal(t, "boom", entries[1].Fields["error"])
}

func TestLogger_WithKeepsParentFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf, Level: LevelDebug}).With(Component("ledger"))
	base.With(Month("2024-03")).Debug("toggled", Int("day", 5))
	base.Debug("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "ledger", entries[0].Fields["component"])
	assert.Equal(t, "2024-03", entries[0].Fields["month"])
	assert.EqualValues(t, 5, entries[0].Fields["day"])
	assert.NotContains(t, entries[1].Fields, "month")
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).WithRequestID("req-1")
	ctx := WithContext(context.Background(), log)

	FromContext(ctx).Info("hello")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].Fields[RequestIDKey])
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLogger_CallerAndFormatted(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, AddCaller: true})

	log.Warnf("value log GC: %d files\n", 3)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "value log GC: 3 files", entries[0].Message)
	assert.True(t, strings.HasPrefix(entries[0].Caller, "logger_test.go:"), entries[0].Caller)
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() { log.Error("dropped", Err(nil)) })
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
