package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/session"
)

func TestEventToSlogDebugDisabled(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(old)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	EventToSlog(session.NewEvent(session.EventCallStart, nil))
	assert.Equal(t, 0, buf.Len())
}

func TestEventToSlogDebugEnabled(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(old)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	event := session.NewEvent(session.EventCallStart, session.CallStartData("double charge", "t-1", "CA1"))
	EventToSlog(event)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "session event", logEntry["msg"])
	assert.Equal(t, string(session.EventCallStart), logEntry["type"])
	assert.Equal(t, "double charge", logEntry["test_case"])
	assert.Equal(t, "t-1", logEntry["test_id"])
	assert.Equal(t, "CA1", logEntry["call_id"])
}

func TestSlogSessionLogger(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(old)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	l := SlogSessionLogger{}
	require.NoError(t, l.Log(session.NewEvent(session.EventError, session.ErrorData("boom", nil))))
	require.NoError(t, l.Close())
	assert.Contains(t, buf.String(), "boom")
}
