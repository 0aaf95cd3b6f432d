package session

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run-session.jsonl")

	logger, err := NewJSONLogger(path)
	require.NoError(t, err)

	require.NoError(t, logger.Log(NewEvent(EventCallStart, CallStartData("store-hours", "t1", "c1"))))
	require.NoError(t, logger.Log(NewEvent(EventTurnRecorded, TurnData("agent", "We open at 9am.", 1))))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"call_started"`)
	assert.Contains(t, lines[1], `"We open at 9am."`)
	assert.Equal(t, path, logger.Path())
}

func TestJSONLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-session.jsonl")

	for i := 0; i < 2; i++ {
		logger, err := NewJSONLogger(path)
		require.NoError(t, err)
		require.NoError(t, logger.Log(NewEvent(EventError, ErrorData("boom", nil))))
		require.NoError(t, logger.Close())
	}

	events, err := ReadEvents(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	assert.NoError(t, l.Log(NewEvent(EventCallEnd, nil)))
	assert.NoError(t, l.Close())
}

func TestReadEventsSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-session.jsonl")
	content := `{"timestamp":"2025-06-01T12:00:00Z","type":"call_started","data":{"test_case":"x"}}
not json
{"timestamp":"2025-06-01T12:00:05Z","type":"call_ended"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventCallStart, events[0].Type)
	assert.Equal(t, EventCallEnd, events[1].Type)
}

func TestListSessions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-session.jsonl"), []byte("{}\n{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-session.jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	files, err := ListSessions(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f.Name, "-session.jsonl"))
	}
}

func TestDefaultLogPath(t *testing.T) {
	p := DefaultLogPath("logs")
	assert.True(t, strings.HasPrefix(p, "logs"+string(os.PathSeparator)))
	assert.True(t, strings.HasSuffix(p, "-session.jsonl"))
}

func TestRenderTimeline(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, Type: EventSuiteStart, Data: SuiteStartData("billing", "mock", "gpt-4o", 2)},
		{Timestamp: base.Add(time.Second), Type: EventCallStart, Data: CallStartData("store-hours", "t1", "c1")},
		{Timestamp: base.Add(2 * time.Second), Type: EventTurnRecorded, Data: TurnData("agent", "We open at 9am.", 1)},
		{Timestamp: base.Add(3 * time.Second), Type: EventStatusChanged, Data: StatusData("t1", "processing", "")},
		{Timestamp: base.Add(4 * time.Second), Type: EventEvaluation, Data: EvaluationData("store-hours", 8, 7, 1.5, true)},
		{Timestamp: base.Add(5 * time.Second), Type: EventCallEnd, Data: CallEndData("store-hours", 4, 5000)},
		{Timestamp: base.Add(6 * time.Second), Type: EventSuiteEnd, Data: SuiteCompleteData(2, 1, 1, 6000)},
	}

	var buf bytes.Buffer
	RenderTimeline(&buf, events)
	out := buf.String()

	assert.Contains(t, out, "Suite started")
	assert.Contains(t, out, "Call started: store-hours")
	assert.Contains(t, out, "agent: We open at 9am.")
	assert.Contains(t, out, "status → processing")
	assert.Contains(t, out, "accuracy=8.0")
	assert.Contains(t, out, "Suite complete")
}

func TestRenderTimelineEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderTimeline(&buf, nil)
	assert.Contains(t, buf.String(), "No events found.")
}
