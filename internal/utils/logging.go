package utils

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dialcheck/dialcheck/internal/session"
)

// EventToSlog mirrors a session event onto the default slog logger at debug
// level. Data keys are emitted in sorted order so log lines are stable.
func EventToSlog(event session.Event) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"type", event.Type,
	}

	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, event.Data[k])
	}

	slog.Debug("session event", attrs...)
}

// SlogSessionLogger forwards session events to slog instead of a file. Used
// when --debug is set without a session log path.
type SlogSessionLogger struct{}

// Log mirrors the event onto slog.
func (SlogSessionLogger) Log(event session.Event) error {
	EventToSlog(event)
	return nil
}

// Close is a no-op.
func (SlogSessionLogger) Close() error { return nil }
