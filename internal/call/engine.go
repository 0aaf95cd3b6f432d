// Package call places outbound phone calls to the agent under test. The
// Twilio engine drives real calls whose media flows back through the bridge;
// the mock engine synthesizes a conversation in-process for local mode.
package call

import (
	"context"
	"time"
)

// Engine is the interface for placing test calls.
type Engine interface {
	// Initialize sets up the engine.
	Initialize(ctx context.Context) error

	// Dial places a call for a test.
	Dial(ctx context.Context, req DialRequest) (*Call, error)

	// Shutdown cleans up resources.
	Shutdown(ctx context.Context) error
}

// DialRequest describes one outbound test call.
type DialRequest struct {
	TestID      string
	To          string
	From        string
	StreamURL   string // websocket URL the call's media is bridged to
	Question    string // the evaluator's opening question
	MaxDuration time.Duration
}

// Call is a placed call.
type Call struct {
	ID        string
	Status    string
	StartedAt time.Time
}
