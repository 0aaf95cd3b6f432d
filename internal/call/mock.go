package call

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dialcheck/dialcheck/internal/bridge"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/storage"
)

// MockEngine synthesizes a scripted conversation without any telephony. It
// opens a bridge session just like a real call would, so the rest of the
// pipeline cannot tell the difference. Used in local mode and tests.
type MockEngine struct {
	registry *bridge.Registry
	store    storage.ObjectStore
	log      *slog.Logger

	turnDelay time.Duration
	responses []string
}

var defaultResponses = []string{
	"Thanks for calling, I can help with that. Let me pull up the details for you.",
	"Is there anything else I can help you with today?",
}

// MockOption customizes a MockEngine.
type MockOption func(*MockEngine)

// WithResponses overrides the canned agent replies.
func WithResponses(responses []string) MockOption {
	return func(m *MockEngine) { m.responses = responses }
}

// WithTurnDelay sets the pause between synthesized turns.
func WithTurnDelay(d time.Duration) MockOption {
	return func(m *MockEngine) { m.turnDelay = d }
}

// NewMockEngine creates a mock call engine.
func NewMockEngine(registry *bridge.Registry, store storage.ObjectStore, opts ...MockOption) *MockEngine {
	m := &MockEngine{
		registry:  registry,
		store:     store,
		log:       slog.Default(),
		turnDelay: 10 * time.Millisecond,
		responses: defaultResponses,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockEngine) Initialize(_ context.Context) error { return nil }

// Dial opens a session and plays a scripted exchange through it.
func (m *MockEngine) Dial(ctx context.Context, req DialRequest) (*Call, error) {
	if req.TestID == "" {
		return nil, fmt.Errorf("dial request missing test ID")
	}
	callID := "MC" + uuid.NewString()
	session := m.registry.Open(req.TestID, callID, m.store, m.log)

	go m.playConversation(session, req)

	return &Call{
		ID:        callID,
		Status:    "in-progress",
		StartedAt: time.Now().UTC(),
	}, nil
}

func (m *MockEngine) Shutdown(_ context.Context) error { return nil }

// tone synthesizes a short audible ramp so stored turn audio is non-silent.
func tone(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16((i % 80) * 100)
	}
	return samples
}

func (m *MockEngine) playConversation(session *bridge.Session, req DialRequest) {
	// The consumer draining Turns() removes the session from the registry.
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	question := req.Question
	if question == "" {
		question = "Hello, I have a question about my account."
	}
	script := []struct {
		speaker models.Speaker
		text    string
	}{
		{models.SpeakerEvaluator, question},
		{models.SpeakerAgent, m.responses[0]},
		{models.SpeakerEvaluator, "Thank you, that answers my question."},
		{models.SpeakerAgent, m.responses[len(m.responses)-1]},
	}

	for _, line := range script {
		select {
		case <-time.After(m.turnDelay):
		case <-ctx.Done():
			return
		}
		if err := session.RecordTurn(ctx, line.speaker, line.text, tone(1600)); err != nil {
			m.log.Error("mock conversation turn failed", "test_id", session.TestID, "error", err)
			return
		}
	}
}
