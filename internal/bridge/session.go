// Package bridge connects live phone call media to the evaluation pipeline.
// The websocket handler speaks the Twilio media-stream protocol; sessions
// buffer audio into conversation turns and persist each turn's recording.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dialcheck/dialcheck/internal/audio"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/storage"
)

// streamSampleRate is the fixed rate of Twilio media streams.
const streamSampleRate = 8000

// Turn is one conversation turn emitted by a session.
type Turn struct {
	Speaker   models.Speaker
	Text      string
	AudioURL  *string
	Timestamp time.Time
}

// Session is one call's media session. Turns are delivered on Turns() until
// the session closes.
type Session struct {
	TestID string
	CallID string

	store storage.ObjectStore
	log   *slog.Logger

	mu        sync.Mutex
	turnCount int
	lastText  map[models.Speaker]string

	turns     chan Turn
	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(testID, callID string, store storage.ObjectStore, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		TestID:   testID,
		CallID:   callID,
		store:    store,
		log:      log,
		lastText: make(map[models.Speaker]string),
		turns:    make(chan Turn, 16),
		outbound: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// Turns delivers recorded turns in order.
func (s *Session) Turns() <-chan Turn { return s.turns }

// Done is closed when the call ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outbound yields mu-law audio to be written back to the call as media
// frames. The websocket handler drains this; mock engines ignore it.
func (s *Session) Outbound() <-chan []byte { return s.outbound }

// SendAudio queues evaluator-side PCM audio for playback into the call.
func (s *Session) SendAudio(ctx context.Context, samples []int16) error {
	select {
	case s.outbound <- audio.EncodeUlaw(samples):
		return nil
	case <-s.done:
		return fmt.Errorf("session for test %s is closed", s.TestID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the session. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		close(s.turns)
	})
}

// RecordTurn persists a turn's audio and delivers it to the consumer.
// Consecutive turns with identical text from the same speaker are dropped;
// the media stream occasionally replays a segment and duplicate turns would
// skew the transcript.
func (s *Session) RecordTurn(ctx context.Context, speaker models.Speaker, text string, samples []int16) error {
	s.mu.Lock()
	if text != "" && s.lastText[speaker] == text {
		s.mu.Unlock()
		return nil
	}
	if text != "" {
		s.lastText[speaker] = text
	}
	s.turnCount++
	turn := s.turnCount
	s.mu.Unlock()

	ts := time.Now().UTC()
	var audioURL *string
	if len(samples) > 0 && s.store != nil {
		key := storage.TurnAudioKey(s.TestID, s.CallID, turn, string(speaker), ts)
		wav := audio.SamplesToWAV(samples, streamSampleRate)
		if err := s.store.Put(ctx, key, wav, "audio/wav"); err != nil {
			return fmt.Errorf("persisting turn audio: %w", err)
		}
		u := s.store.URL(key)
		audioURL = &u
	}

	select {
	case s.turns <- Turn{Speaker: speaker, Text: text, AudioURL: audioURL, Timestamp: ts}:
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Registry hands sessions off between the party that creates them (the
// websocket handler, or a mock engine) and the runner awaiting them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	waiters  map[string][]chan *Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		waiters:  make(map[string][]chan *Session),
	}
}

// Open creates and registers a session for a test, waking any Await callers.
func (r *Registry) Open(testID, callID string, store storage.ObjectStore, log *slog.Logger) *Session {
	s := newSession(testID, callID, store, log)

	r.mu.Lock()
	r.sessions[testID] = s
	waiting := r.waiters[testID]
	delete(r.waiters, testID)
	r.mu.Unlock()

	for _, ch := range waiting {
		ch <- s
	}
	return s
}

// Await blocks until a session for the test is opened or ctx expires.
func (r *Registry) Await(ctx context.Context, testID string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[testID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	ch := make(chan *Session, 1)
	r.waiters[testID] = append(r.waiters[testID], ch)
	r.mu.Unlock()

	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for call media for test %s: %w", testID, ctx.Err())
	}
}

// Remove drops a finished session from the registry.
func (r *Registry) Remove(testID string) {
	r.mu.Lock()
	delete(r.sessions, testID)
	r.mu.Unlock()
}
