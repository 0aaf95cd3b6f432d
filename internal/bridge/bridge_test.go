package bridge

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/audio"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/storage"
)

func TestRegistryAwaitBeforeOpen(t *testing.T) {
	reg := NewRegistry()

	got := make(chan *Session, 1)
	go func() {
		s, err := reg.Await(context.Background(), "t1")
		if err == nil {
			got <- s
		}
	}()

	time.Sleep(20 * time.Millisecond)
	opened := reg.Open("t1", "CA123", nil, nil)

	select {
	case s := <-got:
		assert.Same(t, opened, s)
	case <-time.After(time.Second):
		t.Fatal("Await never returned")
	}
}

func TestRegistryAwaitAfterOpen(t *testing.T) {
	reg := NewRegistry()
	opened := reg.Open("t1", "CA123", nil, nil)

	s, err := reg.Await(context.Background(), "t1")
	require.NoError(t, err)
	assert.Same(t, opened, s)
}

func TestRegistryAwaitTimeout(t *testing.T) {
	reg := NewRegistry()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := reg.Await(ctx, "missing")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecordTurnPersistsAudio(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	s := newSession("t1", "CA123", store, nil)

	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 4000
	}
	require.NoError(t, s.RecordTurn(ctx, models.SpeakerAgent, "", samples))

	turn := <-s.Turns()
	assert.Equal(t, models.SpeakerAgent, turn.Speaker)
	require.NotNil(t, turn.AudioURL)

	keys, err := store.List(ctx, storage.TestPrefix("t1"))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, strings.Contains(keys[0], "calls/CA123/audio/"))
}

func TestRecordTurnDedupesConsecutiveText(t *testing.T) {
	ctx := context.Background()
	s := newSession("t1", "CA123", nil, nil)

	require.NoError(t, s.RecordTurn(ctx, models.SpeakerEvaluator, "hello", nil))
	require.NoError(t, s.RecordTurn(ctx, models.SpeakerEvaluator, "hello", nil))
	require.NoError(t, s.RecordTurn(ctx, models.SpeakerEvaluator, "goodbye", nil))

	assert.Len(t, s.turns, 2)
}

func mediaFrame(t *testing.T, samples []int16) []byte {
	t.Helper()
	payload := base64.StdEncoding.EncodeToString(audio.EncodeUlaw(samples))
	return []byte(`{"event":"media","media":{"payload":"` + payload + `"}}`)
}

func TestHandlerRecordsTurnFromMediaStream(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	reg := NewRegistry()
	h := NewHandler(HandlerConfig{Registry: reg, Store: store})
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	start := `{"event":"start","start":{"streamSid":"MZ1","callSid":"CA9","customParameters":{"test_id":"t-ws"}}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(start)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	session, err := reg.Await(ctx, "t-ws")
	require.NoError(t, err)

	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 8000
	}
	silent := make([]int16, 160)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mediaFrame(t, loud)))
	for range 30 {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, mediaFrame(t, silent)))
	}

	select {
	case turn := <-session.Turns():
		assert.Equal(t, models.SpeakerAgent, turn.Speaker)
		assert.NotNil(t, turn.AudioURL)
	case <-time.After(2 * time.Second):
		t.Fatal("no turn recorded from media stream")
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop"}`)))

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never closed after stop")
	}
}

func TestHandlerAtCapacity(t *testing.T) {
	reg := NewRegistry()
	h := NewHandler(HandlerConfig{Registry: reg, MaxConcurrent: 1})
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
