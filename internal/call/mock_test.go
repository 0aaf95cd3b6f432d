package call

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/bridge"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/storage"
)

func TestMockDialPlaysScriptedConversation(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	reg := bridge.NewRegistry()
	m := NewMockEngine(reg, store, WithTurnDelay(time.Millisecond))
	require.NoError(t, m.Initialize(context.Background()))

	placed, err := m.Dial(context.Background(), DialRequest{
		TestID:   "t-mock",
		Question: "What are your business hours?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, placed.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	session, err := reg.Await(ctx, "t-mock")
	require.NoError(t, err)

	var turns []bridge.Turn
	for turn := range session.Turns() {
		turns = append(turns, turn)
	}

	require.Len(t, turns, 4)
	assert.Equal(t, models.SpeakerEvaluator, turns[0].Speaker)
	assert.Equal(t, "What are your business hours?", turns[0].Text)
	assert.Equal(t, models.SpeakerAgent, turns[1].Speaker)
	for _, turn := range turns {
		assert.NotNil(t, turn.AudioURL)
	}

	keys, err := store.List(ctx, storage.TestPrefix("t-mock"))
	require.NoError(t, err)
	assert.Len(t, keys, 4)
}

func TestMockDialRequiresTestID(t *testing.T) {
	m := NewMockEngine(bridge.NewRegistry(), nil)
	_, err := m.Dial(context.Background(), DialRequest{})
	assert.Error(t, err)
}
