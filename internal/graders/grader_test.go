package graders

import (
	"context"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/judge"
	"github.com/dialcheck/dialcheck/internal/models"
)

type stubCompleter struct {
	content string
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func gradingContext(turns []models.ConversationTurn) *Context {
	return &Context{
		TestCase: &models.TestCase{
			Name: "store-hours",
			Config: models.TestCaseConfig{
				PersonaName:  "Maria",
				BehaviorName: "Patient",
				Question:     "When do you open?",
				MaxTurns:     3,
			},
		},
		Conversation: turns,
	}
}

func timedTurns(gaps ...time.Duration) []models.ConversationTurn {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var turns []models.ConversationTurn
	now := base
	for _, gap := range gaps {
		turns = append(turns,
			models.ConversationTurn{Speaker: models.SpeakerEvaluator, Text: "q", Timestamp: now},
			models.ConversationTurn{Speaker: models.SpeakerAgent, Text: "a", Timestamp: now.Add(gap)},
		)
		now = now.Add(gap + 30*time.Second)
	}
	return turns
}

func TestCreate(t *testing.T) {
	j := judge.New(&stubCompleter{})

	g, err := Create(TypeLLMJudge, "quality", nil, j)
	require.NoError(t, err)
	assert.Equal(t, TypeLLMJudge, g.Kind())
	assert.Equal(t, "quality", g.Name())

	g, err = Create(TypeResponseTime, "speed", map[string]any{"max_seconds": 5.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeResponseTime, g.Kind())

	g, err = Create(TypeTurnLimit, "turns", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeTurnLimit, g.Kind())

	_, err = Create(TypeLLMJudge, "quality", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a judge")

	_, err = Create(Type("bogus"), "x", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid grader type")
}

func TestLLMJudgeGrader(t *testing.T) {
	j := judge.New(&stubCompleter{content: `{
		"accuracy": 8,
		"accuracy_explanation": "correct hours",
		"empathy": 6,
		"empathy_explanation": "a bit curt",
		"response_time": 7,
		"overall_feedback": "good overall"
	}`})
	g := NewLLMJudgeGrader("quality", j)

	res, err := g.Grade(context.Background(), gradingContext(timedTurns(time.Second)))
	require.NoError(t, err)

	assert.Equal(t, 7.0, res.Score)
	assert.True(t, res.Passed)
	assert.Equal(t, "good overall", res.Feedback)
	assert.Equal(t, 8.0, res.Details["accuracy"])
	assert.Equal(t, 6.0, res.Details["empathy"])
}

func TestLLMJudgeGraderFailsBelowThreshold(t *testing.T) {
	j := judge.New(&stubCompleter{content: `{
		"accuracy": 2,
		"accuracy_explanation": "wrong hours",
		"empathy": 3,
		"empathy_explanation": "dismissive",
		"response_time": 5,
		"overall_feedback": "poor"
	}`})
	g := NewLLMJudgeGrader("quality", j)

	res, err := g.Grade(context.Background(), gradingContext(timedTurns(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.Score)
	assert.False(t, res.Passed)
}

func TestResponseTimeGrader(t *testing.T) {
	g := NewResponseTimeGrader("speed", 10)

	// 2s average response: score 8, passing.
	res, err := g.Grade(context.Background(), gradingContext(timedTurns(2*time.Second)))
	require.NoError(t, err)
	assert.InDelta(t, 8.0, res.Score, 1e-9)
	assert.True(t, res.Passed)
	assert.InDelta(t, 2.0, res.Details["avg_seconds"].(float64), 1e-9)

	// 20s average: floored at 0, failing.
	res, err = g.Grade(context.Background(), gradingContext(timedTurns(20*time.Second)))
	require.NoError(t, err)
	assert.Zero(t, res.Score)
	assert.False(t, res.Passed)
}

func TestResponseTimeGraderNoTimestamps(t *testing.T) {
	g := NewResponseTimeGrader("speed", 0)

	res, err := g.Grade(context.Background(), gradingContext([]models.ConversationTurn{
		{Speaker: models.SpeakerEvaluator, Text: "q"},
		{Speaker: models.SpeakerAgent, Text: "a"},
	}))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Feedback, "no usable timestamps")
}

func TestTurnLimitGrader(t *testing.T) {
	g := NewTurnLimitGrader("turns")

	// Two evaluator turns against a budget of three.
	res, err := g.Grade(context.Background(), gradingContext(timedTurns(time.Second, time.Second)))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 10.0, res.Score)

	// Resolving in exactly the budget still passes.
	res, err = g.Grade(context.Background(), gradingContext(timedTurns(time.Second, time.Second, time.Second)))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 10.0, res.Score)

	// Four evaluator turns ran past the budget.
	res, err = g.Grade(context.Background(), gradingContext(timedTurns(time.Second, time.Second, time.Second, time.Second)))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Zero(t, res.Score)
	assert.Contains(t, res.Feedback, "turn limit")
}

func TestGraderResultsIncludeDuration(t *testing.T) {
	g := NewTurnLimitGrader("turns")
	res, err := g.Grade(context.Background(), gradingContext(timedTurns(time.Second)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}
