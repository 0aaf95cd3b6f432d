package graders

import (
	"context"
	"fmt"

	"github.com/dialcheck/dialcheck/internal/models"
)

// turnLimitGrader checks that the conversation finished within the test
// case's turn budget. Resolving in exactly max_turns still passes; only
// conversations that ran past the budget fail.
type turnLimitGrader struct {
	name string
}

// NewTurnLimitGrader creates a turn budget grader.
func NewTurnLimitGrader(name string) Grader {
	return &turnLimitGrader{name: name}
}

func (g *turnLimitGrader) Name() string { return g.name }
func (g *turnLimitGrader) Kind() Type   { return TypeTurnLimit }

func (g *turnLimitGrader) Grade(_ context.Context, gc *Context) (*Result, error) {
	return measureTime(func() (*Result, error) {
		maxTurns := gc.TestCase.Config.MaxTurns
		if maxTurns <= 0 {
			maxTurns = models.DefaultMaxTurns
		}

		evaluatorTurns := 0
		for _, turn := range gc.Conversation {
			if turn.Speaker == models.SpeakerEvaluator {
				evaluatorTurns++
			}
		}

		within := evaluatorTurns <= maxTurns
		score := 10.0
		feedback := fmt.Sprintf("resolved in %d of %d turns", evaluatorTurns, maxTurns)
		if !within {
			score = 0
			feedback = fmt.Sprintf("ran past the %d turn limit without resolution", maxTurns)
		}

		return &Result{
			Name:     g.name,
			Kind:     TypeTurnLimit,
			Score:    score,
			Passed:   within,
			Feedback: feedback,
			Details: map[string]any{
				"evaluator_turns": evaluatorTurns,
				"max_turns":       maxTurns,
			},
		}, nil
	})
}
