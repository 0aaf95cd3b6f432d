package graders

import (
	"context"
	"fmt"

	"github.com/dialcheck/dialcheck/internal/judge"
)

// defaultMaxSeconds is the response time above which the score reaches 0.
const defaultMaxSeconds = 10.0

// responseTimeGrader scores promptness from transcript timestamps. The score
// falls linearly from 10 at instant replies to 0 at maxSeconds.
type responseTimeGrader struct {
	name       string
	maxSeconds float64
}

// NewResponseTimeGrader creates a timestamp-based response time grader.
func NewResponseTimeGrader(name string, maxSeconds float64) Grader {
	if maxSeconds <= 0 {
		maxSeconds = defaultMaxSeconds
	}
	return &responseTimeGrader{name: name, maxSeconds: maxSeconds}
}

func (g *responseTimeGrader) Name() string { return g.name }
func (g *responseTimeGrader) Kind() Type   { return TypeResponseTime }

func (g *responseTimeGrader) Grade(_ context.Context, gc *Context) (*Result, error) {
	return measureTime(func() (*Result, error) {
		avg, ok := judge.ResponseTimeFromTranscript(gc.Conversation)
		if !ok {
			return &Result{
				Name:     g.name,
				Kind:     TypeResponseTime,
				Score:    0,
				Passed:   false,
				Feedback: "transcript has no usable timestamps",
			}, nil
		}

		score := 10 * (1 - avg/g.maxSeconds)
		if score < 0 {
			score = 0
		}
		return &Result{
			Name:     g.name,
			Kind:     TypeResponseTime,
			Score:    score,
			Passed:   avg <= g.maxSeconds,
			Feedback: fmt.Sprintf("average agent response time %.2fs (limit %.0fs)", avg, g.maxSeconds),
			Details: map[string]any{
				"avg_seconds": avg,
				"max_seconds": g.maxSeconds,
			},
		}, nil
	})
}
