// Package graders scores completed calls. Each grader contributes one or
// more named scores to the final report.
package graders

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dialcheck/dialcheck/internal/judge"
	"github.com/dialcheck/dialcheck/internal/models"
)

type Type string

const (
	// TypeLLMJudge scores accuracy and empathy via the LLM judge.
	TypeLLMJudge Type = "llm_judge"

	// TypeResponseTime scores promptness from transcript timestamps.
	TypeResponseTime Type = "response_time"

	// TypeTurnLimit checks the call stayed within its turn budget.
	TypeTurnLimit Type = "turn_limit"
)

// Evaluator produces judged scores for a call. *judge.Judge satisfies it;
// the runner wraps it with the evaluation cache.
type Evaluator interface {
	Evaluate(ctx context.Context, in *judge.Input) (*judge.Evaluation, error)
}

// Grader is the interface for all call scorers.
type Grader interface {
	// Name returns the grader identifier used in results.
	Name() string

	// Kind returns the grader type.
	Kind() Type

	// Grade scores the call and returns a result.
	Grade(ctx context.Context, gc *Context) (*Result, error)
}

// Context provides everything graders can inspect about a finished call.
type Context struct {
	TestCase      *models.TestCase
	Persona       *models.Persona
	Behavior      *models.Behavior
	Conversation  []models.ConversationTurn
	KnowledgeBase *models.KnowledgeBase
	CallDuration  time.Duration
}

// Result is one grader's verdict. Score is on the 0-10 report scale.
type Result struct {
	Name       string         `json:"name"`
	Kind       Type           `json:"kind"`
	Score      float64        `json:"score"`
	Passed     bool           `json:"passed"`
	Feedback   string         `json:"feedback,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Create builds a grader by type, decoding params with mapstructure.
func Create(graderType Type, identifier string, params map[string]any, j Evaluator) (Grader, error) {
	switch graderType {
	case TypeLLMJudge:
		if j == nil {
			return nil, fmt.Errorf("llm_judge grader '%s' requires a judge", identifier)
		}
		return NewLLMJudgeGrader(identifier, j), nil
	case TypeResponseTime:
		var v *struct {
			MaxSeconds float64 `mapstructure:"max_seconds"`
		}
		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}
		maxSeconds := 0.0
		if v != nil {
			maxSeconds = v.MaxSeconds
		}
		return NewResponseTimeGrader(identifier, maxSeconds), nil
	case TypeTurnLimit:
		return NewTurnLimitGrader(identifier), nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid grader type", graderType)
	}
}

// measureTime is a helper to measure grading duration.
func measureTime(fn func() (*Result, error)) (*Result, error) {
	start := time.Now()
	result, err := fn()

	if result != nil {
		result.DurationMs = time.Since(start).Milliseconds()
	}

	return result, err
}
