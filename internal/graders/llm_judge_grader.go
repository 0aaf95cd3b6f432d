package graders

import (
	"context"
	"fmt"

	"github.com/dialcheck/dialcheck/internal/judge"
)

// passThreshold is the minimum composite score for a passing call.
const passThreshold = 5.0

// llmJudgeGrader scores accuracy and empathy by asking the LLM judge.
type llmJudgeGrader struct {
	name  string
	judge Evaluator
}

// NewLLMJudgeGrader creates a grader backed by the given judge.
func NewLLMJudgeGrader(name string, j Evaluator) Grader {
	return &llmJudgeGrader{name: name, judge: j}
}

func (g *llmJudgeGrader) Name() string { return g.name }
func (g *llmJudgeGrader) Kind() Type   { return TypeLLMJudge }

func (g *llmJudgeGrader) Grade(ctx context.Context, gc *Context) (*Result, error) {
	return measureTime(func() (*Result, error) {
		eval, err := g.judge.Evaluate(ctx, &judge.Input{
			TestCase:      gc.TestCase,
			Persona:       gc.Persona,
			Behavior:      gc.Behavior,
			Conversation:  gc.Conversation,
			KnowledgeBase: gc.KnowledgeBase,
		})
		if err != nil {
			return nil, fmt.Errorf("llm_judge grader '%s': %w", g.name, err)
		}

		composite := (eval.Accuracy + eval.Empathy) / 2
		return &Result{
			Name:     g.name,
			Kind:     TypeLLMJudge,
			Score:    composite,
			Passed:   composite >= passThreshold,
			Feedback: eval.OverallFeedback,
			Details: map[string]any{
				"accuracy":                  eval.Accuracy,
				"accuracy_explanation":      eval.AccuracyExplanation,
				"empathy":                   eval.Empathy,
				"empathy_explanation":       eval.EmpathyExplanation,
				"response_time":             eval.ResponseTime,
				"response_time_explanation": eval.ResponseTimeExplanation,
			},
		}, nil
	})
}
