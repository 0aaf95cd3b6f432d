// Package judge evaluates recorded call transcripts with an LLM and returns
// accuracy, empathy, and response-time scores with explanations.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is used when no judge model is configured.
	DefaultModel = "gpt-4o"

	// defaultTemperature keeps scoring stable across repeated evaluations.
	defaultTemperature = 0.2

	// defaultRetries is how many times a malformed judge response is retried.
	defaultRetries = 2
)

// ChatCompleter is the slice of the OpenAI client the judge needs.
// *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Evaluation is the judge's verdict for one call. Scores are 0-10.
type Evaluation struct {
	Accuracy                float64 `json:"accuracy"`
	AccuracyExplanation     string  `json:"accuracy_explanation"`
	Empathy                 float64 `json:"empathy"`
	EmpathyExplanation      string  `json:"empathy_explanation"`
	ResponseTime            float64 `json:"response_time"`
	ResponseTimeExplanation string  `json:"response_time_explanation,omitempty"`
	OverallFeedback         string  `json:"overall_feedback"`
}

// Judge scores call transcripts via chat completions.
type Judge struct {
	client      ChatCompleter
	model       string
	temperature float32
	retries     int
	logger      *slog.Logger
}

// Option configures a Judge.
type Option func(*Judge)

func WithModel(model string) Option {
	return func(j *Judge) {
		if model != "" {
			j.model = model
		}
	}
}

func WithTemperature(t float32) Option {
	return func(j *Judge) { j.temperature = t }
}

func WithRetries(n int) Option {
	return func(j *Judge) {
		if n >= 0 {
			j.retries = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(j *Judge) { j.logger = l }
}

// New creates a Judge over the given client.
func New(client ChatCompleter, opts ...Option) *Judge {
	j := &Judge{
		client:      client,
		model:       DefaultModel,
		temperature: defaultTemperature,
		retries:     defaultRetries,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Model returns the configured judge model.
func (j *Judge) Model() string { return j.model }

// Evaluate runs the judge over the given input. Malformed responses are
// retried; after the retry budget the last parse error is returned.
func (j *Judge) Evaluate(ctx context.Context, input *Input) (*Evaluation, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	prompt := BuildPrompt(input)

	var lastErr error
	for attempt := 0; attempt <= j.retries; attempt++ {
		if attempt > 0 {
			j.logger.Warn("retrying evaluation", "attempt", attempt, "error", lastErr)
		}

		resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       j.model,
			Temperature: j.temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("judge completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("judge returned no choices")
			continue
		}

		content := resp.Choices[0].Message.Content
		eval, err := parseEvaluation(content)
		if err != nil {
			lastErr = err
			continue
		}

		j.logger.Debug("evaluation complete",
			"model", j.model,
			"accuracy", eval.Accuracy,
			"empathy", eval.Empathy,
			"response_time", eval.ResponseTime)
		return eval, nil
	}
	return nil, fmt.Errorf("judge response invalid after %d attempts: %w", j.retries+1, lastErr)
}

// parseEvaluation decodes and schema-validates a judge response, clamping
// scores into the 0-10 range.
func parseEvaluation(content string) (*Evaluation, error) {
	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("judge response is not valid JSON: %w", err)
	}
	if err := validateEvaluation(raw); err != nil {
		return nil, err
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(content), &eval); err != nil {
		return nil, fmt.Errorf("decode judge response: %w", err)
	}
	eval.Accuracy = clampScore(eval.Accuracy)
	eval.Empathy = clampScore(eval.Empathy)
	eval.ResponseTime = clampScore(eval.ResponseTime)
	return &eval, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
