package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/judge"
	"github.com/dialcheck/dialcheck/internal/orchestration"
)

// scriptedCompleter returns the same canned judge response for every call.
type scriptedCompleter struct {
	response string
}

func (s *scriptedCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.response}},
		},
	}, nil
}

const passingJudgeResponse = `{
	"accuracy": 9,
	"accuracy_explanation": "The double charge was explained correctly.",
	"empathy": 8,
	"empathy_explanation": "Acknowledged the customer's frustration.",
	"response_time": 9,
	"response_time_explanation": "Replies came promptly.",
	"overall_feedback": "Handled the dispute well."
}`

const failingJudgeResponse = `{
	"accuracy": 2,
	"accuracy_explanation": "The answer contradicted the billing policy.",
	"empathy": 3,
	"empathy_explanation": "Dismissive tone.",
	"response_time": 4,
	"response_time_explanation": "Long pauses.",
	"overall_feedback": "Needs work."
}`

const runTestSuite = `name: billing-smoke
test_cases:
  - name: double-charge
    config:
      persona_name: Frustrated Customer
      behavior_name: Direct
      question: Why was I charged twice this month?
      max_turns: 6
`

// setupRunFixture writes a suite and catalog into a temp dir and points the
// judge at a scripted completer.
func setupRunFixture(t *testing.T, judgeResponse string) (suitePath, catalogPath, dataDir string) {
	t.Helper()

	dir := t.TempDir()
	suitePath = filepath.Join(dir, "billing-smoke.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(runTestSuite), 0o644))
	catalogPath = filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(checkValidCatalog), 0o644))
	dataDir = filepath.Join(dir, "data")

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("STORAGE_CONNECTION_STRING", "")
	t.Setenv("STORAGE_ACCOUNT", "")
	t.Setenv("LOCAL_MODE", "")
	t.Setenv("PUBLIC_HOST", "")

	old := newChatCompleter
	newChatCompleter = func(string) judge.ChatCompleter {
		return &scriptedCompleter{response: judgeResponse}
	}
	t.Cleanup(func() { newChatCompleter = old })

	return suitePath, catalogPath, dataDir
}

func TestRunCommand_MockEnginePasses(t *testing.T) {
	suitePath, catalogPath, dataDir := setupRunFixture(t, passingJudgeResponse)
	outputPath := filepath.Join(dataDir, "result.json")
	junitPath := filepath.Join(dataDir, "junit.xml")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	cmd := newRunCommand()
	cmd.SetArgs([]string{
		suitePath,
		"--engine", "mock",
		"--catalog", catalogPath,
		"--local",
		"--data-dir", dataDir,
		"--verbose",
		"--output", outputPath,
		"--junit", junitPath,
	})

	out := captureStdout(t, func() {
		require.NoError(t, cmd.Execute())
	})

	assert.Contains(t, out, "Suite: billing-smoke")
	assert.Contains(t, out, "1 total, 1 passed, 0 failed")

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	var result orchestration.SuiteResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "billing-smoke", result.SuiteName)
	require.Len(t, result.Results, 1)
	require.NotNil(t, result.Results[0].Report)
	assert.True(t, result.Results[0].Report.Metrics.Successful)
	assert.InDelta(t, 9.0, result.Results[0].Report.Metrics.Accuracy, 0.01)

	junit, err := os.ReadFile(junitPath)
	require.NoError(t, err)
	assert.Contains(t, string(junit), "billing-smoke")
}

func TestRunCommand_MockEngineFails(t *testing.T) {
	suitePath, catalogPath, dataDir := setupRunFixture(t, failingJudgeResponse)

	cmd := newRunCommand()
	cmd.SetArgs([]string{
		suitePath,
		"--engine", "mock",
		"--catalog", catalogPath,
		"--local",
		"--data-dir", dataDir,
		"--verbose",
	})

	var execErr error
	captureStdout(t, func() {
		execErr = cmd.Execute()
	})

	var failure *TestFailureError
	require.ErrorAs(t, execErr, &failure)
	assert.Contains(t, failure.Message, "1 failed")
}

func TestRunCommand_UnknownEngine(t *testing.T) {
	suitePath, catalogPath, dataDir := setupRunFixture(t, passingJudgeResponse)

	cmd := newRunCommand()
	cmd.SetArgs([]string{
		suitePath,
		"--engine", "carrier-pigeon",
		"--catalog", catalogPath,
		"--local",
		"--data-dir", dataDir,
	})

	var execErr error
	captureStdout(t, func() {
		execErr = cmd.Execute()
	})
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), "unknown engine type")
}

func TestRunCommand_MissingSuite(t *testing.T) {
	_, catalogPath, dataDir := setupRunFixture(t, passingJudgeResponse)

	cmd := newRunCommand()
	cmd.SetArgs([]string{
		filepath.Join(dataDir, "nope.yaml"),
		"--engine", "mock",
		"--catalog", catalogPath,
		"--local",
		"--data-dir", dataDir,
	})

	var execErr error
	captureStdout(t, func() {
		execErr = cmd.Execute()
	})
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), "failed to load suite")
}
