package orchestration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcheck/dialcheck/internal/bridge"
	"github.com/dialcheck/dialcheck/internal/cache"
	"github.com/dialcheck/dialcheck/internal/call"
	"github.com/dialcheck/dialcheck/internal/config"
	"github.com/dialcheck/dialcheck/internal/judge"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/storage"
	"github.com/dialcheck/dialcheck/internal/tracker"
)

// scriptedCompleter returns a fixed evaluation and counts calls.
type scriptedCompleter struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (c *scriptedCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.fail {
		return openai.ChatCompletionResponse{}, fmt.Errorf("model unavailable")
	}
	content := `{
		"accuracy": 8, "accuracy_explanation": "answer matched the FAQ",
		"empathy": 7, "empathy_explanation": "acknowledged frustration",
		"response_time": 9, "response_time_explanation": "prompt replies",
		"overall_feedback": "Solid handling of the billing question."
	}`
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testSuite(names ...string) *models.TestSuite {
	suite := &models.TestSuite{Name: "smoke"}
	for _, name := range names {
		suite.TestCases = append(suite.TestCases, models.TestCase{
			Name: name,
			Config: models.TestCaseConfig{
				PersonaName:  "Frustrated Customer",
				BehaviorName: "Direct",
				Question:     "Why was I charged twice this month?",
				MaxTurns:     models.DefaultMaxTurns,
			},
		})
	}
	return suite
}

func testCatalog() *models.Catalog {
	return &models.Catalog{
		Personas: []models.Persona{
			{Name: "Frustrated Customer", Traits: []string{"short fuse", "wants answers fast"}},
		},
		Behaviors: []models.Behavior{
			{Name: "Direct", Characteristics: []string{"asks pointed questions"}},
		},
	}
}

type runnerFixture struct {
	runner    *Runner
	store     *storage.LocalStore
	track     *tracker.Tracker
	completer *scriptedCompleter
}

func newRunnerFixture(t *testing.T, suite *models.TestSuite, opts ...config.Option) *runnerFixture {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	reg := bridge.NewRegistry()
	track := tracker.New(store)
	completer := &scriptedCompleter{}
	j := judge.New(completer, judge.WithRetries(0))

	cfgOpts := append([]config.Option{
		config.WithCatalog(testCatalog()),
		config.WithTimeout(30),
	}, opts...)
	cfg := config.New(suite, cfgOpts...)

	r := NewRunner(cfg,
		WithEngine(call.NewMockEngine(reg, store, call.WithTurnDelay(time.Millisecond))),
		WithJudge(j),
		WithStore(store),
		WithTracker(track),
		WithRegistry(reg),
	)
	return &runnerFixture{runner: r, store: store, track: track, completer: completer}
}

func TestRunSuitePersistsReports(t *testing.T) {
	f := newRunnerFixture(t, testSuite("billing", "hours"))

	outcome, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 2)
	assert.Equal(t, 2, outcome.Stats.Successful)
	assert.Equal(t, 1.0, outcome.Stats.PassRate)

	for _, res := range outcome.Results {
		require.NotNil(t, res.Report)
		assert.True(t, res.Report.Metrics.Successful)
		assert.Equal(t, 8.0, res.Report.Metrics.Accuracy)
		assert.NotEmpty(t, res.Report.Conversation)

		data, err := f.store.Get(context.Background(), storage.ReportKey(res.Report.ReportID, res.Report.Date))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestRunTracksLifecycle(t *testing.T) {
	f := newRunnerFixture(t, testSuite("billing"))

	outcome, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)

	exec, err := f.track.Get(context.Background(), outcome.Results[0].TestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, exec.Status)
	assert.Equal(t, outcome.Results[0].Report.ReportID, exec.ReportID)
	assert.NotEmpty(t, exec.CallID)

	var statuses []models.ExecutionStatus
	for _, d := range exec.Details {
		statuses = append(statuses, d.Status)
	}
	assert.Equal(t, []models.ExecutionStatus{
		models.StatusStarting,
		models.StatusWaitingForCall,
		models.StatusInProgress,
		models.StatusProcessing,
		models.StatusCompleted,
	}, statuses)
}

func TestRunFailedJudgeStillWritesReport(t *testing.T) {
	f := newRunnerFixture(t, testSuite("billing"))
	f.completer.fail = true

	outcome, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)

	report := outcome.Results[0].Report
	require.NotNil(t, report)
	assert.False(t, report.Metrics.Successful)
	require.NotNil(t, report.Metrics.ErrorMessage)

	data, err := f.store.Get(context.Background(), storage.ReportKey(report.ReportID, report.Date))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	exec, err := f.track.Get(context.Background(), outcome.Results[0].TestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, exec.Status)
}

func TestRunConcurrentPreservesOrder(t *testing.T) {
	f := newRunnerFixture(t, testSuite("a", "b", "c"), config.WithMaxConcurrent(3))

	outcome, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, outcome.Results, 3)
	assert.Equal(t, "a", outcome.Results[0].Report.TestCaseName)
	assert.Equal(t, "b", outcome.Results[1].Report.TestCaseName)
	assert.Equal(t, "c", outcome.Results[2].Report.TestCaseName)
}

func TestRunUsesEvaluationCache(t *testing.T) {
	suite := testSuite("billing")
	c := cache.New(t.TempDir())

	f1 := newRunnerFixture(t, suite)
	WithCache(c)(f1.runner)
	_, err := f1.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f1.completer.callCount())

	f2 := newRunnerFixture(t, suite)
	WithCache(c)(f2.runner)
	outcome, err := f2.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, f2.completer.callCount())
	assert.True(t, outcome.Results[0].Cached)
	assert.Equal(t, 8.0, outcome.Results[0].Report.Metrics.Accuracy)
}

func TestRunEmptySuite(t *testing.T) {
	f := newRunnerFixture(t, &models.TestSuite{Name: "empty"})
	_, err := f.runner.Run(context.Background())
	assert.Error(t, err)
}

func TestProgressEvents(t *testing.T) {
	f := newRunnerFixture(t, testSuite("billing"))

	var mu sync.Mutex
	var events []EventType
	f.runner.OnProgress(func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e.EventType)
		mu.Unlock()
	})

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventSuiteStart, events[0])
	assert.Equal(t, EventSuiteComplete, events[len(events)-1])
	assert.Contains(t, events, EventTestStart)
	assert.Contains(t, events, EventCallConnected)
	assert.Contains(t, events, EventTurnRecorded)
	assert.Contains(t, events, EventTestComplete)
}

func TestComputeSuiteStats(t *testing.T) {
	results := []TestResult{
		{Report: &models.Report{Metrics: models.EvaluationMetrics{Successful: true, Accuracy: 8, Empathy: 6, ResponseTime: 2}}},
		{Report: &models.Report{Metrics: models.EvaluationMetrics{Successful: true, Accuracy: 6, Empathy: 8, ResponseTime: 4}}},
		{Report: &models.Report{Metrics: models.EvaluationMetrics{Successful: false}}},
	}

	stats := ComputeSuiteStats(results)
	assert.Equal(t, 3, stats.TotalTests)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 2.0/3.0, stats.PassRate, 1e-9)
	assert.InDelta(t, 7.0, stats.Accuracy.Avg, 1e-9)
	assert.Equal(t, 6.0, stats.Accuracy.Min)
	assert.Equal(t, 8.0, stats.Accuracy.Max)
	assert.InDelta(t, 3.0, stats.ResponseTime.Avg, 1e-9)
}
