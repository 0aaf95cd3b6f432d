// Package orchestration runs test suites end to end: dial the agent, collect
// the conversation through the bridge, judge the transcript, and persist a
// report per test.
package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialcheck/dialcheck/internal/bridge"
	"github.com/dialcheck/dialcheck/internal/cache"
	"github.com/dialcheck/dialcheck/internal/call"
	"github.com/dialcheck/dialcheck/internal/config"
	"github.com/dialcheck/dialcheck/internal/graders"
	"github.com/dialcheck/dialcheck/internal/judge"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/session"
	"github.com/dialcheck/dialcheck/internal/storage"
	"github.com/dialcheck/dialcheck/internal/tracker"
)

// Runner orchestrates the execution of a test suite.
type Runner struct {
	cfg     *config.RunConfig
	engine  call.Engine
	judge   *judge.Judge
	store   storage.ObjectStore
	track   *tracker.Tracker
	reg     *bridge.Registry
	cache   *cache.Cache
	logger  session.Logger
	log     *slog.Logger
	verbose bool

	to        string
	from      string
	streamURL string

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventSuiteStart    EventType = "suite_start"
	EventSuiteComplete EventType = "suite_complete"
	EventSuiteStopped  EventType = "suite_stopped"
	EventTestStart     EventType = "test_start"
	EventTestComplete  EventType = "test_complete"
	EventTestCached    EventType = "test_cached"
	EventCallConnected EventType = "call_connected"
	EventTurnRecorded  EventType = "turn_recorded"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType  EventType
	TestName   string
	TestNum    int
	TotalTests int
	Successful bool
	DurationMs int64
	Details    map[string]any
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEngine sets the call engine.
func WithEngine(e call.Engine) RunnerOption {
	return func(r *Runner) { r.engine = e }
}

// WithJudge sets the LLM judge.
func WithJudge(j *judge.Judge) RunnerOption {
	return func(r *Runner) { r.judge = j }
}

// WithStore sets the object store for audio and reports.
func WithStore(s storage.ObjectStore) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithTracker sets the execution tracker.
func WithTracker(t *tracker.Tracker) RunnerOption {
	return func(r *Runner) { r.track = t }
}

// WithRegistry sets the bridge registry calls arrive through.
func WithRegistry(reg *bridge.Registry) RunnerOption {
	return func(r *Runner) { r.reg = reg }
}

// WithCache enables evaluation caching
func WithCache(c *cache.Cache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

// WithSessionLogger sets the conversation event logger.
func WithSessionLogger(l session.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithDialNumbers sets the target and caller phone numbers.
func WithDialNumbers(to, from string) RunnerOption {
	return func(r *Runner) {
		r.to = to
		r.from = from
	}
}

// WithStreamURL sets the websocket URL call media is bridged to.
func WithStreamURL(u string) RunnerOption {
	return func(r *Runner) { r.streamURL = u }
}

// NewRunner creates a new suite runner
func NewRunner(cfg *config.RunConfig, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:       cfg,
		verbose:   cfg.Verbose(),
		log:       slog.Default(),
		logger:    session.NopLogger{},
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	if r.reg == nil {
		r.reg = bridge.NewRegistry()
	}
	if r.track == nil && r.store != nil {
		r.track = tracker.New(r.store)
	}
	return r
}

// Registry exposes the bridge registry so the webserver can route media.
func (r *Runner) Registry() *bridge.Registry { return r.reg }

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes every test case in the suite and returns the collected
// results. A failed call never aborts the suite unless fail-fast is set;
// each failure is still written out as an unsuccessful report.
func (r *Runner) Run(ctx context.Context) (*SuiteResult, error) {
	suite := r.cfg.Suite()
	if suite == nil || len(suite.TestCases) == 0 {
		return nil, fmt.Errorf("no test cases to run")
	}
	if r.engine == nil {
		return nil, fmt.Errorf("runner has no call engine")
	}
	if r.judge == nil {
		return nil, fmt.Errorf("runner has no judge")
	}
	if r.store == nil {
		return nil, fmt.Errorf("runner has no object store")
	}

	startTime := time.Now()

	if err := r.engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing call engine: %w", err)
	}
	defer func() {
		if err := r.engine.Shutdown(ctx); err != nil {
			r.log.Warn("engine shutdown failed", "error", err)
		}
	}()

	r.logEvent(session.EventSuiteStart, session.SuiteStartData(suite.Name, r.cfg.EngineType(), r.judge.Model(), len(suite.TestCases)))
	r.notifyProgress(ProgressEvent{
		EventType:  EventSuiteStart,
		TotalTests: len(suite.TestCases),
	})

	var results []TestResult
	if r.cfg.MaxConcurrent() > 1 {
		results = r.runConcurrent(ctx, suite.TestCases)
	} else {
		results = r.runSequential(ctx, suite.TestCases)
	}

	outcome := &SuiteResult{
		SuiteName:  suite.Name,
		StartedAt:  startTime.UTC(),
		DurationMs: time.Since(startTime).Milliseconds(),
		Results:    results,
		Stats:      ComputeSuiteStats(results),
	}

	r.logEvent(session.EventSuiteEnd, session.SuiteCompleteData(
		len(results), outcome.Stats.Successful, outcome.Stats.Failed, outcome.DurationMs))
	r.notifyProgress(ProgressEvent{
		EventType:  EventSuiteComplete,
		DurationMs: outcome.DurationMs,
	})

	return outcome, nil
}

func (r *Runner) runSequential(ctx context.Context, testCases []models.TestCase) []TestResult {
	results := make([]TestResult, 0, len(testCases))

	for i := range testCases {
		if r.cfg.FailFast() && anyFailed(results) {
			r.notifyProgress(ProgressEvent{
				EventType: EventSuiteStopped,
				Details:   map[string]any{"reason": "fail_fast enabled and a previous test failed"},
			})
			return results
		}
		results = append(results, r.runTest(ctx, &testCases[i], i+1, len(testCases)))
	}

	return results
}

func (r *Runner) runConcurrent(ctx context.Context, testCases []models.TestCase) []TestResult {
	workers := r.cfg.MaxConcurrent()

	type indexed struct {
		index  int
		result TestResult
	}

	resultChan := make(chan indexed, len(testCases))
	semaphore := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i := range testCases {
		wg.Add(1)
		go func(idx int, tc *models.TestCase) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			resultChan <- indexed{index: idx, result: r.runTest(ctx, tc, idx+1, len(testCases))}
		}(i, &testCases[i])
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]TestResult, len(testCases))
	for res := range resultChan {
		results[res.index] = res.result
	}

	return results
}

func anyFailed(results []TestResult) bool {
	for _, res := range results {
		if res.Report == nil || !res.Report.Metrics.Successful {
			return true
		}
	}
	return false
}

// runTest drives one test case through its full lifecycle.
func (r *Runner) runTest(ctx context.Context, tc *models.TestCase, testNum, totalTests int) TestResult {
	startTime := time.Now()

	r.notifyProgress(ProgressEvent{
		EventType:  EventTestStart,
		TestName:   tc.Name,
		TestNum:    testNum,
		TotalTests: totalTests,
	})

	timeout := time.Duration(r.cfg.TimeoutSec()) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exec, err := r.track.Create(testCtx, *tc)
	if err != nil {
		return r.finishFailed(ctx, tc, "", startTime, fmt.Errorf("creating test execution: %w", err))
	}

	result := r.executeTest(testCtx, tc, exec.TestID, startTime)

	eventType := EventTestComplete
	if result.Cached {
		eventType = EventTestCached
	}
	event := ProgressEvent{
		EventType:  eventType,
		TestName:   tc.Name,
		TestNum:    testNum,
		TotalTests: totalTests,
		DurationMs: time.Since(startTime).Milliseconds(),
	}
	if result.Report != nil {
		event.Successful = result.Report.Metrics.Successful
		event.Details = map[string]any{
			"accuracy":      result.Report.Metrics.Accuracy,
			"empathy":       result.Report.Metrics.Empathy,
			"response_time": result.Report.Metrics.ResponseTime,
			"report_id":     result.Report.ReportID,
		}
	}
	r.notifyProgress(event)

	return result
}

// RunSingle executes one already-created test. The web API uses this to run
// submitted tests in the background.
func (r *Runner) RunSingle(ctx context.Context, exec *models.TestExecution) *models.Report {
	timeout := time.Duration(r.cfg.TimeoutSec()) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := r.executeTest(testCtx, &exec.TestCase, exec.TestID, time.Now())
	return result.Report
}

// executeTest drives a created test through call, evaluation, and report
// persistence.
func (r *Runner) executeTest(ctx context.Context, tc *models.TestCase, testID string, startTime time.Time) TestResult {
	defer r.reg.Remove(testID)

	conversation, _, err := r.runCall(ctx, tc, testID)
	if err != nil {
		r.setStatus(context.WithoutCancel(ctx), testID, models.StatusFailed, err.Error())
		return r.finishFailed(context.WithoutCancel(ctx), tc, testID, startTime, err)
	}

	r.setStatus(ctx, testID, models.StatusProcessing, "call finished, evaluating transcript")

	report, cached, err := r.evaluate(ctx, tc, conversation, time.Since(startTime))
	if err == nil {
		err = r.persistReport(ctx, report)
	}
	if err != nil {
		r.setStatus(context.WithoutCancel(ctx), testID, models.StatusFailed, err.Error())
		return r.finishFailed(context.WithoutCancel(ctx), tc, testID, startTime, err)
	}

	if err := r.track.SetReportID(ctx, testID, report.ReportID); err != nil {
		r.log.Warn("recording report ID failed", "test_id", testID, "error", err)
	}
	r.setStatus(ctx, testID, models.StatusCompleted, "report "+report.ReportID)

	r.logEvent(session.EventEvaluation, session.EvaluationData(
		tc.Name, report.Metrics.Accuracy, report.Metrics.Empathy, report.Metrics.ResponseTime, report.Metrics.Successful))
	r.logEvent(session.EventCallEnd, session.CallEndData(tc.Name, len(conversation), time.Since(startTime).Milliseconds()))

	return TestResult{TestID: testID, Report: report, Cached: cached}
}

// runCall dials the agent and collects the conversation until the call ends,
// the turn budget is reached, or the test times out.
func (r *Runner) runCall(ctx context.Context, tc *models.TestCase, testID string) ([]models.ConversationTurn, string, error) {
	maxTurns := tc.Config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = models.DefaultMaxTurns
	}

	r.setStatus(ctx, testID, models.StatusWaitingForCall, "dialing agent")

	placed, err := r.engine.Dial(ctx, call.DialRequest{
		TestID:      testID,
		To:          r.to,
		From:        r.from,
		StreamURL:   r.streamURL,
		Question:    tc.Config.Question,
		MaxDuration: time.Duration(r.cfg.TimeoutSec()) * time.Second,
	})
	if err != nil {
		return nil, "", fmt.Errorf("dialing: %w", err)
	}

	sess, err := r.reg.Await(ctx, testID)
	if err != nil {
		return nil, placed.ID, err
	}

	if err := r.track.SetCallID(ctx, testID, sess.CallID); err != nil {
		r.log.Warn("recording call ID failed", "test_id", testID, "error", err)
	}
	r.setStatus(ctx, testID, models.StatusInProgress, "call connected")
	r.logEvent(session.EventCallStart, session.CallStartData(tc.Name, testID, sess.CallID))
	r.notifyProgress(ProgressEvent{EventType: EventCallConnected, TestName: tc.Name})

	var conversation []models.ConversationTurn
	evaluatorTurns := 0

collect:
	for {
		select {
		case turn, ok := <-sess.Turns():
			if !ok {
				break collect
			}
			conversation = append(conversation, models.ConversationTurn{
				Speaker:   turn.Speaker,
				Text:      turn.Text,
				Timestamp: turn.Timestamp,
				AudioURL:  turn.AudioURL,
			})
			if turn.Speaker == models.SpeakerEvaluator {
				evaluatorTurns++
			}
			r.logEvent(session.EventTurnRecorded, session.TurnData(string(turn.Speaker), turn.Text, len(conversation)))
			r.notifyProgress(ProgressEvent{
				EventType: EventTurnRecorded,
				TestName:  tc.Name,
				Details:   map[string]any{"speaker": string(turn.Speaker), "turn": len(conversation)},
			})
			// Force-end once the budget is spent.
			if evaluatorTurns >= maxTurns {
				break collect
			}
		case <-ctx.Done():
			if len(conversation) == 0 {
				return nil, sess.CallID, fmt.Errorf("call timed out with no conversation: %w", ctx.Err())
			}
			break collect
		}
	}

	if len(conversation) == 0 {
		return nil, sess.CallID, fmt.Errorf("call ended with no conversation")
	}
	return conversation, sess.CallID, nil
}

// evaluate judges the transcript and builds the report.
func (r *Runner) evaluate(ctx context.Context, tc *models.TestCase, conversation []models.ConversationTurn, elapsed time.Duration) (*models.Report, bool, error) {
	catalog := r.cfg.Catalog()
	var persona *models.Persona
	var behavior *models.Behavior
	if catalog != nil {
		persona = catalog.FindPersona(tc.Config.PersonaName)
		behavior = catalog.FindBehavior(tc.Config.BehaviorName)
	}

	evaluator := &cachingEvaluator{judge: r.judge, cache: r.cache}

	gctx := &graders.Context{
		TestCase:      tc,
		Persona:       persona,
		Behavior:      behavior,
		Conversation:  conversation,
		KnowledgeBase: r.cfg.KnowledgeBase(),
		CallDuration:  elapsed,
	}

	var results []*graders.Result
	for _, graderType := range []graders.Type{graders.TypeLLMJudge, graders.TypeResponseTime, graders.TypeTurnLimit} {
		g, err := graders.Create(graderType, string(graderType), nil, evaluator)
		if err != nil {
			return nil, false, err
		}
		res, err := g.Grade(ctx, gctx)
		if err != nil {
			return nil, false, fmt.Errorf("grading: %w", err)
		}
		results = append(results, res)
	}

	report := buildReport(tc, conversation, evaluator.eval, results, elapsed)
	return report, evaluator.cached, nil
}

// buildReport assembles the persisted report from the judge's evaluation and
// the grader verdicts.
func buildReport(tc *models.TestCase, conversation []models.ConversationTurn, eval *judge.Evaluation, results []*graders.Result, elapsed time.Duration) *models.Report {
	metrics := models.EvaluationMetrics{Successful: true}
	feedback := ""

	if eval != nil {
		metrics.Accuracy = eval.Accuracy
		metrics.AccuracyReason = eval.AccuracyExplanation
		metrics.Empathy = eval.Empathy
		metrics.EmpathyReason = eval.EmpathyExplanation
		metrics.ResponseTime = eval.ResponseTime
		metrics.ResponseTimeReason = eval.ResponseTimeExplanation
		feedback = eval.OverallFeedback
	}

	for _, res := range results {
		if !res.Passed {
			metrics.Successful = false
		}
		// Timestamp-derived response time is more trustworthy than the
		// judge's estimate, so it wins when available.
		if res.Kind == graders.TypeResponseTime {
			if avg, ok := res.Details["avg_seconds"].(float64); ok {
				metrics.ResponseTime = avg
				metrics.ResponseTimeReason = res.Feedback
			}
		}
	}

	var recordingURL *string
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].AudioURL != nil {
			recordingURL = conversation[i].AudioURL
			break
		}
	}

	return &models.Report{
		ReportID:            uuid.NewString(),
		TestCaseName:        tc.Name,
		PersonaName:         tc.Config.PersonaName,
		BehaviorName:        tc.Config.BehaviorName,
		Date:                time.Now().UTC(),
		Metrics:             metrics,
		ExecutionTime:       elapsed.Seconds(),
		SpecialInstructions: tc.Config.SpecialInstructions,
		FullRecordingURL:    recordingURL,
		Conversation:        conversation,
		Feedback:            feedback,
	}
}

func (r *Runner) persistReport(ctx context.Context, report *models.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	key := storage.ReportKey(report.ReportID, report.Date)
	if err := r.store.Put(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("persisting report: %w", err)
	}
	return nil
}

// finishFailed writes an unsuccessful report so every run leaves a record,
// even when the call never connected.
func (r *Runner) finishFailed(ctx context.Context, tc *models.TestCase, testID string, startTime time.Time, cause error) TestResult {
	r.log.Error("test failed", "test_case", tc.Name, "test_id", testID, "error", cause)
	r.logEvent(session.EventError, session.ErrorData(cause.Error(), map[string]any{"test_case": tc.Name}))

	msg := cause.Error()
	report := &models.Report{
		ReportID:     uuid.NewString(),
		TestCaseName: tc.Name,
		PersonaName:  tc.Config.PersonaName,
		BehaviorName: tc.Config.BehaviorName,
		Date:         time.Now().UTC(),
		Metrics: models.EvaluationMetrics{
			Successful:   false,
			ErrorMessage: &msg,
		},
		ExecutionTime:       time.Since(startTime).Seconds(),
		SpecialInstructions: tc.Config.SpecialInstructions,
	}

	if err := r.persistReport(ctx, report); err != nil {
		r.log.Error("persisting failure report", "test_case", tc.Name, "error", err)
	}
	if testID != "" {
		if err := r.track.SetReportID(ctx, testID, report.ReportID); err != nil {
			r.log.Warn("recording report ID failed", "test_id", testID, "error", err)
		}
	}

	return TestResult{TestID: testID, Report: report}
}

func (r *Runner) setStatus(ctx context.Context, testID string, status models.ExecutionStatus, message string) {
	if err := r.track.SetStatus(ctx, testID, status, message); err != nil {
		r.log.Warn("status transition failed", "test_id", testID, "status", string(status), "error", err)
	}
	r.logEvent(session.EventStatusChanged, session.StatusData(testID, string(status), message))
}

func (r *Runner) logEvent(t session.EventType, data map[string]any) {
	if err := r.logger.Log(session.NewEvent(t, data)); err != nil {
		r.log.Warn("session log write failed", "error", err)
	}
}

// cachingEvaluator wraps the judge with the evaluation cache and remembers
// the evaluation for report building.
type cachingEvaluator struct {
	judge *judge.Judge
	cache *cache.Cache

	eval   *judge.Evaluation
	cached bool
}

func (e *cachingEvaluator) Evaluate(ctx context.Context, in *judge.Input) (*judge.Evaluation, error) {
	key := ""
	if e.cache != nil {
		k, err := cache.Key(in.TestCase, e.judge.Model(), in.KnowledgeBase, in.Conversation)
		if err == nil {
			key = k
			if eval, ok := e.cache.Get(key); ok {
				e.eval = eval
				e.cached = true
				return eval, nil
			}
		}
	}

	eval, err := e.judge.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	e.eval = eval

	if e.cache != nil && key != "" {
		if err := e.cache.Put(key, eval); err != nil {
			slog.Warn("evaluation cache write failed", "error", err)
		}
	}
	return eval, nil
}
