package main

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/orchestration"
)

// captureStdout redirects os.Stdout and returns captured output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	fn()

	if err := w.Close(); err != nil {
		t.Fatalf("close pipe writer: %v", err)
	}
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return buf.String()
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2s", formatDuration(2*time.Second))
	assert.Equal(t, "1m30s", formatDuration(90*time.Second))
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", truncateName("short", 10))
	assert.Equal(t, "exactly-te", truncateName("exactly-te", 10))
	assert.Equal(t, "much-too-…", truncateName("much-too-long-name", 10))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "abc   ", padRight("abc", 6))
	assert.Equal(t, "toolong", padRight("toolong", 3))
}

func TestVerboseListener_TestComplete(t *testing.T) {
	out := captureStdout(t, func() {
		verboseProgressListener(orchestration.ProgressEvent{
			EventType:  orchestration.EventTestComplete,
			TestName:   "billing-dispute",
			TestNum:    2,
			TotalTests: 3,
			Successful: true,
			DurationMs: 4200,
		})
	})
	assert.Contains(t, out, "[2/3]")
	assert.Contains(t, out, "billing-dispute")
	assert.Contains(t, out, "PASS")
}

func TestVerboseListener_TestFailed(t *testing.T) {
	out := captureStdout(t, func() {
		verboseProgressListener(orchestration.ProgressEvent{
			EventType:  orchestration.EventTestComplete,
			TestName:   "refund-request",
			TestNum:    1,
			TotalTests: 1,
			Successful: false,
			DurationMs: 900,
		})
	})
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "900ms")
}

func TestVerboseListener_TurnRecorded(t *testing.T) {
	out := captureStdout(t, func() {
		verboseProgressListener(orchestration.ProgressEvent{
			EventType:  orchestration.EventTurnRecorded,
			TestName:   "billing-dispute",
			TestNum:    1,
			TotalTests: 1,
			Details:    map[string]any{"speaker": "agent"},
		})
	})
	assert.Contains(t, out, "turn recorded (agent)")
}

func TestPrintTestLines(t *testing.T) {
	result := &orchestration.SuiteResult{
		Results: []orchestration.TestResult{
			{
				TestID: "t-1",
				Report: &models.Report{
					TestCaseName: "billing-dispute",
					Metrics: models.EvaluationMetrics{
						Accuracy: 8.5, Empathy: 7.0, ResponseTime: 9.0, Successful: true,
					},
				},
				Cached: true,
			},
			{
				TestID: "t-2",
				Report: &models.Report{
					TestCaseName: "refund-request",
					Metrics:      models.EvaluationMetrics{Successful: false},
				},
			},
		},
	}

	out := captureStdout(t, func() { printTestLines(result) })

	assert.Contains(t, out, "✓ billing-dispute")
	assert.Contains(t, out, "(cached)")
	assert.Contains(t, out, "✗ refund-request")
}

func TestPrintSuiteSummary(t *testing.T) {
	result := &orchestration.SuiteResult{
		SuiteName:  "smoke",
		DurationMs: 12500,
		Stats: orchestration.SuiteStats{
			TotalTests: 4,
			Successful: 3,
			Failed:     1,
			PassRate:   0.75,
			Accuracy:   orchestration.MetricStats{Avg: 8.2, Min: 7.0, Max: 9.5, StdDev: 1.02},
			Empathy:    orchestration.MetricStats{Avg: 7.1, Min: 6.0, Max: 8.0, StdDev: 0.81},
		},
	}

	out := captureStdout(t, func() { printSuiteSummary(result) })

	assert.Contains(t, out, "Suite: smoke")
	assert.Contains(t, out, "4 total, 3 passed, 1 failed")
	assert.Contains(t, out, "75.0% pass rate")
	assert.Contains(t, out, "Accuracy")
	assert.Contains(t, out, "8.20")
	assert.Contains(t, out, "Response time")
}

func TestPrintSuiteSummary_AllFailed(t *testing.T) {
	result := &orchestration.SuiteResult{
		SuiteName: "smoke",
		Stats: orchestration.SuiteStats{
			TotalTests: 1,
			Failed:     1,
		},
	}

	out := captureStdout(t, func() { printSuiteSummary(result) })

	assert.Contains(t, out, "1 total, 0 passed, 1 failed")
	assert.NotContains(t, out, "Accuracy")
}
