package orchestration

import (
	"math"
	"time"

	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/statistics"
)

// TestResult is the outcome of one test case run.
type TestResult struct {
	TestID string
	Report *models.Report
	Cached bool
}

// SuiteResult is the outcome of a full suite run.
type SuiteResult struct {
	SuiteName  string
	StartedAt  time.Time
	DurationMs int64
	Results    []TestResult
	Stats      SuiteStats
}

// MetricStats summarizes one metric across successful tests.
type MetricStats struct {
	Avg    float64
	Min    float64
	Max    float64
	StdDev float64
	CI     statistics.ConfidenceInterval
}

// SuiteStats aggregates a suite run.
type SuiteStats struct {
	TotalTests   int
	Successful   int
	Failed       int
	PassRate     float64
	Accuracy     MetricStats
	Empathy      MetricStats
	ResponseTime MetricStats
}

// ComputeSuiteStats aggregates metrics over the successful tests. Failed
// tests count against the pass rate but contribute no scores.
func ComputeSuiteStats(results []TestResult) SuiteStats {
	stats := SuiteStats{TotalTests: len(results)}

	var accuracy, empathy, responseTime []float64
	for _, res := range results {
		if res.Report == nil || !res.Report.Metrics.Successful {
			stats.Failed++
			continue
		}
		stats.Successful++
		accuracy = append(accuracy, res.Report.Metrics.Accuracy)
		empathy = append(empathy, res.Report.Metrics.Empathy)
		responseTime = append(responseTime, res.Report.Metrics.ResponseTime)
	}

	if stats.TotalTests > 0 {
		stats.PassRate = float64(stats.Successful) / float64(stats.TotalTests)
	}

	stats.Accuracy = computeMetricStats(accuracy)
	stats.Empathy = computeMetricStats(empathy)
	stats.ResponseTime = computeMetricStats(responseTime)

	return stats
}

func computeMetricStats(values []float64) MetricStats {
	if len(values) == 0 {
		return MetricStats{}
	}

	m := MetricStats{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
	sum := 0.0
	for _, v := range values {
		sum += v
		m.Min = math.Min(m.Min, v)
		m.Max = math.Max(m.Max, v)
	}
	m.Avg = sum / float64(len(values))
	m.StdDev = models.ComputeStdDev(values)
	m.CI = statistics.BootstrapCI(values, 0.95)

	return m
}
