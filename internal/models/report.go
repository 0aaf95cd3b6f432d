package models

import (
	"math"
	"time"
)

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerEvaluator Speaker = "evaluator"
	SpeakerAgent     Speaker = "agent"
)

// ConversationTurn is a single utterance in a recorded call.
type ConversationTurn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	AudioURL  *string   `json:"audio_url,omitempty"`
}

// EvaluationMetrics holds the judged scores for one call. Scores are on a
// 0-10 scale. ResponseTime is in seconds when computed from transcript
// timestamps, otherwise the judge's 0-10 estimate.
type EvaluationMetrics struct {
	Accuracy           float64 `json:"accuracy"`
	AccuracyReason     string  `json:"accuracy_explanation,omitempty"`
	Empathy            float64 `json:"empathy"`
	EmpathyReason      string  `json:"empathy_explanation,omitempty"`
	ResponseTime       float64 `json:"response_time"`
	ResponseTimeReason string  `json:"response_time_explanation,omitempty"`
	Successful         bool    `json:"successful"`
	ErrorMessage       *string `json:"error_message,omitempty"`
}

// Report is the complete evaluation result for one test case call.
type Report struct {
	ReportID            string             `json:"report_id"`
	TestCaseName        string             `json:"test_case_name"`
	PersonaName         string             `json:"persona_name"`
	BehaviorName        string             `json:"behavior_name"`
	Date                time.Time          `json:"date"`
	Metrics             EvaluationMetrics  `json:"metrics"`
	ExecutionTime       float64            `json:"execution_time"`
	SpecialInstructions *string            `json:"special_instructions,omitempty"`
	FullRecordingURL    *string            `json:"full_recording_url,omitempty"`
	Conversation        []ConversationTurn `json:"conversation"`
	Feedback            string             `json:"feedback,omitempty"`
}

// ReportSummary is the listing view of a report, without the transcript.
type ReportSummary struct {
	ReportID      string            `json:"report_id"`
	TestCaseName  string            `json:"test_case_name"`
	PersonaName   string            `json:"persona_name"`
	BehaviorName  string            `json:"behavior_name"`
	Date          time.Time         `json:"date"`
	Metrics       EvaluationMetrics `json:"metrics"`
	ExecutionTime float64           `json:"execution_time"`
	TurnCount     int               `json:"turn_count"`
}

// Summary strips a report down to its listing view.
func (r *Report) Summary() ReportSummary {
	return ReportSummary{
		ReportID:      r.ReportID,
		TestCaseName:  r.TestCaseName,
		PersonaName:   r.PersonaName,
		BehaviorName:  r.BehaviorName,
		Date:          r.Date,
		Metrics:       r.Metrics,
		ExecutionTime: r.ExecutionTime,
		TurnCount:     len(r.Conversation),
	}
}

// AggregateReport summarizes a set of reports.
type AggregateReport struct {
	TotalTests      int             `json:"total_tests"`
	Successful      int             `json:"successful"`
	Failed          int             `json:"failed"`
	SuccessRate     float64         `json:"success_rate"`
	AvgAccuracy     float64         `json:"avg_accuracy"`
	AvgEmpathy      float64         `json:"avg_empathy"`
	AvgResponseTime float64         `json:"avg_response_time"`
	Reports         []ReportSummary `json:"reports,omitempty"`
}

// ComputeAggregate builds an AggregateReport over the given reports.
// Averages only cover successful evaluations.
func ComputeAggregate(reports []Report) AggregateReport {
	agg := AggregateReport{TotalTests: len(reports)}
	var accSum, empSum, rtSum float64
	for _, r := range reports {
		agg.Reports = append(agg.Reports, r.Summary())
		if r.Metrics.Successful {
			agg.Successful++
			accSum += r.Metrics.Accuracy
			empSum += r.Metrics.Empathy
			rtSum += r.Metrics.ResponseTime
		} else {
			agg.Failed++
		}
	}
	if agg.TotalTests > 0 {
		agg.SuccessRate = float64(agg.Successful) / float64(agg.TotalTests)
	}
	if agg.Successful > 0 {
		n := float64(agg.Successful)
		agg.AvgAccuracy = accSum / n
		agg.AvgEmpathy = empSum / n
		agg.AvgResponseTime = rtSum / n
	}
	return agg
}

// ComputeStdDev returns the population standard deviation for a slice of float64 values.
func ComputeStdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(n))
}
