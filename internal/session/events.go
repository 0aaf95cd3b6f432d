package session

import "time"

// EventType identifies the kind of session event.
type EventType string

const (
	EventSuiteStart    EventType = "suite_start"
	EventSuiteEnd      EventType = "suite_complete"
	EventCallStart     EventType = "call_started"
	EventCallEnd       EventType = "call_ended"
	EventTurnRecorded  EventType = "turn_recorded"
	EventStatusChanged EventType = "status_changed"
	EventEvaluation    EventType = "evaluation_completed"
	EventError         EventType = "error"
)

// Event is a single timestamped entry in a session log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Data:      data,
	}
}

// SuiteStartData returns event data for a suite start.
func SuiteStartData(suiteName, engine, judgeModel string, testCount int) map[string]any {
	return map[string]any{
		"suite":       suiteName,
		"engine":      engine,
		"judge_model": judgeModel,
		"test_count":  testCount,
	}
}

// SuiteCompleteData returns event data for a suite end.
func SuiteCompleteData(totalTests, successful, failed int, durationMs int64) map[string]any {
	return map[string]any{
		"total_tests": totalTests,
		"successful":  successful,
		"failed":      failed,
		"duration_ms": durationMs,
	}
}

// CallStartData returns event data for a call start.
func CallStartData(testCase, testID, callID string) map[string]any {
	return map[string]any{
		"test_case": testCase,
		"test_id":   testID,
		"call_id":   callID,
	}
}

// CallEndData returns event data for a call end.
func CallEndData(testCase string, turns int, durationMs int64) map[string]any {
	return map[string]any{
		"test_case":   testCase,
		"turns":       turns,
		"duration_ms": durationMs,
	}
}

// TurnData returns event data for a recorded conversation turn.
func TurnData(speaker, text string, turnNum int) map[string]any {
	return map[string]any{
		"speaker":  speaker,
		"text":     text,
		"turn_num": turnNum,
	}
}

// StatusData returns event data for a test status transition.
func StatusData(testID, status, message string) map[string]any {
	return map[string]any{
		"test_id": testID,
		"status":  status,
		"message": message,
	}
}

// EvaluationData returns event data for a completed evaluation.
func EvaluationData(testCase string, accuracy, empathy, responseTime float64, successful bool) map[string]any {
	return map[string]any{
		"test_case":     testCase,
		"accuracy":      accuracy,
		"empathy":       empathy,
		"response_time": responseTime,
		"successful":    successful,
	}
}

// ErrorData returns event data for an error.
func ErrorData(message string, details map[string]any) map[string]any {
	d := map[string]any{
		"message": message,
	}
	for k, v := range details {
		d[k] = v
	}
	return d
}
