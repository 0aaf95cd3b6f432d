package models

import "time"

// ExecutionStatus tracks a test execution through its lifecycle.
type ExecutionStatus string

const (
	StatusStarting       ExecutionStatus = "starting"
	StatusWaitingForCall ExecutionStatus = "waiting_for_call"
	StatusInProgress     ExecutionStatus = "in_progress"
	StatusProcessing     ExecutionStatus = "processing"
	StatusCompleted      ExecutionStatus = "completed"
	StatusFailed         ExecutionStatus = "failed"
)

// Terminal reports whether no further status transitions are allowed.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ExecutionDetail is one entry in a test execution's audit trail.
type ExecutionDetail struct {
	Timestamp time.Time       `json:"timestamp"`
	Status    ExecutionStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
}

// TestExecution is the tracked state of one submitted test.
type TestExecution struct {
	TestID    string            `json:"test_id"`
	TestCase  TestCase          `json:"test_case"`
	Status    ExecutionStatus   `json:"status"`
	CallID    string            `json:"call_id,omitempty"`
	ReportID  string            `json:"report_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Details   []ExecutionDetail `json:"execution_details"`
	Error     string            `json:"error,omitempty"`
}
