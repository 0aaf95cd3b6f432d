package webapi

import (
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/statistics"
)

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// PresignResponse carries a time-limited audio URL.
type PresignResponse struct {
	PresignedURL string `json:"presigned_url"`
	ExpiresIn    int    `json:"expires_in"`
}

// CreateTestRequest submits a new test for background execution.
type CreateTestRequest struct {
	Name   string                `json:"name"`
	Config models.TestCaseConfig `json:"config"`
}

// CreateTestResponse acknowledges a submitted test.
type CreateTestResponse struct {
	TestID string `json:"test_id"`
	Status string `json:"status"`
}

// ExportRequest selects reports for an export-with-audio archive.
type ExportRequest struct {
	ReportIDs []string `json:"report_ids"`
}

// PersonasBehaviorsResponse feeds the dashboard's selection dropdowns.
type PersonasBehaviorsResponse struct {
	Personas  []models.Persona  `json:"personas"`
	Behaviors []models.Behavior `json:"behaviors"`
}

// MetricsSummaryResponse is the aggregate KPI response.
type MetricsSummaryResponse struct {
	TotalReports    int                            `json:"total_reports"`
	Successful      int                            `json:"successful"`
	Failed          int                            `json:"failed"`
	SuccessRate     float64                        `json:"success_rate"`
	AvgAccuracy     float64                        `json:"avg_accuracy"`
	AvgEmpathy      float64                        `json:"avg_empathy"`
	AvgResponseTime float64                        `json:"avg_response_time"`
	AccuracyCI      *statistics.ConfidenceInterval `json:"accuracy_ci,omitempty"`
	EmpathyCI       *statistics.ConfidenceInterval `json:"empathy_ci,omitempty"`
}
