package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/statistics"
	"github.com/dialcheck/dialcheck/internal/storage"
)

// ErrReportNotFound is returned when a report ID does not match any stored report.
var ErrReportNotFound = errors.New("report not found")

// ReportStore provides access to evaluation reports.
type ReportStore interface {
	// List returns report summaries, newest first. date filters to one
	// yyyymmdd day when non-empty.
	List(ctx context.Context, date string) ([]models.ReportSummary, error)
	// Get returns one full report.
	Get(ctx context.Context, id string) (*models.Report, error)
	// Delete removes a report.
	Delete(ctx context.Context, id string) error
	// Aggregate summarizes reports, optionally for one yyyymmdd day.
	Aggregate(ctx context.Context, date string) (*models.AggregateReport, error)
	// Summary returns the dashboard KPI metrics.
	Summary(ctx context.Context) (*MetricsSummaryResponse, error)
}

// ObjectReportStore reads report JSON from the object store, keeping an
// in-memory index that survives until Invalidate.
type ObjectReportStore struct {
	objects storage.ObjectStore

	mu      sync.RWMutex
	reports map[string]*models.Report
	keys    map[string]string
	loaded  bool
}

// NewObjectReportStore creates a store over the given backend.
func NewObjectReportStore(objects storage.ObjectStore) *ObjectReportStore {
	return &ObjectReportStore{
		objects: objects,
		reports: make(map[string]*models.Report),
		keys:    make(map[string]string),
	}
}

// load reads every stored report. Unreadable objects are skipped.
func (s *ObjectReportStore) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.objects.List(ctx, storage.ReportsPrefix(time.Time{}))
	if err != nil {
		return err
	}

	s.reports = make(map[string]*models.Report, len(keys))
	s.keys = make(map[string]string, len(keys))

	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := s.objects.Get(ctx, key)
		if err != nil {
			continue
		}
		var report models.Report
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		if report.ReportID == "" {
			continue
		}
		s.reports[report.ReportID] = &report
		s.keys[report.ReportID] = key
	}

	s.loaded = true
	return nil
}

func (s *ObjectReportStore) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	if s.loaded {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()
	return s.load(ctx)
}

// Invalidate forces the next read to reload from the backend. Called after a
// background test finishes so new reports show up.
func (s *ObjectReportStore) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// List returns summaries, newest first.
func (s *ObjectReportStore) List(ctx context.Context, date string) ([]models.ReportSummary, error) {
	reports, err := s.snapshot(ctx, date)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ReportSummary, 0, len(reports))
	for _, r := range reports {
		summaries = append(summaries, r.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Date.After(summaries[j].Date)
	})
	return summaries, nil
}

// Get returns one report, reloading once on a miss so reports written after
// the last load are still found.
func (s *ObjectReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	report, ok := s.reports[id]
	s.mu.RUnlock()
	if ok {
		return report, nil
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if report, ok := s.reports[id]; ok {
		return report, nil
	}
	return nil, ErrReportNotFound
}

// Delete removes the report from the backend and the index.
func (s *ObjectReportStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	key := s.keys[id]
	delete(s.reports, id)
	delete(s.keys, id)
	s.mu.Unlock()

	if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Aggregate summarizes the stored reports.
func (s *ObjectReportStore) Aggregate(ctx context.Context, date string) (*models.AggregateReport, error) {
	reports, err := s.snapshot(ctx, date)
	if err != nil {
		return nil, err
	}
	values := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		values = append(values, *r)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Date.After(values[j].Date)
	})
	agg := models.ComputeAggregate(values)
	return &agg, nil
}

// Summary computes dashboard KPIs with bootstrap confidence intervals over
// the successful reports.
func (s *ObjectReportStore) Summary(ctx context.Context) (*MetricsSummaryResponse, error) {
	reports, err := s.snapshot(ctx, "")
	if err != nil {
		return nil, err
	}

	resp := &MetricsSummaryResponse{TotalReports: len(reports)}
	var accuracy, empathy []float64
	var accSum, empSum, rtSum float64
	for _, r := range reports {
		if !r.Metrics.Successful {
			resp.Failed++
			continue
		}
		resp.Successful++
		accuracy = append(accuracy, r.Metrics.Accuracy)
		empathy = append(empathy, r.Metrics.Empathy)
		accSum += r.Metrics.Accuracy
		empSum += r.Metrics.Empathy
		rtSum += r.Metrics.ResponseTime
	}

	if resp.TotalReports > 0 {
		resp.SuccessRate = float64(resp.Successful) / float64(resp.TotalReports)
	}
	if resp.Successful > 0 {
		n := float64(resp.Successful)
		resp.AvgAccuracy = accSum / n
		resp.AvgEmpathy = empSum / n
		resp.AvgResponseTime = rtSum / n
	}
	if len(accuracy) >= 2 {
		accCI := statistics.BootstrapCI(accuracy, 0.95)
		empCI := statistics.BootstrapCI(empathy, 0.95)
		resp.AccuracyCI = &accCI
		resp.EmpathyCI = &empCI
	}

	return resp, nil
}

// snapshot returns the loaded reports, filtered by yyyymmdd date when set.
func (s *ObjectReportStore) snapshot(ctx context.Context, date string) ([]*models.Report, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if date != "" && r.Date.UTC().Format("20060102") != date {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
