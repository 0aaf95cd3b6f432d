package webserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/webapi"
)

// SingleRunner executes one tracked test and returns its report.
// *orchestration.Runner satisfies it.
type SingleRunner interface {
	RunSingle(ctx context.Context, exec *models.TestExecution) *models.Report
}

// Launcher runs dashboard-submitted tests in the background and invalidates
// the report store when they finish. It satisfies webapi.TestLauncher.
type Launcher struct {
	runner  SingleRunner
	reports *webapi.ObjectReportStore
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewLauncher creates a launcher over the given runner. reports may be nil
// when no store needs invalidating.
func NewLauncher(runner SingleRunner, reports *webapi.ObjectReportStore, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		runner:  runner,
		reports: reports,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Launch starts the execution in the background.
func (l *Launcher) Launch(exec *models.TestExecution) {
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.cancels[exec.TestID] = cancel
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			delete(l.cancels, exec.TestID)
			l.mu.Unlock()
			cancel()
		}()

		l.logger.Info("starting background test", "test_id", exec.TestID, "name", exec.TestCase.Name)
		report := l.runner.RunSingle(ctx, exec)
		if report != nil {
			l.logger.Info("background test finished",
				"test_id", exec.TestID,
				"report_id", report.ReportID,
				"successful", report.Metrics.Successful)
		}
		if l.reports != nil {
			l.reports.Invalidate()
		}
	}()
}

// Cancel stops an in-flight execution. It reports whether the test was
// running.
func (l *Launcher) Cancel(testID string) bool {
	l.mu.Lock()
	cancel, ok := l.cancels[testID]
	l.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until all launched tests have finished. Used during shutdown.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
