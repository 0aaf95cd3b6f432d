package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/reporting"
	"github.com/dialcheck/dialcheck/internal/storage"
	"github.com/dialcheck/dialcheck/internal/tracker"
)

// Version is set at build time or defaults to dev.
var Version = "0.3.0"

// DefaultPresignExpiry is how long presigned audio URLs remain valid.
const DefaultPresignExpiry = 15 * time.Minute

// exportFetchLimit bounds concurrent audio downloads during export.
const exportFetchLimit = 4

// TestLauncher starts and cancels background test executions. The web server
// implements it by handing executions to the orchestration runner.
type TestLauncher interface {
	// Launch starts the execution in the background.
	Launch(exec *models.TestExecution)
	// Cancel stops an in-flight execution. It reports whether the test was
	// running.
	Cancel(testID string) bool
}

// HandlersConfig configures the web API handlers.
type HandlersConfig struct {
	Reports ReportStore
	Objects storage.ObjectStore
	Tracker *tracker.Tracker
	Catalog *models.Catalog

	// Launcher is optional; without it POST /api/tests only records the
	// submission.
	Launcher TestLauncher

	// StorageAccount and StorageContainer scope which blob URLs the presign
	// endpoint will sign. Local mode leaves them empty and relies on
	// local:// URLs.
	StorageAccount   string
	StorageContainer string

	PresignExpiry time.Duration
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	reports   ReportStore
	objects   storage.ObjectStore
	track     *tracker.Tracker
	catalog   *models.Catalog
	launcher  TestLauncher
	account   string
	container string
	expiry    time.Duration
}

// NewHandlers creates the handlers from the given config.
func NewHandlers(cfg HandlersConfig) *Handlers {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &Handlers{
		reports:   cfg.Reports,
		objects:   cfg.Objects,
		track:     cfg.Tracker,
		catalog:   cfg.Catalog,
		launcher:  cfg.Launcher,
		account:   cfg.StorageAccount,
		container: cfg.StorageContainer,
		expiry:    expiry,
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleReports returns report summaries, newest first. An optional
// date=yyyymmdd query param filters to one day.
func (h *Handlers) HandleReports(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" && !validDate(date) {
		writeError(w, http.StatusBadRequest, "date must be yyyymmdd")
		return
	}

	summaries, err := h.reports.List(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleReportDetail returns one full report.
func (h *Handlers) HandleReportDetail(w http.ResponseWriter, r *http.Request) {
	report, ok := h.getReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleReportHTML renders one report as a standalone HTML page.
func (h *Handlers) HandleReportHTML(w http.ResponseWriter, r *http.Request) {
	report, ok := h.getReport(w, r)
	if !ok {
		return
	}

	page, err := reporting.RenderHTML(report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page) //nolint:errcheck
}

// HandleReportDelete removes a report.
func (h *Handlers) HandleReportDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "report id is required")
		return
	}

	if err := h.reports.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAggregate returns an aggregate report, optionally for one day.
func (h *Handlers) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" && !validDate(date) {
		writeError(w, http.StatusBadRequest, "date must be yyyymmdd")
		return
	}

	agg, err := h.reports.Aggregate(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// HandleMetricsSummary returns dashboard KPIs across all reports.
func (h *Handlers) HandleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandlePresignAudioURL exchanges a stored audio URL for a time-limited one.
// URLs outside the configured storage account and container are rejected.
func (h *Handlers) HandlePresignAudioURL(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("s3_url")
	if raw == "" {
		raw = r.URL.Query().Get("url")
	}
	if raw == "" {
		writeError(w, http.StatusBadRequest, "s3_url query param is required")
		return
	}

	parsed, err := storage.ParseStorageURL(raw, h.account, h.container)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	signed, err := h.objects.PresignURL(r.Context(), parsed.Key, h.expiry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PresignResponse{
		PresignedURL: signed,
		ExpiresIn:    int(h.expiry.Seconds()),
	})
}

// HandleExportWithAudio streams a zip of the selected reports plus their
// per-turn audio.
func (h *Handlers) HandleExportWithAudio(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ReportIDs) == 0 {
		writeError(w, http.StatusBadRequest, "report_ids is required")
		return
	}

	reports := make([]*models.Report, 0, len(req.ReportIDs))
	for _, id := range req.ReportIDs {
		report, err := h.reports.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, ErrReportNotFound) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("report %s not found", id))
			} else {
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		reports = append(reports, report)
	}

	audio, missing, err := h.fetchAudio(r, reports)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="reports-export.zip"`)
	w.WriteHeader(http.StatusOK)
	reporting.WriteExportZip(w, reports, audio, missing) //nolint:errcheck
}

// fetchAudio downloads every turn's audio for the given reports. Audio that
// is gone or whose URL does not resolve to our store is reported as missing
// rather than failing the whole export.
func (h *Handlers) fetchAudio(r *http.Request, reports []*models.Report) ([]reporting.ExportAudioFile, []string, error) {
	type job struct {
		path string
		key  string
	}
	var jobs []job
	var missing []string
	for _, report := range reports {
		for i, turn := range report.Conversation {
			if turn.AudioURL == nil {
				continue
			}
			path := fmt.Sprintf("audio/%s/%02d_%s.wav", report.ReportID, i+1, turn.Speaker)
			parsed, err := storage.ParseStorageURL(*turn.AudioURL, h.account, h.container)
			if err != nil {
				missing = append(missing, path)
				continue
			}
			jobs = append(jobs, job{path: path, key: parsed.Key})
		}
	}

	files := make([]reporting.ExportAudioFile, len(jobs))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(exportFetchLimit)
	for i, j := range jobs {
		g.Go(func() error {
			data, err := h.objects.Get(ctx, j.key)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return nil
				}
				return err
			}
			files[i] = reporting.ExportAudioFile{Path: j.path, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := files[:0]
	for i, f := range files {
		if f.Path == "" {
			missing = append(missing, jobs[i].path)
			continue
		}
		out = append(out, f)
	}
	return out, missing, nil
}

// HandleCreateTest records a new test and starts it in the background.
func (h *Handlers) HandleCreateTest(w http.ResponseWriter, r *http.Request) {
	var req CreateTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Config.Question == "" {
		writeError(w, http.StatusBadRequest, "config.question is required")
		return
	}
	if h.catalog.FindPersona(req.Config.PersonaName) == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown persona %q", req.Config.PersonaName))
		return
	}
	if h.catalog.FindBehavior(req.Config.BehaviorName) == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown behavior %q", req.Config.BehaviorName))
		return
	}
	if req.Config.MaxTurns <= 0 {
		req.Config.MaxTurns = models.DefaultMaxTurns
	}

	exec, err := h.track.Create(r.Context(), models.TestCase{
		Name:   req.Name,
		Config: req.Config,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.launcher != nil {
		h.launcher.Launch(exec)
	}

	writeJSON(w, http.StatusAccepted, CreateTestResponse{
		TestID: exec.TestID,
		Status: string(exec.Status),
	})
}

// HandleTests lists tracked test executions, newest first.
func (h *Handlers) HandleTests(w http.ResponseWriter, r *http.Request) {
	execs, err := h.track.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sort.SliceStable(execs, func(i, j int) bool {
		return execs[i].CreatedAt.After(execs[j].CreatedAt)
	})
	writeJSON(w, http.StatusOK, execs)
}

// HandleTestDetail returns one tracked execution with its audit trail.
func (h *Handlers) HandleTestDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "test id is required")
		return
	}

	exec, err := h.track.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			writeError(w, http.StatusNotFound, "test not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// HandleTestDelete cancels a running test, then removes its tracked state and
// stored objects.
func (h *Handlers) HandleTestDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "test id is required")
		return
	}

	if h.launcher != nil {
		h.launcher.Cancel(id)
	}

	if err := h.track.Delete(r.Context(), id); err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			writeError(w, http.StatusNotFound, "test not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePersonasBehaviors returns the catalogs the dashboard's dropdowns use.
func (h *Handlers) HandlePersonasBehaviors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PersonasBehaviorsResponse{
		Personas:  h.catalog.Personas,
		Behaviors: h.catalog.Behaviors,
	})
}

// getReport resolves the {id} path value to a report, writing the error
// response itself on failure.
func (h *Handlers) getReport(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "report id is required")
		return nil, false
	}

	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return report, true
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/reports", h.HandleReports)
	mux.HandleFunc("GET /api/reports/aggregate", h.HandleAggregate)
	mux.HandleFunc("GET /api/reports/presigned-audio-url", h.HandlePresignAudioURL)
	mux.HandleFunc("POST /api/reports/export-with-audio", h.HandleExportWithAudio)
	mux.HandleFunc("GET /api/reports/{id}", h.HandleReportDetail)
	mux.HandleFunc("GET /api/reports/{id}/html", h.HandleReportHTML)
	mux.HandleFunc("DELETE /api/reports/{id}", h.HandleReportDelete)
	mux.HandleFunc("GET /api/metrics-summary", h.HandleMetricsSummary)
	mux.HandleFunc("POST /api/tests", h.HandleCreateTest)
	mux.HandleFunc("GET /api/tests", h.HandleTests)
	mux.HandleFunc("GET /api/tests/{id}", h.HandleTestDetail)
	mux.HandleFunc("DELETE /api/tests/{id}", h.HandleTestDelete)
	mux.HandleFunc("GET /api/personas-behaviors", h.HandlePersonasBehaviors)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validDate reports whether s is a yyyymmdd date.
func validDate(s string) bool {
	_, err := time.Parse("20060102", s)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
