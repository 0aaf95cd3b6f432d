package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dialcheck/dialcheck/internal/bridge"
	"github.com/dialcheck/dialcheck/internal/cache"
	"github.com/dialcheck/dialcheck/internal/call"
	"github.com/dialcheck/dialcheck/internal/config"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/orchestration"
	"github.com/dialcheck/dialcheck/internal/projectconfig"
	"github.com/dialcheck/dialcheck/internal/reporting"
	"github.com/dialcheck/dialcheck/internal/session"
	"github.com/dialcheck/dialcheck/internal/spinner"
)

var (
	runCatalogPath string
	runKBPath      string
	runEngineType  string
	runJudgeModel  string
	runConcurrency int
	runTimeoutSec  int
	runFailFast    bool
	runVerbose     bool
	runEnableCache bool
	runNoCache     bool
	runCacheDir    string
	runOutputPath  string
	runJUnitPath   string
	runSessionLog  string
	runLocal       bool
	runDataDir     string
	runToNumber    string
	runPublicHost  string
	runPort        int
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run a test suite against the agent",
		Long: `Run a test suite of simulated calls against the agent.

Each test case dials the agent (or a mock engine for local development),
records the conversation, and has the LLM judge score it. Reports are written
to object storage and summarized on stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&runCatalogPath, "catalog", "", "Persona/behavior catalog (default: from .dialcheck.yaml)")
	cmd.Flags().StringVar(&runKBPath, "knowledge-base", "", "Knowledge base YAML (default: from .dialcheck.yaml)")
	cmd.Flags().StringVar(&runEngineType, "engine", "", "Call engine: twilio or mock (default: from .dialcheck.yaml)")
	cmd.Flags().StringVar(&runJudgeModel, "judge-model", "", "Judge model (default: from .dialcheck.yaml)")
	cmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Concurrent calls (default: from .dialcheck.yaml)")
	cmd.Flags().IntVar(&runTimeoutSec, "timeout", 0, "Per-call timeout in seconds (default: from .dialcheck.yaml)")
	cmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop the suite on the first failed call")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose output with per-turn progress")
	cmd.Flags().BoolVar(&runEnableCache, "cache", false, "Enable evaluation caching")
	cmd.Flags().BoolVar(&runNoCache, "no-cache", false, "Disable evaluation caching")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Evaluation cache directory (default: from .dialcheck.yaml)")
	cmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "Write the suite result as JSON to this file")
	cmd.Flags().StringVar(&runJUnitPath, "junit", "", "Write a JUnit XML report to this file")
	cmd.Flags().StringVar(&runSessionLog, "session-log", "", "Write a session event log (NDJSON) to this file")
	cmd.Flags().BoolVar(&runLocal, "local", false, "Force local storage even when cloud credentials are set")
	cmd.Flags().StringVar(&runDataDir, "data-dir", "", "Local storage directory (default: .dialcheck-data)")
	cmd.Flags().StringVar(&runToNumber, "to", "", "Agent phone number to dial (default: $TARGET_PHONE_NUMBER)")
	cmd.Flags().StringVar(&runPublicHost, "public-host", "", "Public hostname Twilio can reach for the media stream")
	cmd.Flags().IntVar(&runPort, "port", 0, "Media-stream listen port for twilio runs (default: from .dialcheck.yaml)")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	suitePath := args[0]

	pc, err := projectconfig.Load(filepath.Dir(suitePath))
	if err != nil {
		return err
	}
	settings := config.LoadSettings()
	applyRunDefaults(pc)
	if runJudgeModel == "" {
		runJudgeModel = settings.OpenAIModel
	}
	if runPublicHost == "" {
		runPublicHost = pc.Server.PublicHost
	}
	if runPublicHost == "" {
		runPublicHost = settings.PublicHost
	}

	suite, err := models.LoadSuite(suitePath)
	if err != nil {
		return fmt.Errorf("failed to load suite: %w", err)
	}
	catalog, err := models.LoadCatalog(runCatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	var kb *models.KnowledgeBase
	if _, statErr := os.Stat(runKBPath); statErr == nil {
		kb, err = models.LoadKnowledgeBase(runKBPath)
		if err != nil {
			return fmt.Errorf("failed to load knowledge base: %w", err)
		}
	}

	backend, err := newStorageBackend(settings, runDataDir, runLocal)
	if err != nil {
		return err
	}

	j, err := newJudge(settings, runJudgeModel)
	if err != nil {
		return err
	}

	cfg := config.New(suite,
		config.WithCatalog(catalog),
		config.WithKnowledgeBase(kb),
		config.WithJudgeModel(runJudgeModel),
		config.WithEngineType(runEngineType),
		config.WithMaxConcurrent(runConcurrency),
		config.WithTimeout(runTimeoutSec),
		config.WithFailFast(runFailFast),
		config.WithVerbose(runVerbose),
		config.WithSessionLog(runSessionLog),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := bridge.NewRegistry()
	runnerOpts := []orchestration.RunnerOption{
		orchestration.WithJudge(j),
		orchestration.WithStore(backend.store),
		orchestration.WithRegistry(registry),
	}

	switch runEngineType {
	case "mock":
		runnerOpts = append(runnerOpts, orchestration.WithEngine(call.NewMockEngine(registry, backend.store)))

	case "twilio":
		sid, token, from, err := twilioCreds(settings)
		if err != nil {
			return err
		}
		to := runToNumber
		if to == "" {
			to = settings.TargetPhone
		}
		if to == "" {
			return fmt.Errorf("no target number: set --to or TARGET_PHONE_NUMBER")
		}
		if runPublicHost == "" {
			return fmt.Errorf("twilio engine requires --public-host or PUBLIC_HOST so the media stream can reach this machine")
		}

		streamSrv := startMediaStreamServer(registry, backend, runPort)
		defer shutdownMediaStreamServer(streamSrv)

		runnerOpts = append(runnerOpts,
			orchestration.WithEngine(call.NewTwilioEngine(sid, token, from)),
			orchestration.WithDialNumbers(to, from),
			orchestration.WithStreamURL(fmt.Sprintf("wss://%s/media-stream", runPublicHost)),
		)

	default:
		return fmt.Errorf("unknown engine type: %s (supported: twilio, mock)", runEngineType)
	}

	if runEnableCache && !runNoCache {
		absCacheDir, err := filepath.Abs(runCacheDir)
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		runnerOpts = append(runnerOpts, orchestration.WithCache(cache.New(absCacheDir)))
		if runVerbose {
			fmt.Printf("Cache enabled: %s\n", absCacheDir)
		}
	}

	if runSessionLog != "" {
		sessionLogger, err := session.NewJSONLogger(runSessionLog)
		if err != nil {
			return fmt.Errorf("opening session log: %w", err)
		}
		defer sessionLogger.Close() //nolint:errcheck
		runnerOpts = append(runnerOpts, orchestration.WithSessionLogger(sessionLogger))
	}

	runner := orchestration.NewRunner(cfg, runnerOpts...)

	fmt.Printf("Running suite: %s\n", suite.Name)
	fmt.Printf("Engine: %s\n", runEngineType)
	fmt.Printf("Judge model: %s\n", j.Model())
	if runConcurrency > 1 {
		fmt.Printf("Concurrency: %d\n", runConcurrency)
	}
	fmt.Println()

	var stopSpinner func()
	if runVerbose {
		runner.OnProgress(verboseProgressListener)
	} else {
		stopSpinner = spinner.Start(os.Stderr, fmt.Sprintf("dialing %d test case(s)...", len(suite.TestCases)))
	}

	result, err := runner.Run(ctx)
	if stopSpinner != nil {
		stopSpinner()
	}
	if err != nil {
		return fmt.Errorf("suite failed: %w", err)
	}

	if !runVerbose {
		printTestLines(result)
	}
	printSuiteSummary(result)

	if runOutputPath != "" {
		if err := saveSuiteResult(result, runOutputPath); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("Results saved to: %s\n", runOutputPath)
	}
	if runJUnitPath != "" {
		if err := reporting.WriteJUnitFile(runJUnitPath, reporting.ConvertToJUnit(result)); err != nil {
			return fmt.Errorf("failed to write junit report: %w", err)
		}
		fmt.Printf("JUnit report saved to: %s\n", runJUnitPath)
	}

	if result.Stats.Failed > 0 {
		return &TestFailureError{
			Message: fmt.Sprintf("suite completed with %d failed call(s)", result.Stats.Failed),
		}
	}
	return nil
}

// applyRunDefaults fills unset flags from the project config.
func applyRunDefaults(pc *projectconfig.ProjectConfig) {
	if runCatalogPath == "" {
		runCatalogPath = pc.Paths.Catalog
	}
	if runKBPath == "" {
		runKBPath = pc.Paths.KnowledgeBase
	}
	if runEngineType == "" {
		runEngineType = pc.Defaults.Engine
	}
	if runJudgeModel == "" {
		runJudgeModel = pc.Defaults.JudgeModel
	}
	if runConcurrency == 0 {
		runConcurrency = pc.Defaults.Concurrency
	}
	if runTimeoutSec == 0 {
		runTimeoutSec = pc.Defaults.Timeout
	}
	if runCacheDir == "" {
		runCacheDir = pc.Cache.Dir
	}
	if runPort == 0 {
		runPort = pc.Server.Port
	}
	if pc.Defaults.Verbose != nil && *pc.Defaults.Verbose {
		runVerbose = true
	}
	if pc.Defaults.LocalMode != nil && *pc.Defaults.LocalMode {
		runLocal = true
	}
	if pc.Cache.Enabled != nil && *pc.Cache.Enabled {
		runEnableCache = true
	}
}

// startMediaStreamServer serves the Twilio media-stream websocket during a
// run, so the bridge can receive call audio without the full dashboard.
func startMediaStreamServer(registry *bridge.Registry, backend *storageBackend, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /media-stream", bridge.NewHandler(bridge.HandlerConfig{
		Registry: registry,
		Store:    backend.store,
	}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "media-stream server error: %v\n", err)
		}
	}()
	return srv
}

func shutdownMediaStreamServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx) //nolint:errcheck
}

// saveSuiteResult writes the suite result as indented JSON.
func saveSuiteResult(result *orchestration.SuiteResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
