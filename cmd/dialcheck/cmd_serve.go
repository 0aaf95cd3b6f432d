package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dialcheck/dialcheck/internal/bridge"
	"github.com/dialcheck/dialcheck/internal/call"
	"github.com/dialcheck/dialcheck/internal/config"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/orchestration"
	"github.com/dialcheck/dialcheck/internal/projectconfig"
	"github.com/dialcheck/dialcheck/internal/tracker"
	"github.com/dialcheck/dialcheck/internal/utils"
	"github.com/dialcheck/dialcheck/internal/webapi"
	"github.com/dialcheck/dialcheck/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var (
		port        int
		noBrowser   bool
		catalogPath string
		kbPath      string
		engineType  string
		judgeModel  string
		timeoutSec  int
		local       bool
		dataDir     string
		origins     []string
		publicHost  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the report dashboard and REST API",
		Long: `Start the report dashboard and REST API.

The server lists stored reports, renders them as HTML, exports them as zip
archives, and accepts new test submissions which run in the background.
With the twilio engine it also hosts the /media-stream websocket that
Twilio connects call audio to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := projectconfig.Load(".")
			if err != nil {
				return err
			}
			settings := config.LoadSettings()
			if port == 0 {
				port = pc.Server.Port
			}
			if port == 0 {
				port = settings.Port
			}
			if publicHost == "" {
				publicHost = pc.Server.PublicHost
			}
			if publicHost == "" {
				publicHost = settings.PublicHost
			}
			if catalogPath == "" {
				catalogPath = pc.Paths.Catalog
			}
			if kbPath == "" {
				kbPath = pc.Paths.KnowledgeBase
			}
			if engineType == "" {
				engineType = pc.Defaults.Engine
			}
			if judgeModel == "" {
				judgeModel = pc.Defaults.JudgeModel
			}
			if timeoutSec == 0 {
				timeoutSec = pc.Defaults.Timeout
			}
			if pc.Defaults.LocalMode != nil && *pc.Defaults.LocalMode {
				local = true
			}

			catalog, err := models.LoadCatalog(catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			var kb *models.KnowledgeBase
			if _, statErr := os.Stat(kbPath); statErr == nil {
				kb, err = models.LoadKnowledgeBase(kbPath)
				if err != nil {
					return fmt.Errorf("failed to load knowledge base: %w", err)
				}
			}

			if judgeModel == "" {
				judgeModel = settings.OpenAIModel
			}

			backend, err := newStorageBackend(settings, dataDir, local)
			if err != nil {
				return err
			}
			j, err := newJudge(settings, judgeModel)
			if err != nil {
				return err
			}

			logger := slog.Default()
			registry := bridge.NewRegistry()
			track := tracker.New(backend.store)
			reports := webapi.NewObjectReportStore(backend.store)

			cfg := config.New(nil,
				config.WithCatalog(catalog),
				config.WithKnowledgeBase(kb),
				config.WithJudgeModel(judgeModel),
				config.WithEngineType(engineType),
				config.WithTimeout(timeoutSec),
			)

			runnerOpts := []orchestration.RunnerOption{
				orchestration.WithJudge(j),
				orchestration.WithStore(backend.store),
				orchestration.WithRegistry(registry),
				orchestration.WithTracker(track),
				orchestration.WithSessionLogger(utils.SlogSessionLogger{}),
			}

			var stream *bridge.Handler
			switch engineType {
			case "mock":
				runnerOpts = append(runnerOpts, orchestration.WithEngine(call.NewMockEngine(registry, backend.store)))
			case "twilio":
				sid, token, from, err := twilioCreds(settings)
				if err != nil {
					return err
				}
				to := settings.TargetPhone
				if to == "" {
					return fmt.Errorf("TARGET_PHONE_NUMBER is not set")
				}
				if publicHost == "" {
					return fmt.Errorf("twilio engine requires --public-host or PUBLIC_HOST so the media stream can reach this server")
				}
				stream = bridge.NewHandler(bridge.HandlerConfig{
					Registry: registry,
					Store:    backend.store,
					Logger:   logger,
				})
				runnerOpts = append(runnerOpts,
					orchestration.WithEngine(call.NewTwilioEngine(sid, token, from)),
					orchestration.WithDialNumbers(to, from),
					orchestration.WithStreamURL(fmt.Sprintf("wss://%s/media-stream", publicHost)),
				)
			default:
				return fmt.Errorf("unknown engine type: %s (supported: twilio, mock)", engineType)
			}

			runner := orchestration.NewRunner(cfg, runnerOpts...)
			launcher := webserver.NewLauncher(runner, reports, logger)

			api := webapi.NewHandlers(webapi.HandlersConfig{
				Reports:          reports,
				Objects:          backend.store,
				Tracker:          track,
				Catalog:          catalog,
				Launcher:         launcher,
				StorageAccount:   backend.account,
				StorageContainer: backend.container,
			})

			srvCfg := webserver.Config{
				Port:           port,
				NoBrowser:      noBrowser,
				Logger:         logger,
				API:            api,
				AllowedOrigins: origins,
			}
			if stream != nil {
				srvCfg.Stream = stream
			}
			if backend.local {
				srvCfg.LocalAudioDir = backend.localRoot
			}

			srv, err := webserver.New(srvCfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			err = srv.ListenAndServe(ctx)
			launcher.Wait()
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default: from .dialcheck.yaml)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the dashboard in a browser")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Persona/behavior catalog (default: from .dialcheck.yaml)")
	cmd.Flags().StringVar(&kbPath, "knowledge-base", "", "Knowledge base YAML (default: from .dialcheck.yaml)")
	cmd.Flags().StringVar(&engineType, "engine", "", "Call engine: twilio or mock (default: from .dialcheck.yaml)")
	cmd.Flags().StringVar(&judgeModel, "judge-model", "", "Judge model (default: from .dialcheck.yaml)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Per-call timeout in seconds (default: from .dialcheck.yaml)")
	cmd.Flags().BoolVar(&local, "local", false, "Force local storage even when cloud credentials are set")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Local storage directory (default: .dialcheck-data)")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "CORS origin to allow (repeatable)")
	cmd.Flags().StringVar(&publicHost, "public-host", "", "Public hostname Twilio can reach for the media stream (default: $PUBLIC_HOST)")

	return cmd
}
