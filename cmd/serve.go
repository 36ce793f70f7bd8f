package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"aptchat/api"
	"aptchat/config"
	"aptchat/database"
	"aptchat/logging"
	"aptchat/middleware"
	"aptchat/repository"
	"aptchat/services"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the onboarding HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(opts.configFile); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg := config.AppConfig
			if !opts.verbose && cfg.Log.Level != "" {
				if _, err := logging.Init(cfg.Log.Level); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, opts.verbose)
		},
	}
}

// runServer wires the repositories, services and routes, then serves until ctx is done.
func runServer(ctx context.Context, cfg config.Config, debug bool) error {
	db, err := database.Init(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	auditLog := repository.NewSessionLogRepository(db)
	logging.L().Infof("[Main] Repositories initialized.")

	catalog, err := loadCatalog(cfg.Assessment.CatalogFile)
	if err != nil {
		return err
	}
	var steps repository.StepSource = repository.NewRemoteStepSource(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	if cfg.Assessment.LocalFallback && catalog != nil {
		steps = repository.NewFallbackStepSource(steps, catalog)
		logging.L().Infof("[Main] Local step catalog enabled as fallback for %s.", cfg.Backend.BaseURL)
	}

	manager := services.NewSessionManager(services.SessionDeps{
		Steps:         steps,
		Training:      repository.NewTrainingSource(cfg.Training.Source, cfg.Backend.Timeout),
		Relay:         services.NewChatRelay(cfg.Chat.ProxyURL, cfg.Chat.Timeout),
		Log:           auditLog,
		Clock:         services.RealClock(),
		Debounce:      cfg.Assessment.Debounce,
		ScenarioDelay: cfg.Scenario.Delay,
	}, cfg.Session.TTL)
	logging.L().Infof("[Main] Services initialized.")

	handler := api.NewAPIHandler(api.HandlerDeps{
		Sessions:     manager,
		AuditLog:     auditLog,
		Catalog:      catalog,
		Responder:    services.NewBuiltinResponder(cfg.LLM),
		UpstreamMode: cfg.Chat.UpstreamMode,
		UpstreamURL:  cfg.Chat.UpstreamURL,
		Timeout:      cfg.Chat.Timeout,
		TrainingFile: cfg.Training.File,
	})

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("set trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Cors())
	handler.Register(r)
	logging.L().Infof("[Main] Routes registered.")

	port := cfg.Server.Port
	if port == "" {
		logging.L().Warnf("[Main] Server port not configured, using default :8080.")
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.L().Infof("[Main] Starting server on port %s (chat upstream mode: %s)", port, cfg.Chat.UpstreamMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return manager.RunJanitor(gctx, janitorInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.L().Infof("[Main] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		manager.CloseAll()
		return err
	})
	return g.Wait()
}

// loadCatalog reads the optional local step catalog. Graph problems are logged, not fatal.
func loadCatalog(path string) (*repository.LocalStepSource, error) {
	if path == "" {
		return nil, nil
	}
	catalog, err := repository.LoadStepCatalog(path)
	if err != nil {
		return nil, err
	}
	for _, problem := range catalog.Validate() {
		logging.L().Warnf("[Main] Step catalog %s: %v", path, problem)
	}
	logging.L().Infof("[Main] Loaded %d steps from %s.", catalog.Len(), path)
	return catalog, nil
}
