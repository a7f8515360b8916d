package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zenfocus/backend/internal/assets"
	"zenfocus/backend/internal/config"
	"zenfocus/backend/internal/db"
	"zenfocus/backend/internal/handler"
	"zenfocus/backend/internal/insight"
	"zenfocus/backend/internal/logging"
	"zenfocus/backend/internal/repository"
	"zenfocus/backend/internal/router"
	"zenfocus/backend/internal/service"
	"zenfocus/backend/internal/timer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "zenfocus-server",
		Short:        "Run the focus timer API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", zap.Error(err))
		return err
	}
	defer database.Close()

	applied, err := db.RunMigrations(database, cfg.MigrationsDir, logger)
	if err != nil {
		logger.Error("run migrations", zap.Error(err))
		return err
	}
	logger.Info("database ready", zap.String("path", cfg.DBPath), zap.Int("migrations_applied", applied))

	userRepo := repository.NewUserRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	store := assets.NewStore(cfg.AssetsDir, cfg.PublicBaseURL)

	var generator insight.Generator
	gemini, err := insight.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	switch {
	case err == nil:
		generator = gemini
		logger.Info("insight generator enabled", zap.String("model", cfg.GeminiModel))
	case errors.Is(err, insight.ErrNotConfigured):
		logger.Info("insight generator disabled, GEMINI_API_KEY not set")
	default:
		logger.Warn("insight generator unavailable", zap.Error(err))
	}

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL, logger)
	settingsService := service.NewSettingsService(settingsRepo, logger)
	timerService := service.NewTimerService(settingsService, sessionRepo, timer.Options{
		TickInterval: cfg.TickInterval,
	}, logger)
	historyService := service.NewHistoryService(sessionRepo, authService, logger)
	assetService := service.NewAssetService(store, settingsService, logger)
	insightService := service.NewInsightService(sessionRepo, generator, logger)

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Timer:    handler.NewTimerHandler(timerService),
		Settings: handler.NewSettingsHandler(settingsService, assetService),
		History:  handler.NewHistoryHandler(historyService),
		Insight:  handler.NewInsightHandler(insightService),
	}, cfg.CORSOrigins, store.Dir(), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go timerService.RunEviction(ctx, service.EngineSweepInterval, service.EngineIdleTimeout)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("backend listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		timerService.Close()
		if err != nil {
			logger.Error("run server", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// Closing engines ends open event streams so Shutdown does not wait on them.
	timerService.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server", zap.Error(err))
		return err
	}
	return nil
}
