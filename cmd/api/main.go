package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/kids-bank/internal/api/handlers"
	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/categorize"
	"github.com/dvloznov/kids-bank/internal/config"
	"github.com/dvloznov/kids-bank/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "kidsbank.yaml", "Config file")
		envFile    = flag.String("env", ".env", "Env file")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.API.Port = *port
	}

	// Initialize logger
	log, err := logger.NewFromConfig(os.Stdout, cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		log = logger.New()
		log.Warn().Err(err).Msg("Invalid log level, using info")
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open app")
	}

	// Start sync scheduler and telemetry in background
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := a.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start background workers")
	}

	var suggester handlers.Suggester
	if cfg.Gemini.APIKey != "" {
		model, err := categorize.NewGeminiModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create Gemini client - category suggestions disabled")
		} else {
			suggester = categorize.New(model)
		}
	} else {
		log.Info().Msg("No Gemini API key configured - category suggestions disabled")
	}

	// Initialize handlers
	h := handlers.Handlers{
		Accounts:   handlers.NewAccountsHandler(a.State, log),
		Sync:       handlers.NewSyncHandler(a.Syncer, a.Scheduler, a.Runs, a.State, log),
		Export:     handlers.NewExportHandler(a.State, log),
		Categories: handlers.NewCategoriesHandler(suggester, log),
	}

	if cfg.API.Token == "" {
		log.Warn().Msg("No API token configured - API is open to anyone who can reach it")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      handlers.NewRouter(h, cfg.API.Token, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.API.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the scheduler, waiting for a sync in progress, then close the store
	if err := a.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error closing app")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
