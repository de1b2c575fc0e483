package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/deepuonthemove/lessonforge/internal/assets/fsstore"
	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/provider"
	"github.com/deepuonthemove/lessonforge/internal/registration"
	"github.com/deepuonthemove/lessonforge/internal/server"
	"github.com/deepuonthemove/lessonforge/internal/service"
	"github.com/deepuonthemove/lessonforge/internal/storage"
	"github.com/deepuonthemove/lessonforge/internal/storage/memory"
	"github.com/deepuonthemove/lessonforge/internal/storage/sqlite"
	"github.com/deepuonthemove/lessonforge/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("lessonforge", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(os.Getenv("FORGE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store storage.Store
	switch cfg.Storage.Type {
	case "memory":
		store = memory.New()
	default:
		store, err = sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open storage: %v", err)
		}
	}
	defer store.Close()

	assetStore, err := fsstore.New(cfg.Assets.Dir, cfg.Assets.PublicBaseURL)
	if err != nil {
		log.Fatalf("Failed to open asset store: %v", err)
	}

	// Register built-in provider adapters
	registration.RegisterBuiltins()

	registry := provider.NewRegistry(&cfg.Providers)
	sink := telemetry.NewSink("lessonforge", logger)
	svc := service.New(cfg, store, assetStore, registry, sink, logger)

	srv := server.New(cfg.Server.Port, logger)
	srv.RegisterRoutes(svc, assetStore.Root())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router,
	}

	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
