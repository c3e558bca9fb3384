package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/edtech-engine/backend/internal/api"
	"github.com/edtech-engine/backend/internal/config"
	"github.com/edtech-engine/backend/internal/engine"
	"github.com/edtech-engine/backend/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	// 1. Config
	cfg := config.Load()

	// Setup Logging
	logger := newLogger(cfg.Log)
	entry := logger.WithField("service", "edtech-api")

	entry.Info("Starting EdTech Recommendation Service")

	// 2. Storage
	store, err := storage.NewFileStorage(filepath.Join(cfg.Storage.DataDir, "catalog"))
	if err != nil {
		entry.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	activity, err := storage.NewActivityLog(cfg.Storage.ActivityLog)
	if err != nil {
		entry.Fatalf("Failed to initialize activity log: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Engine
	llm := engine.NewLLMProvider(cfg.LLM)
	eng := engine.NewEngine(cfg, entry.WithField("component", "engine"), store, activity, llm)
	if err := eng.Load(ctx); err != nil {
		entry.Fatalf("Failed to load catalog: %v", err)
	}

	// 4. API Server
	server := api.NewServer(eng, entry.WithField("component", "api"))
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entry.Infof("API ready on %s (tutor: %s)", cfg.Server.Addr, llm.Name())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		entry.Info("Shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		entry.Fatal(err)
	}
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
