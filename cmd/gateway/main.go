package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/easeverse/server/internal/collab"
	"github.com/easeverse/server/internal/config"
	"github.com/easeverse/server/internal/external"
	"github.com/easeverse/server/internal/httpapi"
	"github.com/easeverse/server/internal/learning"
	"github.com/easeverse/server/internal/scoring"
)

const version = "1.0.0"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := config.Load(version)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	learningStore := openLearningStore(ctx, cfg.DatabaseURL)
	collabStore := openCollabStore(ctx, cfg.DatabaseURL)
	cancel()

	learningEngine := learning.NewEngine(learningStore)
	collabEngine := collab.NewEngine(collabStore)

	pool := scoring.NewPool()

	handler := httpapi.NewServer(cfg.HTTP, pool, learningEngine, collabEngine, buildTranscriber(cfg), buildSpeaker(cfg))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	go func() {
		slog.Info("gateway listening", "addr", cfg.ListenAddr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(server, collabEngine, pool)
}

func waitForShutdown(server *http.Server, collabEngine *collab.Engine, pool *scoring.Pool) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	collabEngine.Hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}

	pool.Close()
}

func openLearningStore(ctx context.Context, databaseURL string) learning.Store {
	if databaseURL == "" {
		return nil
	}
	store, err := learning.OpenPostgresStore(ctx, databaseURL)
	if err != nil {
		slog.Error("learning postgres store unavailable, using in-memory fallback", "error", err)
		return nil
	}
	return store
}

func openCollabStore(ctx context.Context, databaseURL string) collab.Store {
	if databaseURL == "" {
		return nil
	}
	store, err := collab.OpenPostgresStore(ctx, databaseURL)
	if err != nil {
		slog.Error("collab postgres store unavailable, using in-memory fallback", "error", err)
		return nil
	}
	return store
}

// buildTranscriber and buildSpeaker stand in for real STT/TTS provider
// clients keyed on cfg's credentials. Providers are external
// collaborators; until one is wired, routes that need them answer 503
// naming the missing variable.
func buildTranscriber(cfg config.Config) external.Transcriber {
	return external.NotConfiguredTranscriber{EnvVars: []string{"STT_API_KEY"}}
}

func buildSpeaker(cfg config.Config) external.Speaker {
	return external.NotConfiguredSpeaker{EnvVars: []string{"TTS_API_KEY"}}
}
