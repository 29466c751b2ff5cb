// conflictd runs the conflict engine as a standalone service: the sync
// pipeline posts detections to it and reviewers finalize pending conflicts
// through the same API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/c0deZ3R0/go-conflict-kit/config"
	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
	"github.com/c0deZ3R0/go-conflict-kit/logging"
	"github.com/c0deZ3R0/go-conflict-kit/storage/memory"
	"github.com/c0deZ3R0/go-conflict-kit/storage/postgres"
	"github.com/c0deZ3R0/go-conflict-kit/storage/sqlite"
	"github.com/c0deZ3R0/go-conflict-kit/transport/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Environment: os.Getenv("ENVIRONMENT"),
	})
	logger := logging.Default()

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open conflict store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	auto := conflictkit.NewAutoResolver(store)
	detector := conflictkit.NewDetector(store, conflictkit.WithAutoResolver(auto))
	workflow := conflictkit.NewWorkflow(store)

	handler := httpapi.NewHandler(detector, workflow, store)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("conflictd listening",
			slog.String("addr", addr),
			slog.String("store_backend", cfg.Store.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", slog.String("error", err.Error()))
	}
}

func openStore(cfg *config.Config) (conflictkit.ConflictStore, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		sc := sqlite.DefaultConfig(cfg.Store.SQLitePath)
		sc.MaxOpenConns = cfg.Store.MaxOpenConns
		return sqlite.New(sc)
	case config.BackendPostgres:
		pc := postgres.DefaultConfig(cfg.Store.PostgresDSN)
		pc.MaxOpenConns = cfg.Store.MaxOpenConns
		return postgres.New(pc)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
