package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiconfig "deal_engine/pkg/api/config"
	"deal_engine/pkg/api/deal"
	"deal_engine/pkg/core/config"
	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/core/logging"
	"deal_engine/pkg/core/pipeline"
	"deal_engine/pkg/core/store"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to engine YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("[API] Server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Industry tables
	tables, err := loadTables(cfg.Tables.Path)
	if err != nil {
		return err
	}
	logger.Info("[API] Industry tables loaded",
		zap.Int("industries", len(tables.Industries())),
		zap.String("source", tablesSource(cfg.Tables.Path)))

	orch := pipeline.NewOrchestrator(tables, logger)
	if err := orch.SetThresholds(cfg.DSCR); err != nil {
		return err
	}

	// Scenario storage: Postgres when configured, local files otherwise
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()
	orch.SetRepository(repo)

	mux := http.NewServeMux()
	deal.NewHandler(orch, logger).Register(mux)

	configHandler := apiconfig.NewHandler(orch, tables)
	mux.HandleFunc("/api/config", configHandler.HandleConfig)
	mux.HandleFunc("/api/config/thresholds", configHandler.HandleThresholds)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	routes := append(deal.Routes(), "GET  /api/config", "POST /api/config/thresholds")
	logger.Info("[API] Server starting", zap.String("addr", cfg.Server.Addr), zap.Strings("routes", routes))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("[API] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func loadTables(path string) (*knowledge.Tables, error) {
	if path == "" {
		return knowledge.Default()
	}
	return knowledge.LoadFile(path)
}

func tablesSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.ScenarioRepository, func(), error) {
	if cfg.Database.URL == "" {
		vault, err := store.NewFileVault(cfg.Database.ScenarioDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("[API] Scenarios stored on disk", zap.String("dir", cfg.Database.ScenarioDir))
		return vault, func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectRetries, logger)
	if err != nil {
		return nil, nil, err
	}
	repo := store.NewScenarioRepo(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}
