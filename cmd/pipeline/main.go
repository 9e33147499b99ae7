package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deal_engine/pkg/core/config"
	"deal_engine/pkg/core/ingest"
	"deal_engine/pkg/core/knowledge"
	"deal_engine/pkg/core/logging"
	"deal_engine/pkg/core/pipeline"
	"deal_engine/pkg/core/store"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to engine YAML config")
	dir := flag.String("dir", "deals", "Directory of deal payloads (*.json, *.hjson)")
	save := flag.Bool("save", false, "Store every modelled deal as a scenario")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer logger.Sync()

	tables := knowledge.MustDefault()
	if cfg.Tables.Path != "" {
		if tables, err = knowledge.LoadFile(cfg.Tables.Path); err != nil {
			log.Fatalf("Industry tables: %v", err)
		}
	}

	ctx := context.Background()
	orch := pipeline.NewOrchestrator(tables, logger)
	if err := orch.SetThresholds(cfg.DSCR); err != nil {
		log.Fatalf("Thresholds: %v", err)
	}
	if *save {
		repo, err := openRepository(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("Storage: %v", err)
		}
		orch.SetRepository(repo)
	}

	files, err := dealFiles(*dir)
	if err != nil {
		log.Fatalf("Critical: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("Critical: no deal payloads in %s", *dir)
	}

	fmt.Printf("Deal pipeline starting: %d payloads from %s\n", len(files), *dir)

	failed := 0
	for _, path := range files {
		if err := runOne(ctx, orch, path, *save); err != nil {
			fmt.Printf("Warning: %s: %v. Skipping.\n", filepath.Base(path), err)
			failed++
		}
	}

	fmt.Printf("\n[Done] %d modelled, %d failed.\n", len(files)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func runOne(ctx context.Context, orch *pipeline.Orchestrator, path string, save bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d, err := ingest.DecodeDeal(raw)
	if err != nil {
		return err
	}
	if d.FileName == "" {
		d.FileName = filepath.Base(path)
	}

	in := pipeline.Input{
		Statement:      d.Statement,
		DocumentText:   d.DocumentText,
		FileName:       d.FileName,
		ExtractedPrice: d.ExtractedPrice,
		Warnings:       d.Warnings,
	}

	var res pipeline.Result
	if save {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err = orch.RunAndSave(ctx, name, in)
	} else {
		res, err = orch.Run(ctx, in)
	}
	if err != nil {
		return err
	}

	printReport(os.Stdout, d.FileName, res)
	return nil
}

func dealFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".hjson":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.ScenarioRepository, error) {
	if cfg.Database.URL == "" {
		return store.NewFileVault(cfg.Database.ScenarioDir)
	}
	pool, err := store.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectRetries, logger)
	if err != nil {
		return nil, err
	}
	repo := store.NewScenarioRepo(pool)
	return repo, repo.EnsureSchema(ctx)
}
