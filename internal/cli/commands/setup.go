package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sieveworks/sieve/internal/cli/config"
	"github.com/sieveworks/sieve/internal/engine"
	"github.com/sieveworks/sieve/internal/rules"
	"github.com/sieveworks/sieve/internal/sink"
	"github.com/sieveworks/sieve/internal/state"
	"github.com/sieveworks/sieve/pkg/core"
)

// getConfig returns the loaded CLI configuration.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		StatePath:           config.DefaultStateFile,
		RulesDir:            config.DefaultRulesDir,
		SinkPath:            config.DefaultSinkFile,
		Environment:         config.DefaultEnv,
		QuarantineThreshold: config.DefaultThreshold,
		HTTPPort:            config.DefaultHTTPPort,
	}
}

// openStore opens the state database, creating its directory and running
// migrations as needed. The caller closes it.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStoreWithLogger(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// loadStages compiles every configured stage's rules file, in pipeline order.
func loadStages(cfg *config.Config) ([]*core.RuleSet, error) {
	files := make([]rules.StageFile, len(cfg.Pipeline))
	for i, stage := range cfg.Pipeline {
		files[i] = rules.StageFile{Stage: stage.Stage, Path: stage.Rules}
	}
	return rules.LoadStages(files)
}

// buildPipeline assembles the configured pipeline over the given store.
func buildPipeline(cfg *config.Config, logger *slog.Logger, store core.Store) (*engine.Pipeline, error) {
	stages, err := loadStages(cfg)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		Stages:              stages,
		QuarantineThreshold: cfg.Threshold(),
		Workers:             cfg.Workers,
		Store:               store,
		Sink:                sink.NewFileWriter(cfg.SinkPath),
		Environment:         cfg.Environment,
		Logger:              logger,
	})
}
