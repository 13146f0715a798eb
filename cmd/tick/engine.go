package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/tick"
	"github.com/aretw0/tick/pkg/adapters/file"
	"github.com/aretw0/tick/pkg/adapters/process"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/registry"
)

// buildRegistry mounts the process handlers listed in --handlers. A missing
// file yields an empty registry; loaded reports whether the file existed.
func buildRegistry(cmd *cobra.Command, logger *slog.Logger) (reg *registry.Registry, loaded bool, err error) {
	path, _ := cmd.Flags().GetString("handlers")
	reg = registry.NewRegistry()
	if path == "" {
		return reg, false, nil
	}

	cfg, err := process.LoadHandlers(path)
	if err != nil {
		return nil, false, err
	}
	if len(cfg.Handlers) == 0 {
		return reg, false, nil
	}
	runner := process.NewRunner(
		process.WithRegistry(cfg),
		process.WithBaseDir(filepath.Dir(path)),
		process.WithLogger(logger),
	)
	if err := reg.Mount(runner); err != nil {
		return nil, false, fmt.Errorf("failed to mount handlers: %w", err)
	}
	return reg, true, nil
}

// loadStory reads a story file without building an engine.
func loadStory(ctx context.Context, path string) (*domain.Configuration, error) {
	cfg, err := file.NewLoader(path).Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.StateMachine != nil {
		cfg.StateMachine.Normalize()
	}
	return cfg, nil
}

// loadEngine builds the engine of a story with the handlers of --handlers.
func loadEngine(cmd *cobra.Command, path string, logger *slog.Logger, opts ...tick.Option) (*tick.Engine, error) {
	reg, _, err := buildRegistry(cmd, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]tick.Option{tick.WithLogger(logger)}, opts...)
	return tick.LoadFile(cmd.Context(), path, reg, opts...)
}
