// Package batch inpaints directories of images, each paired with a polygon
// sidecar file, using the pipeline's worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
)

// ProcessBatch discovers images under paths, builds a pipeline from config
// and inpaints every image that has a polygon sidecar.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	items, skipped, err := discover(paths, config)
	if err != nil {
		return nil, err
	}

	progressCallback := newProgressCallback(config)
	pl, err := buildPipeline(config, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("failed to build inpainting pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Error("Error closing pipeline", "error", err)
		}
	}()

	return run(ctx, pl, items, skipped, config, progressCallback)
}

// ProcessBatchWithPipeline is ProcessBatch on an existing pipeline, which is
// left open.
func ProcessBatchWithPipeline(ctx context.Context, pl *pipeline.Pipeline, paths []string, config *Config) (*Result, error) {
	items, skipped, err := discover(paths, config)
	if err != nil {
		return nil, err
	}
	return run(ctx, pl, items, skipped, config, newProgressCallback(config))
}

func discover(paths []string, config *Config) ([]item, []string, error) {
	items, skipped, err := discoverItems(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	for _, f := range skipped {
		slog.Warn("No polygon file for image, skipping", "file", f)
	}
	if len(items) == 0 {
		return nil, nil, errors.New("no images with polygon files found")
	}
	return items, skipped, nil
}

func newProgressCallback(config *Config) pipeline.ProgressCallback {
	switch {
	case config.Quiet:
		return nil
	case config.ShowProgress:
		return pipeline.NewConsoleProgressCallback(os.Stderr, "Inpainting: ").
			WithUpdateInterval(config.ProgressInterval)
	default:
		return pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	}
}

func run(ctx context.Context, pl *pipeline.Pipeline, items []item, skipped []string, config *Config,
	progressCallback pipeline.ProgressCallback) (*Result, error) {
	start := time.Now()
	results, err := processItems(ctx, pl, items, config, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	workers := parallelConfig(pl, config, nil).MaxWorkers
	return &Result{
		Items:       results,
		Skipped:     skipped,
		Duration:    time.Since(start),
		WorkerCount: min(workers, len(items)),
	}, nil
}
