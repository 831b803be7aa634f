package batch

import (
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
)

// buildPipeline creates an inpainting pipeline from the batch configuration.
func buildPipeline(config *Config, progressCallback pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	return pipeline.NewBuilder().
		WithConfig(config.Pipeline).
		WithParallelWorkers(config.Workers).
		WithProgressCallback(progressCallback).
		Build()
}

// parallelConfig returns the worker pool settings for a run on pl.
func parallelConfig(pl *pipeline.Pipeline, config *Config, progressCallback pipeline.ProgressCallback) pipeline.ParallelConfig {
	pc := pl.Config().Parallel
	if config.Workers > 0 {
		pc.MaxWorkers = config.Workers
	}
	if progressCallback != nil {
		pc.ProgressCallback = progressCallback
	}
	return pc
}
