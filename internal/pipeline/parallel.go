package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// ParallelConfig holds configuration for inpainting several images at once.
// Images are independent, so they may run concurrently; the regions of one
// image are always processed sequentially.
type ParallelConfig struct {
	MaxWorkers       int                   // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback      // Optional progress reporting
	ErrorHandler     func(int, Job, error) // Optional per-image error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// Job is one image with the polygons to remove from it.
type Job struct {
	Name     string
	Image    image.Image
	Polygons []utils.Polygon
}

type indexedJob struct {
	index int
	job   Job
}

type jobResult struct {
	index  int
	result *InpaintResult
	err    error
}

// InpaintImagesParallel runs Inpaint on every job using a worker pool and
// returns results in input order. Failed jobs leave a nil entry; the first
// failure (by index) is returned alongside the partial results.
func (p *Pipeline) InpaintImagesParallel(ctx context.Context, jobs []Job, config ParallelConfig) ([]*InpaintResult, error) {
	if len(jobs) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.adapter == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(jobs))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(jobs))
		defer config.ProgressCallback.OnComplete()
	}

	queue := make(chan indexedJob, len(jobs))
	results := make(chan jobResult, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, queue, results, &wg)
	}

	go func() {
		defer close(queue)
		for i, job := range jobs {
			select {
			case queue <- indexedJob{index: i, job: job}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*InpaintResult, len(jobs))
	errs := make([]error, len(jobs))
	processed := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		processed++
		if config.ProgressCallback == nil {
			continue
		}
		if r.err != nil {
			config.ProgressCallback.OnError(r.index, r.err)
		}
		config.ProgressCallback.OnProgress(processed, len(jobs))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, jobs[i], err)
		}
	}
	return ordered, firstError
}

func (p *Pipeline) worker(ctx context.Context, queue <-chan indexedJob, results chan<- jobResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case j, ok := <-queue:
			if !ok {
				return
			}
			res, err := p.Inpaint(ctx, j.job.Image, j.job.Polygons)
			select {
			case results <- jobResult{index: j.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats holds statistics about a parallel run.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"`
	ProcessedImages  int           `json:"processed_images"`
	FailedImages     int           `json:"failed_images"`
	RegionsInpainted int           `json:"regions_inpainted"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats calculates performance statistics for a parallel run.
func CalculateParallelStats(results []*InpaintResult, duration time.Duration, workerCount int) ParallelStats {
	s := ParallelStats{TotalImages: len(results), WorkerCount: workerCount, TotalDuration: duration}
	for _, r := range results {
		if r == nil {
			s.FailedImages++
			continue
		}
		s.ProcessedImages++
		s.RegionsInpainted += len(r.Regions)
	}
	if s.ProcessedImages > 0 && duration > 0 {
		s.AveragePerImage = duration / time.Duration(s.ProcessedImages)
		s.ThroughputPerSec = float64(s.ProcessedImages) / duration.Seconds()
	}
	return s
}
