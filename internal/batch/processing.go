package batch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/MeKo-Tech/inpaint/internal/polygons"
	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// loadJob reads an image and its polygon sidecar.
func loadJob(it item) (pipeline.Job, error) {
	img, _, err := utils.LoadImage(it.image)
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("failed to load %s: %w", it.image, err)
	}
	polys, err := polygons.LoadFile(it.polygons)
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("failed to load %s: %w", it.polygons, err)
	}
	return pipeline.Job{Name: it.image, Image: img, Polygons: polys}, nil
}

// outputPath places the result in outputDir (or next to the input) with
// suffix appended to the base name. Without an explicit format, inputs that
// cannot be encoded (bmp, tiff) are written as PNG.
func outputPath(input, outputDir, suffix, format string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(filepath.Base(input), ext)

	switch format {
	case "":
		switch strings.ToLower(ext) {
		case ".png", ".jpg", ".jpeg", ".webp":
		default:
			ext = ".png"
		}
	case utils.FormatJPEG:
		ext = ".jpg"
	default:
		ext = "." + format
	}

	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base+suffix+ext)
}

// processItems loads, inpaints and writes every item. Load, inpaint and
// write failures are recorded per item when ContinueOnError is set and
// abort the run otherwise.
func processItems(ctx context.Context, pl *pipeline.Pipeline, items []item, config *Config,
	progressCallback pipeline.ProgressCallback) ([]ItemResult, error) {
	results := make([]ItemResult, len(items))
	jobs := make([]pipeline.Job, 0, len(items))
	jobItems := make([]int, 0, len(items))

	for i, it := range items {
		results[i] = ItemResult{File: it.image, Polygons: it.polygons}
		job, err := loadJob(it)
		if err != nil {
			if !config.ContinueOnError {
				return nil, err
			}
			slog.Warn("Skipping image", "file", it.image, "error", err)
			results[i].Error = err.Error()
			continue
		}
		jobs = append(jobs, job)
		jobItems = append(jobItems, i)
	}
	if len(jobs) == 0 {
		return results, nil
	}

	jobErrs := make([]error, len(jobs))
	pc := parallelConfig(pl, config, progressCallback)
	pc.ErrorHandler = func(i int, _ pipeline.Job, err error) { jobErrs[i] = err }

	inpainted, err := pl.InpaintImagesParallel(ctx, jobs, pc)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil && !config.ContinueOnError {
		return nil, err
	}

	for j, res := range inpainted {
		r := &results[jobItems[j]]
		if res == nil {
			r.Error = "inpainting failed"
			if jobErrs[j] != nil {
				r.Error = jobErrs[j].Error()
			}
			slog.Warn("Inpainting failed", "file", r.File, "error", r.Error)
			continue
		}
		r.Result = res
		r.Regions = len(res.Regions)
		r.Output = outputPath(r.File, config.OutputDir, config.OutputSuffix, config.Format)
		if err := writeOutput(r.Output, res.Image, config.Quality); err != nil {
			if !config.ContinueOnError {
				return nil, err
			}
			r.Error = err.Error()
			r.Output = ""
		}
	}
	return results, nil
}

func writeOutput(path string, img image.Image, quality int) error {
	if err := utils.SaveImage(path, img, quality); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Debug("Wrote inpainted image", "path", path)
	return nil
}
