package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"maps"
	"slices"

	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// DebugResult holds the intermediate images of a best-effort run.
type DebugResult struct {
	// Images maps artifact names (see ArtifactName) to images. Regions that
	// failed contribute only the artifacts produced before the failure.
	Images map[string]image.Image
	// Errors maps region indices to the error that stopped them.
	Errors  map[int]error
	Regions []RegionResult
}

// Names returns the artifact names in sorted order.
func (d *DebugResult) Names() []string {
	return slices.Sorted(maps.Keys(d.Images))
}

// Debug runs the same steps as Inpaint but tolerates per-region failures:
// a failing region is logged and skipped, its remaining artifacts are
// absent, and the next region continues from the last good image. Only
// preprocessing failures and cancellation are returned as errors.
func (p *Pipeline) Debug(ctx context.Context, img image.Image, polys []utils.Polygon) (*DebugResult, error) {
	if p == nil || p.adapter == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	regions, err := p.preprocessor.Process(polys)
	if err != nil {
		return nil, err
	}

	res := &DebugResult{
		Images: map[string]image.Image{ArtifactOriginal: img},
		Errors: map[int]error{},
	}
	retain := func(name string, im image.Image) { res.Images[name] = im }

	working := utils.ToNRGBA(img)
	for i, poly := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, rr, err := p.processRegion(ctx, working, i, poly, retain)
		if err != nil {
			slog.Warn("Skipping region", "region", i, "error", err)
			res.Errors[i] = err
			continue
		}
		working = next
		res.Regions = append(res.Regions, *rr)
	}
	res.Images[ArtifactFinal] = working
	return res, nil
}
