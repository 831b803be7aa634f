package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/mask"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
	"github.com/MeKo-Tech/inpaint/internal/region"
	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// RegionTiming holds per-stage durations of one region.
type RegionTiming struct {
	PlanNs      int64 `json:"plan_ns"`
	PrepareNs   int64 `json:"prepare_ns"`
	InferenceNs int64 `json:"inference_ns"`
	CompositeNs int64 `json:"composite_ns"`
	TotalNs     int64 `json:"total_ns"`
}

// RegionResult describes one inpainted region.
type RegionResult struct {
	Index       int               `json:"index"`
	Polygon     utils.Polygon     `json:"polygon"`
	Box         utils.BoundingBox `json:"box"`
	ExpandedBox utils.BoundingBox `json:"expanded_box"`
	MaskPixels  int               `json:"mask_pixels"`
	Timing      RegionTiming      `json:"timing"`
}

// InpaintResult is the output of a strict Inpaint call.
type InpaintResult struct {
	Image      *image.NRGBA           `json:"-"`
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
	Supplied   int                    `json:"supplied_polygons"`
	Regions    []RegionResult         `json:"regions"`
	Artifacts  map[string]image.Image `json:"-"`
	Processing struct {
		PreprocessNs int64 `json:"preprocess_ns"`
		InferenceNs  int64 `json:"inference_ns"`
		TotalNs      int64 `json:"total_ns"`
	} `json:"processing"`
}

// Artifact names. Region-scoped names carry a _<index> suffix.
const (
	ArtifactOriginal     = "original"
	ArtifactCropped      = "cropped"
	ArtifactMask         = "mask"
	ArtifactResizedImage = "resized_image"
	ArtifactResizedMask  = "resized_mask"
	ArtifactPatchRaw     = "inpainted_patch_raw"
	ArtifactPatchResized = "inpainted_patch_resized"
	ArtifactFinal        = "final_result"
)

// ArtifactName returns the name of a region-scoped artifact.
func ArtifactName(base string, index int) string {
	return fmt.Sprintf("%s_%d", base, index)
}

// retainFunc receives intermediate images; nil discards them.
type retainFunc func(name string, img image.Image)

// Inpaint removes the polygon interiors from img and fills them with model
// output. Polygons are preprocessed (invalid ones dropped, touching ones
// merged) and then processed strictly in order: each region is planned
// against, and blended into, the image produced by the previous one, so
// reordering overlapping polygons changes the result. Any failure aborts
// the whole call. Pixels outside every polygon are returned unchanged.
func (p *Pipeline) Inpaint(ctx context.Context, img image.Image, polys []utils.Polygon) (*InpaintResult, error) {
	return p.InpaintWithProgress(ctx, img, polys, nil)
}

// InpaintWithProgress is like Inpaint and reports per-region progress.
func (p *Pipeline) InpaintWithProgress(
	ctx context.Context,
	img image.Image,
	polys []utils.Polygon,
	progress ProgressCallback,
) (*InpaintResult, error) {
	if p == nil || p.adapter == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, errors.New("input image is nil")
	}

	totalStart := time.Now()
	w, h := utils.Dimensions(img)
	slog.Debug("Starting inpainting", "width", w, "height", h, "polygons", len(polys))

	prepStart := time.Now()
	regions, err := p.preprocessor.Process(polys)
	if err != nil {
		return nil, err
	}
	res := &InpaintResult{Width: w, Height: h, Supplied: len(polys)}
	res.Processing.PreprocessNs = time.Since(prepStart).Nanoseconds()

	var retain retainFunc
	if p.cfg.Debug {
		res.Artifacts = map[string]image.Image{}
		retain = func(name string, im image.Image) { res.Artifacts[name] = im }
		retain(ArtifactOriginal, img)
	}

	if progress != nil {
		progress.OnStart(len(regions))
		defer progress.OnComplete()
	}

	working := utils.ToNRGBA(img)
	for i, poly := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, rr, err := p.processRegion(ctx, working, i, poly, retain)
		if err != nil {
			if progress != nil {
				progress.OnError(i, err)
			}
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		working = next
		res.Regions = append(res.Regions, *rr)
		res.Processing.InferenceNs += rr.Timing.InferenceNs
		if progress != nil {
			progress.OnProgress(i+1, len(regions))
		}
	}

	res.Image = working
	if retain != nil {
		retain(ArtifactFinal, working)
	}
	res.Processing.TotalNs = time.Since(totalStart).Nanoseconds()
	p.profiler.Record(res)

	slog.Debug("Inpainting completed",
		"regions", len(res.Regions),
		"duration_ms", res.Processing.TotalNs/1_000_000)
	return res, nil
}

// processRegion runs one polygon through plan, crop, rasterize, marshal,
// infer and blend. base is not modified; the blended copy is returned.
func (p *Pipeline) processRegion(
	ctx context.Context,
	base *image.NRGBA,
	index int,
	poly utils.Polygon,
	retain retainFunc,
) (*image.NRGBA, *RegionResult, error) {
	start := time.Now()
	rr := &RegionResult{Index: index, Polygon: poly}

	w, h := utils.Dimensions(base)
	raw, err := utils.BoundingBoxFromPolygon(poly)
	if err != nil {
		return nil, nil, err
	}
	box, err := region.Plan(poly, w, h, p.cfg.RegionParams())
	if err != nil {
		return nil, nil, err
	}
	rr.Box, rr.ExpandedBox = raw, box
	rr.Timing.PlanNs = time.Since(start).Nanoseconds()

	prepStart := time.Now()
	crop := utils.CropImageBox(base, box)
	m := mask.Rasterize([]utils.Polygon{poly.Offset(-float64(box.X), -float64(box.Y))}, box.Width, box.Height)
	rr.MaskPixels = mask.ForegroundCount(m)
	if retain != nil {
		retain(ArtifactName(ArtifactCropped, index), crop)
		retain(ArtifactName(ArtifactMask, index), m)
	}

	imgT, maskT := p.prepareTensors(crop, m, retain, index)
	defer imgT.Release()
	defer maskT.Release()
	rr.Timing.PrepareNs = time.Since(prepStart).Nanoseconds()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	inferStart := time.Now()
	out, err := p.adapter.Infer(ctx, imgT, maskT)
	if err != nil {
		return nil, nil, err
	}
	rr.Timing.InferenceNs = time.Since(inferStart).Nanoseconds()

	compStart := time.Now()
	rawPatch, err := onnx.TensorToImage(out, p.adapter.OutputRange())
	out.Release()
	if err != nil {
		return nil, nil, err
	}
	patch := onnx.Resize(rawPatch, box.Width, box.Height, onnx.Smooth)
	if retain != nil {
		retain(ArtifactName(ArtifactPatchRaw, index), rawPatch)
		retain(ArtifactName(ArtifactPatchResized, index), patch)
	}
	blended, err := p.compositor.Blend(base, patch, box, poly)
	if err != nil {
		return nil, nil, err
	}
	rr.Timing.CompositeNs = time.Since(compStart).Nanoseconds()
	rr.Timing.TotalNs = time.Since(start).Nanoseconds()

	slog.Debug("Region inpainted",
		"region", index,
		"box", box,
		"mask_pixels", rr.MaskPixels,
		"duration_ms", rr.Timing.TotalNs/1_000_000)
	return blended, rr, nil
}

// prepareTensors resizes crop and mask to the model resolution and
// marshals both, concurrently. Both tensors come from the float32 pool.
func (p *Pipeline) prepareTensors(
	crop *image.NRGBA,
	m *image.Gray,
	retain retainFunc,
	index int,
) (onnx.Tensor, onnx.Tensor) {
	size := p.cfg.InputSize
	var imgT, maskT onnx.Tensor
	var resizedImage *image.NRGBA
	var resizedMask *image.Gray

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		resizedImage = onnx.Resize(crop, size, size, onnx.Smooth)
		imgT = onnx.ImageToTensor(resizedImage)
	}()
	go func() {
		defer wg.Done()
		resizedMask = onnx.ResizeMask(m, size, size)
		maskT = onnx.MaskToTensor(resizedMask)
	}()
	wg.Wait()

	if retain != nil {
		retain(ArtifactName(ArtifactResizedImage, index), resizedImage)
		retain(ArtifactName(ArtifactResizedMask, index), resizedMask)
	}
	return imgT, maskT
}
