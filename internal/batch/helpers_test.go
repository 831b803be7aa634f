package batch

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/inpainter"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/MeKo-Tech/inpaint/internal/testutil"
	"github.com/stretchr/testify/require"
)

const squarePolygons = "polygons:\n  - [[8, 8], [24, 8], [24, 24], [8, 24]]\n"

var background = color.NRGBA{R: 30, G: 60, B: 90, A: 255}

// grayEngine fills every patch with mid-gray bytes.
type grayEngine struct{}

func (grayEngine) Run(_ context.Context, img, _ onnx.Tensor) (onnx.Tensor, error) {
	data := make([]float32, len(img.Data))
	for i := range data {
		data[i] = 128
	}
	return onnx.Tensor{Data: data, Shape: append([]int64(nil), img.Shape...)}, nil
}

func newTestPipeline(t *testing.T, engine inpainter.Engine) *pipeline.Pipeline {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = t.TempDir()
	pl, err := pipeline.NewBuilder().WithConfig(cfg).WithInferenceEngine(engine).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })
	return pl
}

// writeImageWithSidecar writes a 32x32 PNG and, when polygons is not empty,
// a <name>.polygons.yaml next to it.
func writeImageWithSidecar(t *testing.T, dir, name, polygons string) string {
	t.Helper()
	path := filepath.Join(dir, name+".png")
	testutil.SaveImage(t, testutil.CreateTestImage(32, 32, background), path)
	if polygons != "" {
		testutil.WriteFile(t, dir, name+".polygons.yaml", polygons)
	}
	return path
}

func quietConfig(outputDir string) *Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.OutputDir = outputDir
	cfg.ShowProgress = false
	return &cfg
}
