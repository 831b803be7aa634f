package pipeline

import (
	"context"
	"image/color"
	"testing"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/testutil"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugContinuesAfterRegionFailure(t *testing.T) {
	engine := &fillEngine{value: 0, failAt: 2}
	p := buildWith(t, engine, 32)
	img := testutil.CreateTestImage(120, 60, color.White)
	polys := []utils.Polygon{
		testutil.Rect(5, 5, 20, 20),
		testutil.Rect(60, 5, 80, 20),
		testutil.Rect(100, 30, 115, 50),
	}

	res, err := p.Debug(context.Background(), img, polys)
	require.NoError(t, err)
	assert.Equal(t, 3, engine.calls(), "later regions still run")

	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[1], apperrors.ErrInference)
	require.Len(t, res.Regions, 2)
	assert.Equal(t, 0, res.Regions[0].Index)
	assert.Equal(t, 2, res.Regions[1].Index)

	assert.Contains(t, res.Images, ArtifactOriginal)
	assert.Contains(t, res.Images, ArtifactFinal)
	assert.Contains(t, res.Images, ArtifactName(ArtifactPatchRaw, 0))
	assert.Contains(t, res.Images, ArtifactName(ArtifactPatchRaw, 2))
	assert.NotContains(t, res.Images, ArtifactName(ArtifactPatchRaw, 1))
	assert.NotContains(t, res.Images, ArtifactName(ArtifactPatchResized, 1))

	final := utils.ToNRGBA(res.Images[ArtifactFinal])
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, final.NRGBAAt(12, 12))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, final.NRGBAAt(70, 12), "failed region stays untouched")
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, final.NRGBAAt(108, 40))
}

func TestDebugNames(t *testing.T) {
	p := buildWith(t, &fillEngine{}, 16)
	res, err := p.Debug(context.Background(), testutil.CreateTestImage(40, 40, color.White),
		[]utils.Polygon{testutil.Rect(5, 5, 15, 15)})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cropped_0",
		"final_result",
		"inpainted_patch_raw_0",
		"inpainted_patch_resized_0",
		"mask_0",
		"original",
		"resized_image_0",
		"resized_mask_0",
	}, res.Names())
	assert.Empty(t, res.Errors)
}

func TestDebugMaskIsBinary(t *testing.T) {
	p := buildWith(t, &fillEngine{}, 24)
	res, err := p.Debug(context.Background(), testutil.CreateTestImage(60, 60, color.White),
		[]utils.Polygon{testutil.Triangle(10, 10, 50, 15, 20, 45)})
	require.NoError(t, err)

	for _, name := range []string{ArtifactName(ArtifactMask, 0), ArtifactName(ArtifactResizedMask, 0)} {
		m := res.Images[name]
		require.NotNil(t, m, name)
		b := m.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.GrayModel.Convert(m.At(x, y)).(color.Gray).Y
				require.True(t, g == 0 || g == 255, "%s has gray level %d", name, g)
			}
		}
	}
}

func TestDebugNoValidRegions(t *testing.T) {
	p := buildWith(t, &fillEngine{}, 16)
	_, err := p.Debug(context.Background(), testutil.CreateTestImage(10, 10, color.White), nil)
	assert.ErrorIs(t, err, apperrors.ErrNoValidRegions)
}
