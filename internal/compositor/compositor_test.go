package compositor

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func randomImage(rng *rand.Rand, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func TestBlendOnlyInsidePolygon(t *testing.T) {
	base := fill(40, 40, blue)
	box := utils.BoundingBox{X: 5, Y: 5, Width: 20, Height: 20}
	poly := utils.Polygon{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}, {X: 10, Y: 20}}

	out, err := New(0).Blend(base, fill(20, 20, red), box, poly)
	require.NoError(t, err)

	for y := range 40 {
		for x := range 40 {
			inside := utils.PointInPolygon(utils.Point{X: float64(x), Y: float64(y)}, poly)
			want := blue
			if inside {
				want = red
			}
			require.Equal(t, want, out.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
	assert.Equal(t, blue, base.NRGBAAt(15, 15), "base must not be modified")
}

func TestBlendResizesPatch(t *testing.T) {
	base := fill(100, 100, blue)
	box := utils.BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}
	poly := utils.Polygon{{X: 20, Y: 20}, {X: 80, Y: 20}, {X: 80, Y: 80}, {X: 20, Y: 80}}

	out, err := New(0).Blend(base, fill(32, 32, red), box, poly)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())
	assert.Equal(t, red, out.NRGBAAt(50, 50))
	assert.Equal(t, blue, out.NRGBAAt(10, 10))
}

func TestBlendPatchPixelMapping(t *testing.T) {
	base := fill(30, 30, blue)
	patch := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := range 10 {
		for x := range 10 {
			patch.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), A: 255})
		}
	}
	box := utils.BoundingBox{X: 12, Y: 7, Width: 10, Height: 10}
	poly := utils.Polygon{{X: 12, Y: 7}, {X: 22, Y: 7}, {X: 22, Y: 17}, {X: 12, Y: 17}}

	out, err := New(0).Blend(base, patch, box, poly)
	require.NoError(t, err)
	assert.Equal(t, patch.NRGBAAt(3, 4), out.NRGBAAt(15, 11))
	assert.Equal(t, patch.NRGBAAt(0, 0), out.NRGBAAt(12, 7))
}

func TestBlendOutsideBytesIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for range 20 {
		w, h := 50+rng.Intn(200), 50+rng.Intn(200)
		base := randomImage(rng, w, h)
		poly := make(utils.Polygon, 3+rng.Intn(5))
		for i := range poly {
			poly[i] = utils.Point{X: rng.Float64() * float64(w), Y: rng.Float64() * float64(h)}
		}
		box, err := utils.BoundingBoxFromPolygon(poly)
		require.NoError(t, err)
		if !box.Valid() {
			continue
		}
		patch := randomImage(rng, 16, 16)

		out, err := New(rng.Intn(3)).Blend(base, patch, box, poly)
		require.NoError(t, err)
		for y := range h {
			for x := range w {
				if utils.PointInPolygon(utils.Point{X: float64(x), Y: float64(y)}, poly) {
					continue
				}
				i := base.PixOffset(x, y)
				require.Equal(t, base.Pix[i:i+4], out.Pix[i:i+4], "pixel (%d,%d)", x, y)
			}
		}
	}
}

func TestBlendLargeBoxUsesBandsConsistently(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := randomImage(rng, 400, 600)
	patch := randomImage(rng, 300, 500)
	box := utils.BoundingBox{X: 50, Y: 50, Width: 300, Height: 500}
	poly := utils.Polygon{{X: 60, Y: 60}, {X: 340, Y: 80}, {X: 300, Y: 540}, {X: 70, Y: 500}}

	out, err := New(0).Blend(base, patch, box, poly)
	require.NoError(t, err)
	for y := 50; y < 550; y++ {
		for x := 50; x < 350; x++ {
			want := base.NRGBAAt(x, y)
			if utils.PointInPolygon(utils.Point{X: float64(x), Y: float64(y)}, poly) {
				want = patch.NRGBAAt(x-50, y-50)
			}
			require.Equal(t, want, out.NRGBAAt(x, y))
		}
	}
}

func TestBlendFeather(t *testing.T) {
	base := fill(60, 60, color.NRGBA{A: 255})
	white := fill(60, 60, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	box := utils.BoundingBox{X: 0, Y: 0, Width: 60, Height: 60}
	poly := utils.Polygon{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}, {X: 10, Y: 50}}

	out, err := New(8).Blend(base, white, box, poly)
	require.NoError(t, err)

	assert.Equal(t, uint8(255), out.NRGBAAt(30, 30).R, "deep interior takes the patch")
	edge := out.NRGBAAt(12, 30).R
	assert.Greater(t, edge, uint8(0))
	assert.Less(t, edge, uint8(255), "pixels near the edge are mixed")
	assert.Equal(t, uint8(0), out.NRGBAAt(5, 5).R, "outside unchanged")
}

func TestBlendRejectsBoxOutsideImage(t *testing.T) {
	_, err := New(0).Blend(fill(10, 10, blue), fill(5, 5, red),
		utils.BoundingBox{X: 8, Y: 8, Width: 5, Height: 5}, utils.Polygon{{X: 8, Y: 8}, {X: 9, Y: 8}, {X: 9, Y: 9}})
	require.ErrorIs(t, err, apperrors.ErrDegenerateRegion)
}
