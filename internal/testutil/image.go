package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// CreateTestImage creates a uniform image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// CreatePatternImage creates a deterministic image in which neighboring
// pixels differ, so any unintended change is visible byte-for-byte.
func CreatePatternImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			o := img.PixOffset(x, y)
			img.Pix[o+0] = uint8((x*7 + y*3) % 256)
			img.Pix[o+1] = uint8((x*x + y) % 256)
			img.Pix[o+2] = uint8((x ^ y) % 256)
			img.Pix[o+3] = 255
		}
	}
	return img
}

// CreateImageWithText renders text in black onto a white image.
func CreateImageWithText(text string, width, height int) *image.NRGBA {
	img := CreateTestImage(width, height, color.White)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, height/2+6),
	}
	d.DrawString(text)
	return img
}

// Rect returns the axis-aligned rectangle polygon with the given corners.
func Rect(x0, y0, x1, y1 float64) utils.Polygon {
	return utils.Polygon{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// Triangle returns a triangle polygon.
func Triangle(ax, ay, bx, by, cx, cy float64) utils.Polygon {
	return utils.Polygon{{X: ax, Y: ay}, {X: bx, Y: by}, {X: cx, Y: cy}}
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	file, err := os.Create(path) //nolint:gosec // G304: test output path
	require.NoError(t, err, "Failed to create image file")
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image file %s", path)
	return img
}

// CompareImages compares two images and returns true if their mean color
// distance, relative to the maximum possible, is within tolerance.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1.Size() != bounds2.Size() {
		return false
	}

	var totalDiff float64
	var pixelCount float64

	for y := 0; y < bounds1.Dy(); y++ {
		for x := 0; x < bounds1.Dx(); x++ {
			r1, g1, b1, a1 := img1.At(bounds1.Min.X+x, bounds1.Min.Y+y).RGBA()
			r2, g2, b2, a2 := img2.At(bounds2.Min.X+x, bounds2.Min.Y+y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535)

	return (avgDiff / maxDiff) <= tolerance
}

// DiffPixels lists the coordinates at which two equally sized images differ
// in any NRGBA byte.
func DiffPixels(img1, img2 image.Image) ([]image.Point, error) {
	a, b := utils.ToNRGBA(img1), utils.ToNRGBA(img2)
	if a.Rect.Size() != b.Rect.Size() {
		return nil, fmt.Errorf("size mismatch: %v vs %v", a.Rect.Size(), b.Rect.Size())
	}
	var diff []image.Point
	for y := range a.Rect.Dy() {
		for x := range a.Rect.Dx() {
			oa, ob := a.PixOffset(x, y), b.PixOffset(x, y)
			if [4]uint8(a.Pix[oa:oa+4]) != [4]uint8(b.Pix[ob:ob+4]) {
				diff = append(diff, image.Point{X: x, Y: y})
			}
		}
	}
	return diff, nil
}

// RequireUnchangedOutside fails the test if any pixel outside every polygon
// differs between before and after.
func RequireUnchangedOutside(t *testing.T, before, after image.Image, polys []utils.Polygon) {
	t.Helper()

	diff, err := DiffPixels(before, after)
	require.NoError(t, err)
	for _, p := range diff {
		pt := utils.Point{X: float64(p.X), Y: float64(p.Y)}
		inside := false
		for _, poly := range polys {
			if utils.PointInPolygon(pt, poly) {
				inside = true
				break
			}
		}
		require.True(t, inside, "pixel %v outside all polygons changed", p)
	}
}
