// Package mask rasterizes polygons into binary inpainting masks.
package mask

import (
	"image"
	"image/color"
	"sort"

	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// Mask values.
const (
	Background uint8 = 0
	Foreground uint8 = 255
)

// Rasterize renders polygons (in mask-local coordinates) into a width x
// height mask. Interiors are filled with Foreground using the even-odd rule
// sampled at integer pixel coordinates, without anti-aliasing, so a pixel
// is set exactly when utils.PointInPolygon holds for it. Polygons with
// fewer than 3 points are skipped.
func Rasterize(polys []utils.Polygon, width, height int) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, max(width, 0), max(height, 0)))
	if width <= 0 || height <= 0 {
		return m
	}
	xs := make([]float64, 0, 16)
	for _, poly := range polys {
		if !poly.Valid() {
			continue
		}
		for y := range height {
			xs = scanline(xs[:0], poly, float64(y))
			if len(xs) == 0 {
				continue
			}
			fillRow(m.Pix[y*m.Stride:y*m.Stride+width], xs)
		}
	}
	return m
}

// scanline collects the sorted crossing positions of poly's edges with row y.
func scanline(xs []float64, poly utils.Polygon, y float64) []float64 {
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if x, ok := utils.CrossingX(poly[i], poly[j], y); ok {
			xs = append(xs, x)
		}
	}
	sort.Float64s(xs)
	return xs
}

// fillRow sets every pixel that has an odd number of crossings strictly to its right.
func fillRow(row []uint8, xs []float64) {
	k := 0
	for x := range row {
		fx := float64(x)
		for k < len(xs) && xs[k] <= fx {
			k++
		}
		if (len(xs)-k)%2 == 1 {
			row[x] = Foreground
		}
	}
}

// ForegroundCount returns the number of foreground pixels in m.
func ForegroundCount(m *image.Gray) int {
	n := 0
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.GrayAt(x, y).Y == Foreground {
				n++
			}
		}
	}
	return n
}

// IsBinary reports whether every pixel of img is pure black or pure white.
func IsBinary(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			if g != Background && g != Foreground {
				return false
			}
		}
	}
	return true
}
