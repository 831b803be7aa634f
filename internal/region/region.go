// Package region plans the context window that is cropped around each
// polygon and handed to the inpainting model.
package region

import (
	"math"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// Params controls how far a polygon's bounding box grows.
type Params struct {
	// InputSize is the square model resolution. Boxes that fit inside it
	// are grown to exactly this size.
	InputSize int
	// ExpandPercentage is the per-side growth of larger boxes relative to
	// their own width and height.
	ExpandPercentage float64
	// MaxExpansionSize caps the per-side growth in pixels.
	MaxExpansionSize int
}

// Plan returns the expanded box for poly inside an imageWidth x imageHeight
// image. Boxes that fit the model input are center-expanded to InputSize;
// others are grown by a percentage. The result always lies within the image
// and has positive extent, otherwise a DegenerateRegion error is returned.
func Plan(poly utils.Polygon, imageWidth, imageHeight int, p Params) (utils.BoundingBox, error) {
	raw, err := utils.BoundingBoxFromPolygon(poly)
	if err != nil {
		return utils.BoundingBox{}, err
	}

	var box utils.BoundingBox
	if raw.Width <= p.InputSize && raw.Height <= p.InputSize {
		box = EnsureSize(raw, imageWidth, imageHeight, p.InputSize)
	} else {
		box = Expand(raw, imageWidth, imageHeight, p.ExpandPercentage, p.MaxExpansionSize)
	}

	if !box.Valid() || !box.Within(imageWidth, imageHeight) {
		return utils.BoundingBox{}, apperrors.NewDegenerateRegionError("plan",
			"box %+v does not fit a %dx%d image", box, imageWidth, imageHeight)
	}
	return box, nil
}

// EnsureSize grows box symmetrically to size x size and slides it back into
// the image. A dimension in which the image is smaller than size collapses
// to the full image extent.
func EnsureSize(box utils.BoundingBox, imageWidth, imageHeight, size int) utils.BoundingBox {
	x, w := centerAxis(box.X, box.Width, imageWidth, size)
	y, h := centerAxis(box.Y, box.Height, imageHeight, size)
	return utils.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func centerAxis(pos, length, extent, size int) (int, int) {
	if extent < size {
		return 0, extent
	}
	start := pos - (size-length)/2
	return min(max(start, 0), extent-size), size
}

// Expand grows each side of box by min(dimension*pct, maxExpansion) pixels.
// A side pushed past the image edge is clamped to it and the box shrinks by
// the overflow; the opposite side is not extended to compensate.
func Expand(box utils.BoundingBox, imageWidth, imageHeight int, pct float64, maxExpansion int) utils.BoundingBox {
	x, w := expandAxis(box.X, box.Width, imageWidth, pct, maxExpansion)
	y, h := expandAxis(box.Y, box.Height, imageHeight, pct, maxExpansion)
	return utils.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func expandAxis(pos, length, extent int, pct float64, maxExpansion int) (int, int) {
	grow := int(math.Round(math.Min(float64(length)*pct, float64(maxExpansion))))
	start := pos - grow
	length += 2 * grow
	if start < 0 {
		length += start
		start = 0
	}
	if start+length > extent {
		length = extent - start
	}
	return start, length
}
