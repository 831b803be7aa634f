package utils

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToNRGBA returns img as an *image.NRGBA with bounds rebased to (0,0). The
// input is returned as-is when it already has that form; otherwise a copy
// is made.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// CloneNRGBA always returns an independent copy of img.
func CloneNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Dimensions returns the width and height of img.
func Dimensions(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
