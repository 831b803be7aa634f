package onnx

import (
	"image"

	"github.com/disintegration/imaging"
)

// ResizeMode selects the resampling filter.
type ResizeMode int

const (
	// Smooth resamples bilinearly; used for image content.
	Smooth ResizeMode = iota
	// Nearest keeps source values unchanged; used for binary masks.
	Nearest
)

func (m ResizeMode) String() string {
	if m == Nearest {
		return "nearest"
	}
	return "smooth"
}

func (m ResizeMode) filter() imaging.ResampleFilter {
	if m == Nearest {
		return imaging.NearestNeighbor
	}
	return imaging.Linear
}

// Resize scales img to exactly w x h. The input is never modified; when the
// size already matches, a copy is returned.
func Resize(img image.Image, w, h int, mode ResizeMode) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, mode.filter())
}

// ResizeMask scales a binary mask with nearest-neighbor sampling so no
// intermediate gray levels appear.
func ResizeMask(mask *image.Gray, w, h int) *image.Gray {
	b := mask.Bounds()
	if b.Dx() == w && b.Dy() == h {
		out := image.NewGray(image.Rect(0, 0, w, h))
		for y := range h {
			src := mask.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:(y+1)*out.Stride], mask.Pix[src:src+w])
		}
		return out
	}
	nrgba := imaging.Resize(mask, w, h, imaging.NearestNeighbor)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i := range w * h {
		out.Pix[i] = nrgba.Pix[i*4]
	}
	return out
}
