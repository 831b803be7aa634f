package onnx

import (
	"image"
	"math"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/mempool"
	"github.com/disintegration/imaging"
)

// ValueRange describes the pixel scale of an engine's output tensor.
type ValueRange int

const (
	// RangeByte means channel values are roughly in [0,255].
	RangeByte ValueRange = iota
	// RangeUnit means channel values are in [0,1].
	RangeUnit
)

func (r ValueRange) String() string {
	if r == RangeUnit {
		return "unit"
	}
	return "byte"
}

func (r ValueRange) scale() float64 {
	if r == RangeUnit {
		return 255
	}
	return 1
}

// maskThreshold is the luminance midpoint separating background from foreground.
const maskThreshold = 127.5

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// ImageToTensor converts img into a [1,3,H,W] tensor with each channel
// divided by 255, laid out as all R, then all G, then all B. Alpha is
// ignored. The buffer comes from the float32 pool; callers release it with
// Tensor.Release once the engine is done with it.
func ImageToTensor(img image.Image) Tensor {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	plane := w * h
	data := mempool.GetFloat32(3 * plane)
	for y := range h {
		row := src.Pix[y*src.Stride:]
		for x := range w {
			i := y*w + x
			p := row[x*4 : x*4+3]
			data[i] = float32(p[0]) / 255.0
			data[plane+i] = float32(p[1]) / 255.0
			data[2*plane+i] = float32(p[2]) / 255.0
		}
	}
	return Tensor{Data: data, Shape: []int64{1, 3, int64(h), int64(w)}}
}

// MaskToTensor converts a mask into a [1,1,H,W] tensor holding 1.0 where the
// pixel luminance (0.299R + 0.587G + 0.114B) exceeds the midpoint and 0.0
// elsewhere.
func MaskToTensor(img image.Image) Tensor {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	data := mempool.GetFloat32(w * h)
	for y := range h {
		row := src.Pix[y*src.Stride:]
		for x := range w {
			p := row[x*4 : x*4+3]
			lum := 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
			if lum > maskThreshold {
				data[y*w+x] = 1
			} else {
				data[y*w+x] = 0
			}
		}
	}
	return Tensor{Data: data, Shape: []int64{1, 1, int64(h), int64(w)}}
}

// TensorToImage converts a [1,3,H,W] tensor back into an opaque image. Values
// are scaled according to r, rounded and clamped to [0,255]. A tensor with
// the wrong rank, channel count or data length fails with an IOConversion
// error.
func TensorToImage(t Tensor, r ValueRange) (*image.NRGBA, error) {
	if err := VerifyImageTensor(t); err != nil {
		return nil, apperrors.NewIOConversionError("tensor to image", "%v", err)
	}
	if t.Shape[0] != 1 || t.Shape[1] != 3 {
		return nil, apperrors.NewIOConversionError("tensor to image",
			"expected shape [1,3,H,W], got %v", t.Shape)
	}
	_, h, w := t.Dims()
	plane := w * h
	scale := r.scale()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range plane {
		o := i * 4
		img.Pix[o] = toByte(float64(t.Data[i]) * scale)
		img.Pix[o+1] = toByte(float64(t.Data[plane+i]) * scale)
		img.Pix[o+2] = toByte(float64(t.Data[2*plane+i]) * scale)
		img.Pix[o+3] = 255
	}
	return img, nil
}

// TensorToMask thresholds a [1,1,H,W] tensor at 0.5 into a 0/255 mask.
func TensorToMask(t Tensor) (*image.Gray, error) {
	if err := VerifyImageTensor(t); err != nil {
		return nil, apperrors.NewIOConversionError("tensor to mask", "%v", err)
	}
	if t.Shape[0] != 1 || t.Shape[1] != 1 {
		return nil, apperrors.NewIOConversionError("tensor to mask",
			"expected shape [1,1,H,W], got %v", t.Shape)
	}
	_, h, w := t.Dims()
	m := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range t.Data {
		if v > 0.5 {
			m.Pix[i] = 255
		}
	}
	return m, nil
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
