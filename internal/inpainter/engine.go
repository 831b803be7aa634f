// Package inpainter is the boundary to the neural inpainting model. It
// validates the tensor contract, checks model readiness, and wraps engine
// failures; it never retries.
package inpainter

import (
	"context"

	"github.com/MeKo-Tech/inpaint/internal/onnx"
)

// Engine fills the masked area of an image tensor. image is [1,3,H,W] in
// [0,1], mask is [1,1,H,W] with 1.0 marking pixels to fill. The result is a
// [1,3,H,W] tensor whose scale is given by RangeReporter, or bytes if the
// engine does not report one.
type Engine interface {
	Run(ctx context.Context, image, mask onnx.Tensor) (onnx.Tensor, error)
}

// RangeReporter is implemented by engines that report their output scale.
type RangeReporter interface {
	OutputRange() onnx.ValueRange
}

// StateReporter exposes model readiness.
type StateReporter interface {
	State() ModelState
}

// ModelState mirrors the lifecycle owned by whoever provisions the model.
type ModelState int32

const (
	StateNotLoaded ModelState = iota
	StateDownloading
	StateLoading
	StateLoaded
	StateError
)

func (s ModelState) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateDownloading:
		return "downloading"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateFunc adapts a plain function to StateReporter.
type StateFunc func() ModelState

// State implements StateReporter.
func (f StateFunc) State() ModelState { return f() }
