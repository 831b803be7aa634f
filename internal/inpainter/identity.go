package inpainter

import (
	"context"
	"sync/atomic"

	"github.com/MeKo-Tech/inpaint/internal/mempool"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
)

// IdentityEngine returns a copy of its image input. It stands in for the
// model in dry runs and tests: inpainting with it leaves every pixel as it
// was, apart from resampling.
type IdentityEngine struct {
	calls atomic.Int64
}

// NewIdentityEngine returns an IdentityEngine.
func NewIdentityEngine() *IdentityEngine { return &IdentityEngine{} }

// Run implements Engine.
func (e *IdentityEngine) Run(ctx context.Context, image, _ onnx.Tensor) (onnx.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return onnx.Tensor{}, err
	}
	e.calls.Add(1)
	data := mempool.GetFloat32(len(image.Data))
	copy(data, image.Data)
	shape := make([]int64, len(image.Shape))
	copy(shape, image.Shape)
	return onnx.Tensor{Data: data, Shape: shape}, nil
}

// OutputRange implements RangeReporter; the copied input is in [0,1].
func (e *IdentityEngine) OutputRange() onnx.ValueRange { return onnx.RangeUnit }

// State implements StateReporter.
func (e *IdentityEngine) State() ModelState { return StateLoaded }

// Calls returns how many times Run was invoked.
func (e *IdentityEngine) Calls() int64 { return e.calls.Load() }

// Close implements io.Closer.
func (e *IdentityEngine) Close() error { return nil }
