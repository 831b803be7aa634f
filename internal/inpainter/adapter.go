package inpainter

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
)

// Adapter invokes an Engine under the tensor contract.
type Adapter struct {
	engine    Engine
	readiness StateReporter
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithReadiness sets the readiness source queried before every inference.
// By default the engine itself is asked when it implements StateReporter,
// and is assumed ready otherwise.
func WithReadiness(r StateReporter) Option {
	return func(a *Adapter) { a.readiness = r }
}

// NewAdapter wraps engine.
func NewAdapter(engine Engine, opts ...Option) *Adapter {
	a := &Adapter{engine: engine}
	if r, ok := engine.(StateReporter); ok {
		a.readiness = r
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Engine returns the wrapped engine.
func (a *Adapter) Engine() Engine { return a.engine }

// OutputRange returns the engine's output scale, bytes by default.
func (a *Adapter) OutputRange() onnx.ValueRange {
	if r, ok := a.engine.(RangeReporter); ok {
		return r.OutputRange()
	}
	return onnx.RangeByte
}

// State returns the current model state.
func (a *Adapter) State() ModelState {
	if a.readiness == nil {
		return StateLoaded
	}
	return a.readiness.State()
}

// Ready reports whether inference may be attempted.
func (a *Adapter) Ready() bool { return a.State() == StateLoaded }

// Infer runs the engine on an image and mask tensor pair of equal spatial
// size. Readiness is checked first: it fails with ModelNotReady when the
// model is not loaded, then with IOConversion on shape violations, and wraps any engine error unmodified
// in an Inference error.
func (a *Adapter) Infer(ctx context.Context, image, mask onnx.Tensor) (onnx.Tensor, error) {
	if state := a.State(); state != StateLoaded {
		return onnx.Tensor{}, apperrors.NewModelNotReadyError("infer", state.String())
	}
	if err := checkInputs(image, mask); err != nil {
		return onnx.Tensor{}, err
	}

	start := time.Now()
	out, err := a.engine.Run(ctx, image, mask)
	if err != nil {
		return onnx.Tensor{}, apperrors.NewInferenceError("infer", err)
	}
	if err := onnx.VerifyImageTensor(out); err != nil {
		return onnx.Tensor{}, apperrors.NewIOConversionError("infer", "engine output: %v", err)
	}
	if c, _, _ := out.Dims(); c != 3 || out.Shape[0] != 1 {
		return onnx.Tensor{}, apperrors.NewIOConversionError("infer", "engine output shape %v, want [1,3,H,W]", out.Shape)
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		st := onnx.TensorStats(out.Data)
		slog.Debug("Inference finished",
			"shape", out.Shape,
			"duration_ms", time.Since(start).Milliseconds(),
			"min", st.Min, "max", st.Max, "mean", st.Mean)
	}
	return out, nil
}

func checkInputs(image, mask onnx.Tensor) error {
	if err := onnx.VerifyImageTensor(image); err != nil {
		return apperrors.NewIOConversionError("infer", "image tensor: %v", err)
	}
	if err := onnx.VerifyImageTensor(mask); err != nil {
		return apperrors.NewIOConversionError("infer", "mask tensor: %v", err)
	}
	ic, ih, iw := image.Dims()
	mc, mh, mw := mask.Dims()
	if image.Shape[0] != 1 || ic != 3 {
		return apperrors.NewIOConversionError("infer", "image tensor shape %v, want [1,3,H,W]", image.Shape)
	}
	if mask.Shape[0] != 1 || mc != 1 {
		return apperrors.NewIOConversionError("infer", "mask tensor shape %v, want [1,1,H,W]", mask.Shape)
	}
	if ih != mh || iw != mw {
		return apperrors.NewIOConversionError("infer", "image %dx%d and mask %dx%d differ", iw, ih, mw, mh)
	}
	return nil
}
