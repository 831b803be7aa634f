package inpainter

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEngine struct{ err error }

func (f failingEngine) Run(context.Context, onnx.Tensor, onnx.Tensor) (onnx.Tensor, error) {
	return onnx.Tensor{}, f.err
}

type shapeEngine struct{ out onnx.Tensor }

func (s shapeEngine) Run(context.Context, onnx.Tensor, onnx.Tensor) (onnx.Tensor, error) {
	return s.out, nil
}

func tensors(h, w int) (onnx.Tensor, onnx.Tensor) {
	img, _ := onnx.NewImageTensor(make([]float32, 3*h*w), 3, h, w)
	mask, _ := onnx.NewImageTensor(make([]float32, h*w), 1, h, w)
	return img, mask
}

func TestAdapterInferIdentity(t *testing.T) {
	engine := NewIdentityEngine()
	a := NewAdapter(engine)
	img, mask := tensors(4, 4)
	img.Data[5] = 0.25

	out, err := a.Infer(context.Background(), img, mask)
	require.NoError(t, err)
	assert.Equal(t, img.Shape, out.Shape)
	assert.Equal(t, img.Data, out.Data)
	assert.Equal(t, onnx.RangeUnit, a.OutputRange())
	assert.Equal(t, int64(1), engine.Calls())

	out.Data[5] = 0.9
	assert.InDelta(t, 0.25, img.Data[5], 0, "identity output must not alias its input")
}

func TestAdapterModelNotReady(t *testing.T) {
	for _, state := range []ModelState{StateNotLoaded, StateDownloading, StateLoading, StateError} {
		t.Run(state.String(), func(t *testing.T) {
			engine := NewIdentityEngine()
			a := NewAdapter(engine, WithReadiness(StateFunc(func() ModelState { return state })))
			img, mask := tensors(2, 2)

			_, err := a.Infer(context.Background(), img, mask)
			require.ErrorIs(t, err, apperrors.ErrModelNotReady)
			assert.Zero(t, engine.Calls(), "engine must not run")
			assert.False(t, a.Ready())
		})
	}
}

func TestAdapterReadinessCheckedBeforeShapes(t *testing.T) {
	engine := NewIdentityEngine()
	a := NewAdapter(engine, WithReadiness(StateFunc(func() ModelState { return StateLoading })))
	img, _ := tensors(4, 4)

	_, err := a.Infer(context.Background(), img, img)
	require.ErrorIs(t, err, apperrors.ErrModelNotReady)
	assert.NotErrorIs(t, err, apperrors.ErrIOConversion)
	assert.Zero(t, engine.Calls())
}

func TestAdapterWrapsEngineFailure(t *testing.T) {
	cause := errors.New("cuda out of memory")
	a := NewAdapter(failingEngine{err: cause})
	img, mask := tensors(2, 2)

	_, err := a.Infer(context.Background(), img, mask)
	require.ErrorIs(t, err, apperrors.ErrInference)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, onnx.RangeByte, a.OutputRange(), "engines without a reporter output bytes")
	assert.True(t, a.Ready(), "engines without a reporter are assumed ready")
}

func TestAdapterRejectsBadInputs(t *testing.T) {
	a := NewAdapter(NewIdentityEngine())
	img, mask := tensors(4, 4)
	_, smallMask := tensors(2, 2)

	tests := []struct {
		name      string
		img, mask onnx.Tensor
	}{
		{"mask size differs", img, smallMask},
		{"image passed as mask", img, img},
		{"mask passed as image", mask, mask},
		{"data length mismatch", onnx.Tensor{Data: make([]float32, 3), Shape: []int64{1, 3, 4, 4}}, mask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Infer(context.Background(), tt.img, tt.mask)
			require.ErrorIs(t, err, apperrors.ErrIOConversion)
		})
	}
}

func TestAdapterRejectsBadOutput(t *testing.T) {
	img, mask := tensors(2, 2)
	a := NewAdapter(shapeEngine{out: mask})

	_, err := a.Infer(context.Background(), img, mask)
	require.ErrorIs(t, err, apperrors.ErrIOConversion)
}

func TestIdentityEngineHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	img, mask := tensors(2, 2)

	_, err := NewAdapter(NewIdentityEngine()).Infer(ctx, img, mask)
	require.ErrorIs(t, err, apperrors.ErrInference)
	require.ErrorIs(t, err, context.Canceled)
}

func TestModelStateString(t *testing.T) {
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "unknown", ModelState(42).String())
}

func TestNewONNXEngineMissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/lama_fp32.onnx"
	_, err := NewONNXEngine(cfg)
	require.ErrorContains(t, err, "not found")
}

func TestConfigUpdateModelPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateModelPath("/opt/models")
	assert.Equal(t, "/opt/models/lama_fp32.onnx", cfg.ModelPath)
	assert.Equal(t, DefaultImageInput, cfg.ImageInput)
	assert.Equal(t, DefaultMaskInput, cfg.MaskInput)
}
