package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/MeKo-Tech/inpaint/internal/inpainter"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
)

var errEngineBoom = errors.New("engine boom")

// fillEngine returns a patch of constant value on the byte scale.
type fillEngine struct {
	value float32

	mu     sync.Mutex
	inputs [][]float32
	failAt int // 1-based call number that fails, 0 = never
}

func (e *fillEngine) Run(_ context.Context, image, _ onnx.Tensor) (onnx.Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, append([]float32(nil), image.Data...))
	if e.failAt > 0 && len(e.inputs) == e.failAt {
		return onnx.Tensor{}, errEngineBoom
	}
	data := make([]float32, len(image.Data))
	for i := range data {
		data[i] = e.value
	}
	return onnx.Tensor{Data: data, Shape: append([]int64(nil), image.Shape...)}, nil
}

func (e *fillEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inputs)
}

// stateEngine reports a fixed model state.
type stateEngine struct {
	fillEngine
	state inpainter.ModelState
}

func (e *stateEngine) State() inpainter.ModelState { return e.state }
