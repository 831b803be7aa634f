package onnx

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/inpaint/internal/mempool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Tensor represents a float32 tensor exchanged with an inference engine.
// Data layout is row-major, NCHW for images and masks.
type Tensor struct {
	Data  []float32
	Shape []int64 // e.g., [N, C, H, W]
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must be length C*H*W in NCHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	expected := c * h * w
	if len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	shape := []int64{1, int64(c), int64(h), int64(w)}
	return Tensor{Data: data, Shape: shape}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks data length matches the provided NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	n, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	expected := int(n * c * h * w)
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// Dims returns channels, height and width of a single-item NCHW tensor.
func (t Tensor) Dims() (int, int, int) {
	if len(t.Shape) != 4 {
		return 0, 0, 0
	}
	return int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3])
}

// Release hands the backing buffer back to the float32 pool. The tensor
// must not be used afterwards.
func (t *Tensor) Release() {
	mempool.PutFloat32(t.Data)
	t.Data = nil
}

// Stats summarizes tensor values for debug logging.
type Stats struct {
	Min, Max, Mean, StdDev float64
}

// TensorStats computes min, max, mean and standard deviation of data.
func TensorStats(data []float32) Stats {
	if len(data) == 0 {
		return Stats{}
	}
	vals := make([]float64, len(data))
	for i, v := range data {
		vals[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(vals, nil)
	return Stats{Min: floats.Min(vals), Max: floats.Max(vals), Mean: mean, StdDev: std}
}
