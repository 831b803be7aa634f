package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensorAndVerify(t *testing.T) {
	ten, err := NewImageTensor(make([]float32, 60), 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, ten.Shape)
	require.NoError(t, VerifyImageTensor(ten))

	c, h, w := ten.Dims()
	assert.Equal(t, []int{3, 4, 5}, []int{c, h, w})
}

func TestNewImageTensorErrors(t *testing.T) {
	tests := []struct {
		name string
		data []float32
	}{
		{"nil data", nil},
		{"data too short", make([]float32, 10)},
		{"data too long", make([]float32, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImageTensor(tt.data, 3, 4, 5)
			require.Error(t, err)
		})
	}
}

func TestValidateNCHW(t *testing.T) {
	require.NoError(t, ValidateNCHW([]int64{1, 3, 8, 8}))
	require.Error(t, ValidateNCHW([]int64{3, 8, 8}))
	require.Error(t, ValidateNCHW([]int64{1, 0, 8, 8}))
}

func TestVerifyImageTensorLengthMismatch(t *testing.T) {
	err := VerifyImageTensor(Tensor{Data: make([]float32, 5), Shape: []int64{1, 1, 2, 2}})
	require.ErrorContains(t, err, "length 5")
}

func TestDimsOnBadRank(t *testing.T) {
	c, h, w := Tensor{Shape: []int64{2, 2}}.Dims()
	assert.Zero(t, c+h+w)
}

func TestTensorStats(t *testing.T) {
	s := TensorStats([]float32{1, 2, 3, 4})
	assert.InDelta(t, 1.0, s.Min, 1e-9)
	assert.InDelta(t, 4.0, s.Max, 1e-9)
	assert.InDelta(t, 2.5, s.Mean, 1e-9)
	assert.Greater(t, s.StdDev, 0.0)

	assert.Equal(t, Stats{}, TensorStats(nil))
}

func TestRelease(t *testing.T) {
	ten := ImageToTensor(solid(4, 4, 10, 20, 30))
	ten.Release()
	assert.Nil(t, ten.Data)
}
