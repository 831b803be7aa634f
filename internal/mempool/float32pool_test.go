package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		input, expected int
	}{
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{3 * 512 * 512, 3 * 512 * 512},
		{3*512*512 + 1, 3*512*512 + 1024},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, sizeClass(tt.input), "sizeClass(%d)", tt.input)
	}
}

func TestGetPutFloat32(t *testing.T) {
	buf := GetFloat32(100)
	require.Len(t, buf, 100)
	assert.Equal(t, 1024, cap(buf))
	for i := range buf {
		buf[i] = float32(i)
	}
	PutFloat32(buf)

	again := GetFloat32(2000)
	require.Len(t, again, 2000)
	assert.GreaterOrEqual(t, cap(again), 2048)
	PutFloat32(again)
}

func TestPutFloat32_IgnoresForeignBuffers(t *testing.T) {
	before := Snapshot()
	PutFloat32(nil)
	PutFloat32(make([]float32, 10))
	assert.Equal(t, before.Puts, Snapshot().Puts)
}

func TestConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := range 50 {
				b := GetFloat32(n*100 + i)
				b[0] = 1
				PutFloat32(b)
			}
		}(g + 1)
	}
	wg.Wait()

	s := Snapshot()
	assert.GreaterOrEqual(t, s.Gets, int64(400))
	assert.GreaterOrEqual(t, s.Puts, int64(400))
}
