// Package mempool pools the float32 buffers backing model tensors, which are
// allocated and dropped once per polygon.
package mempool

import (
	"sync"
	"sync/atomic"
)

const step = 1024

var (
	float32Pools sync.Map // key: size class (int), value: *sync.Pool

	gets   atomic.Int64
	puts   atomic.Int64
	allocs atomic.Int64
)

// sizeClass rounds n up to the next multiple of 1024.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	p, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		allocs.Add(1)
		return make([]float32, cls)
	}})
	return p.(*sync.Pool)
}

// GetFloat32 retrieves a []float32 buffer of length n. Contents are not
// zeroed. The caller returns it via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	gets.Add(1)
	cls := sizeClass(n)
	buf, ok := poolFor(cls).Get().([]float32)
	if !ok || cap(buf) < cls {
		allocs.Add(1)
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer to the pool. Buffers whose capacity is not a
// size class (for example ones allocated outside the pool) are dropped. It
// is safe to pass a nil slice.
func PutFloat32(buf []float32) {
	if buf == nil || cap(buf)%step != 0 {
		return
	}
	puts.Add(1)
	poolFor(cap(buf)).Put(buf[:cap(buf)]) //nolint:staticcheck
}

// Stats reports pool usage since process start.
type Stats struct {
	Gets   int64
	Puts   int64
	Allocs int64
}

// Snapshot returns the current pool counters.
func Snapshot() Stats {
	return Stats{Gets: gets.Load(), Puts: puts.Load(), Allocs: allocs.Load()}
}
