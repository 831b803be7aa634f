package pipeline

import (
	"runtime"

	"github.com/MeKo-Tech/inpaint/internal/mempool"
)

// MemStats summarizes memory usage, including the tensor buffer pool.
type MemStats struct {
	AllocBytes uint64        `json:"alloc_bytes"`
	SysBytes   uint64        `json:"sys_bytes"`
	NumGC      uint32        `json:"num_gc"`
	Goroutines int           `json:"goroutines"`
	TensorPool mempool.Stats `json:"tensor_pool"`
}

// GetMemStats captures current memory statistics.
func GetMemStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemStats{
		AllocBytes: m.Alloc,
		SysBytes:   m.Sys,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
		TensorPool: mempool.Snapshot(),
	}
}
