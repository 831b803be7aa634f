package pipeline

import (
	"sync/atomic"
)

// Profiler aggregates counters and timers across multiple Inpaint calls.
type Profiler struct {
	ImagesProcessed  atomic.Int64
	RegionsInpainted atomic.Int64
	InferenceTimeNs  atomic.Int64
	TotalTimeNs      atomic.Int64
}

// Record adds one finished result.
func (p *Profiler) Record(res *InpaintResult) {
	if p == nil || res == nil {
		return
	}
	p.ImagesProcessed.Add(1)
	p.RegionsInpainted.Add(int64(len(res.Regions)))
	p.InferenceTimeNs.Add(res.Processing.InferenceNs)
	p.TotalTimeNs.Add(res.Processing.TotalNs)
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	imgs := p.ImagesProcessed.Load()
	inf := p.InferenceTimeNs.Load()
	total := p.TotalTimeNs.Load()
	out := map[string]any{
		"images":             imgs,
		"regions":            p.RegionsInpainted.Load(),
		"inference_ms_total": inf / 1_000_000,
		"total_ms_total":     total / 1_000_000,
	}
	if imgs > 0 {
		out["inference_ms_per_image"] = float64(inf) / 1_000_000.0 / float64(imgs)
		out["total_ms_per_image"] = float64(total) / 1_000_000.0 / float64(imgs)
	}
	return out
}
