package batch

import (
	"time"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	Pipeline pipeline.Config

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings. An empty OutputDir writes next to each input.
	OutputDir    string
	OutputSuffix string
	Format       string // "" keeps the input format
	Quality      int
	ReportFormat string // text, json or csv
	ReportFile   string

	// ContinueOnError keeps going after an image fails to load or inpaint.
	ContinueOnError bool

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
}

// DefaultConfig returns the batch defaults.
func DefaultConfig() Config {
	return Config{
		Pipeline:         pipeline.DefaultConfig(),
		Workers:          4,
		OutputSuffix:     "_inpainted",
		ReportFormat:     "text",
		ShowProgress:     true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// ItemResult describes the outcome for one image.
type ItemResult struct {
	File     string                  `json:"file"`
	Polygons string                  `json:"polygons,omitempty"`
	Output   string                  `json:"output,omitempty"`
	Regions  int                     `json:"regions"`
	Error    string                  `json:"error,omitempty"`
	Result   *pipeline.InpaintResult `json:"result,omitempty"`
}

// Failed reports whether the image was not written.
func (r ItemResult) Failed() bool { return r.Error != "" }

// Result holds the result of batch processing.
type Result struct {
	Items       []ItemResult
	Skipped     []string // images without a polygon sidecar
	Duration    time.Duration
	WorkerCount int
}

// Failures returns how many items failed.
func (r *Result) Failures() int {
	n := 0
	for _, it := range r.Items {
		if it.Failed() {
			n++
		}
	}
	return n
}

// InpaintResults returns the per-item pipeline results, nil for failures.
func (r *Result) InpaintResults() []*pipeline.InpaintResult {
	out := make([]*pipeline.InpaintResult, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Result
	}
	return out
}
