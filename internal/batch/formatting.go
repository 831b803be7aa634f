package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatResults renders the batch report as text, json or csv.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the report to outputFile, or to w when outputFile is
// empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = io.WriteString(w, output)
	return err
}

// Stats returns the worker pool statistics of the run.
func (r *Result) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(r.InpaintResults(), r.Duration, r.WorkerCount)
}

// PrintStats prints processing statistics with locale-grouped numbers.
func (r *Result) PrintStats(w io.Writer, tag language.Tag) {
	stats := r.Stats()
	p := message.NewPrinter(tag)
	_, _ = p.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = p.Fprintf(w, "  Images: %d\n", len(r.Items))
	_, _ = p.Fprintf(w, "  Processed: %d\n", stats.ProcessedImages)
	_, _ = p.Fprintf(w, "  Failed: %d\n", stats.FailedImages)
	_, _ = p.Fprintf(w, "  Skipped (no polygons): %d\n", len(r.Skipped))
	_, _ = p.Fprintf(w, "  Regions inpainted: %d\n", stats.RegionsInpainted)
	_, _ = p.Fprintf(w, "  Pixels inpainted: %d\n", r.maskPixels())
	_, _ = p.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = p.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = p.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = p.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
}

func (r *Result) maskPixels() int {
	n := 0
	for _, it := range r.Items {
		if it.Result == nil {
			continue
		}
		for _, rr := range it.Result.Regions {
			n += rr.MaskPixels
		}
	}
	return n
}

func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return formatCSV(r)
	case "text", "":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", format)
	}
}

func formatJSON(r *Result) (string, error) {
	report := struct {
		Images  []ItemResult           `json:"images"`
		Skipped []string               `json:"skipped,omitempty"`
		Stats   pipeline.ParallelStats `json:"stats"`
	}{
		Images:  r.Items,
		Skipped: r.Skipped,
		Stats:   r.Stats(),
	}
	bts, err := json.MarshalIndent(report, "", "  ")
	return string(bts), err
}

func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"file", "polygons", "output", "regions", "duration_ms", "error"}}
	for _, it := range r.Items {
		duration := ""
		if it.Result != nil {
			duration = strconv.FormatFloat(float64(it.Result.Processing.TotalNs)/1e6, 'f', 2, 64)
		}
		rows = append(rows, []string{it.File, it.Polygons, it.Output, strconv.Itoa(it.Regions), duration, it.Error})
	}
	for _, f := range r.Skipped {
		rows = append(rows, []string{f, "", "", "0", "", "no polygon file"})
	}
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

func formatText(r *Result) string {
	var output strings.Builder
	for i, it := range r.Items {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", it.File)
		fmt.Fprintf(&output, "polygons: %s\n", it.Polygons)
		if it.Failed() {
			fmt.Fprintf(&output, "error: %s\n", it.Error)
			continue
		}
		fmt.Fprintf(&output, "output: %s\n", it.Output)
		fmt.Fprintf(&output, "regions: %d\n", it.Regions)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(&output, "\n# %s\nskipped: no polygon file\n", f)
	}
	return output.String()
}
