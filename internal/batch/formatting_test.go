package batch

import (
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	ok := &pipeline.InpaintResult{Width: 32, Height: 32, Regions: []pipeline.RegionResult{{Index: 0, MaskPixels: 256}}}
	ok.Processing.TotalNs = int64(12 * time.Millisecond)
	return &Result{
		Items: []ItemResult{
			{File: "/in/a.png", Polygons: "/in/a.polygons.yaml", Output: "/out/a_inpainted.png", Regions: 1, Result: ok},
			{File: "/in/b.png", Polygons: "/in/b.polygons.yaml", Error: "no valid regions"},
		},
		Skipped:     []string{"/in/c.png"},
		Duration:    time.Second,
		WorkerCount: 2,
	}
}

func TestFormatResults_Text(t *testing.T) {
	out, err := sampleResult().FormatResults("text")
	require.NoError(t, err)

	assert.Contains(t, out, "# /in/a.png\npolygons: /in/a.polygons.yaml\noutput: /out/a_inpainted.png\nregions: 1\n")
	assert.Contains(t, out, "# /in/b.png\npolygons: /in/b.polygons.yaml\nerror: no valid regions\n")
	assert.Contains(t, out, "# /in/c.png\nskipped: no polygon file\n")
}

func TestFormatResults_JSON(t *testing.T) {
	out, err := sampleResult().FormatResults("json")
	require.NoError(t, err)

	var report struct {
		Images  []ItemResult           `json:"images"`
		Skipped []string               `json:"skipped"`
		Stats   pipeline.ParallelStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Images, 2)
	assert.Equal(t, "/out/a_inpainted.png", report.Images[0].Output)
	assert.Equal(t, "no valid regions", report.Images[1].Error)
	assert.Equal(t, []string{"/in/c.png"}, report.Skipped)
	assert.Equal(t, 1, report.Stats.ProcessedImages)
	assert.Equal(t, 1, report.Stats.FailedImages)
}

func TestFormatResults_CSV(t *testing.T) {
	out, err := sampleResult().FormatResults("csv")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"file", "polygons", "output", "regions", "duration_ms", "error"}, rows[0])
	assert.Equal(t, []string{"/in/a.png", "/in/a.polygons.yaml", "/out/a_inpainted.png", "1", "12.00", ""}, rows[1])
	assert.Equal(t, "no valid regions", rows[2][5])
	assert.Equal(t, "no polygon file", rows[3][5])
}

func TestFormatResults_Unknown(t *testing.T) {
	_, err := sampleResult().FormatResults("xml")
	assert.Error(t, err)
}

func TestSaveResults(t *testing.T) {
	res := sampleResult()

	var sb strings.Builder
	require.NoError(t, res.SaveResults(&sb, "text", ""))
	assert.Contains(t, sb.String(), "/in/a.png")

	path := filepath.Join(t.TempDir(), "report.json")
	sb.Reset()
	require.NoError(t, res.SaveResults(&sb, "json", path))
	assert.Empty(t, sb.String())
	assert.FileExists(t, path)
}

func TestMaskPixels(t *testing.T) {
	assert.Equal(t, 256, sampleResult().maskPixels())
}
