package pipeline

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *InpaintResult {
	res := &InpaintResult{Width: 100, Height: 80, Supplied: 1}
	res.Regions = []RegionResult{{
		Index:       0,
		Polygon:     utils.Polygon{{X: 1, Y: 1}, {X: 9, Y: 1}, {X: 9, Y: 9}},
		Box:         utils.BoundingBox{X: 1, Y: 1, Width: 8, Height: 8},
		ExpandedBox: utils.BoundingBox{X: 0, Y: 0, Width: 64, Height: 64},
		MaskPixels:  28,
		Timing:      RegionTiming{InferenceNs: 2_500_000, TotalNs: 4_000_000},
	}}
	res.Processing.TotalNs = 5_000_000
	return res
}

func TestToJSONResult(t *testing.T) {
	s, err := ToJSONResult(sampleResult())
	require.NoError(t, err)
	assert.Contains(t, s, `"supplied_polygons": 1`)
	assert.Contains(t, s, `"expanded_box"`)
	assert.Contains(t, s, `"mask_pixels": 28`)
	assert.NotContains(t, s, "Artifacts")

	_, err = ToJSONResult(nil)
	require.Error(t, err)

	all, err := ToJSONResults([]*InpaintResult{sampleResult(), nil})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(all, "["))
	assert.Contains(t, all, "null")
}

func TestToCSVRegions(t *testing.T) {
	s, err := ToCSVRegions(sampleResult())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(s), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "index,box_x"))
	assert.Equal(t, "0,1,1,8,8,0,0,64,64,28,2.50,4.00", lines[1])

	_, err = ToCSVRegions(nil)
	require.Error(t, err)
}
