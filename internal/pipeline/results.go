package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
)

// ToJSONResult serializes a single InpaintResult (without pixels) to pretty JSON.
func ToJSONResult(res *InpaintResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes multiple results to pretty JSON.
func ToJSONResults(results []*InpaintResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCSVRegions exports per-region geometry and timing as CSV with header.
func ToCSVRegions(res *InpaintResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{
		"index", "box_x", "box_y", "box_w", "box_h",
		"expanded_x", "expanded_y", "expanded_w", "expanded_h",
		"mask_pixels", "inference_ms", "total_ms",
	})
	for _, r := range res.Regions {
		_ = w.Write([]string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.Box.X), strconv.Itoa(r.Box.Y), strconv.Itoa(r.Box.Width), strconv.Itoa(r.Box.Height),
			strconv.Itoa(r.ExpandedBox.X), strconv.Itoa(r.ExpandedBox.Y),
			strconv.Itoa(r.ExpandedBox.Width), strconv.Itoa(r.ExpandedBox.Height),
			strconv.Itoa(r.MaskPixels),
			strconv.FormatFloat(float64(r.Timing.InferenceNs)/1e6, 'f', 2, 64),
			strconv.FormatFloat(float64(r.Timing.TotalNs)/1e6, 'f', 2, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
