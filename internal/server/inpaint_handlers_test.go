package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/inpainter"
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestInpaintHandler_FillsPolygonOnly(t *testing.T) {
	s := newTestServer(t, newFillEngine(200))
	req := multipartRequest(t, "/inpaint", pngBytes(t, testImage(64, 64)), map[string]string{
		"polygons": squarePolygonJSON,
	})

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Inpaint-Regions"))
	assert.NotEmpty(t, rec.Header().Get("X-Inpaint-Duration-Ms"))

	out := decodePNG(t, rec.Body.Bytes())
	assert.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 255}, color.NRGBAModel.Convert(out.At(32, 32)))
	assert.Equal(t, testBackground, color.NRGBAModel.Convert(out.At(2, 2)))
	assert.Equal(t, testBackground, color.NRGBAModel.Convert(out.At(60, 60)))
}

func TestInpaintHandler_YAMLPolygonsAsFile(t *testing.T) {
	s := newTestServer(t, inpainter.NewIdentityEngine())
	yamlDoc := "polygons:\n  - [{x: 4, y: 4}, {x: 20, y: 4}, {x: 20, y: 20}, {x: 4, y: 20}]\n"

	req := multipartRequest(t, "/inpaint", pngBytes(t, testImage(32, 32)), map[string]string{
		"polygons": yamlDoc,
	})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The identity engine leaves a uniform image untouched.
	out := decodePNG(t, rec.Body.Bytes())
	for _, p := range []image.Point{{0, 0}, {12, 12}, {31, 31}} {
		assert.Equal(t, testBackground, color.NRGBAModel.Convert(out.At(p.X, p.Y)))
	}
}

func TestInpaintHandler_OutputFormat(t *testing.T) {
	s := newTestServer(t, newFillEngine(200))
	req := multipartRequest(t, "/inpaint", pngBytes(t, testImage(64, 64)), map[string]string{
		"polygons": squarePolygonJSON,
		"format":   "jpg",
		"quality":  "80",
	})

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	_, format, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestInpaintHandler_Overrides(t *testing.T) {
	s := newTestServer(t, newFillEngine(200))
	req := multipartRequest(t, "/inpaint", pngBytes(t, testImage(64, 64)), map[string]string{
		"polygons":           squarePolygonJSON,
		"input_size":         "32",
		"expand_percentage":  "0.1",
		"max_expansion_size": "8",
		"feather_size":       "2",
	})

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// The shared pipeline keeps its own parameters.
	assert.Equal(t, 512, s.pipeline.Config().InputSize)
}

func TestInpaintHandler_BadRequests(t *testing.T) {
	s := newTestServer(t, newFillEngine(200))
	img := pngBytes(t, testImage(64, 64))

	tests := []struct {
		name     string
		img      []byte
		fields   map[string]string
		wantType string
	}{
		{name: "no image", fields: map[string]string{"polygons": squarePolygonJSON}},
		{name: "not an image", img: []byte("hello"), fields: map[string]string{"polygons": squarePolygonJSON}},
		{name: "no polygons", img: img, fields: map[string]string{}},
		{name: "malformed polygons", img: img, fields: map[string]string{"polygons": "[[1, 2"}},
		{name: "bad format", img: img, fields: map[string]string{"polygons": squarePolygonJSON, "format": "tiff"}},
		{name: "bad quality", img: img, fields: map[string]string{"polygons": squarePolygonJSON, "quality": "0"}},
		{name: "non-numeric override", img: img, fields: map[string]string{"polygons": squarePolygonJSON, "input_size": "big"}},
		{name: "invalid override", img: img, fields: map[string]string{"polygons": squarePolygonJSON, "input_size": "0"}},
		{name: "oversized input size", img: img, fields: map[string]string{"polygons": squarePolygonJSON, "input_size": "1048576"}},
		{name: "nan expand percentage", img: img, fields: map[string]string{"polygons": squarePolygonJSON, "expand_percentage": "NaN"}},
		{name: "infinite expand percentage", img: img, fields: map[string]string{"polygons": squarePolygonJSON, "expand_percentage": "+Inf"}},
		{name: "non-finite polygon coordinate", img: img, fields: map[string]string{"polygons": "- [[10,10],[.nan,10],[30,30]]"}},
		{
			name:     "only degenerate polygons",
			img:      img,
			fields:   map[string]string{"polygons": `[[[1,1],[5,5]]]`},
			wantType: "no_valid_regions",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, multipartRequest(t, "/inpaint", tt.img, tt.fields))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, resp.ErrorType)
			}
		})
	}
}

func TestInpaintHandler_EngineFailures(t *testing.T) {
	tests := []struct {
		name       string
		engine     *fillEngine
		wantStatus int
		wantType   string
	}{
		{
			name:       "model loading",
			engine:     &fillEngine{state: inpainter.StateLoading},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   "model_not_ready",
		},
		{
			name:       "engine error",
			engine:     &fillEngine{state: inpainter.StateLoaded, err: errors.New("session crashed")},
			wantStatus: http.StatusBadGateway,
			wantType:   "inference",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.engine)
			rec := serve(s, multipartRequest(t, "/inpaint", pngBytes(t, testImage(64, 64)), map[string]string{
				"polygons": squarePolygonJSON,
			}))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.ErrorType)
		})
	}
}

func TestInpaintHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, newFillEngine(200))
	for _, path := range []string{"/inpaint", "/inpaint/debug", "/inpaint/visualize"} {
		req := multipartRequest(t, path, nil, nil)
		req.Method = http.MethodGet
		assert.Equal(t, http.StatusMethodNotAllowed, serve(s, req).Code, path)
	}
}

func TestDebugHandler(t *testing.T) {
	s := newTestServer(t, newFillEngine(200))
	req := multipartRequest(t, "/inpaint/debug", pngBytes(t, testImage(64, 64)), map[string]string{
		"polygons": squarePolygonJSON,
	})

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DebugResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Errors)
	require.Len(t, resp.Regions, 1)

	for _, name := range []string{
		pipeline.ArtifactOriginal,
		pipeline.ArtifactName(pipeline.ArtifactCropped, 0),
		pipeline.ArtifactName(pipeline.ArtifactMask, 0),
		pipeline.ArtifactName(pipeline.ArtifactPatchRaw, 0),
		pipeline.ArtifactFinal,
	} {
		require.Contains(t, resp.Images, name)
		decodePNG(t, resp.Images[name])
	}
}

func TestDebugHandler_ReportsRegionErrors(t *testing.T) {
	s := newTestServer(t, &fillEngine{state: inpainter.StateLoaded, err: errors.New("session crashed")})
	req := multipartRequest(t, "/inpaint/debug", pngBytes(t, testImage(64, 64)), map[string]string{
		"polygons": squarePolygonJSON,
	})

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DebugResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "0")
	assert.Empty(t, resp.Regions)
	assert.Contains(t, resp.Images, pipeline.ArtifactFinal)
	assert.NotContains(t, resp.Images, pipeline.ArtifactName(pipeline.ArtifactPatchRaw, 0))
}

func TestVisualizeHandler(t *testing.T) {
	s := newTestServer(t, newFillEngine(200))
	req := multipartRequest(t, "/inpaint/visualize", pngBytes(t, testImage(64, 64)), map[string]string{
		"polygons": squarePolygonJSON,
	})

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, image.Rect(0, 0, 64, 64), decodePNG(t, rec.Body.Bytes()).Bounds())
}

func TestParseOverrides(t *testing.T) {
	values := map[string]string{"input_size": " 256 ", "expand_percentage": "0.25"}
	o, err := parseOverrides(func(k string) string { return values[k] })
	require.NoError(t, err)
	require.NotNil(t, o.InputSize)
	assert.Equal(t, 256, *o.InputSize)
	require.NotNil(t, o.ExpandPercentage)
	assert.InDelta(t, 0.25, *o.ExpandPercentage, 1e-9)
	assert.Nil(t, o.MaxExpansionSize)
	assert.Nil(t, o.FeatherSize)

	empty, err := parseOverrides(func(string) string { return "" })
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	_, err = parseOverrides(func(k string) string {
		if k == "expand_percentage" {
			return "lots"
		}
		return ""
	})
	assert.Error(t, err)
}
