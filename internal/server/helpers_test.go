package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/inpainter"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/stretchr/testify/require"
)

const squarePolygonJSON = `[[[16,16],[48,16],[48,48],[16,48]]]`

var testBackground = color.NRGBA{R: 50, G: 100, B: 150, A: 255}

// fillEngine paints every patch with a constant byte value.
type fillEngine struct {
	value float32
	err   error
	state inpainter.ModelState
}

func (e *fillEngine) Run(_ context.Context, img, _ onnx.Tensor) (onnx.Tensor, error) {
	if e.err != nil {
		return onnx.Tensor{}, e.err
	}
	data := make([]float32, len(img.Data))
	for i := range data {
		data[i] = e.value
	}
	return onnx.Tensor{Data: data, Shape: append([]int64(nil), img.Shape...)}, nil
}

func (e *fillEngine) State() inpainter.ModelState { return e.state }

func newFillEngine(value float32) *fillEngine {
	return &fillEngine{value: value, state: inpainter.StateLoaded}
}

func newTestServer(t *testing.T, engine inpainter.Engine, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:     "https://example.test",
		MaxUploadMB:    5,
		TimeoutSec:     10,
		PipelineConfig: pipeline.DefaultConfig(),
	}
	cfg.PipelineConfig.ModelsDir = t.TempDir()
	for _, m := range mutate {
		m(&cfg)
	}
	pl, err := pipeline.NewBuilder().WithConfig(cfg.PipelineConfig).WithInferenceEngine(engine).Build()
	require.NoError(t, err)
	s := NewServerWithPipeline(cfg, pl)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, testBackground)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a POST with an optional image part and form fields.
func multipartRequest(t *testing.T, target string, img []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		part, err := mw.CreateFormFile("image", "input.png")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}
