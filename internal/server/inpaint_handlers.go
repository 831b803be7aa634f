package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/MeKo-Tech/inpaint/internal/polygons"
	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// inpaintRequest is a parsed multipart request.
type inpaintRequest struct {
	img       image.Image
	polygons  []utils.Polygon
	overrides pipeline.Overrides
	format    string
	quality   int
}

// inpaintHandler removes the polygons from the uploaded image and returns the
// encoded result.
func (s *Server) inpaintHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, p, ok := s.prepare(w, r, "inpaint")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := p.Inpaint(ctx, req.img, req.polygons)
	duration := time.Since(start)
	if err != nil {
		inpaintRequestsTotal.WithLabelValues("inpaint", "error").Inc()
		s.writePipelineError(w, err)
		return
	}
	recordInpaintMetrics("inpaint", duration, res)

	var buf bytes.Buffer
	if err := utils.EncodeImage(&buf, res.Image, req.format, req.quality); err != nil {
		s.writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", utils.ContentType(req.format))
	w.Header().Set("X-Inpaint-Regions", strconv.Itoa(len(res.Regions)))
	w.Header().Set("X-Inpaint-Duration-Ms", strconv.FormatInt(duration.Milliseconds(), 10))
	_, _ = w.Write(buf.Bytes())
}

// debugHandler returns every intermediate image as a base64 PNG together with
// the per-region errors.
func (s *Server) debugHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, p, ok := s.prepare(w, r, "debug")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := p.Debug(ctx, req.img, req.polygons)
	if err != nil {
		inpaintRequestsTotal.WithLabelValues("debug", "error").Inc()
		s.writePipelineError(w, err)
		return
	}
	inpaintRequestsTotal.WithLabelValues("debug", "success").Inc()
	inpaintProcessingDuration.WithLabelValues("debug").Observe(time.Since(start).Seconds())

	response := DebugResponse{
		Images:  make(map[string][]byte, len(res.Images)),
		Regions: res.Regions,
	}
	for _, name := range res.Names() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, res.Images[name]); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("encode %s: %v", name, err), http.StatusInternalServerError)
			return
		}
		response.Images[name] = buf.Bytes()
	}
	if len(res.Errors) > 0 {
		response.Errors = make(map[string]string, len(res.Errors))
		for i, e := range res.Errors {
			response.Errors[strconv.Itoa(i)] = e.Error()
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// visualizeHandler returns a PNG overlay of polygons and planned boxes.
func (s *Server) visualizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, p, ok := s.prepare(w, r, "visualize")
	if !ok {
		return
	}

	out, err := p.Visualize(req.img, req.polygons)
	if err != nil {
		inpaintRequestsTotal.WithLabelValues("visualize", "error").Inc()
		s.writePipelineError(w, err)
		return
	}
	inpaintRequestsTotal.WithLabelValues("visualize", "success").Inc()

	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, out)
}

// prepare parses the request and selects the pipeline for its overrides. On
// failure the response has been written and ok is false.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request, endpoint string) (*inpaintRequest, *pipeline.Pipeline, bool) {
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Inpainting pipeline not initialized", http.StatusServiceUnavailable)
		return nil, nil, false
	}
	req, err := s.parseInpaintRequest(w, r)
	if err != nil {
		inpaintRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, nil, false
	}
	p, err := s.pipelineFor(req.overrides)
	if err != nil {
		inpaintRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Invalid parameters: %v", err), http.StatusBadRequest)
		return nil, nil, false
	}
	return req, p, true
}

// pipelineFor returns the server pipeline or a derived one sharing its engine.
func (s *Server) pipelineFor(o pipeline.Overrides) (*pipeline.Pipeline, error) {
	if o.Empty() {
		return s.pipeline, nil
	}
	return s.pipeline.Derive(o)
}

func (s *Server) parseInpaintRequest(w http.ResponseWriter, r *http.Request) (*inpaintRequest, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, err
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, err
	}

	polyData, err := formText(r, "polygons")
	if err != nil || len(strings.TrimSpace(string(polyData))) == 0 {
		s.writeErrorResponse(w, "No polygons provided", http.StatusBadRequest)
		return nil, errors.New("missing polygons")
	}
	polys, err := polygons.Parse(polyData)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid polygons: %v", err), http.StatusBadRequest)
		return nil, err
	}

	overrides, err := parseOverrides(r.FormValue)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}

	format, err := utils.NormalizeFormat(r.FormValue("format"))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}
	quality := utils.DefaultQuality
	if q := r.FormValue("quality"); q != "" {
		quality, err = strconv.Atoi(q)
		if err != nil || quality < 1 || quality > 100 {
			s.writeErrorResponse(w, "Invalid quality: "+q, http.StatusBadRequest)
			return nil, fmt.Errorf("invalid quality %q", q)
		}
	}

	return &inpaintRequest{
		img:       img,
		polygons:  polys,
		overrides: overrides,
		format:    format,
		quality:   quality,
	}, nil
}

// formText reads a form field given either as a value or as an uploaded file.
func formText(r *http.Request, name string) ([]byte, error) {
	if v := r.FormValue(name); v != "" {
		return []byte(v), nil
	}
	f, _, err := r.FormFile(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// parseOverrides reads the optional numeric parameters shared by the HTTP
// and websocket endpoints.
func parseOverrides(get func(string) string) (pipeline.Overrides, error) {
	var o pipeline.Overrides
	parseInt := func(key string) (*int, error) {
		v := strings.TrimSpace(get(key))
		if v == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", key, v)
		}
		return &n, nil
	}

	var err error
	if o.InputSize, err = parseInt("input_size"); err != nil {
		return o, err
	}
	if o.MaxExpansionSize, err = parseInt("max_expansion_size"); err != nil {
		return o, err
	}
	if o.FeatherSize, err = parseInt("feather_size"); err != nil {
		return o, err
	}
	if v := strings.TrimSpace(get("expand_percentage")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return o, fmt.Errorf("invalid expand_percentage: %q", v)
		}
		o.ExpandPercentage = &f
	}
	return o, nil
}

func recordInpaintMetrics(endpoint string, duration time.Duration, res *pipeline.InpaintResult) {
	inpaintRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	inpaintProcessingDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	inpaintPolygonsTotal.Add(float64(len(res.Regions)))
	inpaintRegionsPerRequest.Observe(float64(len(res.Regions)))
	for _, rr := range res.Regions {
		inpaintInferenceDuration.Observe(time.Duration(rr.Timing.InferenceNs).Seconds())
	}
}
