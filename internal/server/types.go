package server

import (
	"net/http"
	"time"

	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	modelsDir   string
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Time       string `json:"time"`
	ModelState string `json:"model_state"`
}

// ModelInfo describes one known model and where the server looks for it.
type ModelInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
	InputSize   int    `json:"input_size"`
	Present     bool   `json:"present"`
}

// ModelsResponse is returned by /models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
	Engine string      `json:"engine"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}

// DebugResponse is returned by /inpaint/debug. Images are base64 PNGs.
type DebugResponse struct {
	Images  map[string][]byte       `json:"images"`
	Errors  map[string]string       `json:"errors,omitempty"`
	Regions []pipeline.RegionResult `json:"regions"`
}

// NewServer builds the pipeline described by config and wraps it in a Server.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}
	return NewServerWithPipeline(config, pl), nil
}

// NewServerWithPipeline creates a Server around an existing pipeline. The
// server takes ownership and closes it in Close.
func NewServerWithPipeline(config Config, pl *pipeline.Pipeline) *Server {
	s := &Server{
		pipeline:    pl,
		modelsDir:   config.PipelineConfig.ModelsDir,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/inpaint", s.corsMiddleware(s.rateLimitMiddleware(s.inpaintHandler)))
	mux.HandleFunc("/inpaint/debug", s.corsMiddleware(s.rateLimitMiddleware(s.debugHandler)))
	mux.HandleFunc("/inpaint/visualize", s.corsMiddleware(s.rateLimitMiddleware(s.visualizeHandler)))
	// The websocket route stays unwrapped so the upgrader can hijack the
	// original ResponseWriter.
	mux.HandleFunc("/ws/inpaint", s.rateLimitMiddleware(s.inpaintWebSocketHandler))
}

// Handler returns a ServeMux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
