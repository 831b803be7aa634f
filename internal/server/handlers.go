package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/models"
	"github.com/MeKo-Tech/inpaint/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.pipeline != nil {
		response.ModelState = s.pipeline.Adapter().State().String()
	}

	writeJSON(w, http.StatusOK, response)
}

// modelsHandler returns the known models and whether they are installed.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses := models.ListModelStatus(s.modelsDir)
	modelList := make([]ModelInfo, len(statuses))
	for i, st := range statuses {
		modelList[i] = ModelInfo{
			Name:        st.Name,
			Path:        st.Path,
			Type:        st.Type,
			Description: st.Description,
			InputSize:   st.InputSize,
			Present:     st.Present,
		}
	}

	response := ModelsResponse{Models: modelList, Count: len(modelList)}
	if s.pipeline != nil {
		response.Engine = s.pipeline.Config().Engine
	}
	writeJSON(w, http.StatusOK, response)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// writePipelineError maps a pipeline failure to a status code and error type.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	status := apperrors.StatusCode(err)
	errorType := "processing_error"
	if kind, ok := apperrors.KindOf(err); ok {
		errorType = string(kind)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status, errorType = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		status, errorType = http.StatusServiceUnavailable, "canceled"
	}
	writeJSON(w, status, ErrorResponse{Success: false, Error: err.Error(), ErrorType: errorType})
}
