package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/MeKo-Tech/inpaint/internal/polygons"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketInpaintRequest is one inpainting job sent by a client. Image is
// base64 in JSON; Polygons uses the same document format as the HTTP
// endpoints.
type WebSocketInpaintRequest struct {
	Image    []byte          `json:"image"`
	Polygons json.RawMessage `json:"polygons"`
	Options  map[string]any  `json:"options,omitempty"`
	Format   string          `json:"format,omitempty"`
	Quality  int             `json:"quality,omitempty"`
}

// WebSocketInpaintResult carries the encoded output image.
type WebSocketInpaintResult struct {
	Image   []byte                  `json:"image"`
	Format  string                  `json:"format"`
	Width   int                     `json:"width"`
	Height  int                     `json:"height"`
	Regions []pipeline.RegionResult `json:"regions"`
}

// WebSocketInpaintResponse is sent for progress, completion and errors.
type WebSocketInpaintResponse struct {
	Type      string                  `json:"type"`
	Status    string                  `json:"status"` // "processing", "completed", "error"
	Progress  float64                 `json:"progress"`
	Current   int                     `json:"current,omitempty"`
	Total     int                     `json:"total,omitempty"`
	Result    *WebSocketInpaintResult `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	ErrorType string                  `json:"error_type,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
}

// WebSocketConnWriter is the subset of *websocket.Conn used for replies.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// inpaintWebSocketHandler serves inpainting jobs over a websocket with
// per-region progress messages.
func (s *Server) inpaintWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	var req WebSocketInpaintRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if s.pipeline == nil {
		s.sendWebSocketError(conn, requestID, string(apperrors.KindModelNotReady), "Inpainting pipeline not initialized")
		return
	}
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
		return
	}
	if len(bytes.TrimSpace(req.Polygons)) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No polygons provided")
		return
	}

	img, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}
	polys, err := polygons.Parse(req.Polygons)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Invalid polygons: %v", err))
		return
	}
	format, err := utils.NormalizeFormat(req.Format)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}
	quality := req.Quality
	if quality == 0 {
		quality = utils.DefaultQuality
	}
	if quality < 1 || quality > 100 {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Invalid quality: %d", quality))
		return
	}

	overrides, err := parseOverrides(optionGetter(req.Options))
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}
	p, err := s.pipelineFor(overrides)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Invalid parameters: %v", err))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketInpaintResponse{
		Type:      "inpaint_response",
		Status:    "processing",
		RequestID: requestID,
	})

	progress := pipeline.ProgressFunc(func(current, total int, err error) {
		if err != nil || total <= 0 {
			return
		}
		s.sendWebSocketResponse(conn, WebSocketInpaintResponse{
			Type:      "inpaint_response",
			Status:    "processing",
			Progress:  float64(current) / float64(total),
			Current:   current,
			Total:     total,
			RequestID: requestID,
		})
	})

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := p.InpaintWithProgress(runCtx, img, polys, progress)
	duration := time.Since(start)
	if err != nil {
		inpaintRequestsTotal.WithLabelValues("websocket", "error").Inc()
		errorType := "processing_error"
		if kind, ok := apperrors.KindOf(err); ok {
			errorType = string(kind)
		}
		s.sendWebSocketError(conn, requestID, errorType, err.Error())
		return
	}
	recordInpaintMetrics("websocket", duration, res)

	var buf bytes.Buffer
	if err := utils.EncodeImage(&buf, res.Image, format, quality); err != nil {
		s.sendWebSocketError(conn, requestID, string(apperrors.KindIOConversion), err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketInpaintResponse{
		Type:     "inpaint_response",
		Status:   "completed",
		Progress: 1.0,
		Result: &WebSocketInpaintResult{
			Image:   buf.Bytes(),
			Format:  format,
			Width:   res.Width,
			Height:  res.Height,
			Regions: res.Regions,
		},
		RequestID: requestID,
	})
}

// optionGetter exposes a JSON options object through the same lookup used
// for form values.
func optionGetter(options map[string]any) func(string) string {
	return func(key string) string {
		v, ok := options[key]
		if !ok || v == nil {
			return ""
		}
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
}

func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketInpaintResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketInpaintResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
