package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsMaxMessageMB = 64
)

// WebSocket message types.
const (
	wsTypeScan     = "scan"
	wsTypeProgress = "progress"
	wsTypeResult   = "result"
	wsTypeError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are governed by the CORS setting of the HTTP endpoints.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketScanRequest is a scan request sent by the client.
type WebSocketScanRequest struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id,omitempty"`
	Image      string `json:"image"`
	AutoResize *bool  `json:"auto_resize,omitempty"`
	Exhaustive *bool  `json:"exhaustive,omitempty"`
}

// WebSocketMessage is any message sent by the server. Progress messages
// carry Candidate, Done and Total; result messages carry Result; error
// messages carry Error.
type WebSocketMessage struct {
	Type      string                    `json:"type"`
	RequestID string                    `json:"request_id,omitempty"`
	Candidate *pipeline.CandidateReport `json:"candidate,omitempty"`
	Done      int                       `json:"done,omitempty"`
	Total     int                       `json:"total,omitempty"`
	Result    *ScanResponse             `json:"result,omitempty"`
	Error     *APIError                 `json:"error,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsSender serializes writes; progress arrives from scan workers.
type wsSender struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (s *wsSender) send(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *wsSender) sendError(requestID string, err error) {
	_, detail := classify(err, "scan")
	s.send(WebSocketMessage{Type: wsTypeError, RequestID: requestID, Error: &detail})
}

// scanWebSocketHandler streams scan progress and results over a WebSocket.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
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

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(wsMaxMessageMB * 1024 * 1024)
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

	sender := &wsSender{conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, sender, data)
		}
	}
}

// handleWebSocketMessage runs one scan request and answers with progress
// messages followed by a result or an error.
func (s *Server) handleWebSocketMessage(ctx context.Context, sender *wsSender, data []byte) {
	var req WebSocketScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sender.sendError("", invalid(CodeValidation, "", "failed to parse request: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Type != wsTypeScan {
		sender.sendError(req.RequestID, invalid(CodeValidation, "type", "unsupported request type %q", req.Type))
		return
	}
	if req.Image == "" {
		sender.sendError(req.RequestID, invalid(CodeValidation, "image", "image must not be empty"))
		return
	}

	raw, err := preprocess.DecodeBase64(req.Image)
	if err != nil {
		sender.sendError(req.RequestID, err)
		return
	}

	opts := s.engine.ScanOptions()
	if req.AutoResize != nil {
		opts.AutoResize = *req.AutoResize
	}
	if req.Exhaustive != nil {
		opts.Exhaustive = *req.Exhaustive
	}
	opts.Progress = pipeline.NewFuncProgress(func(c pipeline.CandidateReport, done, total int) {
		sender.send(WebSocketMessage{Type: wsTypeProgress, RequestID: req.RequestID, Candidate: &c, Done: done, Total: total})
	})

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.engine.Scan(ctx, raw, opts)
	scanRequestsTotal.WithLabelValues("websocket", statusLabel(err)).Inc()
	if err != nil {
		sender.sendError(req.RequestID, fmt.Errorf("scan: %w", err))
		return
	}
	scanDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	symbolsDecoded.WithLabelValues("websocket").Observe(float64(len(res.Symbols)))

	resp := scanResponse(res)
	sender.send(WebSocketMessage{Type: wsTypeResult, RequestID: req.RequestID, Result: &resp})
}
