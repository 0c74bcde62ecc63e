package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/highlight"
	"github.com/MeKo-Tech/codescan/internal/orientation"
	"github.com/MeKo-Tech/codescan/internal/pipeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is restricted by the CORS setting, not here
		return true
	},
}

// Client message types.
const (
	msgLayout      = "layout"
	msgFrame       = "frame"
	msgConfigure   = "configure"
	msgScanEnabled = "scan_enabled"
	msgFlush       = "flush"
)

// Server message types.
const (
	msgSession     = "session"
	msgScan        = "scan"
	msgCleared     = "cleared"
	msgHighlights  = "highlights"
	msgFrameResult = "frame_result"
	msgConfigured  = "configured"
	msgFlushed     = "flushed"
	msgError       = "error"
)

// FrameMessage describes a frame on the wire. Timestamps are milliseconds
// on the host's monotonic clock.
type FrameMessage struct {
	Width       float64                 `json:"width"`
	Height      float64                 `json:"height"`
	Orientation orientation.Orientation `json:"orientation"`
	TimestampMs float64                 `json:"timestamp_ms"`
}

func (f FrameMessage) frame() barcode.Frame {
	return barcode.Frame{
		Width:       f.Width,
		Height:      f.Height,
		Orientation: f.Orientation,
		Timestamp:   time.Duration(f.TimestampMs * float64(time.Millisecond)),
	}
}

func frameMessage(f barcode.Frame) *FrameMessage {
	return &FrameMessage{
		Width:       f.Width,
		Height:      f.Height,
		Orientation: f.Orientation,
		TimestampMs: float64(f.Timestamp) / float64(time.Millisecond),
	}
}

// ClientMessage is a message sent by the host.
type ClientMessage struct {
	Type string `json:"type"`
	// ID is echoed as request_id in the direct reply.
	ID     string         `json:"id,omitempty"`
	Layout *geometry.Size `json:"layout,omitempty"`
	Frame  *FrameMessage  `json:"frame,omitempty"`
	// Detections is the detector output for Frame in either host variant.
	Detections json.RawMessage `json:"detections,omitempty"`
	// Config holds scanner settings to merge into the current ones.
	Config  json.RawMessage `json:"config,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
}

// ServerMessage is a message sent to the host. A highlights message without
// highlights clears the overlay.
type ServerMessage struct {
	Type       string                `json:"type"`
	SessionID  string                `json:"session_id,omitempty"`
	RequestID  string                `json:"request_id,omitempty"`
	Detections []barcode.Detection   `json:"detections,omitempty"`
	Frame      *FrameMessage         `json:"frame,omitempty"`
	Highlights []highlight.Highlight `json:"highlights,omitempty"`
	Outcome    string                `json:"outcome,omitempty"`
	Config     *config.ScannerConfig `json:"config,omitempty"`
	Error      string                `json:"error,omitempty"`
	ErrorType  string                `json:"error_type,omitempty"`
}

// writeWait bounds every write to the peer.
var writeWait = 10 * time.Second

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// messageWriter serializes writes from the read loop and the session's
// dispatcher goroutine onto one connection.
type messageWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (w *messageWriter) send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "type", msg.Type, "error", err)
		return
	}

	w.mu.Lock()
	if d, ok := w.conn.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(writeWait))
	}
	err = w.conn.WriteMessage(websocket.TextMessage, data)
	w.mu.Unlock()
	if err != nil {
		slog.Debug("Failed to send WebSocket message", "type", msg.Type, "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent", msg.Type).Inc()
}

func (w *messageWriter) sendError(requestID, errorType string, err error) {
	if requestID == "" {
		requestID = newRequestID()
	}
	slog.Debug("Reporting WebSocket error", "request_id", requestID, "error_type", errorType, "error", err)
	w.send(ServerMessage{Type: msgError, RequestID: requestID, ErrorType: errorType, Error: err.Error()})
}

// wsSink forwards session outputs to the connection.
type wsSink struct {
	out       *messageWriter
	sessionID string
}

func (s *wsSink) OnScanned(ds []barcode.Detection, frame barcode.Frame) {
	s.out.send(ServerMessage{Type: msgScan, SessionID: s.sessionID, Detections: ds, Frame: frameMessage(frame)})
}

func (s *wsSink) OnCleared(frame barcode.Frame) {
	s.out.send(ServerMessage{Type: msgCleared, SessionID: s.sessionID, Frame: frameMessage(frame)})
}

func (s *wsSink) OnHighlights(hs []highlight.Highlight) {
	s.out.send(ServerMessage{Type: msgHighlights, SessionID: s.sessionID, Highlights: hs})
}

// scanConn is the per-connection state; only the read loop touches it.
type scanConn struct {
	out     *messageWriter
	session *pipeline.Session
	scanner config.ScannerConfig
	logger  *slog.Logger
	opened  time.Time
}

// scanWebSocketHandler handles WebSocket connections for live scanning.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &messageWriter{conn: conn}
	sc, err := s.openSession(out)
	if err != nil {
		out.sendError("", "session_error", err)
		return
	}
	// The connection goes first so a write stuck on a stalled peer fails
	// and the session's dispatcher can drain.
	defer func() {
		_ = conn.Close()
		s.closeSession(sc)
	}()

	sc.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	out.send(ServerMessage{Type: msgSession, SessionID: sc.session.ID(), Config: &sc.scanner})

	s.handleWebSocketConnection(ctx, conn, sc)
}

func (s *Server) openSession(out *messageWriter) (*scanConn, error) {
	cfg, err := s.scanner.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	sink := &wsSink{out: out}
	sess, err := pipeline.NewBuilder().WithConfig(cfg).WithSink(sink).Build()
	if err != nil {
		scanSessionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	sink.sessionID = sess.ID()
	if err := s.register(sess); err != nil {
		scanSessionsTotal.WithLabelValues("rejected").Inc()
		_ = sess.Close()
		return nil, err
	}
	scanSessionsTotal.WithLabelValues("opened").Inc()
	return &scanConn{
		out:     out,
		session: sess,
		scanner: s.scanner.Clone(),
		logger:  slog.Default().With("session", sess.ID()),
		opened:  time.Now(),
	}, nil
}

func (s *Server) closeSession(sc *scanConn) {
	s.unregister(sc.session)
	_ = sc.session.Close()
	lifetime := time.Since(sc.opened)
	scanSessionDuration.Observe(lifetime.Seconds())
	sc.logger.Info("WebSocket connection closed", "duration", lifetime)
}

// handleWebSocketConnection processes messages until the peer goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, sc *scanConn) {
	conn.SetReadLimit(s.maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(s.readTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				sc.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		if messageType != websocket.TextMessage {
			continue
		}
		if errors.Is(s.handleWebSocketMessage(ctx, sc, data), pipeline.ErrSessionClosed) {
			return
		}
	}
}

// handleWebSocketMessage applies one client message to the session.
func (s *Server) handleWebSocketMessage(ctx context.Context, sc *scanConn, data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		websocketMessagesTotal.WithLabelValues("received", "invalid").Inc()
		sc.out.sendError("", "invalid_request", fmt.Errorf("failed to parse message: %w", err))
		return nil
	}
	websocketMessagesTotal.WithLabelValues("received", msg.Type).Inc()

	switch msg.Type {
	case msgLayout:
		if msg.Layout == nil {
			sc.out.sendError(msg.ID, "invalid_request", errors.New("layout message without layout"))
			return nil
		}
		sc.session.SetLayout(*msg.Layout)
	case msgFrame:
		return s.processWebSocketFrame(ctx, sc, msg)
	case msgConfigure:
		s.configureWebSocketSession(sc, msg)
	case msgScanEnabled:
		if msg.Enabled == nil {
			sc.out.sendError(msg.ID, "invalid_request", errors.New("scan_enabled message without enabled"))
			return nil
		}
		sc.session.SetScanEnabled(*msg.Enabled)
		sc.scanner.ScanEnabled = *msg.Enabled
	case msgFlush:
		if err := sc.session.Flush(ctx); err != nil {
			sc.out.sendError(msg.ID, "session_error", err)
			return err
		}
		sc.out.send(ServerMessage{Type: msgFlushed, RequestID: msg.ID})
	default:
		sc.out.sendError(msg.ID, "invalid_request", fmt.Errorf("unsupported message type: %q", msg.Type))
	}
	return nil
}

func (s *Server) processWebSocketFrame(ctx context.Context, sc *scanConn, msg ClientMessage) error {
	if msg.Frame == nil {
		sc.out.sendError(msg.ID, "invalid_request", errors.New("frame message without frame"))
		return nil
	}

	var raw any
	if len(msg.Detections) > 0 {
		raw = msg.Detections
	}
	res, err := sc.session.ProcessFrame(ctx, msg.Frame.frame(), raw)
	if err != nil {
		sc.out.sendError(msg.ID, frameErrorType(err), err)
		if errors.Is(err, pipeline.ErrSessionClosed) {
			return err
		}
	}
	if msg.ID != "" {
		sc.out.send(ServerMessage{Type: msgFrameResult, RequestID: msg.ID, Outcome: res.Outcome.String()})
	}
	return nil
}

func (s *Server) configureWebSocketSession(sc *scanConn, msg ClientMessage) {
	next := sc.scanner.Clone()
	if len(msg.Config) > 0 {
		if err := json.Unmarshal(msg.Config, &next); err != nil {
			sc.out.sendError(msg.ID, "invalid_config", fmt.Errorf("failed to parse config: %w", err))
			return
		}
	}
	cfg, err := next.ToPipelineConfig()
	if err != nil {
		sc.out.sendError(msg.ID, "invalid_config", err)
		return
	}
	if err := sc.session.Configure(cfg); err != nil {
		sc.out.sendError(msg.ID, "session_error", err)
		return
	}
	sc.scanner = next
	sc.out.send(ServerMessage{Type: msgConfigured, RequestID: msg.ID, SessionID: sc.session.ID(), Config: &next})
}

// frameErrorType classifies ProcessFrame errors for the host.
func frameErrorType(err error) string {
	switch {
	case errors.Is(err, barcode.ErrUnsupportedDetectionFormat):
		return "unsupported_detection_format"
	case errors.Is(err, pipeline.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "processing_error"
	}
}

// newRequestID returns an identifier for messages the host did not tag.
func newRequestID() string {
	return uuid.NewString()
}
