// Package server exposes scanning sessions over HTTP. A host connects to
// /ws/scan, streams layout, frame and configuration messages, and receives
// scan events and highlight overlays on the same connection.
package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	scanner         config.ScannerConfig
	corsOrigin      string
	readTimeout     time.Duration
	maxMessageBytes int64
	rateLimiter     *RateLimiter

	mu       sync.Mutex
	sessions map[string]*pipeline.Session
	closed   bool
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	CORSOrigin        string
	ReadTimeout       time.Duration
	MaxMessageKB      int
	SessionsPerMinute int
	SessionsPerHour   int
	// Scanner is the initial configuration of every new session.
	Scanner config.ScannerConfig
}

// Response types for API endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Time     string `json:"time"`
	Sessions int    `json:"sessions"`
}

type SessionsResponse struct {
	Sessions []map[string]any `json:"sessions"`
	Count    int              `json:"count"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new scanning server instance.
func NewServer(cfg Config) (*Server, error) {
	if _, err := cfg.Scanner.ToPipelineConfig(); err != nil {
		return nil, fmt.Errorf("invalid scanner defaults: %w", err)
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	maxKB := cfg.MaxMessageKB
	if maxKB <= 0 {
		maxKB = 512
	}

	s := &Server{
		scanner:         cfg.Scanner.Clone(),
		corsOrigin:      cfg.CORSOrigin,
		readTimeout:     readTimeout,
		maxMessageBytes: int64(maxKB) * 1024,
		sessions:        make(map[string]*pipeline.Session),
	}
	if cfg.SessionsPerMinute > 0 || cfg.SessionsPerHour > 0 {
		s.rateLimiter = NewRateLimiter(cfg.SessionsPerMinute, cfg.SessionsPerHour)
	}
	return s, nil
}

// Close closes every open session. Connections still attached see their
// next frame rejected and are dropped.
func (s *Server) Close() error {
	s.mu.Lock()
	sessions := make([]*pipeline.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.closed = true
	s.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/sessions", s.corsMiddleware(s.sessionsHandler))
	mux.HandleFunc("/ws/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) register(sess *pipeline.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pipeline.ErrSessionClosed
	}
	s.sessions[sess.ID()] = sess
	return nil
}

func (s *Server) unregister(sess *pipeline.Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
