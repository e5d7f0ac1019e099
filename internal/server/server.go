// Package server exposes the receptionist agent over HTTP: a /api/chat
// endpoint for conversation turns, /api/health for probes, and
// /metrics for Prometheus scrapes.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/acme-dental/booking-agent/pkg/logging"
)

const (
	maxMessageLength   = 2000
	maxSessionIDLength = 100
)

// Chatter runs one conversation turn. *agent.Receptionist satisfies it.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string) (string, error)
}

// ChatRequest is an incoming chat message from the frontend.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse carries the agent's reply.
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}

// HealthResponse answers liveness probes.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server is the HTTP front of the booking agent.
type Server struct {
	chatter Chatter
	logger  zerolog.Logger
	mux     *http.ServeMux
}

// New builds the server. chatter may be nil while the agent is still
// starting up; /api/chat then answers 503.
func New(chatter Chatter) *Server {
	s := &Server{
		chatter: chatter,
		logger:  logging.NewLogger("server"),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withAccessLog(s.mux))
}

// withRequestID tags every request with a UUID for log correlation.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(withRequestIDContext(r.Context(), requestID)))
	})
}

type requestIDKey struct{}

func withRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// statusRecorder captures the response code for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		s.logger.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "Acme Dental AI Agent",
		"version": "1.0.0",
		"health":  "/api/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "acme-dental-agent"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Use POST"})
		return
	}
	if s.chatter == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{Detail: "The agent is still starting up. Please try again in a moment."})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid JSON body"})
		return
	}
	if req.Message == "" || len(req.Message) > maxMessageLength {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Detail: "message must be between 1 and 2000 characters"})
		return
	}
	if req.SessionID == "" || len(req.SessionID) > maxSessionIDLength {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Detail: "session_id must be between 1 and 100 characters"})
		return
	}

	reply, err := s.chatter.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		// Log the failure server-side; never leak internals to the
		// client.
		s.logger.Error().
			Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("session_id", req.SessionID).
			Msg("Chat turn failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{Detail: "An internal error occurred. Please try again."})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, SessionID: req.SessionID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
