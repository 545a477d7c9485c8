// ABOUTME: HTTP transport shim for the gateway
// ABOUTME: Wires chi routes to the orchestrator, store, TTS, and dashboard feed

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/silaslabs/silas-gateway/internal/broadcast"
	"github.com/silaslabs/silas-gateway/internal/session"
	"github.com/silaslabs/silas-gateway/internal/store"
	"github.com/silaslabs/silas-gateway/internal/tts"
)

// TurnProcessor defines what the server needs from the orchestrator
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, deviceID, text string) (*session.TurnResult, error)
}

// Transcriber defines what the server needs from the reasoning service
// for voice input
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// HistoryReader defines the read-side storage access used by inspection
// endpoints
type HistoryReader interface {
	ListHistory(ctx context.Context, deviceID string, limit int) ([]*store.HistoryEntry, error)
	ListSessions(ctx context.Context, limit int) ([]*store.Session, error)
	GetSession(ctx context.Context, deviceID string) (*store.Session, error)
}

// Server is the HTTP surface of the gateway.
type Server struct {
	turns          TurnProcessor
	transcriber    Transcriber
	history        HistoryReader
	broadcaster    *broadcast.Broadcaster
	synth          tts.Synthesizer // nil when TTS is disabled
	baseURL        string
	allowedOrigins []string
	logger         *slog.Logger
}

// Options configures a Server.
type Options struct {
	Turns          TurnProcessor
	Transcriber    Transcriber
	History        HistoryReader
	Broadcaster    *broadcast.Broadcaster
	Synthesizer    tts.Synthesizer
	BaseURL        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// New creates a Server. Pass a nil logger for default.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		turns:          opts.Turns,
		transcriber:    opts.Transcriber,
		history:        opts.History,
		broadcaster:    opts.Broadcaster,
		synth:          opts.Synthesizer,
		baseURL:        opts.BaseURL,
		allowedOrigins: opts.AllowedOrigins,
		logger:         logger.With("component", "server"),
	}
}

// Router builds the chi router with all gateway routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/voice", s.handleVoice)
	r.Get("/api/tts", s.handleTTS)
	r.Get("/api/history/{deviceID}", s.handleHistory)
	r.Get("/api/sessions", s.handleSessions)
	r.Get("/api/sessions/{deviceID}", s.handleSession)
	r.Get("/ws", s.handleWS)

	return r
}

// errorResponse is the JSON error envelope for all handlers.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// turnStatus maps a turn failure to an HTTP status code.
func turnStatus(err error) int {
	var reasonErr *session.ReasoningError
	if errors.As(err, &reasonErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
