// ABOUTME: HTTP API handlers for turns, voice input, speech, and inspection
// ABOUTME: Maps typed turn failures onto HTTP status codes

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/silaslabs/silas-gateway/internal/broadcast"
	"github.com/silaslabs/silas-gateway/internal/classify"
	"github.com/silaslabs/silas-gateway/internal/store"
	"github.com/silaslabs/silas-gateway/internal/tts"
)

// maxAudioBytes bounds uploaded voice clips (10 MiB).
const maxAudioBytes = 10 << 20

// ChatRequest is the JSON request body for POST /api/chat.
type ChatRequest struct {
	DeviceID string `json:"device_id"`
	Text     string `json:"text"`
}

// TurnResponse is the JSON response for chat and voice turns.
type TurnResponse struct {
	Text          string         `json:"text"`
	ThinkingLevel classify.Tier  `json:"thinking_level"`
	ThoughtTokens int            `json:"thought_tokens"`
	HardwareState map[string]any `json:"hardware_state"`
	AudioURL      string         `json:"audio_url,omitempty"`
	// Transcript echoes what the voice endpoint heard; empty for text turns.
	Transcript string `json:"transcript,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeviceID == "" || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "device_id and text are required")
		return
	}

	s.runTurn(w, r, req.DeviceID, req.Text, "")
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	deviceID := r.FormValue("device_id")
	if deviceID == "" {
		s.writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reading audio upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	text, err := s.transcriber.Transcribe(r.Context(), audio, mimeType)
	if err != nil {
		s.logger.Error("transcription failed", "device_id", deviceID, "error", err)
		s.writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	if text == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "no speech detected")
		return
	}

	s.logger.Info("voice input transcribed", "device_id", deviceID, "chars", len(text))
	s.runTurn(w, r, deviceID, text, text)
}

// runTurn executes a turn and writes the shared turn response.
func (s *Server) runTurn(w http.ResponseWriter, r *http.Request, deviceID, text, transcript string) {
	// Dashboards clear their view when a new request starts.
	if s.broadcaster != nil {
		s.broadcaster.Publish(broadcast.EventTurnReset, map[string]string{"device_id": deviceID})
	}

	result, err := s.turns.ProcessTurn(r.Context(), deviceID, text)
	if err != nil {
		s.logger.Error("turn failed", "device_id", deviceID, "error", err)
		s.writeError(w, turnStatus(err), "turn failed")
		return
	}

	resp := TurnResponse{
		Text:          result.CleanText,
		ThinkingLevel: result.Tier,
		ThoughtTokens: result.ThinkingTokens,
		HardwareState: result.State,
		Transcript:    transcript,
	}
	if s.synth != nil {
		resp.AudioURL = fmt.Sprintf("%s/api/tts?text=%s", s.baseURL, url.QueryEscape(result.CleanText))
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		s.writeError(w, http.StatusNotFound, "tts is disabled")
		return
	}

	text := r.URL.Query().Get("text")
	if text == "" {
		s.writeError(w, http.StatusBadRequest, "text query parameter is required")
		return
	}

	audio, err := s.synth.Synthesize(r.Context(), tts.StripMarkdown(text))
	if err != nil {
		s.logger.Error("speech synthesis failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		s.logger.Debug("client went away during audio write", "error", err)
	}
}

// HistoryEntryResponse is one history row in GET /api/history responses.
type HistoryEntryResponse struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := s.history.ListHistory(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("history lookup failed", "device_id", deviceID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:        e.ID,
			Role:      e.Role,
			Content:   e.Content,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID, "entries": out})
}

// SessionResponse is the JSON shape for session inspection. The raw
// continuation token never leaves the gateway; only its presence is shown.
type SessionResponse struct {
	DeviceID        string `json:"device_id"`
	HasContinuation bool   `json:"has_continuation"`
	UpdatedAt       string `json:"updated_at"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.history.ListSessions(r.Context(), 100)
	if err != nil {
		s.logger.Error("session list failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "session list failed")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionResponse(sess))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	sess, err := s.history.GetSession(r.Context(), deviceID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no session for device")
		return
	}
	if err != nil {
		s.logger.Error("session lookup failed", "device_id", deviceID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	s.writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func sessionResponse(sess *store.Session) SessionResponse {
	return SessionResponse{
		DeviceID:        sess.DeviceID,
		HasContinuation: sess.HasContinuation,
		UpdatedAt:       sess.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// decodeJSON decodes a JSON request body with a 1 MiB size cap.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
