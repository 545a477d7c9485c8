// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Covers turn endpoints, failure mapping, voice upload, TTS, and inspection

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silaslabs/silas-gateway/internal/broadcast"
	"github.com/silaslabs/silas-gateway/internal/classify"
	"github.com/silaslabs/silas-gateway/internal/session"
	"github.com/silaslabs/silas-gateway/internal/store"
)

type stubTurns struct {
	result *session.TurnResult
	err    error
	gotDev string
	gotTxt string
}

func (s *stubTurns) ProcessTurn(ctx context.Context, deviceID, text string) (*session.TurnResult, error) {
	s.gotDev = deviceID
	s.gotTxt = text
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return s.text, s.err
}

type stubSynth struct {
	gotText string
	audio   []byte
	err     error
}

func (s *stubSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.gotText = text
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

func okResult() *session.TurnResult {
	return &session.TurnResult{
		CleanText:      "Set the pin mode.",
		Tier:           classify.TierLow,
		State:          map[string]any{"status": "idle"},
		Summary:        "Checking GPIO state",
		ThinkingTokens: 7,
	}
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.History == nil {
		opts.History = store.NewMockStore()
	}
	srv := httptest.NewServer(New(opts).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleChat(t *testing.T) {
	turns := &stubTurns{result: okResult()}
	srv := newTestServer(t, Options{Turns: turns})

	resp := postJSON(t, srv.URL+"/api/chat", ChatRequest{DeviceID: "dev-1", Text: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TurnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Set the pin mode.", body.Text)
	assert.Equal(t, classify.TierLow, body.ThinkingLevel)
	assert.Equal(t, 7, body.ThoughtTokens)
	assert.Equal(t, map[string]any{"status": "idle"}, body.HardwareState)
	assert.Empty(t, body.AudioURL) // no synthesizer configured
	assert.Equal(t, "dev-1", turns.gotDev)
	assert.Equal(t, "hello", turns.gotTxt)
}

func TestHandleChat_IncludesAudioURLWhenTTSEnabled(t *testing.T) {
	turns := &stubTurns{result: okResult()}
	srv := newTestServer(t, Options{
		Turns:       turns,
		Synthesizer: &stubSynth{audio: []byte("mp3")},
		BaseURL:     "http://silas.local:8000",
	})

	resp := postJSON(t, srv.URL+"/api/chat", ChatRequest{DeviceID: "dev-1", Text: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TurnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "http://silas.local:8000/api/tts?text=Set+the+pin+mode.", body.AudioURL)
}

func TestHandleChat_Validation(t *testing.T) {
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}})

	resp := postJSON(t, srv.URL+"/api/chat", ChatRequest{DeviceID: "", Text: "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestHandleChat_FailureMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"reasoning failure", &session.ReasoningError{Err: errors.New("down")}, http.StatusBadGateway},
		{"persistence failure", &session.PersistenceError{Err: errors.New("disk full")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{Turns: &stubTurns{err: tt.err}})

			resp := postJSON(t, srv.URL+"/api/chat", ChatRequest{DeviceID: "dev-1", Text: "hi"})
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHandleChat_PublishesResetEvent(t *testing.T) {
	b := broadcast.New(nil)
	defer b.Close()
	events, _ := b.Subscribe(t.Context())

	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}, Broadcaster: b})

	resp := postJSON(t, srv.URL+"/api/chat", ChatRequest{DeviceID: "dev-1", Text: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	event := <-events
	assert.Equal(t, broadcast.EventTurnReset, event.Name)
}

func voiceRequest(t *testing.T, url, deviceID string, audio []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("device_id", deviceID))
	fw, err := mw.CreateFormFile("audio", "clip.wav")
	require.NoError(t, err)
	_, err = fw.Write(audio)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/voice", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleVoice(t *testing.T) {
	turns := &stubTurns{result: okResult()}
	srv := newTestServer(t, Options{
		Turns:       turns,
		Transcriber: &stubTranscriber{text: "why won't my LED blink"},
	})

	resp := voiceRequest(t, srv.URL, "dev-1", []byte("RIFF..."))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TurnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "why won't my LED blink", body.Transcript)
	assert.Equal(t, "why won't my LED blink", turns.gotTxt)
}

func TestHandleVoice_EmptyTranscription(t *testing.T) {
	srv := newTestServer(t, Options{
		Turns:       &stubTurns{result: okResult()},
		Transcriber: &stubTranscriber{text: ""},
	})

	resp := voiceRequest(t, srv.URL, "dev-1", []byte("silence"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleVoice_TranscriptionFailure(t *testing.T) {
	srv := newTestServer(t, Options{
		Turns:       &stubTurns{result: okResult()},
		Transcriber: &stubTranscriber{err: errors.New("model offline")},
	})

	resp := voiceRequest(t, srv.URL, "dev-1", []byte("RIFF..."))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHandleTTS(t *testing.T) {
	synth := &stubSynth{audio: []byte("mp3-bytes")}
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}, Synthesizer: synth})

	resp, err := http.Get(srv.URL + "/api/tts?text=" + "use+a+%2A%2Apull-up%2A%2A+resistor")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	// Markdown was stripped before synthesis.
	assert.Equal(t, "use a pull-up resistor", synth.gotText)
}

func TestHandleTTS_Disabled(t *testing.T) {
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}})

	resp, err := http.Get(srv.URL + "/api/tts?text=hello")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleHistory(t *testing.T) {
	mock := store.NewMockStore()
	require.NoError(t, mock.CommitTurn(context.Background(), &store.TurnRecord{
		DeviceID: "dev-1", UserText: "q", ModelText: "a",
	}))
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}, History: mock})

	resp, err := http.Get(srv.URL + "/api/history/dev-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		DeviceID string                 `json:"device_id"`
		Entries  []HistoryEntryResponse `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "dev-1", body.DeviceID)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, store.RoleUser, body.Entries[0].Role)
	assert.Equal(t, store.RoleModel, body.Entries[1].Role)
}

func TestHandleHistory_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}})

	for _, raw := range []string{"abc", "12abc", "0", "-5"} {
		resp, err := http.Get(srv.URL + "/api/history/dev-1?limit=" + raw)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", raw)
	}
}

func TestHandleSession_NotFound(t *testing.T) {
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}})

	resp, err := http.Get(srv.URL + "/api/sessions/dev-unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleSession_HidesRawToken(t *testing.T) {
	mock := store.NewMockStore()
	require.NoError(t, mock.CommitTurn(context.Background(), &store.TurnRecord{
		DeviceID: "dev-1", ContinuationToken: "top-secret-signature", HasContinuation: true,
		UserText: "q", ModelText: "a",
	}))
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}, History: mock})

	resp, err := http.Get(srv.URL + "/api/sessions/dev-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw := new(bytes.Buffer)
	_, err = raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, raw.String(), "top-secret-signature")

	var body SessionResponse
	require.NoError(t, json.Unmarshal(raw.Bytes(), &body))
	assert.True(t, body.HasContinuation)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Options{Turns: &stubTurns{result: okResult()}})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTurnStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, turnStatus(&session.ReasoningError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusBadGateway, turnStatus(fmt.Errorf("wrapped: %w", &session.ReasoningError{Err: errors.New("x")})))
	assert.Equal(t, http.StatusInternalServerError, turnStatus(&session.PersistenceError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, turnStatus(errors.New("other")))
}
