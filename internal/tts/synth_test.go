// ABOUTME: Tests for the Google TTS client
// ABOUTME: Uses an httptest server to check request shape and audio decoding

package tts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoogleSynthesizer_RequiresAPIKey(t *testing.T) {
	_, err := NewGoogleSynthesizer(Config{})
	assert.Error(t, err)
}

func TestSynthesize(t *testing.T) {
	var captured synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text:synthesize", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		// "bW96" is base64 for "moz"
		w.Write([]byte(`{"audioContent": "bW96"}`))
	}))
	defer srv.Close()

	synth, err := NewGoogleSynthesizer(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Voice:   "en-GB-Studio-B",
	})
	require.NoError(t, err)

	audio, err := synth.Synthesize(t.Context(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("moz"), audio)

	assert.Equal(t, "hello there", captured.Input.Text)
	assert.Equal(t, "en-GB-Studio-B", captured.Voice.Name)
	assert.Equal(t, "en-GB", captured.Voice.LanguageCode)
	assert.Equal(t, "MP3", captured.AudioConfig.AudioEncoding)
}

func TestSynthesize_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "API key invalid"}}`))
	}))
	defer srv.Close()

	synth, err := NewGoogleSynthesizer(Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = synth.Synthesize(t.Context(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key invalid")
}
