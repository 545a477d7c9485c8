// ABOUTME: Speech synthesis client for device audio replies
// ABOUTME: Calls the Google Cloud TTS REST API and returns MP3 bytes

package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://texttospeech.googleapis.com/v1"
	defaultVoice        = "en-GB-Studio-B"
	defaultLanguageCode = "en-GB"
	defaultTimeout      = 30 * time.Second
)

// Synthesizer renders text as speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config holds configuration for the Google TTS client.
type Config struct {
	APIKey       string
	BaseURL      string
	Voice        string
	LanguageCode string
	Timeout      time.Duration
}

// GoogleSynthesizer calls the Google Cloud TTS REST API.
type GoogleSynthesizer struct {
	apiKey       string
	baseURL      string
	voice        string
	languageCode string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewGoogleSynthesizer creates a Google TTS client. Only the API key is
// required; everything else has defaults.
func NewGoogleSynthesizer(cfg Config) (*GoogleSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tts api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = defaultLanguageCode
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &GoogleSynthesizer{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		voice:        cfg.Voice,
		languageCode: cfg.LanguageCode,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       slog.Default().With("component", "tts"),
	}, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Synthesize renders text as MP3 audio.
func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var req synthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = g.languageCode
	req.Voice.Name = g.voice
	req.AudioConfig.AudioEncoding = "MP3"

	payload, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := g.baseURL + "/text:synthesize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling tts: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp synthesizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", httpResp.StatusCode, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tts error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts returned status %d", httpResp.StatusCode)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decoding audio content: %w", err)
	}

	g.logger.Debug("synthesized speech", "chars", len(text), "bytes", len(audio))
	return audio, nil
}
