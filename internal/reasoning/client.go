// ABOUTME: Gemini REST client for turn generation and audio transcription
// ABOUTME: Re-injects thought signatures and surfaces per-part continuation candidates

package reasoning

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

	"github.com/silaslabs/silas-gateway/internal/classify"
)

const (
	defaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel           = "gemini-3-flash-preview"
	defaultTranscribeModel = "gemini-2.0-flash"
	defaultTimeout         = 2 * time.Minute

	// transcribePrompt instructs the multimodal model to return only the
	// spoken words.
	transcribePrompt = "Transcribe this audio exactly. Just the text."
)

// Config holds configuration for the Gemini client.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
	Timeout         time.Duration
}

// Client talks to the Gemini generateContent API over REST.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	transcribeModel string
	httpClient      *http.Client
	logger          *slog.Logger
}

// NewClient creates a Gemini client. Zero-value config fields fall back to
// defaults; only the API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = defaultTranscribeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		model:           cfg.Model,
		transcribeModel: cfg.TranscribeModel,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		logger:          slog.Default().With("component", "reasoning"),
	}, nil
}

// GenerateRequest is one turn's input to the reasoning service.
type GenerateRequest struct {
	SystemInstruction string
	Tier              classify.Tier
	// PriorContinuation is the stored thought signature from the device's
	// last turn. Empty means the device has no prior context; nothing is
	// re-injected.
	PriorContinuation string
	UserText          string
}

// GenerateResult is the service reply with every optional field defaulted.
type GenerateResult struct {
	// ReplyText is the concatenated visible text parts.
	ReplyText string
	// ContinuationCandidates are the thought signatures of the reply's
	// parts, in part order. Entries may be empty; the caller picks the
	// last non-empty one.
	ContinuationCandidates []string
	// ThoughtSummary is the concatenated thought parts, empty if the
	// service returned none.
	ThoughtSummary string
	// ThinkingTokens is the thought token count, 0 if unreported.
	ThinkingTokens int
	// TotalTokens is the total token count, 0 if unreported.
	TotalTokens int
}

// Generate runs one reasoning turn. The prior continuation, when present,
// is sent as a leading model-role part carrying only the thought signature
// so the service can resume context without history replay.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	var contents []geminiContent
	if req.PriorContinuation != "" {
		contents = append(contents, geminiContent{
			Role:  "model",
			Parts: []geminiPart{{ThoughtSignature: req.PriorContinuation}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: req.UserText}},
	})

	body := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			ThinkingConfig: &geminiThinkingConfig{
				IncludeThoughts: true,
				ThinkingLevel:   string(req.Tier),
			},
		},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}

	resp, err := c.generateContent(ctx, c.model, &body)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{
		ThinkingTokens: resp.UsageMetadata.ThoughtsTokenCount,
		TotalTokens:    resp.UsageMetadata.TotalTokenCount,
	}

	if len(resp.Candidates) == 0 {
		return result, nil
	}

	var text, thoughts strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Thought {
			thoughts.WriteString(part.Text)
		} else {
			text.WriteString(part.Text)
		}
		result.ContinuationCandidates = append(result.ContinuationCandidates, part.ThoughtSignature)
	}
	result.ReplyText = text.String()
	result.ThoughtSummary = strings.TrimSpace(thoughts.String())

	c.logger.Debug("generate completed",
		"model", c.model,
		"thinking_level", req.Tier,
		"thinking_tokens", result.ThinkingTokens,
		"candidates", len(result.ContinuationCandidates))

	return result, nil
}

// Transcribe converts recorded audio to text using the multimodal flash
// model. The returned text is trimmed; it may be empty if nothing was said.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiBlobData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
				{Text: transcribePrompt},
			},
		}},
	}

	resp, err := c.generateContent(ctx, c.transcribeModel, &body)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			if !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// generateContent performs one generateContent call and decodes the response.
func (c *Client) generateContent(ctx context.Context, model string, body *geminiRequest) (*geminiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling gemini: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", httpResp.StatusCode, err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("gemini error %d (%s): %s", resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d", httpResp.StatusCode)
	}

	return &resp, nil
}
