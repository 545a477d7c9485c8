// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8000"
  base_url: "http://silas.local:8000"

database:
  path: "./silas.db"

gemini:
  api_key: "test-gemini-key"
  model: "gemini-3-flash-preview"
  transcribe_model: "gemini-2.0-flash"
  timeout: "90s"
  system_prompt_path: "./system_prompt.md"

tts:
  enabled: true
  api_key: "test-tts-key"
  voice: "en-GB-Studio-B"
  language_code: "en-GB"

dashboard:
  allowed_origins:
    - "http://localhost:3000"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8000")
	}
	if cfg.Database.Path != "./silas.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./silas.db")
	}
	if cfg.Gemini.Model != "gemini-3-flash-preview" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Gemini.Timeout != 90*time.Second {
		t.Errorf("Gemini.Timeout = %v, want 90s", cfg.Gemini.Timeout)
	}
	if !cfg.TTS.Enabled {
		t.Error("TTS.Enabled = false, want true")
	}
	if cfg.TTS.Voice != "en-GB-Studio-B" {
		t.Errorf("TTS.Voice = %q", cfg.TTS.Voice)
	}
	if len(cfg.Dashboard.AllowedOrigins) != 1 {
		t.Errorf("Dashboard.AllowedOrigins = %v", cfg.Dashboard.AllowedOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("SILAS_TEST_API_KEY", "expanded-key")

	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8000"
database:
  path: "./silas.db"
gemini:
  api_key: "${SILAS_TEST_API_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gemini.APIKey != "expanded-key" {
		t.Errorf("Gemini.APIKey = %q, want expanded value", cfg.Gemini.APIKey)
	}
}

func TestLoad_MissingHTTPAddr(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./silas.db"
gemini:
  api_key: "key"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "http_addr") {
		t.Errorf("Load() error = %v, want http_addr validation failure", err)
	}
}

func TestLoad_MissingGeminiKey(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8000"
database:
  path: "./silas.db"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "gemini.api_key") {
		t.Errorf("Load() error = %v, want gemini.api_key validation failure", err)
	}
}

func TestLoad_TTSKeyRequiredWhenEnabled(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8000"
database:
  path: "./silas.db"
gemini:
  api_key: "key"
tts:
  enabled: true
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "tts.api_key") {
		t.Errorf("Load() error = %v, want tts.api_key validation failure", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8000"
database:
  path: "./silas.db"
gemini:
  api_key: "key"
  timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("Load() error = %v, want timeout parse failure", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}
