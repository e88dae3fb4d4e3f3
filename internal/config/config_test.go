// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, validation, and duration parsing

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
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8484"

backends:
  default: "gemini"
  order: ["gemini", "ollama"]
  gemini:
    enabled: true
    api_key: "test-key"
    model: "gemini-2.5-pro"
  ollama:
    enabled: true
    base_url: "http://localhost:11434"
    model: "qwen2.5-coder:7b"

review:
  enabled: true
  confidence_threshold: 0.8

streaming:
  timeout: "45s"

database:
  path: "./ledger.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:8484" {
		t.Errorf("HTTPAddr = %q, want 127.0.0.1:8484", cfg.Server.HTTPAddr)
	}
	if cfg.Backends.Default != "gemini" {
		t.Errorf("Backends.Default = %q, want gemini", cfg.Backends.Default)
	}
	if len(cfg.Backends.Order) != 2 {
		t.Errorf("Backends.Order length = %d, want 2", len(cfg.Backends.Order))
	}
	if !cfg.Review.Enabled {
		t.Error("Review.Enabled = false, want true")
	}
	if cfg.Review.ConfidenceThreshold != 0.8 {
		t.Errorf("ConfidenceThreshold = %v, want 0.8", cfg.Review.ConfidenceThreshold)
	}
	if cfg.Streaming.Timeout != 45*time.Second {
		t.Errorf("Streaming.Timeout = %v, want 45s", cfg.Streaming.Timeout)
	}
	if cfg.Database.Path != "./ledger.db" {
		t.Errorf("Database.Path = %q, want ./ledger.db", cfg.Database.Path)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("RELAY_TEST_API_KEY", "secret-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8484"

backends:
  gemini:
    enabled: true
    api_key: "${RELAY_TEST_API_KEY}"
    model: "gemini-2.5-pro"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Backends.Gemini.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q, want secret-from-env", cfg.Backends.Gemini.APIKey)
	}
}

func TestLoad_DefaultStreamTimeout(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8484"

backends:
  ollama:
    enabled: true
    base_url: "http://localhost:11434"
    model: "llama3"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Streaming.Timeout != DefaultStreamTimeout {
		t.Errorf("Streaming.Timeout = %v, want default %v", cfg.Streaming.Timeout, DefaultStreamTimeout)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8484"

backends:
  ollama:
    enabled: true

streaming:
  timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail on invalid duration")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error should mention timeout, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail on missing file")
	}
}

func TestValidate_NoBackends(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{HTTPAddr: "127.0.0.1:8484"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should require at least one backend")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantErr   bool
	}{
		{"zero", 0, false},
		{"one", 1, false},
		{"mid", 0.5, false},
		{"negative", -0.1, true},
		{"above one", 1.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Review.ConfidenceThreshold = tt.threshold
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() with threshold %v should fail", tt.threshold)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() with threshold %v failed: %v", tt.threshold, err)
			}
		})
	}
}

func TestValidate_TunnelRequiresBinary(t *testing.T) {
	cfg := Default()
	cfg.Tunnel.Enabled = true
	cfg.Tunnel.LocalPort = 8484

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should require tunnel.binary when enabled")
	}

	cfg.Tunnel.Binary = "/usr/local/bin/frpc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "gateway.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Fatal("WriteDefault() should refuse to overwrite an existing file")
	}

	// The written file must load and validate cleanly
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of default config failed: %v", err)
	}
	if cfg.Backends.Default != "gemini" {
		t.Errorf("default backend = %q, want gemini", cfg.Backends.Default)
	}
}
