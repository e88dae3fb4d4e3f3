// ABOUTME: Configuration loading and parsing for relay-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backends  BackendsConfig  `yaml:"backends"`
	Review    ReviewConfig    `yaml:"review"`
	Streaming StreamingConfig `yaml:"streaming"`
	Database  DatabaseConfig  `yaml:"database"`
	Tunnel    TunnelConfig    `yaml:"tunnel"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// BackendsConfig holds generation backend configuration.
// Order lists backend names in fallback order; Default is tried first
// when a request does not name a backend.
type BackendsConfig struct {
	Default   string          `yaml:"default"`
	Order     []string        `yaml:"order"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Ollama    OllamaConfig    `yaml:"ollama"`
}

// AnthropicConfig holds Anthropic backend configuration
type AnthropicConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// GeminiConfig holds Google Gemini backend configuration
type GeminiConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// OllamaConfig holds local Ollama backend configuration
type OllamaConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ReviewConfig holds human-review gating configuration
type ReviewConfig struct {
	Enabled             bool    `yaml:"enabled"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// StreamingConfig holds streaming generation configuration
type StreamingConfig struct {
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// DatabaseConfig holds ledger persistence configuration.
// An empty path selects the in-memory ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TunnelConfig holds external tunnel client configuration
type TunnelConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Binary       string `yaml:"binary"`
	LocalPort    int    `yaml:"local_port"`
	CustomDomain string `yaml:"custom_domain"`
}

// ToolsConfig holds tool registry configuration
type ToolsConfig struct {
	WorkspaceDir string `yaml:"workspace_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultStreamTimeout is used when streaming.timeout is not configured.
const DefaultStreamTimeout = 60 * time.Second

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if !c.Backends.Anthropic.Enabled && !c.Backends.Gemini.Enabled && !c.Backends.Ollama.Enabled {
		return fmt.Errorf("at least one backend must be enabled")
	}

	if c.Review.ConfidenceThreshold < 0 || c.Review.ConfidenceThreshold > 1 {
		return fmt.Errorf("review.confidence_threshold must be in [0,1], got %v", c.Review.ConfidenceThreshold)
	}

	if c.Tunnel.Enabled {
		if c.Tunnel.Binary == "" {
			return fmt.Errorf("tunnel.binary is required when tunnel is enabled")
		}
		if c.Tunnel.LocalPort <= 0 || c.Tunnel.LocalPort > 65535 {
			return fmt.Errorf("tunnel.local_port must be a valid port, got %d", c.Tunnel.LocalPort)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Streaming.TimeoutRaw != "" {
		cfg.Streaming.Timeout, err = time.ParseDuration(cfg.Streaming.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing streaming timeout %q: %w", cfg.Streaming.TimeoutRaw, err)
		}
	}
	if cfg.Streaming.Timeout <= 0 {
		cfg.Streaming.Timeout = DefaultStreamTimeout
	}

	return nil
}

// Default returns a Config populated with sensible development defaults.
// Used by the `relay-gateway init` command to seed a new config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8484",
		},
		Backends: BackendsConfig{
			Default: "gemini",
			Order:   []string{"gemini", "anthropic", "ollama"},
			Anthropic: AnthropicConfig{
				APIKey:    "${ANTHROPIC_API_KEY}",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 4096,
			},
			Gemini: GeminiConfig{
				Enabled: true,
				APIKey:  "${GEMINI_API_KEY}",
				Model:   "gemini-2.5-pro",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "qwen2.5-coder:7b",
			},
		},
		Review: ReviewConfig{
			Enabled:             true,
			ConfidenceThreshold: 0.8,
		},
		Streaming: StreamingConfig{
			Timeout:    DefaultStreamTimeout,
			TimeoutRaw: "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefault marshals the default configuration to YAML at the given path.
// Fails if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
