// Package config handles configuration loading for relay-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from RELAY_CONFIG environment variable
//  2. ~/.config/relay/gateway.yaml (XDG_CONFIG_HOME respected)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backends:
//	  anthropic:
//	    api_key: "${ANTHROPIC_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	streaming:
//	  timeout: "60s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "127.0.0.1:8484"  # API and review dashboard
//
// Backends (fallback order is the order listed):
//
//	backends:
//	  default: "gemini"
//	  order: ["gemini", "anthropic", "ollama"]
//	  gemini:
//	    enabled: true
//	    api_key: "${GEMINI_API_KEY}"
//	    model: "gemini-2.5-pro"
//	  anthropic:
//	    enabled: false
//	    api_key: "${ANTHROPIC_API_KEY}"
//	    model: "claude-sonnet-4-20250514"
//	    max_tokens: 4096
//	  ollama:
//	    enabled: false
//	    base_url: "http://localhost:11434"
//	    model: "qwen2.5-coder:7b"
//
// Review gating:
//
//	review:
//	  enabled: true
//	  confidence_threshold: 0.8
//
// Ledger persistence (omit for in-memory):
//
//	database:
//	  path: "/var/lib/relay/ledger.db"
//
// Tunnel:
//
//	tunnel:
//	  enabled: false
//	  binary: "/usr/local/bin/frpc"
//	  local_port: 8484
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - HTTP address presence
//   - At least one enabled backend
//   - Confidence threshold range [0,1]
//   - Tunnel binary/port when the tunnel is enabled
//   - Duration format validity
package config
