// ABOUTME: Local Ollama backend speaking the /api/generate JSON protocol over HTTP.
// ABOUTME: Streams NDJSON chunks and derives confidence from the done_reason field.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Confidence scale for the Ollama backend. Local models get a lower ceiling
// than the hosted backends; this is a backend-defined scale, not a judgment
// normalized against the others.
const (
	ollamaConfidenceStop      = 0.75
	ollamaConfidenceTruncated = 0.5
	ollamaConfidenceOther     = 0.4
)

// Ollama is a Generator backed by a local Ollama server.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	name    string
	logger  *slog.Logger
}

// ollamaRequest is the request body for POST /api/generate.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaResponse is one response object from /api/generate. In streaming mode
// the endpoint emits one of these per line; the last has Done=true.
type ollamaResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error,omitempty"`
}

// NewOllama creates an Ollama backend against the given base URL.
func NewOllama(baseURL, model string, logger *slog.Logger) *Ollama {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// No overall client timeout: generation length is bounded by the
		// caller's ctx (streaming controller) or left open (sync path).
		client: &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second}},
		name:   "ollama",
		logger: logger.With("component", "backend", "backend", "ollama"),
	}
}

// Descriptor returns the static identity of this backend.
func (o *Ollama) Descriptor() Descriptor {
	return Descriptor{Name: o.name, Kind: KindOllama, Available: o.baseURL != ""}
}

func (o *Ollama) post(ctx context.Context, stream bool, prompt string) (*http.Response, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Prompt: prompt, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &UnavailableError{Backend: o.name, Reason: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return nil, &UnavailableError{
				Backend: o.name,
				Reason:  fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			}
		}
		return nil, &BackendError{
			Backend: o.name,
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	return resp, nil
}

// Generate performs a single non-streaming generation.
func (o *Ollama) Generate(ctx context.Context, prompt string) (Result, error) {
	resp, err := o.post(ctx, false, prompt)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var body ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, &BackendError{Backend: o.name, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if body.Error != "" {
		return Result{}, &BackendError{Backend: o.name, Message: body.Error}
	}

	return Result{Text: body.Response, Confidence: o.confidence(body.DoneReason)}, nil
}

// GenerateStream performs a streaming generation, forwarding one Delta per
// NDJSON line until the server marks the generation done.
func (o *Ollama) GenerateStream(ctx context.Context, prompt string) (<-chan Delta, error) {
	resp, err := o.post(ctx, true, prompt)
	if err != nil {
		return nil, err
	}

	out := make(chan Delta, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		for {
			var chunk ollamaResponse
			if err := dec.Decode(&chunk); err != nil {
				if err == io.EOF || ctx.Err() != nil {
					return
				}
				out <- Delta{Err: &BackendError{Backend: o.name, Message: fmt.Sprintf("decoding stream: %v", err)}}
				return
			}

			if chunk.Error != "" {
				out <- Delta{Err: &BackendError{Backend: o.name, Message: chunk.Error}}
				return
			}

			if chunk.Response != "" {
				select {
				case out <- Delta{Text: chunk.Response}:
				case <-ctx.Done():
					return
				}
			}

			if chunk.Done {
				return
			}
		}
	}()

	return out, nil
}

// confidence maps a done_reason onto this backend's confidence scale.
func (o *Ollama) confidence(doneReason string) float64 {
	switch doneReason {
	case "stop":
		return ollamaConfidenceStop
	case "length":
		return ollamaConfidenceTruncated
	default:
		return ollamaConfidenceOther
	}
}
