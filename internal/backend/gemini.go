// ABOUTME: Google Gemini backend using the google.golang.org/genai SDK.
// ABOUTME: Derives a backend-defined confidence score from the candidate finish reason.

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// Confidence scale for the Gemini backend. Backend-defined; see the
// calibration note in the router package docs.
const (
	geminiConfidenceStop      = 0.9
	geminiConfidenceTruncated = 0.55
	geminiConfidenceSafety    = 0.2
	geminiConfidenceOther     = 0.4
)

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client    *genai.Client
	model     string
	name      string
	available bool
	logger    *slog.Logger
}

// NewGemini creates a Gemini backend. Construction only fails on client setup
// problems; a missing API key yields an unavailable backend instead, so the
// gateway can report it in fallback attempts.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gemini{
		model:     model,
		name:      "gemini",
		available: apiKey != "",
		logger:    logger.With("component", "backend", "backend", "gemini"),
	}
	if !g.available {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Descriptor returns the static identity of this backend.
func (g *Gemini) Descriptor() Descriptor {
	return Descriptor{Name: g.name, Kind: KindGemini, Available: g.available}
}

// Generate performs a single non-streaming GenerateContent call.
func (g *Gemini) Generate(ctx context.Context, prompt string) (Result, error) {
	if g.client == nil {
		return Result{}, &UnavailableError{Backend: g.name, Reason: errors.New("not configured")}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return Result{}, g.classify(err)
	}
	if len(resp.Candidates) == 0 {
		return Result{}, &BackendError{Backend: g.name, Message: "no candidates in response"}
	}

	return Result{
		Text:       resp.Text(),
		Confidence: g.confidence(resp.Candidates[0].FinishReason),
	}, nil
}

// GenerateStream starts a streaming GenerateContent call and forwards text chunks.
func (g *Gemini) GenerateStream(ctx context.Context, prompt string) (<-chan Delta, error) {
	if g.client == nil {
		return nil, &UnavailableError{Backend: g.name, Reason: errors.New("not configured")}
	}

	out := make(chan Delta, 16)
	go func() {
		defer close(out)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), nil) {
			if err != nil {
				if ctx.Err() == nil {
					out <- Delta{Err: g.classify(err)}
				}
				return
			}

			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- Delta{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// confidence maps a finish reason onto this backend's confidence scale.
func (g *Gemini) confidence(reason genai.FinishReason) float64 {
	switch reason {
	case genai.FinishReasonStop:
		return geminiConfidenceStop
	case genai.FinishReasonMaxTokens:
		return geminiConfidenceTruncated
	case genai.FinishReasonSafety:
		return geminiConfidenceSafety
	default:
		return geminiConfidenceOther
	}
}

// classify sorts SDK errors into the gateway taxonomy.
func (g *Gemini) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return &UnavailableError{Backend: g.name, Reason: err}
		}
		return &BackendError{Backend: g.name, Message: err.Error()}
	}

	return &UnavailableError{Backend: g.name, Reason: err}
}
