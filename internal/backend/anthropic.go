// ABOUTME: Anthropic Messages API backend using the official Go SDK.
// ABOUTME: Derives a backend-defined confidence score from the message stop reason.

package backend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Confidence scale for the Anthropic backend. These are documented constants
// on a backend-defined scale: a clean end_turn is trusted, a truncated
// response much less so. Not comparable with other backends' scales.
const (
	anthropicConfidenceEndTurn   = 0.9
	anthropicConfidenceStopSeq   = 0.85
	anthropicConfidenceTruncated = 0.55
	anthropicConfidenceOther     = 0.4
)

const defaultAnthropicMaxTokens = 4096

// Anthropic is a Generator backed by the Anthropic Messages API.
type Anthropic struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
	name      string
	available bool
	logger    *slog.Logger
}

// NewAnthropic creates an Anthropic backend. An empty apiKey marks the
// backend as unavailable rather than failing construction, so the gateway
// can report it in fallback attempts.
func NewAnthropic(apiKey, model string, maxTokens int, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &Anthropic{
		api:       anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
		name:      "anthropic",
		available: apiKey != "",
		logger:    logger.With("component", "backend", "backend", "anthropic"),
	}
}

// Descriptor returns the static identity of this backend.
func (a *Anthropic) Descriptor() Descriptor {
	return Descriptor{Name: a.name, Kind: KindAnthropic, Available: a.available}
}

// Generate performs a single non-streaming Messages call.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (Result, error) {
	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Result{}, a.classify(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Result{Text: text, Confidence: a.confidence(string(msg.StopReason))}, nil
}

// GenerateStream starts a streaming Messages call and forwards text deltas.
func (a *Anthropic) GenerateStream(ctx context.Context, prompt string) (<-chan Delta, error) {
	stream := a.api.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	out := make(chan Delta, 16)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch deltaVariant := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if deltaVariant.Text == "" {
						continue
					}
					select {
					case out <- Delta{Text: deltaVariant.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			out <- Delta{Err: a.classify(err)}
		}
	}()

	return out, nil
}

// confidence maps a stop reason onto this backend's confidence scale.
func (a *Anthropic) confidence(stopReason string) float64 {
	switch stopReason {
	case "end_turn":
		return anthropicConfidenceEndTurn
	case "stop_sequence":
		return anthropicConfidenceStopSeq
	case "max_tokens":
		return anthropicConfidenceTruncated
	default:
		return anthropicConfidenceOther
	}
}

// classify sorts SDK errors into the gateway taxonomy. Context errors pass
// through unchanged so caller cancellation is never mistaken for an outage.
func (a *Anthropic) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// Overload and server-side failures are retryable elsewhere;
		// everything else means this backend rejected the request.
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return &UnavailableError{Backend: a.name, Reason: err}
		}
		return &BackendError{Backend: a.name, Message: err.Error()}
	}

	// No HTTP response at all: transport-level.
	return &UnavailableError{Backend: a.name, Reason: err}
}
