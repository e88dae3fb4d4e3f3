// ABOUTME: Generator interface and shared types for text-generation backends.
// ABOUTME: Defines Result, Delta, and Descriptor used by the gateway and stream controller.

package backend

import (
	"context"
)

// Kind identifies the implementation family of a backend.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
	KindOllama    Kind = "ollama"
	KindScripted  Kind = "scripted"
)

// Descriptor identifies a generation backend. It is owned by the Gateway
// for the process lifetime and read-only to everything else.
type Descriptor struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Available bool   `json:"available"`
}

// Result is a completed non-streaming generation.
// Confidence is backend-supplied on a backend-defined scale in [0,1];
// the gateway never recomputes or normalizes it.
type Result struct {
	Text       string
	Confidence float64
}

// Delta is one unit of incremental output from a streaming generation.
// A nil-error Delta carries text. A Delta with Err set is terminal and is
// followed only by channel close. Successful completion is signaled by
// channel close without an error Delta.
type Delta struct {
	Text string
	Err  error
}

// Generator produces text for a prompt, either as a single result or as an
// incremental stream. Implementations must honor context cancellation on
// both paths: a cancelled ctx stops the underlying network operation.
type Generator interface {
	// Descriptor returns the static identity of this backend.
	Descriptor() Descriptor

	// Generate returns the full response text and a confidence score.
	Generate(ctx context.Context, prompt string) (Result, error)

	// GenerateStream starts a generation and returns a channel of deltas.
	// The channel is closed when the generation completes, fails, or ctx
	// is cancelled. At most one Delta carries a non-nil Err, and it is
	// the last value sent.
	GenerateStream(ctx context.Context, prompt string) (<-chan Delta, error)
}
