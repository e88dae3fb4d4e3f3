// ABOUTME: Scripted in-memory Generator for tests and local development.
// ABOUTME: Plays back canned text, chunk sequences, delays, and failures on demand.

package backend

import (
	"context"
	"time"
)

// Scripted is a Generator that plays back a canned script. It is used by
// tests across the repo and by the fake backend wiring in development mode.
// Configure the exported fields before first use; Scripted is not safe for
// concurrent reconfiguration.
type Scripted struct {
	Name string

	// Text and Confidence are returned by Generate on success.
	Text       string
	Confidence float64

	// Chunks are emitted one at a time by GenerateStream.
	Chunks []string

	// ChunkDelay is slept before each chunk, interruptibly.
	ChunkDelay time.Duration

	// GenerateErr, when set, is returned by Generate and emitted as the
	// terminal Delta by GenerateStream.
	GenerateErr error

	// StartErr, when set, is returned by GenerateStream before any chunk.
	StartErr error

	// Unavailable marks the descriptor as not configured.
	Unavailable bool

	// Calls counts Generate invocations, for fallback-order assertions.
	Calls int
}

// Descriptor returns the static identity of this backend.
func (s *Scripted) Descriptor() Descriptor {
	name := s.Name
	if name == "" {
		name = "scripted"
	}
	return Descriptor{Name: name, Kind: KindScripted, Available: !s.Unavailable}
}

// Generate returns the scripted result or error.
func (s *Scripted) Generate(ctx context.Context, prompt string) (Result, error) {
	s.Calls++
	if s.GenerateErr != nil {
		return Result{}, s.GenerateErr
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Text: s.Text, Confidence: s.Confidence}, nil
}

// GenerateStream emits the scripted chunks, honoring ChunkDelay and ctx.
func (s *Scripted) GenerateStream(ctx context.Context, prompt string) (<-chan Delta, error) {
	if s.StartErr != nil {
		return nil, s.StartErr
	}

	out := make(chan Delta, len(s.Chunks)+1)
	go func() {
		defer close(out)

		for _, chunk := range s.Chunks {
			if s.ChunkDelay > 0 {
				select {
				case <-time.After(s.ChunkDelay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- Delta{Text: chunk}:
			case <-ctx.Done():
				return
			}
		}

		if s.GenerateErr != nil && ctx.Err() == nil {
			out <- Delta{Err: s.GenerateErr}
		}
	}()

	return out, nil
}
