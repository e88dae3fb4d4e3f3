// ABOUTME: Streaming controller racing a backend generation against a timeout.
// ABOUTME: Forwards chunks in arrival order and guarantees exactly one terminal chunk.

package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/relay-gateway/internal/backend"
)

// chunkBufferSize is the channel buffer for the consumer-facing chunk channel.
const chunkBufferSize = 16

// terminalGrace is how long a terminal chunk is held for a cancelled
// consumer that is still draining a full buffer.
const terminalGrace = time.Second

// Chunk is an ordered unit of incremental output. Exactly one terminal chunk
// closes a stream: Final=true with nil Err on success or caller cancellation,
// or a chunk with Err set on failure or timeout. No chunk follows a terminal
// chunk, and the channel is closed after it.
type Chunk struct {
	Text  string
	Final bool
	Err   error
}

// TimeoutError is the terminal error when the timer wins the race. Partial
// holds the text received before the deadline, for diagnostics only; it is
// never surfaced as a successful result.
type TimeoutError struct {
	After   time.Duration
	Partial string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s", e.After)
}

// Stream is a single in-flight generation attempt. It is not restartable;
// every Run call establishes a new attempt.
type Stream struct {
	chunks chan Chunk

	mu      sync.Mutex
	partial strings.Builder
}

// Chunks returns the ordered, terminating chunk sequence. The channel is
// closed after the terminal chunk.
func (s *Stream) Chunks() <-chan Chunk {
	return s.chunks
}

// Partial returns the text accumulated so far, including text discarded by a
// timeout. Best-effort diagnostics; safe to call concurrently with reads.
func (s *Stream) Partial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial.String()
}

func (s *Stream) accumulate(text string) {
	s.mu.Lock()
	s.partial.WriteString(text)
	s.mu.Unlock()
}

// Source starts a streaming generation. backend.Generator satisfies it, as
// does any adapter that resolves a backend first (the chat router's gateway
// adapter, for instance).
type Source interface {
	GenerateStream(ctx context.Context, prompt string) (<-chan backend.Delta, error)
}

// Controller runs generations with bounded time and cancellation propagation.
type Controller struct {
	logger *slog.Logger
}

// NewController creates a Controller. Pass nil logger for default.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger.With("component", "stream")}
}

// Run starts a streaming generation on src and races it against timeout.
//
// Whichever finishes first determines the outcome; the loser is cancelled
// immediately and the cancellation reaches the backend's network operation.
// A timeout yields exactly one terminal *TimeoutError chunk. Caller
// cancellation (ctx) stops the upstream the same way but finishes the
// sequence cleanly, without an error. A generation-side failure surfaces as
// a single terminal error chunk; completion as a terminal chunk with no error.
func (c *Controller) Run(ctx context.Context, src Source, prompt string, timeout time.Duration) *Stream {
	s := &Stream{chunks: make(chan Chunk, chunkBufferSize)}

	upstreamCtx, cancel := context.WithCancel(ctx)

	upstream, err := src.GenerateStream(upstreamCtx, prompt)
	if err != nil {
		cancel()
		s.chunks <- Chunk{Err: err}
		close(s.chunks)
		return s
	}

	go c.pump(ctx, cancel, s, upstream, timeout)
	return s
}

// pump forwards upstream deltas until the generation, the timer, or the
// caller wins. It owns the chunk channel and closes it on exit.
func (c *Controller) pump(ctx context.Context, cancel context.CancelFunc, s *Stream, upstream <-chan backend.Delta, timeout time.Duration) {
	defer close(s.chunks)
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	terminate := func(chunk Chunk) {
		select {
		case s.chunks <- chunk:
			return
		case <-ctx.Done():
		}
		// The caller has cancelled but may still be draining the buffer.
		// Hold the terminal chunk for a grace window rather than dropping
		// it; only a consumer that stopped reading forfeits it.
		grace := time.NewTimer(terminalGrace)
		defer grace.Stop()
		select {
		case s.chunks <- chunk:
		case <-grace.C:
		}
	}

	for {
		select {
		case <-ctx.Done():
			// Caller cancelled: stop upstream, finish cleanly.
			cancel()
			terminate(Chunk{Final: true})
			return

		case <-timer.C:
			cancel()
			c.logger.Warn("generation timed out", "after", timeout, "partial_chars", len(s.Partial()))
			terminate(Chunk{Err: &TimeoutError{After: timeout, Partial: s.Partial()}})
			return

		case delta, ok := <-upstream:
			if !ok {
				terminate(Chunk{Final: true})
				return
			}
			if delta.Err != nil {
				terminate(Chunk{Err: delta.Err})
				return
			}

			s.accumulate(delta.Text)

			// Forward, still racing the timer and the caller.
			select {
			case s.chunks <- Chunk{Text: delta.Text}:
			case <-timer.C:
				cancel()
				c.logger.Warn("generation timed out", "after", timeout, "partial_chars", len(s.Partial()))
				terminate(Chunk{Err: &TimeoutError{After: timeout, Partial: s.Partial()}})
				return
			case <-ctx.Done():
				cancel()
				terminate(Chunk{Final: true})
				return
			}
		}
	}
}
