// ABOUTME: Chat router that gates backend responses through the review ledger.
// ABOUTME: High-confidence answers resolve immediately; the rest wait for a human.

package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/relay-gateway/internal/backend"
	"github.com/2389/relay-gateway/internal/ledger"
	"github.com/2389/relay-gateway/internal/notify"
	"github.com/2389/relay-gateway/internal/stream"
)

// Status is the disposition of a routed chat request.
type Status string

const (
	// StatusResolved means the backend response was returned directly.
	StatusResolved Status = "resolved"

	// StatusPendingReview means the response was held for human review.
	StatusPendingReview Status = "pending_review"
)

// InvalidArgumentError reports a request that failed validation before any
// backend was contacted.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Request is a single chat turn to route.
type Request struct {
	RequesterID    string
	ConversationID string
	Message        string

	// Backend optionally names the preferred backend; empty uses the
	// gateway's default.
	Backend string

	// ReviewEnabled turns on confidence gating. When false every response
	// resolves immediately regardless of confidence.
	ReviewEnabled bool

	// ConfidenceThreshold is the minimum confidence that skips review.
	// A response with confidence exactly at the threshold resolves.
	ConfidenceThreshold float64
}

// Result is the outcome of routing a request.
type Result struct {
	Status     Status
	Response   string
	Confidence float64

	// ReviewID is set only when Status is StatusPendingReview.
	ReviewID int64
}

// TextGenerator is the slice of the backend gateway the router uses.
// *backend.Gateway satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, selector string) (backend.Result, error)
	GenerateStream(ctx context.Context, prompt, selector string) (<-chan backend.Delta, backend.Descriptor, error)
}

// Publisher is the slice of the notification hub the router uses.
type Publisher interface {
	Publish(event notify.Event)
}

// Router routes chat requests through the gateway and, when review is
// enabled, through the ledger. It also resolves reviewer decisions back to
// callers blocked in AwaitDecision.
type Router struct {
	gen     TextGenerator
	ledger  ledger.Ledger
	hub     Publisher
	streams *stream.Controller
	logger  *slog.Logger

	mu      sync.Mutex
	waiters map[int64][]chan *ledger.Record
}

// New creates a Router over the given gateway, ledger, and hub.
func New(gen TextGenerator, led ledger.Ledger, hub Publisher, streams *stream.Controller, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		gen:     gen,
		ledger:  led,
		hub:     hub,
		streams: streams,
		logger:  logger.With("component", "router"),
		waiters: make(map[int64][]chan *ledger.Record),
	}
}

func validate(req Request) error {
	if req.Message == "" {
		return &InvalidArgumentError{Field: "message", Reason: "must not be empty"}
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return &InvalidArgumentError{Field: "confidence_threshold", Reason: "must be in [0, 1]"}
	}
	return nil
}

// Route generates a response for req and applies confidence gating.
//
// Validation happens before any backend call. Backend errors pass through
// unchanged so callers can distinguish exhaustion from rejection. A gated
// response is enqueued exactly once and announced on the hub exactly once.
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	res, err := r.gen.Generate(ctx, req.Message, req.Backend)
	if err != nil {
		return nil, err
	}

	if !req.ReviewEnabled || res.Confidence >= req.ConfidenceThreshold {
		return &Result{
			Status:     StatusResolved,
			Response:   res.Text,
			Confidence: res.Confidence,
		}, nil
	}

	id, err := r.ledger.Enqueue(ctx, ledger.EnqueueParams{
		RequesterID:       req.RequesterID,
		ConversationID:    req.ConversationID,
		InputMessage:      req.Message,
		GeneratedResponse: res.Text,
		Confidence:        res.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue review: %w", err)
	}

	r.logger.Info("response held for review",
		"review_id", id,
		"confidence", res.Confidence,
		"threshold", req.ConfidenceThreshold)
	r.hub.Publish(notify.Event{Type: notify.EventNewReview, RecordID: id})

	return &Result{
		Status:     StatusPendingReview,
		ReviewID:   id,
		Confidence: res.Confidence,
	}, nil
}

// SubmitReview records a reviewer decision, announces it, and releases any
// callers blocked in AwaitDecision for the record.
func (r *Router) SubmitReview(ctx context.Context, id int64, approved bool, editedResponse string) (*ledger.Record, error) {
	rec, err := r.ledger.Transition(ctx, id, approved, editedResponse)
	if err != nil {
		return nil, err
	}

	r.logger.Info("review resolved", "review_id", id, "state", rec.State)
	r.hub.Publish(notify.Event{Type: notify.EventReviewResolved, RecordID: id})
	r.release(id, rec)

	return rec, nil
}

// AwaitDecision blocks until the record with the given id is resolved or ctx
// is done. A record that is already resolved returns immediately.
func (r *Router) AwaitDecision(ctx context.Context, id int64) (*ledger.Record, error) {
	ch := make(chan *ledger.Record, 1)
	r.mu.Lock()
	r.waiters[id] = append(r.waiters[id], ch)
	r.mu.Unlock()

	// Registered before the read, so a decision landing between the two is
	// delivered on ch rather than lost.
	rec, err := r.ledger.Get(ctx, id)
	if err != nil {
		r.drop(id, ch)
		return nil, err
	}
	if rec.State != ledger.StatePending {
		r.drop(id, ch)
		return rec, nil
	}

	select {
	case rec := <-ch:
		return rec, nil
	case <-ctx.Done():
		r.drop(id, ch)
		return nil, ctx.Err()
	}
}

// Stream routes a streaming request through the timeout controller. The
// returned descriptor names the backend the stream is coming from. Start
// failures, including unknown backends and gateway exhaustion, return an
// error before any chunk is produced.
func (r *Router) Stream(ctx context.Context, req Request, timeout time.Duration) (*stream.Stream, backend.Descriptor, error) {
	if err := validate(req); err != nil {
		return nil, backend.Descriptor{}, err
	}

	src := &gatewaySource{gen: r.gen, selector: req.Backend}
	s := r.streams.Run(ctx, src, req.Message, timeout)
	if src.err != nil {
		return nil, backend.Descriptor{}, src.err
	}
	return s, src.desc, nil
}

// gatewaySource adapts the gateway's selector-based streaming entry point to
// the controller's Source. Run invokes GenerateStream synchronously, so desc
// and err are settled by the time Run returns.
type gatewaySource struct {
	gen      TextGenerator
	selector string

	desc backend.Descriptor
	err  error
}

func (g *gatewaySource) GenerateStream(ctx context.Context, prompt string) (<-chan backend.Delta, error) {
	deltas, desc, err := g.gen.GenerateStream(ctx, prompt, g.selector)
	g.desc, g.err = desc, err
	return deltas, err
}

func (r *Router) release(id int64, rec *ledger.Record) {
	r.mu.Lock()
	chans := r.waiters[id]
	delete(r.waiters, id)
	r.mu.Unlock()

	for _, ch := range chans {
		ch <- rec
	}
}

func (r *Router) drop(id int64, ch chan *ledger.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chans := r.waiters[id]
	for i, c := range chans {
		if c == ch {
			r.waiters[id] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(r.waiters[id]) == 0 {
		delete(r.waiters, id)
	}
}
