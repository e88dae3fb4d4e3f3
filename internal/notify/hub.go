// ABOUTME: In-process pub/sub hub fanning review events out to registered callbacks.
// ABOUTME: Delivery is best-effort and isolated; a panicking subscriber never blocks the rest.

package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// EventType categorizes hub events.
type EventType string

const (
	// EventNewReview announces a freshly enqueued review record.
	EventNewReview EventType = "new_review"

	// EventReviewResolved announces a record leaving Pending.
	EventReviewResolved EventType = "review_resolved"
)

// Event is delivered to every subscriber on publish.
type Event struct {
	Type     EventType `json:"type"`
	RecordID int64     `json:"id"`
}

// Token identifies a subscription for later cancellation.
type Token string

// Hub delivers published events to every currently subscribed callback.
//
// Ordering: for a single publisher, events reach each subscriber in publish
// order. Concurrent publishers are serialized, so each subscriber sees a
// total order consistent with some interleaving. Callbacks run on the
// publisher's goroutine and must not call Publish.
type Hub struct {
	mu     sync.RWMutex
	subs   map[Token]func(Event)
	logger *slog.Logger

	// deliverMu serializes publish sweeps so per-subscriber ordering holds
	// across concurrent publishers.
	deliverMu sync.Mutex
}

// NewHub creates a Hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[Token]func(Event)),
		logger: logger.With("component", "notify"),
	}
}

// Subscribe registers a callback and returns a token for Unsubscribe.
// The subscription lives until Unsubscribe or Close.
func (h *Hub) Subscribe(fn func(Event)) Token {
	token := Token(uuid.New().String())

	h.mu.Lock()
	h.subs[token] = fn
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "token", string(token))
	return token
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (h *Hub) Unsubscribe(token Token) {
	h.mu.Lock()
	_, existed := h.subs[token]
	delete(h.subs, token)
	h.mu.Unlock()

	if existed {
		h.logger.Debug("subscriber removed", "token", string(token))
	}
}

// Publish delivers event to every currently subscribed callback. A callback
// that panics is recovered and logged; remaining subscribers still receive
// the event. Failures are never propagated to the publisher.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	targets := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		targets = append(targets, fn)
	}
	h.mu.RUnlock()

	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	for _, fn := range targets {
		h.deliver(fn, event)
	}
}

// deliver invokes one callback with panic isolation.
func (h *Hub) deliver(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("subscriber callback panicked",
				"event_type", event.Type,
				"record_id", event.RecordID,
				"panic", r)
		}
	}()
	fn(event)
}

// Close removes all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for token := range h.subs {
		delete(h.subs, token)
	}
	h.logger.Debug("hub closed")
}
