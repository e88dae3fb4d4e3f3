// ABOUTME: In-memory Ledger implementation with a single mutex as the serialization point.
// ABOUTME: Default ledger; records live for the process lifetime, no eviction.

package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLedger implements Ledger with process-lifetime retention. A single
// mutex serializes id allocation and state transitions, which keeps the
// exactly-one-winner guarantee for concurrent transitions trivially true.
type MemoryLedger struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*Record
	order   []int64 // ids in enqueue order; CreatedAt is non-decreasing along it
	logger  *slog.Logger
}

// NewMemoryLedger creates an empty in-memory ledger. Pass nil logger for default.
func NewMemoryLedger(logger *slog.Logger) *MemoryLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryLedger{
		nextID:  1,
		records: make(map[int64]*Record),
		logger:  logger.With("component", "ledger"),
	}
}

// Enqueue allocates the next id and inserts a Pending record.
func (l *MemoryLedger) Enqueue(ctx context.Context, params EnqueueParams) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++

	l.records[id] = &Record{
		ID:                id,
		RequesterID:       params.RequesterID,
		ConversationID:    params.ConversationID,
		InputMessage:      params.InputMessage,
		GeneratedResponse: params.GeneratedResponse,
		Confidence:        params.Confidence,
		State:             StatePending,
		CreatedAt:         time.Now().UTC(),
	}
	l.order = append(l.order, id)

	l.logger.Debug("review enqueued",
		"id", id,
		"requester_id", params.RequesterID,
		"confidence", params.Confidence)
	return id, nil
}

// Get returns a copy of the record with the given id.
func (l *MemoryLedger) Get(ctx context.Context, id int64) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// ListPending returns pending records oldest-first, capped at limit.
func (l *MemoryLedger) ListPending(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Record, 0, limit)
	for _, id := range l.order {
		rec := l.records[id]
		if rec.State != StatePending {
			continue
		}
		out = append(out, copyRecord(rec))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Transition resolves a pending record to Approved or Rejected.
func (l *MemoryLedger) Transition(ctx context.Context, id int64, approved bool, editedResponse string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.State != StatePending {
		l.logger.Warn("conflicting review decision rejected",
			"id", id,
			"state", rec.State)
		return nil, ErrAlreadyResolved
	}

	now := time.Now().UTC()
	rec.ResolvedAt = &now
	if approved {
		rec.State = StateApproved
		if editedResponse != "" {
			rec.FinalResponse = editedResponse
		} else {
			rec.FinalResponse = rec.GeneratedResponse
		}
	} else {
		rec.State = StateRejected
	}

	l.logger.Info("review resolved",
		"id", id,
		"state", rec.State,
		"edited", editedResponse != "")
	return copyRecord(rec), nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error { return nil }

// copyRecord returns a defensive copy so callers cannot mutate stored state.
func copyRecord(rec *Record) *Record {
	out := *rec
	if rec.ResolvedAt != nil {
		resolved := *rec.ResolvedAt
		out.ResolvedAt = &resolved
	}
	return &out
}
