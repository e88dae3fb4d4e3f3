// ABOUTME: Ledger interface and ReviewRecord types for the human-review workflow.
// ABOUTME: Defines the Pending/Approved/Rejected state machine and its error sentinels.

package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("review record not found")

// ErrAlreadyResolved is returned when a transition targets a record that has
// already left Pending. Transitions are not idempotent: a second decision on
// the same record is rejected, never silently accepted, so reviewers cannot
// double-submit conflicting decisions.
var ErrAlreadyResolved = errors.New("review record already resolved")

// State is the review disposition of a record.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// Record is the unit of work awaiting or having completed human review.
//
// Invariants: IDs are unique and strictly increasing for the ledger's
// lifetime; State leaves Pending exactly once; FinalResponse is set if and
// only if State is Approved; ResolvedAt is nil while Pending.
type Record struct {
	ID                int64
	RequesterID       string
	ConversationID    string
	InputMessage      string
	GeneratedResponse string
	Confidence        float64
	State             State
	FinalResponse     string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// EnqueueParams carries the fields for a new Pending record.
type EnqueueParams struct {
	RequesterID       string
	ConversationID    string
	InputMessage      string
	GeneratedResponse string
	Confidence        float64
}

// Ledger stores review records and owns their state transitions. It is the
// single source of truth for pending, approved, and rejected work. All
// operations are short, non-blocking critical sections safe for concurrent
// use; Enqueue never blocks on reviewer action.
type Ledger interface {
	// Enqueue allocates the next id, inserts a Pending record, and returns
	// the id.
	Enqueue(ctx context.Context, params EnqueueParams) (int64, error)

	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Record, error)

	// ListPending returns pending records oldest-first by CreatedAt (id as
	// tiebreaker), capped at limit. limit <= 0 applies a default cap.
	ListPending(ctx context.Context, limit int) ([]*Record, error)

	// Transition resolves a pending record. When approved, FinalResponse
	// becomes editedResponse if non-empty, else the generated response.
	// Returns ErrNotFound for unknown ids and ErrAlreadyResolved when the
	// record has left Pending; concurrent transitions on one id produce
	// exactly one success.
	Transition(ctx context.Context, id int64, approved bool, editedResponse string) (*Record, error)

	// Close releases any resources held by the ledger.
	Close() error
}

// DefaultListLimit caps ListPending when the caller does not provide a limit.
const DefaultListLimit = 50
