// Package ledger stores review records and their state-machine transitions.
//
// # State Machine
//
//	Pending -> Approved   (terminal)
//	Pending -> Rejected   (terminal)
//
// No transition leaves Approved or Rejected. A second decision on the same
// record fails with ErrAlreadyResolved — by contract, never silently
// accepted, so two reviewers cannot both win.
//
// # Ordering
//
// Enqueue allocates strictly increasing, never-reused ids under a single
// serialization point. ListPending is stable-ordered by CreatedAt ascending
// (oldest first) with id as the tiebreaker, so reviewer throughput is fair.
//
// # Implementations
//
// MemoryLedger is the default: records are retained for the process lifetime
// with no eviction (callers may externally archive or prune). SQLiteLedger
// provides the same semantics durably and is selected when database.path is
// configured. Both keep critical sections short and non-blocking; neither
// ever blocks an Enqueue on reviewer action.
package ledger
