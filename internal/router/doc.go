// ABOUTME: Package documentation for the chat router.
// ABOUTME: Explains confidence gating and the review round-trip.

// Package router decides whether a generated response reaches the requester
// directly or is parked for human review first.
//
// # Gating
//
// Every request flows through the backend gateway. When review is enabled,
// the response's confidence is compared against the request's threshold:
// at or above the threshold the response resolves immediately, below it the
// response is enqueued in the ledger and announced on the notification hub.
// Confidence values are backend-defined and are never rescaled here; the
// threshold is interpreted on whatever scale the responding backend uses.
//
// # Review round-trip
//
// SubmitReview applies the reviewer's decision through the ledger, which
// guarantees a single winner under concurrent submissions, then publishes
// the resolution and wakes any AwaitDecision callers for that record.
//
// # Streaming
//
// Stream bypasses gating entirely. Chunks go to the requester as they
// arrive; there is no buffered response to hold for review.
package router
