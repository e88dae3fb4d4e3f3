// Package stream bounds a single streaming generation with a timeout race
// and cancellation propagation.
//
// # Contract
//
// Run(ctx, gen, prompt, timeout) races two concurrent operations: the
// backend's streaming generation and a timer. Whichever completes first
// determines the outcome; the loser is cancelled immediately, and the
// cancellation propagates to the underlying network call so resources are
// released promptly rather than abandoned.
//
// The chunk sequence terminates with exactly one terminal chunk:
//
//   - generation completes: terminal chunk with Final=true, no error
//   - generation fails: terminal chunk carrying the backend error
//   - timer fires first: terminal chunk carrying *TimeoutError; text
//     already received is excluded from the result but kept on the error
//     (and via Stream.Partial) for diagnostics
//   - caller cancels ctx: upstream stopped, sequence finishes cleanly —
//     distinct from a timeout, which is an error
//
// A timed-out generation is never downgraded to an empty successful
// response. Streams are not restartable: each Run is a new attempt.
package stream
