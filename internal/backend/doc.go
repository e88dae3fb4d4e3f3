// Package backend provides a uniform interface over interchangeable
// text-generation backends with ordered fallback.
//
// # Overview
//
// Every backend implements Generator: a non-streaming Generate returning
// (text, confidence) and a streaming GenerateStream returning a channel of
// Deltas. The Gateway wraps a fixed, ordered list of Generators and resolves
// each request to one of them.
//
// # Fallback
//
// Selection order for a request:
//
//  1. The request's backend selector, if given
//  2. The configured default backend
//  3. The remaining backends in configured order
//
// Only transport-level failures (*UnavailableError: connection refused,
// HTTP 5xx, rate-limit overload) move the gateway to the next backend.
// Generation-level failures (*BackendError) are returned to the caller:
// the backend answered, and its answer was a failure. When every backend
// has been tried, *NoBackendAvailableError carries the full attempt list.
//
// # Confidence
//
// Confidence is backend-supplied on a backend-defined scale in [0,1]. The
// gateway passes it through untouched. None of the vendor APIs expose a
// calibrated score, so each backend derives one from its finish/stop reason;
// the constants live at the top of each backend file. Thresholds are only
// meaningful per-backend unless all configured backends are documented to
// share a scale.
//
// # Backends
//
//   - Anthropic: Messages API via anthropic-sdk-go
//   - Gemini: GenerateContent via google.golang.org/genai
//   - Ollama: /api/generate NDJSON over plain HTTP
//   - Scripted: canned playback for tests and development
package backend
