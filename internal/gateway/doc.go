// ABOUTME: Package documentation for the gateway orchestrator.
// ABOUTME: Describes construction, the HTTP surface, and lifecycle.

// Package gateway assembles the system from config and serves its HTTP API.
//
// # Construction
//
// New builds the enabled backends in configured fallback order, selects the
// review ledger (in-memory by default, SQLite when a database path is set),
// and wires the notification hub, chat router, tool registry, and optional
// tunnel manager behind a single HTTP server.
//
// # HTTP surface
//
//   - POST /api/chat            synchronous chat with review gating
//   - POST /api/chat/stream     SSE chat stream under the configured timeout
//   - GET  /api/reviews         pending review records
//   - POST /api/reviews/{id}    reviewer decision
//   - GET  /api/backends        backend descriptors
//   - GET  /api/events          SSE feed of review lifecycle events
//   - GET  /api/tools           registered tools
//   - POST /api/tools/{name}    tool dispatch
//   - GET  /reviews             HTML review dashboard
//   - GET  /health, /health/ready
//
// # Lifecycle
//
// Run blocks until the context is cancelled or a component fails, then shuts
// down the HTTP server, tunnel, hub, and ledger.
package gateway
