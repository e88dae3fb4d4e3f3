// ABOUTME: Package documentation for the tunnel manager.
// ABOUTME: Describes the external client contract and the state machine.

// Package tunnel manages an external tunnel client that publishes a local
// port under a public URL.
//
// The rest of the system treats the tunnel as a black box with one promise:
// once Start succeeds, the URL returned by Setup is reachable. The client
// binary's download, authentication, and transport are its own business; the
// manager only starts it, watches it, and reports its state.
//
// # States
//
// A manager moves through idle, starting, running, stopped, and failed.
// Stop moves a running tunnel to stopped; a client process that exits on its
// own moves it to failed and records the exit error in the status.
package tunnel
