// ABOUTME: Package documentation for the tool registry.
// ABOUTME: Explains explicit registration and workspace confinement.

// Package tools provides a registry of named, JSON-argument tools and the
// builtin file tools.
//
// Registration is explicit. Components construct their tools and hand them
// to Register; there is no annotation scanning and no package-level global.
// Duplicate names fail fast at registration rather than at dispatch.
//
// The builtin file tools operate strictly inside a configured workspace
// directory. Absolute paths and paths that traverse out of the workspace are
// rejected before touching the filesystem.
package tools
