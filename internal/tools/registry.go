// ABOUTME: Thread-safe registry for tools callable by name with JSON input.
// ABOUTME: Registration is explicit; duplicate names are rejected at register time.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrToolAlreadyRegistered indicates a tool with the same name exists.
var ErrToolAlreadyRegistered = errors.New("tool already registered")

// ErrToolNotFound indicates the named tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Handler executes a tool call. Input is the raw JSON arguments; the returned
// string is the tool's text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is a named, dispatchable capability.
type Tool struct {
	Name        string
	Description string
	InputSchema string // JSON Schema for the input, informational
	Handler     Handler
}

// Registry holds tools by name. All registration is explicit: there is no
// scanning, no global registry, and no implicit ordering.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool. A tool with no name or no handler is rejected, as is
// a name that is already taken.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %q has no handler", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %q", ErrToolAlreadyRegistered, tool.Name)
	}
	r.tools[tool.Name] = tool
	r.logger.Debug("tool registered", "name", tool.Name)
	return nil
}

// Get returns the named tool, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool, nil
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch looks up the named tool and runs its handler.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}

	result, err := tool.Handler(ctx, input)
	if err != nil {
		return "", fmt.Errorf("tool %q: %w", name, err)
	}
	return result, nil
}
