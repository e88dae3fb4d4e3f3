// ABOUTME: Gateway provides a uniform interface over generation backends with ordered fallback.
// ABOUTME: Resolves a selector (or the default) and walks the configured order on transport failures.

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnknownBackend is returned when a request names a backend that is not registered.
var ErrUnknownBackend = errors.New("unknown backend")

// Gateway routes generation requests to one of the registered backends.
// Selection order: the request's selector if given, otherwise the configured
// default, then the remaining backends in registration order. Only transport-
// level failures (*UnavailableError) trigger fallback.
//
// The Gateway holds no mutable shared state besides the static backend list,
// so it is safe for concurrent use without locking.
type Gateway struct {
	order       []Generator
	byName      map[string]Generator
	defaultName string
	logger      *slog.Logger
}

// NewGateway creates a Gateway over the given backends. The slice order is the
// fallback order. defaultName selects which backend is tried first when a
// request does not name one; if empty, the first backend is the default.
func NewGateway(backends []Generator, defaultName string, logger *slog.Logger) (*Gateway, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("at least one backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]Generator, len(backends))
	for _, b := range backends {
		name := b.Descriptor().Name
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate backend name %q", name)
		}
		byName[name] = b
	}

	if defaultName == "" {
		defaultName = backends[0].Descriptor().Name
	}
	if _, ok := byName[defaultName]; !ok {
		return nil, fmt.Errorf("default backend %q is not registered", defaultName)
	}

	return &Gateway{
		order:       backends,
		byName:      byName,
		defaultName: defaultName,
		logger:      logger.With("component", "backend-gateway"),
	}, nil
}

// Descriptors returns the static descriptors of all registered backends in
// fallback order.
func (g *Gateway) Descriptors() []Descriptor {
	out := make([]Descriptor, len(g.order))
	for i, b := range g.order {
		out[i] = b.Descriptor()
	}
	return out
}

// candidates returns the backends to try, in order: selector (or default)
// first, then the rest of the configured order.
func (g *Gateway) candidates(selector string) []Generator {
	first := selector
	if first == "" {
		first = g.defaultName
	}

	out := make([]Generator, 0, len(g.order))
	if b, ok := g.byName[first]; ok {
		out = append(out, b)
	}
	for _, b := range g.order {
		if b.Descriptor().Name == first {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Generate produces a complete response for the prompt. selector is optional;
// when empty, the configured default backend is tried first. Unavailable
// backends are skipped in configured order; if every backend fails the call
// returns *NoBackendAvailableError listing each attempt.
func (g *Gateway) Generate(ctx context.Context, prompt, selector string) (Result, error) {
	if selector != "" {
		if _, ok := g.byName[selector]; !ok {
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownBackend, selector)
		}
	}

	var attempts []Attempt
	for _, b := range g.candidates(selector) {
		desc := b.Descriptor()
		if !desc.Available {
			attempts = append(attempts, Attempt{Backend: desc.Name, Reason: errors.New("not configured")})
			continue
		}

		res, err := b.Generate(ctx, prompt)
		if err == nil {
			g.logger.Debug("generation complete",
				"backend", desc.Name,
				"confidence", res.Confidence,
				"chars", len(res.Text))
			return res, nil
		}

		var unavail *UnavailableError
		if errors.As(err, &unavail) {
			g.logger.Warn("backend unavailable, trying next",
				"backend", desc.Name,
				"error", err)
			attempts = append(attempts, Attempt{Backend: desc.Name, Reason: err})
			continue
		}

		// Generation-level failure: the backend answered, do not fall back.
		return Result{}, err
	}

	return Result{}, &NoBackendAvailableError{Attempts: attempts}
}

// GenerateStream starts a streaming generation. Selection and fallback apply
// only to starting the stream; once deltas are flowing there is no fallback.
func (g *Gateway) GenerateStream(ctx context.Context, prompt, selector string) (<-chan Delta, Descriptor, error) {
	if selector != "" {
		if _, ok := g.byName[selector]; !ok {
			return nil, Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownBackend, selector)
		}
	}

	var attempts []Attempt
	for _, b := range g.candidates(selector) {
		desc := b.Descriptor()
		if !desc.Available {
			attempts = append(attempts, Attempt{Backend: desc.Name, Reason: errors.New("not configured")})
			continue
		}

		ch, err := b.GenerateStream(ctx, prompt)
		if err == nil {
			g.logger.Debug("stream started", "backend", desc.Name)
			return ch, desc, nil
		}

		var unavail *UnavailableError
		if errors.As(err, &unavail) {
			g.logger.Warn("backend unavailable for streaming, trying next",
				"backend", desc.Name,
				"error", err)
			attempts = append(attempts, Attempt{Backend: desc.Name, Reason: err})
			continue
		}

		return nil, Descriptor{}, err
	}

	return nil, Descriptor{}, &NoBackendAvailableError{Attempts: attempts}
}
