// ABOUTME: Gateway orchestrator wiring backends, ledger, hub, router, and HTTP server.
// ABOUTME: Owns construction from config and the run/shutdown lifecycle.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/relay-gateway/internal/backend"
	"github.com/2389/relay-gateway/internal/config"
	"github.com/2389/relay-gateway/internal/ledger"
	"github.com/2389/relay-gateway/internal/notify"
	"github.com/2389/relay-gateway/internal/router"
	"github.com/2389/relay-gateway/internal/stream"
	"github.com/2389/relay-gateway/internal/tools"
	"github.com/2389/relay-gateway/internal/tunnel"
)

// Gateway assembles the backend gateway, review ledger, notification hub,
// chat router, tool registry, and optional tunnel behind one HTTP server.
type Gateway struct {
	config     *config.Config
	backends   *backend.Gateway
	ledger     ledger.Ledger
	hub        *notify.Hub
	router     *router.Router
	tools      *tools.Registry
	tunnel     *tunnel.Manager
	httpServer *http.Server
	logger     *slog.Logger
}

// New constructs a Gateway from config. The context is used only for client
// initialization; it does not bound the gateway's lifetime.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backends, err := buildBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	led, err := buildLedger(cfg, logger)
	if err != nil {
		return nil, err
	}

	hub := notify.NewHub(logger)
	rtr := router.New(backends, led, hub, stream.NewController(logger), logger)

	registry := tools.NewRegistry(logger)
	if cfg.Tools.WorkspaceDir != "" {
		for _, tool := range tools.FileTools(cfg.Tools.WorkspaceDir) {
			if err := registry.Register(tool); err != nil {
				return nil, fmt.Errorf("register builtin tool: %w", err)
			}
		}
	}

	gw := &Gateway{
		config:   cfg,
		backends: backends,
		ledger:   led,
		hub:      hub,
		router:   rtr,
		tools:    registry,
		logger:   logger.With("component", "gateway"),
	}

	if cfg.Tunnel.Enabled {
		gw.tunnel = tunnel.NewManager(cfg.Tunnel.Binary, logger)
	}

	gw.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: gw.routes(),
	}

	return gw, nil
}

// buildBackends constructs the enabled generators in configured fallback
// order and wraps them in the backend gateway.
func buildBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.Gateway, error) {
	order := cfg.Backends.Order
	if len(order) == 0 {
		order = []string{"anthropic", "gemini", "ollama"}
	}

	var generators []backend.Generator
	for _, name := range order {
		switch name {
		case "anthropic":
			if !cfg.Backends.Anthropic.Enabled {
				continue
			}
			a := cfg.Backends.Anthropic
			generators = append(generators, backend.NewAnthropic(a.APIKey, a.Model, a.MaxTokens, logger))
		case "gemini":
			if !cfg.Backends.Gemini.Enabled {
				continue
			}
			gem, err := backend.NewGemini(ctx, cfg.Backends.Gemini.APIKey, cfg.Backends.Gemini.Model, logger)
			if err != nil {
				return nil, fmt.Errorf("init gemini backend: %w", err)
			}
			generators = append(generators, gem)
		case "ollama":
			if !cfg.Backends.Ollama.Enabled {
				continue
			}
			generators = append(generators, backend.NewOllama(cfg.Backends.Ollama.BaseURL, cfg.Backends.Ollama.Model, logger))
		default:
			return nil, fmt.Errorf("unknown backend %q in backends.order", name)
		}
	}
	if len(generators) == 0 {
		return nil, fmt.Errorf("no backends enabled")
	}

	defaultName := cfg.Backends.Default
	if defaultName == "" {
		defaultName = generators[0].Descriptor().Name
	}
	return backend.NewGateway(generators, defaultName, logger)
}

// buildLedger selects the review store. An empty database path keeps review
// records in memory for the life of the process.
func buildLedger(cfg *config.Config, logger *slog.Logger) (ledger.Ledger, error) {
	if cfg.Database.Path == "" {
		return ledger.NewMemoryLedger(logger), nil
	}
	led, err := ledger.NewSQLiteLedger(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open review ledger: %w", err)
	}
	return led, nil
}

// routes builds the HTTP mux.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	mux.HandleFunc("/api/chat", g.handleChat)
	mux.HandleFunc("/api/chat/stream", g.handleChatStream)
	mux.HandleFunc("/api/reviews", g.handleListReviews)
	mux.HandleFunc("/api/reviews/", g.handleSubmitReview)
	mux.HandleFunc("/api/backends", g.handleListBackends)
	mux.HandleFunc("/api/events", g.handleEvents)
	mux.HandleFunc("/api/tools", g.handleListTools)
	mux.HandleFunc("/api/tools/", g.handleDispatchTool)

	mux.HandleFunc("/reviews", g.handleReviewDashboard)

	return mux
}

// Run starts the HTTP server and, when configured, the tunnel. It blocks
// until ctx is cancelled or a component fails, then shuts everything down.
func (g *Gateway) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	if g.tunnel != nil {
		publicURL, err := g.tunnel.Setup(g.config.Tunnel.LocalPort, g.config.Tunnel.CustomDomain)
		if err != nil {
			return fmt.Errorf("tunnel setup: %w", err)
		}
		if _, err := g.tunnel.Start(ctx); err != nil {
			return fmt.Errorf("tunnel start: %w", err)
		}
		g.logger.Info("tunnel ready", "public_url", publicURL)
	}

	eg.Go(func() error {
		g.logger.Info("http server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		return g.Shutdown()
	})

	return eg.Wait()
}

// Shutdown stops the HTTP server, tunnel, hub, and ledger.
func (g *Gateway) Shutdown() error {
	g.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if g.tunnel != nil {
		if err := g.tunnel.Stop(); err != nil && !errors.Is(err, tunnel.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("tunnel stop: %w", err))
		}
	}
	g.hub.Close()
	if err := g.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ledger close: %w", err))
	}
	return errors.Join(errs...)
}

// streamTimeout returns the configured per-stream deadline.
func (g *Gateway) streamTimeout() time.Duration {
	if g.config.Streaming.Timeout > 0 {
		return g.config.Streaming.Timeout
	}
	return config.DefaultStreamTimeout
}
