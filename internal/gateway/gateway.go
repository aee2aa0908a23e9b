// ABOUTME: Gateway orchestrator that wires the ARIA session, tool catalog, and MCP server
// ABOUTME: Manages the HTTP server, audit store, metrics, and health endpoints lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/oncolink/aria-gateway/internal/aria"
	"github.com/oncolink/aria-gateway/internal/auth"
	"github.com/oncolink/aria-gateway/internal/config"
	"github.com/oncolink/aria-gateway/internal/mcp"
	"github.com/oncolink/aria-gateway/internal/store"
	"github.com/oncolink/aria-gateway/internal/tools"
)

// remoteTimeout bounds every HTTP request to the ARIA backend.
const remoteTimeout = 30 * time.Second

// Gateway orchestrates the aria-gateway server components.
// It owns the ARIA session, the tool registry, and the MCP HTTP server.
type Gateway struct {
	config     *config.Config
	logger     *slog.Logger
	session    *aria.Session
	registry   *tools.Registry
	store      *store.SQLiteStore
	metrics    *Metrics
	mcpServer  *mcp.Server
	httpServer *http.Server
}

// buildTokenStore loads the configured static tokens into an MCP token store.
// Returns nil when no static tokens are configured.
func buildTokenStore(cfg *config.Config) *mcp.TokenStore {
	if len(cfg.Auth.Tokens) == 0 {
		return nil
	}
	ts := mcp.NewTokenStore()
	for _, tok := range cfg.Auth.Tokens {
		ts.Add(tok.Token, tok.Principal, tok.Capabilities)
	}
	return ts
}

// buildVerifier creates a JWT verifier when a secret is configured.
func buildVerifier(cfg *config.Config) (auth.TokenVerifier, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, nil
	}
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	return verifier, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	gw := &Gateway{
		config: cfg,
		logger: logger.With("component", "gateway"),
	}

	if cfg.Metrics.Enabled {
		gw.metrics = NewMetrics()
	}

	httpClient := &http.Client{Timeout: remoteTimeout}
	if gw.metrics != nil {
		httpClient.Transport = gw.metrics.InstrumentHTTPClient(http.DefaultTransport)
	}

	session, err := aria.NewSession(aria.SessionConfig{
		Credentials: cfg.ARIA.Credentials(),
		TokenTTL:    cfg.ARIA.TokenTTL,
		HTTPClient:  httpClient,
		Logger:      logger.With("component", "aria-session"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating ARIA session: %w", err)
	}
	gw.session = session

	client, err := aria.NewClient(aria.ClientConfig{
		Session:    session,
		HTTPClient: httpClient,
		Logger:     logger.With("component", "aria-client"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating ARIA client: %w", err)
	}

	registry := tools.NewRegistry(logger.With("component", "tools"))
	if err := registry.RegisterAll(tools.Catalog(client, session)); err != nil {
		return nil, fmt.Errorf("registering tool catalog: %w", err)
	}
	gw.registry = registry

	if cfg.Database.Path != "" {
		auditStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing audit store: %w", err)
		}
		gw.store = auditStore
		registry.AddObserver(auditStore)
	}
	if gw.metrics != nil {
		registry.AddObserver(gw.metrics)
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		return nil, err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:      registry,
		Logger:        logger.With("component", "mcp"),
		TokenVerifier: verifier,
		TokenStore:    buildTokenStore(cfg),
		RequireAuth:   cfg.Auth.RequireAuth,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	gw.mcpServer = mcpServer

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	if gw.metrics != nil {
		mux.Handle(cfg.Metrics.Path, gw.metrics.Handler())
	}
	mcpServer.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Registry exposes the tool registry, primarily for tests.
func (g *Gateway) Registry() *tools.Registry {
	return g.registry
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.store != nil {
		if err := g.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness along with the ARIA session state. A missing
// token is not a failure: the first tool call will acquire one.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	status := g.session.Status()
	w.WriteHeader(http.StatusOK)
	if status.TokenValid {
		_, _ = fmt.Fprintf(w, "ready (authenticated against %s)", status.BaseURL)
		return
	}
	_, _ = fmt.Fprintf(w, "ready (no session token for %s)", status.BaseURL)
}
