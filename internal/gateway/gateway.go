// ABOUTME: Gateway orchestrator that wires config, store, CRM provider and dispatcher into one HTTP server
// ABOUTME: Manages the listener, middleware chain, and graceful shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/hubspot-gateway/internal/bridge"
	"github.com/2389/hubspot-gateway/internal/config"
	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/crm/hubspot"
	"github.com/2389/hubspot-gateway/internal/crm/sandbox"
	"github.com/2389/hubspot-gateway/internal/dedupe"
	"github.com/2389/hubspot-gateway/internal/mcp"
	"github.com/2389/hubspot-gateway/internal/store"
)

// MaxRequestBodySize caps action and echo request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Gateway serves the action endpoint, MCP, health and metrics over HTTP.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	dispatcher *bridge.Dispatcher
	mcpServer  *mcp.Server
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
	version    string
}

// Option customizes a Gateway.
type Option func(*options)

type options struct {
	factory crm.Factory
	store   *store.SQLiteStore
	version string
}

// WithFactory replaces the configured CRM provider.
func WithFactory(f crm.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithStore uses an already open store instead of opening database.path.
// The gateway takes ownership and closes it on Shutdown.
func WithStore(s *store.SQLiteStore) Option {
	return func(o *options) { o.store = s }
}

// WithVersion sets the version reported by MCP initialize.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// initStore opens the SQLite store when the provider or audit log needs it.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if !cfg.NeedsStore() {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// NewFactory builds the crm.Factory selected by cfg.CRM.Provider.
func NewFactory(cfg *config.Config, s *store.SQLiteStore) (crm.Factory, error) {
	switch cfg.CRM.Provider {
	case config.ProviderHubSpot:
		return hubspot.NewFactory(hubspot.Config{
			BaseURL:           cfg.CRM.BaseURL,
			PageSize:          cfg.CRM.PageSize,
			MaxPages:          cfg.CRM.MaxPages,
			MaxConcurrency:    cfg.CRM.MaxConcurrency,
			RequestsPerSecond: cfg.CRM.RequestsPerSecond,
		}), nil
	case config.ProviderSandbox:
		if s == nil {
			return nil, errors.New("sandbox provider requires a store")
		}
		return sandbox.NewFactory(s), nil
	default:
		return nil, fmt.Errorf("unknown crm provider %q", cfg.CRM.Provider)
	}
}

// NewDispatcher builds the action dispatcher for cfg. s may be nil when
// neither the sandbox nor the audit log is in use.
func NewDispatcher(cfg *config.Config, factory crm.Factory, s *store.SQLiteStore, logger *slog.Logger) *bridge.Dispatcher {
	opts := bridge.Options{
		Logger:  logger,
		Timeout: cfg.CRM.Timeout,
	}
	if cfg.Dedupe.Mode == config.DedupeSerialized {
		opts.Guard = dedupe.NewGuard(cfg.Dedupe.TTL, cfg.Dedupe.Size)
	}
	if cfg.Audit.Enabled && s != nil {
		opts.Auditor = NewActionRecorder(s)
	}
	return bridge.NewDispatcher(factory, opts)
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := o.store
	if s == nil {
		var err error
		if s, err = initStore(cfg); err != nil {
			return nil, err
		}
	}

	factory := o.factory
	if factory == nil {
		var err error
		if factory, err = NewFactory(cfg, s); err != nil {
			closeStore(s)
			return nil, err
		}
	}

	gw := &Gateway{
		config:     cfg,
		store:      s,
		dispatcher: NewDispatcher(cfg, factory, s, logger),
		logger:     logger.With("component", "gateway"),
		version:    o.version,
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Dispatcher: gw.dispatcher,
		Logger:     logger,
		Version:    o.version,
	})
	if err != nil {
		closeStore(s)
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	gw.mcpServer = mcpServer

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", gw.handleAction)
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	if cfg.Debug.Echo {
		mux.HandleFunc("/debug/echo", gw.handleEcho)
		gw.logger.Warn("debug echo endpoint enabled at /debug/echo")
	}
	gw.mcpServer.RegisterRoutes(mux)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	gw.handler = chain(mux,
		requestID,
		accessLog(logger.With("component", "http")),
		recordStatus,
		preflight,
		cors(cfg.CORS.AllowedOrigins),
	)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return gw, nil
}

// Handler returns the complete HTTP handler including middleware.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Dispatcher returns the action dispatcher.
func (g *Gateway) Dispatcher() *bridge.Dispatcher {
	return g.dispatcher
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	g.logger.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"provider", g.config.CRM.Provider,
		"dedupe", g.config.Dedupe.Mode,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
// The original context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}
	return errors.Join(errs...)
}

func closeStore(s *store.SQLiteStore) {
	if s != nil {
		_ = s.Close()
	}
}
