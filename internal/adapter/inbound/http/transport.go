package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/querybridge/querybridge/internal/domain/auth"
	"github.com/querybridge/querybridge/internal/domain/ratelimit"
	"github.com/querybridge/querybridge/internal/domain/session"
	"github.com/querybridge/querybridge/internal/service"
)

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 10 * time.Second

// Transport is the inbound HTTP adapter. It serves the session protocol on
// /sse, the legacy REST endpoints under /api/, and the health and metrics
// probes.
type Transport struct {
	router   *service.Router
	registry *session.Registry
	verifier *auth.Verifier
	limiter  *ratelimit.Limiter

	server  *http.Server
	addr    string
	origins []string
	version string
	tracing bool
	logger  *slog.Logger

	metrics *Metrics
	promReg *prometheus.Registry
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(t *Transport) { t.addr = addr }
}

// WithAllowedOrigins sets the origins accepted for cross-origin requests.
func WithAllowedOrigins(origins []string) Option {
	return func(t *Transport) { t.origins = origins }
}

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithVersion sets the version string reported by /health.
func WithVersion(version string) Option {
	return func(t *Transport) { t.version = version }
}

// WithRateLimiter enables request-rate accounting. Nil disables it.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(t *Transport) { t.limiter = limiter }
}

// WithMetrics supplies an externally created metrics set and its registry,
// so other components (e.g. the connection manager's refresh hook) can share
// the same collectors.
func WithMetrics(m *Metrics, reg *prometheus.Registry) Option {
	return func(t *Transport) {
		t.metrics = m
		t.promReg = reg
	}
}

// WithTracing wraps the handler chain in otelhttp instrumentation.
func WithTracing(enabled bool) Option {
	return func(t *Transport) { t.tracing = enabled }
}

// NewTransport creates the inbound HTTP adapter.
func NewTransport(router *service.Router, registry *session.Registry, verifier *auth.Verifier, opts ...Option) *Transport {
	t := &Transport{
		router:   router,
		registry: registry,
		verifier: verifier,
		addr:     "127.0.0.1:8080",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.promReg = prometheus.NewRegistry()
		t.metrics = NewMetrics(t.promReg)
	}
	return t
}

// Handler builds the full handler chain. Exposed for tests.
func (t *Transport) Handler() http.Handler {
	// Guarded surface: everything except /health and /metrics' rate-limit
	// exemption. Chain order (outermost first): metrics, request-id, CORS,
	// credential check, rate limit, routes.
	guarded := http.NewServeMux()
	guarded.Handle("/sse", sseHandler(t.router, t.registry, t.metrics))
	guarded.Handle("/api/read_data", restHandler(t.router, "read_data"))
	guarded.Handle("/api/list_table", restHandler(t.router, "list_table"))
	guarded.Handle("/api/describe_table", restHandler(t.router, "describe_table"))
	guarded.Handle("/metrics", promhttp.HandlerFor(t.promReg, promhttp.HandlerOpts{Registry: t.promReg}))

	var protected http.Handler = guarded
	protected = RateLimitMiddleware(t.limiter, t.metrics)(protected)
	protected = AccessGuardMiddleware(t.verifier, t.logger)(protected)

	mux := http.NewServeMux()
	// The health probe is unconditionally exempt from the access guard.
	mux.Handle("/health", healthHandler(t.registry, t.version))
	mux.Handle("/", protected)

	var handler http.Handler = mux
	handler = CORSMiddleware(t.origins)(handler)
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = MetricsMiddleware(t.metrics)(handler)
	if t.tracing {
		handler = otelhttp.NewHandler(handler, "querybridge")
	}
	return handler
}

// Start begins accepting connections. It blocks until the context is
// cancelled or the server fails.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:    t.addr,
		Handler: t.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown closes all session streams first so their event loops exit, then
// shuts the server down gracefully.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	t.registry.CloseAll()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

// Register go runtime collectors on an externally supplied registry.
// Kept separate so tests can use a bare registry without the default
// collectors colliding.
func RegisterRuntimeCollectors(reg *prometheus.Registry) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
