package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/querybridge/querybridge/internal/adapter/inbound/http"
	"github.com/querybridge/querybridge/internal/config"
	"github.com/querybridge/querybridge/internal/dbconn"
	"github.com/querybridge/querybridge/internal/domain/auth"
	"github.com/querybridge/querybridge/internal/domain/ratelimit"
	"github.com/querybridge/querybridge/internal/domain/session"
	"github.com/querybridge/querybridge/internal/service"
	"github.com/querybridge/querybridge/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bridge server",
	Long: `Start the QueryBridge server.

On startup the server acquires a database access token and verifies
connectivity, then serves the session protocol on /sse and the legacy
endpoints under /api/.

Examples:
  # Start with config file settings
  querybridge start

  # Start with a specific config file
  querybridge --config /path/to/config.yaml start

  # Start without the connectivity probe (database may come up later)
  querybridge start --skip-probe`,
	RunE: runStart,
}

var skipProbe bool

func init() {
	startCmd.Flags().BoolVar(&skipProbe, "skip-probe", false, "Skip the startup database connectivity probe")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return run(ctx, cfg, logger)
}

// run wires all components together and blocks until shutdown.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Tracing.Enabled {
		shutdownTracing, err := telemetry.Setup("querybridge", Version)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(flushCtx)
		}()
	}

	promReg := prometheus.NewRegistry()
	http.RegisterRuntimeCollectors(promReg)
	metrics := http.NewMetrics(promReg)

	// Access guard.
	verifier := auth.NewVerifier(cfg.Auth.APIKey)

	// Rate limiter (optional).
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		window, err := cfg.RateLimit.WindowDuration()
		if err != nil {
			return fmt.Errorf("invalid rate_limit.window: %w", err)
		}
		limiter = ratelimit.NewLimiter(ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      window,
		})
		limiter.StartCleanup(ctx)
		defer limiter.Stop()
		logger.Debug("rate limiting enabled",
			"max_requests", cfg.RateLimit.MaxRequests,
			"window", window,
		)
	}

	// Database connection manager.
	connectTimeout, err := cfg.Database.ConnectTimeoutDuration()
	if err != nil {
		return fmt.Errorf("invalid database.connect_timeout: %w", err)
	}
	provider, err := dbconn.NewAzureTokenProvider(cfg.Database.TokenScope)
	if err != nil {
		return fmt.Errorf("failed to create token provider: %w", err)
	}
	manager := dbconn.New(dbconn.Config{
		Server:                 cfg.Database.Server,
		Database:               cfg.Database.Name,
		ConnectTimeout:         connectTimeout,
		TrustServerCertificate: cfg.Database.TrustServerCertificate,
	}, provider,
		dbconn.WithLogger(logger),
		dbconn.WithRefreshHook(metrics.TokenRefreshes.Inc),
	)
	defer func() { _ = manager.Close() }()

	// Startup probe: fail fast when the database is unreachable.
	if skipProbe {
		logger.Warn("startup connectivity probe skipped")
	} else {
		probeCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if _, err := manager.Acquire(probeCtx); err != nil {
			return fmt.Errorf("startup connectivity probe failed: %w", err)
		}
		logger.Info("database connectivity verified",
			"server", cfg.Database.Server,
			"database", cfg.Database.Name,
		)
	}

	registry := session.NewRegistry()
	defer registry.CloseAll()

	router := service.NewRouter(manager, "querybridge", Version,
		service.WithMaxRows(cfg.Database.MaxRows),
		service.WithSchemas(cfg.Database.SchemaList()),
		service.WithRouterLogger(logger),
	)

	logger.Info("querybridge starting",
		"version", Version,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Name,
		"auth", verifier.Configured(),
		"rate_limit", cfg.RateLimit.Enabled,
		"tracing", cfg.Tracing.Enabled,
	)

	transport := http.NewTransport(router, registry, verifier,
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithAllowedOrigins(cfg.Server.OriginList()),
		http.WithLogger(logger),
		http.WithVersion(Version),
		http.WithRateLimiter(limiter),
		http.WithMetrics(metrics, promReg),
		http.WithTracing(cfg.Tracing.Enabled),
	)
	if err := transport.Start(ctx); err != nil {
		return err
	}

	logger.Info("querybridge stopped")
	return nil
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
