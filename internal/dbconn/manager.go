package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// UpstreamAuthError reports that token acquisition failed.
type UpstreamAuthError struct {
	Err error
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("token acquisition failed: %v", e.Err)
}

func (e *UpstreamAuthError) Unwrap() error { return e.Err }

// UpstreamConnectError reports that the database could not be reached.
type UpstreamConnectError struct {
	Err error
}

func (e *UpstreamConnectError) Error() string {
	return fmt.Sprintf("database unreachable: %v", e.Err)
}

func (e *UpstreamConnectError) Unwrap() error { return e.Err }

// DefaultSafetyMargin is the minimum remaining token validity below which a
// proactive refresh is triggered.
const DefaultSafetyMargin = 2 * time.Minute

// DefaultConnectTimeout bounds connection attempts.
const DefaultConnectTimeout = 30 * time.Second

// Config identifies the target database and connection behavior.
type Config struct {
	// Server is the database server host name.
	Server string
	// Database is the database name.
	Database string
	// ConnectTimeout bounds each connection attempt. Zero selects the default.
	ConnectTimeout time.Duration
	// TrustServerCertificate skips server certificate validation.
	TrustServerCertificate bool
	// SafetyMargin is the token validity floor. Zero selects the default.
	SafetyMargin time.Duration
}

// Opener turns a bearer token into an open handle. Replaceable in tests.
type Opener func(token string) (*sql.DB, error)

// Option configures a Manager.
type Option func(*Manager)

// WithOpener overrides how connection handles are opened.
func WithOpener(open Opener) Option {
	return func(m *Manager) { m.open = open }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithRefreshHook registers a callback invoked after every successful
// token refresh. Used to feed the token-refresh metric.
func WithRefreshHook(hook func()) Option {
	return func(m *Manager) { m.onRefresh = hook }
}

// Manager owns the process-wide (handle, token, expiry) triple. At most one
// live handle exists at any time. Acquire serializes the check-then-refresh
// sequence behind a mutex so concurrent callers never create two handles or
// double-close one.
type Manager struct {
	cfg       Config
	tokens    TokenProvider
	open      Opener
	logger    *slog.Logger
	onRefresh func()

	mu     sync.Mutex
	db     *sql.DB
	token  Token
	expiry time.Time
}

// New creates a Manager. The default opener builds a go-mssqldb
// security-token connector carrying the current bearer token.
func New(cfg Config, tokens TokenProvider, opts ...Option) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	m := &Manager{
		cfg:    cfg,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.open == nil {
		m.open = m.openWithToken
	}
	return m
}

// Acquire returns the shared handle, refreshing it first when the held token
// is within the safety margin of expiry or no handle exists yet. The fast
// path makes no network call: database/sql pools reconnect dropped sockets
// transparently, so handle liveness is delegated to the pool and only token
// validity is checked here.
func (m *Manager) Acquire(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil && time.Until(m.expiry) > m.cfg.SafetyMargin {
		return m.db, nil
	}
	return m.refreshLocked(ctx)
}

// refreshLocked replaces the shared state with a freshly authenticated
// handle. Caller holds m.mu.
func (m *Manager) refreshLocked(ctx context.Context) (*sql.DB, error) {
	tok, err := m.tokens.Token(ctx)
	if err != nil {
		return nil, &UpstreamAuthError{Err: err}
	}

	db, err := m.open(tok.Value)
	if err != nil {
		return nil, &UpstreamConnectError{Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &UpstreamConnectError{Err: err}
	}

	// Old handle closes only after the replacement is verified, so a failed
	// refresh leaves the previous state untouched.
	if m.db != nil {
		_ = m.db.Close()
	}

	m.db = db
	m.token = tok
	m.expiry = tok.ExpiresOn
	if m.onRefresh != nil {
		m.onRefresh()
	}
	m.logger.Info("database connection refreshed",
		"server", m.cfg.Server,
		"database", m.cfg.Database,
		"token_expiry", tok.ExpiresOn.UTC().Format(time.RFC3339),
	)
	return m.db, nil
}

// openWithToken opens a handle authenticated with the given bearer token.
func (m *Manager) openWithToken(token string) (*sql.DB, error) {
	query := url.Values{}
	query.Set("database", m.cfg.Database)
	query.Set("dial timeout", fmt.Sprintf("%d", int(m.cfg.ConnectTimeout.Seconds())))
	query.Set("encrypt", "true")
	if m.cfg.TrustServerCertificate {
		query.Set("TrustServerCertificate", "true")
	}
	dsn := (&url.URL{
		Scheme:   "sqlserver",
		Host:     m.cfg.Server,
		RawQuery: query.Encode(),
	}).String()

	cfg, err := msdsn.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}
	connector, err := mssql.NewSecurityTokenConnector(cfg, func(ctx context.Context) (string, error) {
		return token, nil
	})
	if err != nil {
		return nil, fmt.Errorf("build connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// Close tears down the shared handle on process shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
