// Package ratelimit implements the per-credential fixed-window request
// counter applied by the access guard.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// AnonymousKey buckets requests that present no credential.
const AnonymousKey = "anonymous"

// Config defines the fixed-window parameters.
type Config struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int
	// Window is the counter reset interval.
	Window time.Duration
}

// Result is the outcome of one Allow check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool
	// Remaining is the number of requests left in the current window.
	Remaining int
	// RetryAfter is the time until the window resets. Only meaningful
	// when Allowed is false.
	RetryAfter time.Duration
}

type window struct {
	count    int
	start    time.Time
	lastSeen time.Time
}

// Limiter is an in-memory fixed-window rate limiter. Keys are hashed with
// xxhash before storage so raw credentials never sit in the map. Thread-safe;
// includes background cleanup to prevent unbounded growth.
type Limiter struct {
	cfg             Config
	mu              sync.Mutex
	windows         map[uint64]*window
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	maxTTL          time.Duration
}

// NewLimiter creates a limiter with default cleanup settings
// (interval 5 minutes, key TTL 1 hour).
func NewLimiter(cfg Config) *Limiter {
	return NewLimiterWithCleanup(cfg, 5*time.Minute, time.Hour)
}

// NewLimiterWithCleanup creates a limiter with custom cleanup settings.
func NewLimiterWithCleanup(cfg Config, cleanupInterval, maxTTL time.Duration) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		cfg:             cfg,
		windows:         make(map[uint64]*window),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		maxTTL:          maxTTL,
	}
}

// Allow checks and accounts one request for key. The counter resets when the
// fixed window elapses; once MaxRequests is exceeded within a window, further
// requests are denied with a RetryAfter hint until the reset.
func (l *Limiter) Allow(key string) Result {
	h := xxhash.Sum64String(key)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[h]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		w = &window{start: now}
		l.windows[h] = w
	}
	w.lastSeen = now

	if w.count >= l.cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.start.Add(l.cfg.Window).Sub(now),
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Remaining: l.cfg.MaxRequests - w.count,
	}
}

// StartCleanup starts the background goroutine that evicts idle keys.
// It stops when ctx is cancelled or Stop is called.
func (l *Limiter) StartCleanup(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.maxTTL)
	cleaned := 0
	for h, w := range l.windows {
		if w.lastSeen.Before(cutoff) {
			delete(l.windows, h)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Debug("rate limiter cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", len(l.windows))
	}
}

// Stop stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (l *Limiter) Stop() {
	l.once.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}

// Size returns the number of tracked keys. Useful for tests and monitoring.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
