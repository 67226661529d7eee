// Package governor paces navigations and bounds retries so a batch looks
// like a patient human reader rather than a crawler.
package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/use-agent/postpulse/config"
	"github.com/use-agent/postpulse/models"
	"golang.org/x/time/rate"
)

// ErrMaxAttemptsExceeded wraps the last error once every attempt failed.
var ErrMaxAttemptsExceeded = errors.New("max navigation attempts exceeded")

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryHook observes each scheduled retry.
type RetryHook func(attempt int, err error, delay time.Duration)

// Governor decides how long to pause between items and how often a failed
// navigation is retried. Its only state is the processed-item counter and
// the consecutive-failure counter.
type Governor struct {
	cfg         config.GovernorConfig
	limiter     *rate.Limiter
	sleep       SleepFunc
	rng         *rand.Rand
	isRetryable func(error) bool
	onRetry     RetryHook

	mu                  sync.Mutex
	processed           int
	consecutiveFailures int
}

// Option customizes a Governor.
type Option func(*Governor)

// WithSleep replaces the real clock, mostly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(g *Governor) { g.sleep = fn }
}

// WithRand fixes the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(g *Governor) { g.rng = r }
}

// WithRetryable overrides which errors are retried.
func WithRetryable(fn func(error) bool) Option {
	return func(g *Governor) { g.isRetryable = fn }
}

// WithRetryHook registers a callback fired before each backoff.
func WithRetryHook(fn RetryHook) Option {
	return func(g *Governor) { g.onRetry = fn }
}

// New creates a Governor from cfg.
func New(cfg config.GovernorConfig, opts ...Option) *Governor {
	limit := rate.Inf
	if cfg.MaxNavigationsPerMinute > 0 {
		limit = rate.Limit(cfg.MaxNavigationsPerMinute / 60)
	}
	g := &Governor{
		cfg:         cfg,
		limiter:     rate.NewLimiter(limit, 1),
		sleep:       sleepCtx,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		isRetryable: models.IsRetryable,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wait blocks before an item. The first item goes immediately; later items
// wait a random pause in [ItemDelayMin, ItemDelayMax], or GroupDelay when a
// group of GroupSize items has just finished. A streak of CooldownAfter
// failures adds FailureCooldown on top.
func (g *Governor) Wait(ctx context.Context) error {
	g.mu.Lock()
	n := g.processed
	g.processed++
	failures := g.consecutiveFailures
	d := g.pauseLocked(n, failures)
	g.mu.Unlock()

	if d <= 0 {
		return ctx.Err()
	}
	slog.Debug("pacing pause", "item", n, "pause", d, "consecutiveFailures", failures)
	return g.sleep(ctx, d)
}

// pauseLocked computes the pause before the n-th item (0-based). Caller
// must hold g.mu.
func (g *Governor) pauseLocked(n, failures int) time.Duration {
	if n == 0 {
		return 0
	}
	var d time.Duration
	if g.cfg.GroupSize > 0 && n%g.cfg.GroupSize == 0 {
		d = g.cfg.GroupDelay
	} else {
		d = g.jitter(g.cfg.ItemDelayMin, g.cfg.ItemDelayMax)
	}
	if g.cfg.CooldownAfter > 0 && failures >= g.cfg.CooldownAfter {
		d += g.cfg.FailureCooldown
	}
	return d
}

func (g *Governor) jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(g.rng.Int64N(int64(hi-lo)+1))
}

// Do runs fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. Every attempt first passes the navigation rate
// limiter; retries back off exponentially. It returns the number of
// attempts made.
func (g *Governor) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := max(g.cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return attempt - 1, fmt.Errorf("governor: rate limit wait: %w", err)
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || !g.isRetryable(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := g.Backoff(attempt)
		slog.Warn("navigation attempt failed, retrying",
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"delay", delay,
			"error", err,
		)
		if g.onRetry != nil {
			g.onRetry(attempt, err, delay)
		}
		if err := g.sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}
	return maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, maxAttempts, lastErr)
}

// Backoff returns the pause after the given failed attempt (1-based):
// InitialBackoff * Multiplier^(attempt-1), capped at MaxBackoff.
func (g *Governor) Backoff(attempt int) time.Duration {
	mult := g.cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	d := time.Duration(float64(g.cfg.InitialBackoff) * math.Pow(mult, float64(attempt-1)))
	if g.cfg.MaxBackoff > 0 && d > g.cfg.MaxBackoff {
		d = g.cfg.MaxBackoff
	}
	return d
}

// RecordOutcome updates the consecutive-failure streak after an item.
func (g *Governor) RecordOutcome(ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ok {
		g.consecutiveFailures = 0
		return
	}
	g.consecutiveFailures++
}

// ConsecutiveFailures returns the current failure streak.
func (g *Governor) ConsecutiveFailures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consecutiveFailures
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
