// Package executor runs outbound calls with bounded exponential-backoff retry.
//
// Every HTTP client in weekreflect funnels its calls through an Executor. The
// executor knows nothing about status codes: the caller injects a predicate
// that decides whether a failure is worth another attempt, and each client
// classifies its own failures into a ClassifiedError.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryConfig configures retry behavior for outbound calls.
type RetryConfig struct {
	// MaxRetries is the number of attempts made after the first one.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff caps both the exponential delay and server-requested waits.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor between retries.
	// Default: 2
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry configuration used by every client.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()

	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
}

// Backoff returns the delay before retry number attempt (zero-based):
// InitialBackoff * BackoffMultiplier^attempt, capped at MaxBackoff.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 0; i < attempt; i++ {
		d *= c.BackoffMultiplier
		if d >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	if time.Duration(d) > c.MaxBackoff {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

// Predicate decides whether a failed attempt should be retried.
type Predicate func(error) bool

// Executor runs operations for one named client.
type Executor struct {
	name      string
	config    RetryConfig
	retryable Predicate
	limiter   *rate.Limiter
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetryConfig overrides the retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *Executor) {
		cfg.ApplyDefaults()
		e.config = cfg
	}
}

// WithPredicate overrides the retry predicate. The default is IsRetryable.
func WithPredicate(p Predicate) Option {
	return func(e *Executor) {
		if p != nil {
			e.retryable = p
		}
	}
}

// WithRateLimit throttles attempts to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Executor for the named client.
func New(name string, opts ...Option) *Executor {
	e := &Executor{
		name:      name,
		config:    DefaultRetryConfig(),
		retryable: IsRetryable,
		logger:    zap.NewNop(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the client name the executor was created for.
func (e *Executor) Name() string {
	return e.name
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// the retry budget is spent. Rate-limited failures that carry a reset time
// wait for it (capped at MaxBackoff) instead of the exponential delay.
func Execute[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("%s: rate limiter: %w", e.name, err)
			}
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("operation recovered after retries",
					zap.String("client", e.name),
					zap.Int("attempts", attempt+1),
					zap.Duration("total_time", time.Since(start)),
				)
			}
			return result, nil
		}
		lastErr = err

		if !e.retryable(err) {
			e.logger.Debug("error is not retryable",
				zap.String("client", e.name),
				zap.Error(err),
			)
			return zero, err
		}

		if attempt == e.config.MaxRetries {
			break
		}

		backoff := e.config.Backoff(attempt)
		if ce, ok := asClassified(err); ok {
			if wait := ce.Wait(time.Now()); wait > 0 {
				backoff = min(wait, e.config.MaxBackoff)
			}
		}

		e.logger.Info("retrying after transient error",
			zap.String("client", e.name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", e.config.MaxRetries+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		retryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("client", e.name)))

		if err := e.sleep(ctx, backoff); err != nil {
			return zero, fmt.Errorf("%s: operation canceled: %w", e.name, err)
		}
	}

	e.logger.Warn("operation failed after all retries exhausted",
		zap.String("client", e.name),
		zap.Int("total_attempts", e.config.MaxRetries+1),
		zap.Duration("total_time", time.Since(start)),
		zap.Error(lastErr),
	)
	return zero, fmt.Errorf("%s: failed after %d retries: %w", e.name, e.config.MaxRetries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
