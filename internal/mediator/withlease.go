package mediator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// LeaseRetryConfig controls WithLease's acquisition retry loop.
type LeaseRetryConfig struct {
	MaxRetries   int
	RetryDelayMs int
}

// DefaultLeaseRetryConfig matches the component design's defaults: up to 3
// acquisition attempts in all, with a linearly increasing delay of
// retryDelayMs*attempt between them (50ms, then 100ms, for the default base).
func DefaultLeaseRetryConfig() LeaseRetryConfig {
	return LeaseRetryConfig{MaxRetries: 3, RetryDelayMs: 50}
}

// WithLease acquires the lease for poolID, runs fn while holding it, and
// releases it afterward regardless of fn's outcome. If the lease is held by
// someone else, it makes up to cfg.MaxRetries acquisition attempts in all,
// with a linearly increasing delay between them, before giving up and
// returning ErrLeaseHeld.
func WithLease(ctx context.Context, m *LeaseManager, poolID string, cfg LeaseRetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	token := uuid.NewString()
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		err := m.Acquire(ctx, poolID, token)
		if err == nil {
			return runUnderLease(ctx, m, poolID, token, fn)
		}

		if !errors.Is(err, ErrLeaseHeld) {
			return err
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}

		delay := time.Duration(cfg.RetryDelayMs*attempt) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// runUnderLease runs fn while holding the lease and releases it on every
// exit path, including a panic inside fn: the lease is released before the
// panic continues to unwind, so a caller that recovers higher up never
// finds the pool still locked.
func runUnderLease(ctx context.Context, m *LeaseManager, poolID, token string, fn func(ctx context.Context) error) (fnErr error) {
	defer func() {
		relErr := m.Release(ctx, poolID, token)
		if r := recover(); r != nil {
			panic(r)
		}
		if relErr != nil && fnErr == nil {
			fnErr = relErr
		}
	}()

	fnErr = fn(ctx)
	return fnErr
}
