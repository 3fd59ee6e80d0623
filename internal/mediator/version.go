package mediator

import (
	"context"
	"errors"
	"time"

	"github.com/poolride/dispatch-core/pkg/resilience"
)

// ErrVersionConflict is returned by the update function passed to
// RetryOnVersionConflict when the
// stored version no longer matches the version the caller last read — the
// signal that drives RetryOnVersionConflict's backoff loop.
var ErrVersionConflict = errors.New("mediator: version conflict")

// VersionRetryConfig controls RetryOnVersionConflict's exponential backoff.
type VersionRetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
}

// DefaultVersionRetryConfig matches the component design's defaults: up to
// 3 attempts total, exponential backoff base*2^attempt starting at 100ms.
func DefaultVersionRetryConfig() VersionRetryConfig {
	return VersionRetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// RetryOnVersionConflict runs update, which should read the current
// version, attempt an update conditioned on it, and return
// ErrVersionConflict if the condition failed. It retries with exponential
// backoff until update succeeds, returns a different error, or the attempt
// budget is exhausted.
func RetryOnVersionConflict(ctx context.Context, cfg VersionRetryConfig, operationName string, update func(ctx context.Context) error) error {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:       cfg.MaxAttempts,
		InitialBackoff:    cfg.BaseDelay,
		MaxBackoff:        cfg.BaseDelay * time.Duration(1<<uint(cfg.MaxAttempts)),
		BackoffMultiplier: 2.0,
		EnableJitter:      false,
		RetryableChecker: func(err error) bool {
			return errors.Is(err, ErrVersionConflict)
		},
	}

	_, err := resilience.RetryWithName(ctx, retryCfg, func(ctx context.Context) (interface{}, error) {
		return nil, update(ctx)
	}, operationName)

	return err
}
