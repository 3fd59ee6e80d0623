package mediator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOnVersionConflictSucceedsAfterConflicts(t *testing.T) {
	cfg := VersionRetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	attempts := 0
	err := RetryOnVersionConflict(context.Background(), cfg, "test.update", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return ErrVersionConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryOnVersionConflictExhaustsAttempts(t *testing.T) {
	cfg := VersionRetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}

	attempts := 0
	err := RetryOnVersionConflict(context.Background(), cfg, "test.update", func(ctx context.Context) error {
		attempts++
		return ErrVersionConflict
	})

	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 2, attempts)
}

func TestRetryOnVersionConflictDoesNotRetryOtherErrors(t *testing.T) {
	cfg := VersionRetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	other := errors.New("not a version conflict")

	attempts := 0
	err := RetryOnVersionConflict(context.Background(), cfg, "test.update", func(ctx context.Context) error {
		attempts++
		return other
	})

	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, attempts)
}
