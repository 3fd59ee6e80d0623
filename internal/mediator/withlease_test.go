package mediator

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLeaseRunsFnWhenAcquired(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewLeaseManager(client, 30*time.Second)

	mock.Regexp().ExpectSetNX("pool:lease:p1", `.*`, 30*time.Second).SetVal(true)
	mock.Regexp().ExpectEvalSha(`.*`, []string{"pool:lease:p1"}, `.*`).SetVal(int64(1))

	var ran bool
	err := WithLease(context.Background(), m, "p1", DefaultLeaseRetryConfig(), func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithLeaseRetriesThenGivesUp(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewLeaseManager(client, 30*time.Second)

	for i := 0; i < 3; i++ {
		mock.Regexp().ExpectSetNX("pool:lease:p1", `.*`, 30*time.Second).SetVal(false)
	}

	cfg := LeaseRetryConfig{MaxRetries: 3, RetryDelayMs: 1}
	called := false
	err := WithLease(context.Background(), m, "p1", cfg, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.False(t, called)
}
