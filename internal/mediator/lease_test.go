package mediator

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSucceedsWhenUnheld(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewLeaseManager(client, 30*time.Second)

	mock.ExpectSetNX("pool:lease:p1", "tok-1", 30*time.Second).SetVal(true)

	err := m.Acquire(context.Background(), "p1", "tok-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireReturnsErrLeaseHeldWhenTaken(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewLeaseManager(client, 30*time.Second)

	mock.ExpectSetNX("pool:lease:p1", "tok-2", 30*time.Second).SetVal(false)

	err := m.Acquire(context.Background(), "p1", "tok-2")
	assert.ErrorIs(t, err, ErrLeaseHeld)
}

func TestReleaseSucceedsWhenTokenMatches(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewLeaseManager(client, 30*time.Second)

	mock.Regexp().ExpectEvalSha(`.*`, []string{"pool:lease:p1"}, "tok-1").SetVal(int64(1))

	err := m.Release(context.Background(), "p1", "tok-1")
	require.NoError(t, err)
}

func TestReleaseReturnsErrLeaseNotHeldWhenTokenStale(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewLeaseManager(client, 30*time.Second)

	mock.Regexp().ExpectEvalSha(`.*`, []string{"pool:lease:p1"}, "tok-1").SetVal(int64(0))

	err := m.Release(context.Background(), "p1", "tok-1")
	assert.ErrorIs(t, err, ErrLeaseNotHeld)
}

func TestDefaultTTLAppliedWhenNonPositive(t *testing.T) {
	client, _ := redismock.NewClientMock()
	m := NewLeaseManager(client, 0)
	assert.Equal(t, LeaseTTL, m.ttl)
}
