// Package mediator serializes concurrent writers to the same pool: a
// Redis-backed lease for operations that must hold exclusive access for a
// short window, and a version-checked update contract for operations that
// can retry instead of blocking.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poolride/dispatch-core/pkg/resilience"
)

// ErrLeaseHeld is returned by Acquire when another holder already owns the
// lease and it has not expired.
var ErrLeaseHeld = errors.New("mediator: lease held by another holder")

// ErrLeaseNotHeld is returned by Release when the caller's token no longer
// matches the stored lease — it expired and was stolen, or was already
// released.
var ErrLeaseNotHeld = errors.New("mediator: lease not held by this token")

// LeaseTTL is the default time a lease is held before it is eligible to be
// stolen by a later Acquire, absent a caller override.
const LeaseTTL = 30 * time.Second

// releaseScript deletes the lease key only if its value still matches the
// caller's token, so a holder whose lease already expired and was stolen by
// someone else can't accidentally release the new holder's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// LeaseManager acquires and releases short-lived, TTL-bound exclusive
// leases over pool IDs, backed by Redis SET NX/PX for acquisition and a
// compare-and-delete script for release. Both calls run through a circuit
// breaker so a struggling Redis instance fails fast instead of stacking up
// blocked callers, the same protection pkg/database gives the Postgres
// pool's connection attempts.
type LeaseManager struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
}

// NewLeaseManager constructs a LeaseManager with the given TTL; ttl<=0 uses
// LeaseTTL. The breaker trips after 5 consecutive Redis call failures and
// stays open for 10s before probing again — only the underlying Redis
// round trip counts toward that, never an expected ErrLeaseHeld/
// ErrLeaseNotHeld outcome, which the breaker never observes as an error.
func NewLeaseManager(client *redis.Client, ttl time.Duration) *LeaseManager {
	if ttl <= 0 {
		ttl = LeaseTTL
	}
	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "mediator-lease-store",
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
	}, nil)
	return &LeaseManager{client: client, ttl: ttl, breaker: breaker}
}

func leaseKey(poolID string) string {
	return fmt.Sprintf("pool:lease:%s", poolID)
}

// Acquire attempts to take the lease for poolID, returning a token the
// caller must present to Release. A lease past its TTL is eligible to be
// stolen by any subsequent Acquire, which is what SET NX naturally does
// once the key expires — no separate sweep is required for correctness.
func (m *LeaseManager) Acquire(ctx context.Context, poolID, token string) error {
	result, err := m.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return m.client.SetNX(ctx, leaseKey(poolID), token, m.ttl).Result()
	})
	if err != nil {
		return fmt.Errorf("mediator: acquire lease: %w", err)
	}
	if !result.(bool) {
		return ErrLeaseHeld
	}
	return nil
}

// Release gives up the lease for poolID if token still owns it. Releasing a
// lease the caller no longer holds (already expired and stolen) is a
// no-op from the caller's perspective, but ErrLeaseNotHeld is returned so
// callers can detect it and treat their in-flight work as having raced.
func (m *LeaseManager) Release(ctx context.Context, poolID, token string) error {
	result, err := m.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return releaseScript.Run(ctx, m.client, []string{leaseKey(poolID)}, token).Int64()
	})
	if err != nil {
		return fmt.Errorf("mediator: release lease: %w", err)
	}
	if result.(int64) == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// Sweep counts leases still outstanding, for observability only: Redis's
// own PX expiry already removes a lease key the instant it goes stale, so
// there is nothing left for a sweep to delete. The component design's
// sweep exists to bound storage growth on a backing store that stores
// expiry as a plain field rather than a native TTL; Redis has no such
// growth to bound, so this is a gauge, not a maintenance op.
func (m *LeaseManager) Sweep(ctx context.Context) (int, error) {
	var cursor uint64
	var count int
	for {
		keys, next, err := m.client.Scan(ctx, cursor, "pool:lease:*", 200).Result()
		if err != nil {
			return 0, fmt.Errorf("mediator: sweep leases: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}
