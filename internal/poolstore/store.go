package poolstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("poolstore: not found")

// ErrVersionConflict is returned by UpdatePoolByVersion when the stored
// version no longer matches the version the caller last read.
var ErrVersionConflict = errors.New("poolstore: version conflict")

// Store is the backend-agnostic persistence boundary the dispatch service
// and matcher depend on. Every mutation that can race with a concurrent
// caller is either scoped to a single row with an optimistic version check
// (UpdatePoolByVersion) or expected to run only while the caller holds the
// pool's lease (UpdatePoolUnderLease) — the store itself does not arbitrate
// between the two; the mediator package does.
type Store interface {
	InsertPassenger(ctx context.Context, p Passenger) error
	// MatchPassenger flips a Pending passenger to Matched, attaching the
	// pool it was placed in and the price it settled at.
	MatchPassenger(ctx context.Context, passengerID, poolID string, finalFare, surgeMultiplier float64) error
	// CancelPassenger flips a passenger to Cancelled, clearing any pool
	// reference — legal from Pending or from a matched, not-yet-terminal
	// state alike.
	CancelPassenger(ctx context.Context, passengerID, reason string) error
	GetPassenger(ctx context.Context, passengerID string) (Passenger, error)

	InsertPool(ctx context.Context, p Pool) error
	GetPool(ctx context.Context, poolID string) (Pool, error)
	// UpdatePoolUnderLease applies mutate to the current stored pool and
	// persists the result, bumping Version. The caller is responsible for
	// already holding the pool's lease; the store does not check it.
	UpdatePoolUnderLease(ctx context.Context, poolID string, mutate func(*Pool) error) error
	// UpdatePoolByVersion applies mutate and persists the result only if
	// the pool's stored version still equals expectedVersion, returning
	// ErrVersionConflict otherwise.
	UpdatePoolByVersion(ctx context.Context, poolID string, expectedVersion int, mutate func(*Pool) error) error
	DeletePool(ctx context.Context, poolID string) error

	InsertWaypoint(ctx context.Context, w Waypoint) error
	DeleteWaypointsForPassenger(ctx context.Context, passengerID string) error
	GetWaypoints(ctx context.Context, poolID string) ([]Waypoint, error)

	// QueryPendingPassengers returns up to limit passengers in
	// PassengerPending state, oldest RequestedAt first.
	QueryPendingPassengers(ctx context.Context, limit int) ([]Passenger, error)
	// QueryFormingPools returns pools in PoolForming state no older than
	// maxAge.
	QueryFormingPools(ctx context.Context, maxAgeMinutes int) ([]Pool, error)

	GetSurgeZone(ctx context.Context, zoneID string) (SurgeZone, error)
	UpdateSurgeZone(ctx context.Context, zone SurgeZone) error
	// ListSurgeZones returns every zone with a recorded counter, for the
	// periodic surge refresh tick to walk.
	ListSurgeZones(ctx context.Context) ([]SurgeZone, error)
}
