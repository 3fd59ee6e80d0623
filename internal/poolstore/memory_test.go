package poolstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGetPassenger(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := Passenger{ID: "p1", State: PassengerPending, RequestedAt: time.Now()}
	require.NoError(t, s.InsertPassenger(ctx, p))

	got, err := s.GetPassenger(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, PassengerPending, got.State)
}

func TestGetPassengerNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetPassenger(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePoolByVersionSucceedsOnMatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InsertPool(ctx, Pool{ID: "pool1", CurrentSeats: 1, Version: 1}))

	err := s.UpdatePoolByVersion(ctx, "pool1", 1, func(p *Pool) error {
		p.CurrentSeats++
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetPool(ctx, "pool1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentSeats)
	assert.Equal(t, 2, got.Version)
}

func TestUpdatePoolByVersionRejectsStaleVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InsertPool(ctx, Pool{ID: "pool1", CurrentSeats: 1, Version: 5}))

	err := s.UpdatePoolByVersion(ctx, "pool1", 4, func(p *Pool) error {
		p.CurrentSeats++
		return nil
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, _ := s.GetPool(ctx, "pool1")
	assert.Equal(t, 1, got.CurrentSeats)
	assert.Equal(t, 5, got.Version)
}

func TestUpdatePoolUnderLeaseBumpsVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InsertPool(ctx, Pool{ID: "pool1", Version: 1}))
	require.NoError(t, s.UpdatePoolUnderLease(ctx, "pool1", func(p *Pool) error {
		p.State = PoolCancelled
		return nil
	}))

	got, _ := s.GetPool(ctx, "pool1")
	assert.Equal(t, PoolCancelled, got.State)
	assert.Equal(t, 2, got.Version)
}

func TestQueryPendingPassengersOrderedAndLimited(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.InsertPassenger(ctx, Passenger{ID: "newest", State: PassengerPending, RequestedAt: base.Add(2 * time.Second)}))
	require.NoError(t, s.InsertPassenger(ctx, Passenger{ID: "oldest", State: PassengerPending, RequestedAt: base}))
	require.NoError(t, s.InsertPassenger(ctx, Passenger{ID: "middle", State: PassengerPending, RequestedAt: base.Add(time.Second)}))
	require.NoError(t, s.InsertPassenger(ctx, Passenger{ID: "confirmed", State: PassengerInTransit, RequestedAt: base}))

	got, err := s.QueryPendingPassengers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "oldest", got[0].ID)
	assert.Equal(t, "middle", got[1].ID)
}

func TestQueryFormingPoolsFiltersByAge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InsertPool(ctx, Pool{ID: "fresh", State: PoolForming, FormedAt: time.Now(), Version: 1}))
	require.NoError(t, s.InsertPool(ctx, Pool{ID: "stale", State: PoolForming, FormedAt: time.Now().Add(-20 * time.Minute), Version: 1}))
	require.NoError(t, s.InsertPool(ctx, Pool{ID: "confirmed", State: PoolMatched, FormedAt: time.Now(), Version: 1}))

	got, err := s.QueryFormingPools(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].ID)
}

func TestSurgeZoneDefaultsToMultiplierOne(t *testing.T) {
	s := NewMemoryStore()
	z, err := s.GetSurgeZone(context.Background(), "unseen-zone")
	require.NoError(t, err)
	assert.Equal(t, 1.0, z.CurrentMultiplier)
}

func TestListSurgeZonesReturnsAllSortedByZoneID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpdateSurgeZone(ctx, SurgeZone{ZoneID: "zone-b", CurrentMultiplier: 1.5}))
	require.NoError(t, s.UpdateSurgeZone(ctx, SurgeZone{ZoneID: "zone-a", CurrentMultiplier: 2.0}))

	zones, err := s.ListSurgeZones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "zone-a", zones[0].ZoneID)
	assert.Equal(t, "zone-b", zones[1].ZoneID)
}

func TestDeleteWaypointsForPassengerRemovesAcrossPools(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InsertWaypoint(ctx, Waypoint{PoolID: "pool1", PassengerID: "p1"}))
	require.NoError(t, s.InsertWaypoint(ctx, Waypoint{PoolID: "pool1", PassengerID: "p2"}))

	require.NoError(t, s.DeleteWaypointsForPassenger(ctx, "p1"))

	got, err := s.GetWaypoints(ctx, "pool1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PassengerID)
}
