package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/poolride/dispatch-core/internal/matcher"
	"github.com/poolride/dispatch-core/internal/mediator"
	"github.com/poolride/dispatch-core/internal/pricing"
	"github.com/poolride/dispatch-core/internal/poolstore"
	"github.com/poolride/dispatch-core/internal/routeplan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, poolstore.Store) {
	svc, store, _ := newTestServiceWithMock(t)
	return svc, store
}

func newTestServiceWithMock(t *testing.T) (*Service, poolstore.Store, redismock.ClientMock) {
	t.Helper()
	store := poolstore.NewMemoryStore()
	m := matcher.NewMatcher(matcher.DefaultConfig(), routeplan.NewPlanner(), pricing.NewCalculator())
	client, mock := redismock.NewClientMock()
	leases := mediator.NewLeaseManager(client, 30*time.Second)
	return NewService(store, m, pricing.NewCalculator(), leases, DefaultConfig()), store, mock
}

func TestCreateRequestRejectsNonPositiveSeats(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateRequest(context.Background(), CreateRequestInput{Seats: 0})
	assert.Error(t, err)
}

func TestCreateRequestRejectsOverVanCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateRequest(context.Background(), CreateRequestInput{Seats: 9, Luggage: 1})
	assert.Error(t, err)
}

func TestCreateRequestStoresPendingPassenger(t *testing.T) {
	svc, store := newTestService(t)

	result, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		Pickup: geospatial.Coordinate{Lat: 40.64, Lng: -73.78}, Dropoff: geospatial.Coordinate{Lat: 40.75, Lng: -73.99},
		Seats: 1, Luggage: 1, MaxDetourMin: 20,
	})
	require.NoError(t, err)
	assert.Greater(t, result.EstimatedFinal, 0.0)

	got, err := store.GetPassenger(context.Background(), result.PassengerID)
	require.NoError(t, err)
	assert.Equal(t, poolstore.PassengerPending, got.State)
}

func TestRunMatchingCycleFormsPoolFromCompatibleRiders(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	riders := []struct {
		pickup, dropoff geospatial.Coordinate
	}{
		{geospatial.Coordinate{Lat: 40.6413, Lng: -73.7781}, geospatial.Coordinate{Lat: 40.7505, Lng: -73.9910}},
		{geospatial.Coordinate{Lat: 40.6420, Lng: -73.7790}, geospatial.Coordinate{Lat: 40.7510, Lng: -73.9920}},
		{geospatial.Coordinate{Lat: 40.6425, Lng: -73.7795}, geospatial.Coordinate{Lat: 40.7515, Lng: -73.9905}},
	}
	var ids []string
	for i, r := range riders {
		p := poolstore.Passenger{
			ID: string(rune('a' + i)), Pickup: r.pickup, Dropoff: r.dropoff,
			Seats: 1, Luggage: 0, MaxDetourMin: 20,
			State: poolstore.PassengerPending, RequestedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.InsertPassenger(ctx, p))
		ids = append(ids, p.ID)
	}

	formed, err := svc.RunMatchingCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, formed)

	for _, id := range ids {
		p, err := store.GetPassenger(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, poolstore.PassengerMatched, p.State)
	}
}

func TestRunMatchingCycleNoopOnEmptyQueue(t *testing.T) {
	svc, _ := newTestService(t)
	formed, err := svc.RunMatchingCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, formed)
}

func TestRunMatchingCycleFinalizesStaleFormingPools(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	pool := poolstore.Pool{
		ID: "pool-stale", Class: pricing.Sedan, State: poolstore.PoolForming,
		CurrentSeats: 2, MaxSeats: 4, CurrentLuggage: 1, MaxLuggage: 3,
		FormedAt: time.Now().Add(-20 * time.Minute), UpdatedAt: time.Now().Add(-20 * time.Minute),
		Version: 0,
	}
	require.NoError(t, store.InsertPool(ctx, pool))

	_, err := svc.RunMatchingCycle(ctx)
	require.NoError(t, err)

	got, err := store.GetPool(ctx, "pool-stale")
	require.NoError(t, err)
	assert.Equal(t, poolstore.PoolMatched, got.State)
	assert.Equal(t, 1, got.Version)
}

func TestRunMatchingCycleAugmentsExistingFormingPool(t *testing.T) {
	svc, store, mock := newTestServiceWithMock(t)
	ctx := context.Background()

	mock.Regexp().ExpectSetNX("pool:lease:pool-open", `.*`, 30*time.Second).SetVal(true)
	mock.Regexp().ExpectEvalSha(`.*`, []string{"pool:lease:pool-open"}, `.*`).SetVal(int64(1))

	require.NoError(t, store.InsertPool(ctx, poolstore.Pool{
		ID: "pool-open", Class: pricing.Sedan, State: poolstore.PoolForming,
		CurrentSeats: 1, MaxSeats: 4, CurrentLuggage: 1, MaxLuggage: 3,
		Centroid: geospatial.Coordinate{Lat: 40.6413, Lng: -73.7781},
		FormedAt: time.Now(), UpdatedAt: time.Now(), Version: 1,
	}))
	require.NoError(t, store.InsertPassenger(ctx, poolstore.Passenger{
		ID: "rider-in-pool", PoolID: "pool-open",
		Pickup: geospatial.Coordinate{Lat: 40.6413, Lng: -73.7781}, Dropoff: geospatial.Coordinate{Lat: 40.7505, Lng: -73.9910},
		Seats: 1, Luggage: 1, MaxDetourMin: 20,
		State: poolstore.PassengerMatched, RequestedAt: time.Now(),
	}))
	require.NoError(t, store.InsertWaypoint(ctx, poolstore.Waypoint{
		PoolID: "pool-open", PassengerID: "rider-in-pool", Kind: "pickup",
		Coordinate: geospatial.Coordinate{Lat: 40.6413, Lng: -73.7781}, Position: 0,
	}))
	require.NoError(t, store.InsertWaypoint(ctx, poolstore.Waypoint{
		PoolID: "pool-open", PassengerID: "rider-in-pool", Kind: "dropoff",
		Coordinate: geospatial.Coordinate{Lat: 40.7505, Lng: -73.9910}, Position: 1,
	}))

	require.NoError(t, store.InsertPassenger(ctx, poolstore.Passenger{
		ID: "newcomer",
		Pickup: geospatial.Coordinate{Lat: 40.6420, Lng: -73.7790}, Dropoff: geospatial.Coordinate{Lat: 40.7510, Lng: -73.9920},
		Seats: 1, Luggage: 0, MaxDetourMin: 20,
		State: poolstore.PassengerPending, RequestedAt: time.Now(),
	}))

	formed, err := svc.RunMatchingCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, formed)

	got, err := store.GetPassenger(ctx, "newcomer")
	require.NoError(t, err)
	assert.Equal(t, poolstore.PassengerMatched, got.State)
	assert.Equal(t, "pool-open", got.PoolID)
	assert.Greater(t, got.FinalFare, 0.0)

	pool, err := store.GetPool(ctx, "pool-open")
	require.NoError(t, err)
	assert.Equal(t, 2, pool.CurrentSeats)
}

func TestCancelRequestOnUnmatchedPassenger(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.InsertPassenger(ctx, poolstore.Passenger{
		ID: "solo", State: poolstore.PassengerPending, RequestedAt: time.Now(),
	}))

	require.NoError(t, svc.CancelRequest(ctx, "solo", "rider changed plans"))

	got, err := store.GetPassenger(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, poolstore.PassengerCancelled, got.State)
}

func TestCancelRequestRejectsAlreadyCancelled(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.InsertPassenger(ctx, poolstore.Passenger{
		ID: "done", State: poolstore.PassengerCancelled, RequestedAt: time.Now(),
	}))

	err := svc.CancelRequest(ctx, "done", "rider changed plans")
	assert.Error(t, err)
}

func TestCancelRequestDeletesPoolWhenEmptied(t *testing.T) {
	svc, store, mock := newTestServiceWithMock(t)
	ctx := context.Background()

	mock.Regexp().ExpectSetNX("pool:lease:pool1", `.*`, 30*time.Second).SetVal(true)
	mock.Regexp().ExpectEvalSha(`.*`, []string{"pool:lease:pool1"}, `.*`).SetVal(int64(1))

	require.NoError(t, store.InsertPool(ctx, poolstore.Pool{
		ID: "pool1", CurrentSeats: 1, MaxSeats: 4, State: poolstore.PoolForming, Version: 1, FormedAt: time.Now(),
	}))
	require.NoError(t, store.InsertPassenger(ctx, poolstore.Passenger{
		ID: "p1", PoolID: "pool1", Seats: 1, State: poolstore.PassengerMatched, RequestedAt: time.Now(),
	}))

	require.NoError(t, svc.CancelRequest(ctx, "p1", "rider changed plans"))

	_, err := store.GetPool(ctx, "pool1")
	assert.ErrorIs(t, err, poolstore.ErrNotFound)
}

func TestStatsReportsPendingAndForming(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.InsertPassenger(ctx, poolstore.Passenger{ID: "p1", State: poolstore.PassengerPending, RequestedAt: time.Now()}))
	require.NoError(t, store.InsertPool(ctx, poolstore.Pool{ID: "pool1", State: poolstore.PoolForming, FormedAt: time.Now(), Version: 1}))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingRequests)
	assert.Equal(t, 1, stats.FormingPools)
}
