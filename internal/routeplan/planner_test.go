package routeplan

import (
	"testing"
	"time"

	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCoord(lat, lng float64) geospatial.Coordinate {
	return geospatial.Coordinate{Lat: lat, Lng: lng}
}

func TestPlanEmptyPassengersReturnsImmediately(t *testing.T) {
	p := NewPlanner()

	route, ok := p.Plan(mustCoord(0, 0), nil, Constraints{MaxSeats: 4, MaxLuggage: 3})

	require.True(t, ok)
	assert.Empty(t, route.Waypoints)
	assert.Equal(t, 0.0, route.TotalDistanceKm)
}

func TestPlanCapacityOverflowIsInfeasible(t *testing.T) {
	p := NewPlanner()

	passengers := []Passenger{
		{
			ID:           "p1",
			Pickup:       mustCoord(40.64, -73.78),
			Dropoff:      mustCoord(40.70, -73.80),
			Seats:        10, // exceeds even Van capacity
			Luggage:      1,
			MaxDetourMin: 30,
			RequestedAt:  time.Now(),
		},
	}

	_, ok := p.Plan(mustCoord(40.64, -73.78), passengers, Constraints{MaxSeats: 8, MaxLuggage: 8})
	assert.False(t, ok)
}

func TestPlanPickupPrecedesDropoffForEveryPassenger(t *testing.T) {
	p := NewPlanner()

	passengers := threeJFKRiders()
	route, ok := p.Plan(mustCoord(40.6413, -73.7781), passengers, Constraints{MaxSeats: 4, MaxLuggage: 3})
	require.True(t, ok)

	pickupPos := map[string]int{}
	dropoffPos := map[string]int{}
	for i, wp := range route.Waypoints {
		if wp.Kind == Pickup {
			pickupPos[wp.PassengerID] = i
		} else {
			dropoffPos[wp.PassengerID] = i
		}
	}

	for _, p := range passengers {
		assert.Less(t, pickupPos[p.ID], dropoffPos[p.ID], "pickup must precede dropoff for %s", p.ID)
	}
}

func TestPlanThreeCompatibleRidersSameCluster(t *testing.T) {
	p := NewPlanner()

	passengers := threeJFKRiders()
	route, ok := p.Plan(mustCoord(40.6413, -73.7781), passengers, Constraints{MaxSeats: 4, MaxLuggage: 3})
	require.True(t, ok)

	assert.Len(t, route.Waypoints, 6)
	for _, p := range passengers {
		detour := route.DetourPerPassenger[p.ID]
		assert.LessOrEqual(t, detour, p.MaxDetourMin)
	}
}

func TestPlanInfeasibleDetourFails(t *testing.T) {
	p := NewPlanner()

	// two riders whose pickups are close but whose dropoffs are far apart,
	// with an unreasonably tight detour budget.
	passengers := []Passenger{
		{
			ID: "a", Pickup: mustCoord(40.6413, -73.7781), Dropoff: mustCoord(40.7580, -73.9855),
			Seats: 1, Luggage: 0, MaxDetourMin: 0.001, RequestedAt: time.Now(),
		},
		{
			ID: "b", Pickup: mustCoord(40.6420, -73.7790), Dropoff: mustCoord(40.9000, -73.5000),
			Seats: 1, Luggage: 0, MaxDetourMin: 0.001, RequestedAt: time.Now().Add(time.Second),
		},
	}

	_, ok := p.Plan(mustCoord(40.6413, -73.7781), passengers, Constraints{MaxSeats: 4, MaxLuggage: 3})
	assert.False(t, ok)
}

func TestEfficiencyScoreIsOneForSingleDirectRider(t *testing.T) {
	p := NewPlanner()

	passengers := []Passenger{
		{
			ID: "solo", Pickup: mustCoord(40.6413, -73.7781), Dropoff: mustCoord(40.6420, -73.7790),
			Seats: 1, Luggage: 0, MaxDetourMin: 30, RequestedAt: time.Now(),
		},
	}

	route, ok := p.Plan(mustCoord(40.6413, -73.7781), passengers, Constraints{MaxSeats: 4, MaxLuggage: 3})
	require.True(t, ok)
	assert.InDelta(t, 1.0, route.EfficiencyScore, 0.05)
}

func threeJFKRiders() []Passenger {
	base := time.Now()
	return []Passenger{
		{
			ID: "r1", Pickup: mustCoord(40.6413, -73.7781), Dropoff: mustCoord(40.7505, -73.9910),
			Seats: 1, Luggage: 1, MaxDetourMin: 20, RequestedAt: base,
		},
		{
			ID: "r2", Pickup: mustCoord(40.6420, -73.7790), Dropoff: mustCoord(40.7510, -73.9920),
			Seats: 1, Luggage: 0, MaxDetourMin: 20, RequestedAt: base.Add(time.Second),
		},
		{
			ID: "r3", Pickup: mustCoord(40.6425, -73.7795), Dropoff: mustCoord(40.7515, -73.9905),
			Seats: 1, Luggage: 2, MaxDetourMin: 20, RequestedAt: base.Add(2 * time.Second),
		},
	}
}
