// Package routeplan builds and validates a waypoint sequence for a shared
// vehicle under capacity, precedence, and per-passenger detour constraints,
// then improves it with a 2-opt local-search pass.
package routeplan

import (
	"time"

	"github.com/poolride/dispatch-core/internal/geospatial"
)

// WaypointKind distinguishes a pickup stop from a dropoff stop.
type WaypointKind int

const (
	Pickup WaypointKind = iota
	Dropoff
)

// Passenger is one request the planner must route, expanded into exactly
// one Pickup and one Dropoff waypoint.
type Passenger struct {
	ID            string
	Pickup        geospatial.Coordinate
	Dropoff       geospatial.Coordinate
	Seats         int
	Luggage       int
	MaxDetourMin  float64
	RequestedAt   time.Time
}

// Constraints bounds the vehicle carrying the route.
type Constraints struct {
	MaxSeats   int
	MaxLuggage int
}

// Waypoint is one stop along a planned route.
type Waypoint struct {
	PassengerID string
	Kind        WaypointKind
	Coordinate  geospatial.Coordinate
	Position    int
}

// Route is a feasible, planned sequence with its realized cost.
type Route struct {
	Waypoints          []Waypoint
	TotalDistanceKm    float64
	TotalTimeMin       float64
	DetourPerPassenger map[string]float64
	EfficiencyScore    float64
}

// waypointState is the planner's internal working copy of a waypoint,
// carrying enough of the owning passenger to evaluate feasibility without
// a second lookup on every step.
type waypointState struct {
	passenger   *Passenger
	kind        WaypointKind
	coordinate  geospatial.Coordinate
	visited     bool
}
