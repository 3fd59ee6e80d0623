// Package matcher groups pending ride requests into shared-vehicle pools: it
// clusters requests by proximity, checks pairwise directional compatibility,
// and hands feasible groups to the route planner before committing to a
// vehicle class and a per-seat price.
package matcher

import (
	"time"

	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/poolride/dispatch-core/internal/pricing"
)

// Request is one rider's pending pooling request, as seen by the matcher.
type Request struct {
	ID           string
	Pickup       geospatial.Coordinate
	Dropoff      geospatial.Coordinate
	Seats        int
	Luggage      int
	MaxDetourMin float64
	RequestedAt  time.Time
}

// Config holds the matcher's tunable defaults, all independently overridable.
type Config struct {
	ClusterRadiusKm  float64
	MaxPoolSize      int
	MatchTimeout     time.Duration
	DirectionToleranceDeg float64
}

// DefaultConfig returns the matcher defaults from the component design.
func DefaultConfig() Config {
	return Config{
		ClusterRadiusKm:       5.0,
		MaxPoolSize:           4,
		MatchTimeout:          250 * time.Millisecond,
		DirectionToleranceDeg: 45.0,
	}
}

// Proposal is a candidate pool the matcher has assembled and validated
// against the route planner: a set of requests, the chosen vehicle class,
// the planned route, and the route fare before any pool discount.
type Proposal struct {
	Requests []Request
	Class    pricing.VehicleClass
	Route    PlannedRoute
	// RouteFare is base*surge for the route's total distance/time, with no
	// pool-discount term applied (priced at PoolSize: 1). Dispatch applies
	// each passenger's own realized-detour discount to this shared base,
	// rather than a single flat per-seat price broadcast to everyone.
	RouteFare       float64
	SurgeMultiplier float64
	FormedAt        time.Time
}

// Augmentation is an existing forming pool gaining one more passenger: the
// matcher re-plans the route for the pool's current members plus the new
// rider and reprices the whole group.
type Augmentation struct {
	PoolID          string
	Added           Request
	Class           pricing.VehicleClass
	Route           PlannedRoute
	RouteFare       float64
	SurgeMultiplier float64
}

// PlannedRoute is the subset of a routeplan.Route the matcher needs to carry
// forward; kept distinct from routeplan.Route so this package doesn't force
// its callers to import routeplan just to read a Proposal.
type PlannedRoute struct {
	Waypoints          []Waypoint
	TotalDistanceKm    float64
	TotalTimeMin       float64
	DetourPerPassenger map[string]float64
	EfficiencyScore    float64
}

// Waypoint is one stop of a planned route, carried from routeplan.Waypoint
// into the matcher's own vocabulary so this package's callers don't have to
// import routeplan just to read a Proposal.
type Waypoint struct {
	PassengerID string
	Kind        string // "pickup" or "dropoff"
	Coordinate  geospatial.Coordinate
	Position    int
}

// ExistingPool is the subset of a forming pool's state the matcher needs to
// score it as a destination for a new, unmatched request.
type ExistingPool struct {
	ID             string
	Class          pricing.VehicleClass
	CurrentSeats   int
	MaxSeats       int
	CurrentLuggage int
	MaxLuggage     int
	FormedAt       time.Time
	Centroid       geospatial.Coordinate
	Requests       []Request
}
