// Package poolstore defines the persistence boundary for passengers, pools,
// and waypoints, and provides two implementations against it: a Postgres
// store for production and an in-memory store for tests.
package poolstore

import (
	"time"

	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/poolride/dispatch-core/internal/pricing"
)

// PassengerState is where a passenger's request currently sits in the
// dispatch lifecycle.
type PassengerState string

// These names follow spec.md §3's literal passenger-state enum
// ({Pending, Matched, InTransit, Completed, Cancelled}) rather than the
// teacher's own request-status vocabulary, so a reader comparing this file
// to the spec doesn't have to mentally translate "confirmed" into
// "in transit".
const (
	PassengerPending    PassengerState = "pending"
	PassengerMatched    PassengerState = "matched"
	PassengerInTransit  PassengerState = "in_transit"
	PassengerCancelled  PassengerState = "cancelled"
	PassengerCompleted  PassengerState = "completed"
)

// PoolState is the lifecycle state of a forming or active pool. Names
// follow spec.md §3's literal pool-state enum ({Forming, Matched,
// InTransit, Completed}) for the same reason.
type PoolState string

const (
	PoolForming    PoolState = "forming"
	PoolMatched    PoolState = "matched"
	PoolInTransit  PoolState = "in_transit"
	PoolCompleted  PoolState = "completed"
	PoolCancelled  PoolState = "cancelled"
)

// Passenger is a stored pooling request.
type Passenger struct {
	ID              string
	UserID          string
	PoolID          string // empty until matched
	Pickup          geospatial.Coordinate
	Dropoff         geospatial.Coordinate
	Seats           int
	Luggage         int
	MaxDetourMin    float64
	State           PassengerState
	EstimatedFare   float64 // advisory quote from intake; never the settled price
	BaseFare        float64 // carried from intake per the component design
	FinalFare       float64 // set once matched
	SurgeMultiplier float64 // surge applied at match time
	RequestedAt     time.Time
	MatchedAt       time.Time
	CompletedAt     time.Time
	CancelledAt     time.Time
	CancelReason    string
	UpdatedAt       time.Time
}

// Pool is a stored shared-vehicle pool, carrying the monotonic Version a
// caller must present to UpdatePoolByVersion.
type Pool struct {
	ID             string
	Class          pricing.VehicleClass
	State          PoolState
	CurrentSeats   int
	MaxSeats       int
	CurrentLuggage int
	MaxLuggage     int
	Centroid       geospatial.Coordinate
	RouteDistanceKm float64
	FormedAt       time.Time
	UpdatedAt      time.Time
	Version        int
}

// Waypoint is one stored stop of a pool's planned route.
type Waypoint struct {
	PoolID      string
	PassengerID string
	Kind        string // "pickup" or "dropoff"
	Coordinate  geospatial.Coordinate
	Position    int
}

// SurgeZone is the persisted demand/supply snapshot for one circular
// geographic region: intake matches a request's pickup against Center/
// RadiusKm to find the zone whose multiplier should inform its estimate.
type SurgeZone struct {
	ZoneID            string
	Name              string
	Center            geospatial.Coordinate
	RadiusKm          float64
	ActiveRequests    int
	AvailableDrivers  int
	CurrentMultiplier float64
	DemandTier        pricing.DemandTier
	UpdatedAt         time.Time
}
