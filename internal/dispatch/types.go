// Package dispatch orchestrates the pooling lifecycle end to end: accepting
// requests, running matching cycles over the pending queue, and handling
// cancellations under the mediator's lease and version-check contracts.
package dispatch

import (
	"time"

	"github.com/poolride/dispatch-core/internal/geospatial"
)

// CreateRequestInput is what a caller submits to request a pooled ride.
type CreateRequestInput struct {
	UserID       string
	Pickup       geospatial.Coordinate
	Dropoff      geospatial.Coordinate
	Seats        int
	Luggage      int
	MaxDetourMin float64
}

// CreateRequestResult is what CreateRequest hands back: the advisory
// estimate is never the settled price — that's determined at match time.
type CreateRequestResult struct {
	PassengerID    string
	EstimatedFinal float64
}

// PoolStats summarizes current pooling activity for an operational
// dashboard; it is a read model over the store, not a persisted entity.
type PoolStats struct {
	PendingRequests int
	FormingPools    int
	GeneratedAt     time.Time
}
