package dispatch

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/poolride/dispatch-core/internal/mediator"
	"github.com/poolride/dispatch-core/internal/pricing"
	"github.com/poolride/dispatch-core/pkg/common"
	"github.com/poolride/dispatch-core/pkg/logger"

	"github.com/poolride/dispatch-core/internal/matcher"
	"github.com/poolride/dispatch-core/internal/poolstore"
	"go.uber.org/zap"
)

// Config holds the dispatch service's tunable defaults.
type Config struct {
	PendingBatchLimit    int
	FormingPoolMaxAgeMin int
	LeaseRetry           mediator.LeaseRetryConfig
}

// DefaultConfig matches the component design's defaults.
func DefaultConfig() Config {
	return Config{
		PendingBatchLimit:    100,
		FormingPoolMaxAgeMin: 10,
		LeaseRetry:           mediator.DefaultLeaseRetryConfig(),
	}
}

// Service orchestrates request intake, matching cycles, and cancellation.
type Service struct {
	store   poolstore.Store
	matcher *matcher.Matcher
	pricer  *pricing.Calculator
	leases  *mediator.LeaseManager
	cfg     Config
}

// NewService constructs a dispatch Service.
func NewService(store poolstore.Store, m *matcher.Matcher, pricer *pricing.Calculator, leases *mediator.LeaseManager, cfg Config) *Service {
	return &Service{store: store, matcher: m, pricer: pricer, leases: leases, cfg: cfg}
}

// CreateRequest validates and admits a new pooling request, storing it as
// pending so the next matching cycle picks it up. It returns an advisory
// price estimate — class defaults to Sedan and poolSize to 1, since no
// pool exists yet — consulting whichever surge zone contains the pickup
// point and bumping that zone's active-request counter.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (CreateRequestResult, error) {
	if in.Seats <= 0 {
		return CreateRequestResult{}, common.NewValidationError("seats must be positive")
	}
	maxVan := pricing.Capacities[pricing.Van]
	if in.Seats > maxVan.MaxSeats || in.Luggage > maxVan.MaxLuggage {
		return CreateRequestResult{}, common.NewValidationError("request exceeds the largest available vehicle class")
	}

	now := time.Now()
	distanceKm := geospatial.Distance(in.Pickup, in.Dropoff)

	factors := pricing.Factors{
		DistanceKm: distanceKm, TimeMin: geospatial.TravelTime(distanceKm),
		Class: pricing.Sedan, PoolSize: 1,
		LocalHour: now.Hour(), Weekday: int(now.Weekday()),
	}
	zone, hasZone := s.findSurgeZone(ctx, in.Pickup)
	if hasZone {
		factors.SurgeZone = &pricing.SurgeZoneSnapshot{
			ActiveRequests:    zone.ActiveRequests,
			AvailableDrivers:  zone.AvailableDrivers,
			CurrentMultiplier: zone.CurrentMultiplier,
		}
	}
	quote := s.pricer.Price(factors)

	passenger := poolstore.Passenger{
		ID: uuid.NewString(), UserID: in.UserID, Pickup: in.Pickup, Dropoff: in.Dropoff,
		Seats: in.Seats, Luggage: in.Luggage, MaxDetourMin: in.MaxDetourMin,
		State: poolstore.PassengerPending, EstimatedFare: quote.Final, BaseFare: quote.Base,
		RequestedAt: now, UpdatedAt: now,
	}

	if err := s.store.InsertPassenger(ctx, passenger); err != nil {
		return CreateRequestResult{}, common.NewInternalError("failed to record pooling request", err)
	}

	if hasZone {
		zone.ActiveRequests++
		if err := s.store.UpdateSurgeZone(ctx, zone); err != nil {
			logger.Warn("failed to bump surge zone demand counter", zap.String("zone_id", zone.ZoneID), zap.Error(err))
		}
	}

	requestsCreatedTotal.Inc()
	logger.Info("pooling request accepted", zap.String("passenger_id", passenger.ID), zap.Float64("estimated_final", quote.Final))
	return CreateRequestResult{PassengerID: passenger.ID, EstimatedFinal: quote.Final}, nil
}

// findSurgeZone returns the first persisted zone whose circle contains
// pickup, per the radius-containment rule in the component design.
func (s *Service) findSurgeZone(ctx context.Context, pickup geospatial.Coordinate) (poolstore.SurgeZone, bool) {
	zones, err := s.store.ListSurgeZones(ctx)
	if err != nil {
		logger.Warn("failed to list surge zones for intake", zap.Error(err))
		return poolstore.SurgeZone{}, false
	}
	for _, z := range zones {
		if geospatial.WithinRadius(pickup, z.Center, z.RadiusKm) {
			return z, true
		}
	}
	return poolstore.SurgeZone{}, false
}

// RunMatchingCycle fetches the pending queue and the pools still in state
// Forming, runs the matcher over both, and commits every result: a fresh
// proposal becomes a new forming pool, an augmentation tops up an existing
// one. It also finalizes pools that have been forming longer than
// FormingPoolMaxAgeMin, so a pool doesn't stay open to new joiners
// indefinitely.
func (s *Service) RunMatchingCycle(ctx context.Context) (formed int, err error) {
	start := time.Now()
	defer func() { matchCycleDuration.Observe(time.Since(start).Seconds()) }()

	if err := s.finalizeStaleFormingPools(ctx); err != nil {
		logger.Warn("failed to finalize stale forming pools", zap.Error(err))
	}

	pending, err := s.store.QueryPendingPassengers(ctx, s.cfg.PendingBatchLimit)
	if err != nil {
		matchCyclesTotal.WithLabelValues("error").Inc()
		return 0, common.NewInternalError("failed to fetch pending requests", err)
	}
	if len(pending) == 0 {
		matchCyclesTotal.WithLabelValues("empty").Inc()
		return 0, nil
	}

	requests := make([]matcher.Request, len(pending))
	for i, p := range pending {
		requests[i] = matcher.Request{
			ID: p.ID, Pickup: p.Pickup, Dropoff: p.Dropoff,
			Seats: p.Seats, Luggage: p.Luggage,
			MaxDetourMin: p.MaxDetourMin, RequestedAt: p.RequestedAt,
		}
	}

	forming, err := s.loadFormingPools(ctx)
	if err != nil {
		logger.Warn("failed to load forming pools for augmentation", zap.Error(err))
	}

	proposals, augmented, _ := s.matcher.Run(ctx, requests, forming)
	for _, proposal := range proposals {
		if err := s.commitProposal(ctx, proposal); err != nil {
			logger.Warn("failed to commit pool proposal", zap.Error(err))
			continue
		}
		formed++
	}
	for _, aug := range augmented {
		if err := s.commitAugmentation(ctx, aug); err != nil {
			logger.Warn("failed to commit pool augmentation", zap.String("pool_id", aug.PoolID), zap.Error(err))
		}
	}

	if formed > 0 {
		matchCyclesTotal.WithLabelValues("formed").Inc()
	} else {
		matchCyclesTotal.WithLabelValues("no_match").Inc()
	}
	return formed, nil
}

// loadFormingPools reconstructs the matcher's view of every pool still in
// state Forming: its capacity snapshot plus the requests already riding in
// it, rebuilt from the pool's stored waypoints and passenger records.
func (s *Service) loadFormingPools(ctx context.Context) ([]matcher.ExistingPool, error) {
	pools, err := s.store.QueryFormingPools(ctx, 0)
	if err != nil {
		return nil, err
	}

	existing := make([]matcher.ExistingPool, 0, len(pools))
	for _, pool := range pools {
		requests, err := s.poolMembers(ctx, pool.ID)
		if err != nil {
			logger.Warn("failed to reconstruct forming pool members", zap.String("pool_id", pool.ID), zap.Error(err))
			continue
		}
		existing = append(existing, matcher.ExistingPool{
			ID: pool.ID, Class: pool.Class,
			CurrentSeats: pool.CurrentSeats, MaxSeats: pool.MaxSeats,
			CurrentLuggage: pool.CurrentLuggage, MaxLuggage: pool.MaxLuggage,
			FormedAt: pool.FormedAt, Centroid: pool.Centroid, Requests: requests,
		})
	}
	return existing, nil
}

// poolMembers reads a pool's waypoints and dereferences each distinct
// passenger they name (a passenger owns both a pickup and a dropoff
// waypoint) into the matcher's Request shape.
func (s *Service) poolMembers(ctx context.Context, poolID string) ([]matcher.Request, error) {
	waypoints, err := s.store.GetWaypoints(ctx, poolID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(waypoints))
	var requests []matcher.Request
	for _, wp := range waypoints {
		if seen[wp.PassengerID] {
			continue
		}
		seen[wp.PassengerID] = true

		p, err := s.store.GetPassenger(ctx, wp.PassengerID)
		if err != nil {
			return nil, err
		}
		requests = append(requests, matcher.Request{
			ID: p.ID, Pickup: p.Pickup, Dropoff: p.Dropoff,
			Seats: p.Seats, Luggage: p.Luggage,
			MaxDetourMin: p.MaxDetourMin, RequestedAt: p.RequestedAt,
		})
	}
	return requests, nil
}

func (s *Service) commitProposal(ctx context.Context, proposal matcher.Proposal) error {
	poolID := uuid.NewString()
	now := time.Now()

	var centroidLat, centroidLng float64
	var seats, luggage int
	for _, r := range proposal.Requests {
		centroidLat += r.Pickup.Lat
		centroidLng += r.Pickup.Lng
		seats += r.Seats
		luggage += r.Luggage
	}
	n := float64(len(proposal.Requests))
	cap := pricing.Capacities[proposal.Class]

	pool := poolstore.Pool{
		ID: poolID, Class: proposal.Class, State: poolstore.PoolForming,
		CurrentSeats: seats, MaxSeats: cap.MaxSeats,
		CurrentLuggage: luggage, MaxLuggage: cap.MaxLuggage,
		Centroid:        geospatial.Coordinate{Lat: centroidLat / n, Lng: centroidLng / n},
		RouteDistanceKm: proposal.Route.TotalDistanceKm,
		FormedAt:        now, UpdatedAt: now, Version: 0,
	}
	if err := s.store.InsertPool(ctx, pool); err != nil {
		return err
	}

	for i, wp := range proposal.Route.Waypoints {
		waypoint := poolstore.Waypoint{
			PoolID: poolID, PassengerID: wp.PassengerID, Kind: wp.Kind,
			Coordinate: wp.Coordinate, Position: i,
		}
		if err := s.store.InsertWaypoint(ctx, waypoint); err != nil {
			logger.Warn("failed to persist waypoint", zap.String("pool_id", poolID), zap.Error(err))
		}
	}

	poolSize := len(proposal.Requests)
	for _, r := range proposal.Requests {
		detour := proposal.Route.DetourPerPassenger[r.ID]
		discount := s.pricer.PoolDiscount(poolSize, detour)
		finalFare := round2(proposal.RouteFare * discount * float64(r.Seats))
		if err := s.store.MatchPassenger(ctx, r.ID, poolID, finalFare, proposal.SurgeMultiplier); err != nil {
			logger.Warn("failed to mark passenger matched", zap.String("passenger_id", r.ID), zap.Error(err))
		}
	}

	poolsFormedTotal.Inc()
	logger.Info("pool formed", zap.String("pool_id", poolID), zap.Int("passengers", len(proposal.Requests)))
	return nil
}

// commitAugmentation folds one more passenger into an already-forming pool:
// it bumps the pool's capacity counters under its mediator lease, replaces
// the pool's stored waypoints with the matcher's re-planned route, and
// reprices every member (not just the new rider) against their own realized
// detour in that route, since adding a passenger can shift everyone else's
// detour too.
func (s *Service) commitAugmentation(ctx context.Context, aug matcher.Augmentation) error {
	err := mediator.WithLease(ctx, s.leases, aug.PoolID, s.cfg.LeaseRetry, func(ctx context.Context) error {
		return s.store.UpdatePoolUnderLease(ctx, aug.PoolID, func(p *poolstore.Pool) error {
			p.CurrentSeats += aug.Added.Seats
			p.CurrentLuggage += aug.Added.Luggage
			p.RouteDistanceKm = aug.Route.TotalDistanceKm
			return nil
		})
	})
	if err != nil {
		return err
	}

	memberIDs := make([]string, 0, len(aug.Route.DetourPerPassenger))
	seen := map[string]bool{}
	for _, wp := range aug.Route.Waypoints {
		if seen[wp.PassengerID] {
			continue
		}
		seen[wp.PassengerID] = true
		memberIDs = append(memberIDs, wp.PassengerID)
		if err := s.store.DeleteWaypointsForPassenger(ctx, wp.PassengerID); err != nil {
			logger.Warn("failed to clear stale waypoints before augmentation", zap.String("passenger_id", wp.PassengerID), zap.Error(err))
		}
	}
	for i, wp := range aug.Route.Waypoints {
		waypoint := poolstore.Waypoint{
			PoolID: aug.PoolID, PassengerID: wp.PassengerID, Kind: wp.Kind,
			Coordinate: wp.Coordinate, Position: i,
		}
		if err := s.store.InsertWaypoint(ctx, waypoint); err != nil {
			logger.Warn("failed to persist augmented waypoint", zap.String("pool_id", aug.PoolID), zap.Error(err))
		}
	}

	poolSize := len(memberIDs)
	for _, passengerID := range memberIDs {
		seats := aug.Added.Seats
		if passengerID != aug.Added.ID {
			p, err := s.store.GetPassenger(ctx, passengerID)
			if err != nil {
				logger.Warn("failed to look up pool member for repricing", zap.String("passenger_id", passengerID), zap.Error(err))
				continue
			}
			seats = p.Seats
		}
		detour := aug.Route.DetourPerPassenger[passengerID]
		discount := s.pricer.PoolDiscount(poolSize, detour)
		finalFare := round2(aug.RouteFare * discount * float64(seats))
		if err := s.store.MatchPassenger(ctx, passengerID, aug.PoolID, finalFare, aug.SurgeMultiplier); err != nil {
			logger.Warn("failed to reprice pool member after augmentation", zap.String("passenger_id", passengerID), zap.Error(err))
		}
	}

	poolsAugmentedTotal.Inc()
	logger.Info("pool augmented", zap.String("pool_id", aug.PoolID), zap.String("passenger_id", aug.Added.ID))
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Service) finalizeStaleFormingPools(ctx context.Context) error {
	all, err := s.store.QueryFormingPools(ctx, 0)
	if err != nil {
		return err
	}

	for _, pool := range all {
		age := time.Since(pool.FormedAt).Minutes()
		if age < float64(s.cfg.FormingPoolMaxAgeMin) {
			continue
		}

		poolID := pool.ID
		err := mediator.RetryOnVersionConflict(ctx, mediator.DefaultVersionRetryConfig(), "finalize_stale_pool", func(ctx context.Context) error {
			current, err := s.store.GetPool(ctx, poolID)
			if err != nil {
				return err
			}
			err = s.store.UpdatePoolByVersion(ctx, poolID, current.Version, func(p *poolstore.Pool) error {
				p.State = poolstore.PoolMatched
				return nil
			})
			if errors.Is(err, poolstore.ErrVersionConflict) {
				return mediator.ErrVersionConflict
			}
			return err
		})
		if err != nil && !errors.Is(err, mediator.ErrVersionConflict) {
			logger.Warn("failed to finalize stale pool", zap.String("pool_id", poolID), zap.Error(err))
		}
	}
	return nil
}

// CancelRequest cancels a passenger's request. If the passenger hasn't been
// matched yet, it's a plain state flip; if matched, the owning pool's seat
// count is decremented under its mediator lease, retrying lease
// acquisition up to cfg.LeaseRetry.MaxRetries times before reporting
// failure. A pool that drops to zero seats is deleted rather than left
// forming forever.
func (s *Service) CancelRequest(ctx context.Context, passengerID, reason string) error {
	passenger, err := s.store.GetPassenger(ctx, passengerID)
	if errors.Is(err, poolstore.ErrNotFound) {
		return common.NewNotFoundError("pooling request not found", err)
	}
	if err != nil {
		return common.NewInternalError("failed to look up pooling request", err)
	}

	if passenger.State == poolstore.PassengerCancelled || passenger.State == poolstore.PassengerCompleted {
		return common.NewTerminalStateError("pooling request is already in a terminal state")
	}

	if passenger.PoolID == "" {
		if err := s.store.CancelPassenger(ctx, passengerID, reason); err != nil {
			cancellationsTotal.WithLabelValues("error").Inc()
			return common.NewInternalError("failed to cancel pooling request", err)
		}
		cancellationsTotal.WithLabelValues("unmatched").Inc()
		return nil
	}

	err = mediator.WithLease(ctx, s.leases, passenger.PoolID, s.cfg.LeaseRetry, func(ctx context.Context) error {
		return s.store.UpdatePoolUnderLease(ctx, passenger.PoolID, func(p *poolstore.Pool) error {
			p.CurrentSeats -= passenger.Seats
			p.CurrentLuggage -= passenger.Luggage
			return nil
		})
	})
	if err != nil {
		cancellationsTotal.WithLabelValues("lease_failed").Inc()
		return common.NewConcurrencyConflictError("could not acquire pool lease to cancel request")
	}

	if err := s.store.DeleteWaypointsForPassenger(ctx, passengerID); err != nil {
		logger.Warn("failed to delete waypoints for cancelled passenger", zap.String("passenger_id", passengerID), zap.Error(err))
	}
	if err := s.store.CancelPassenger(ctx, passengerID, reason); err != nil {
		logger.Warn("failed to mark cancelled passenger state", zap.String("passenger_id", passengerID), zap.Error(err))
	}

	pool, err := s.store.GetPool(ctx, passenger.PoolID)
	if err == nil && pool.CurrentSeats <= 0 {
		if err := s.store.DeletePool(ctx, passenger.PoolID); err != nil {
			logger.Warn("failed to delete emptied pool", zap.String("pool_id", passenger.PoolID), zap.Error(err))
		}
	}

	cancellationsTotal.WithLabelValues("matched").Inc()
	return nil
}

// Stats returns a snapshot of current pooling activity.
func (s *Service) Stats(ctx context.Context) (PoolStats, error) {
	pending, err := s.store.QueryPendingPassengers(ctx, 0)
	if err != nil {
		return PoolStats{}, common.NewInternalError("failed to read pending requests", err)
	}
	forming, err := s.store.QueryFormingPools(ctx, 0)
	if err != nil {
		return PoolStats{}, common.NewInternalError("failed to read forming pools", err)
	}
	return PoolStats{
		PendingRequests: len(pending),
		FormingPools:    len(forming),
		GeneratedAt:     time.Now(),
	}, nil
}
