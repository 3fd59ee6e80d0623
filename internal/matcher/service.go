package matcher

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/poolride/dispatch-core/internal/pricing"
	"github.com/poolride/dispatch-core/internal/routeplan"
)

// Matcher groups pending requests into pool proposals under a timeout
// budget: spatial clustering first, then forming one pool per cluster
// outright where the whole cluster fits, and otherwise greedily growing
// smaller pools within the cluster.
type Matcher struct {
	cfg      Config
	planner  *routeplan.Planner
	pricer   *pricing.Calculator
}

// NewMatcher constructs a Matcher with the given configuration.
func NewMatcher(cfg Config, planner *routeplan.Planner, pricer *pricing.Calculator) *Matcher {
	return &Matcher{cfg: cfg, planner: planner, pricer: pricer}
}

// Run executes one matching cycle over pending, applies the configured
// timeout guard, and returns every proposal it managed to form before the
// deadline, alongside every existing forming pool it topped up instead of
// starting a new one for. A pending request is first offered to whichever
// compatible forming pool scores best under MatchScore; only requests no
// forming pool will take fall through to clustering into new pools.
// Requests left over (too late to evaluate, or part of a candidate pool
// the route planner rejected) are reported separately so the caller can
// hold them for the next cycle.
func (m *Matcher) Run(ctx context.Context, pending []Request, forming []ExistingPool) (proposals []Proposal, augmented []Augmentation, leftover []Request) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.MatchTimeout)
	defer cancel()

	pools := make([]ExistingPool, len(forming))
	copy(pools, forming)

	var unplaced []Request
	for _, r := range pending {
		select {
		case <-ctx.Done():
			leftover = append(leftover, r)
			continue
		default:
		}

		if aug, idx, ok := m.tryAugment(r, pools); ok {
			augmented = append(augmented, aug)
			pools[idx].CurrentSeats += r.Seats
			pools[idx].CurrentLuggage += r.Luggage
			pools[idx].Requests = append(pools[idx].Requests, r)
			continue
		}
		unplaced = append(unplaced, r)
	}

	clusters := cluster(unplaced, m.cfg.ClusterRadiusKm)

	for _, group := range clusters {
		select {
		case <-ctx.Done():
			leftover = append(leftover, group...)
			continue
		default:
		}

		if len(group) <= m.cfg.MaxPoolSize {
			if p, ok := m.tryFormPool(group); ok {
				proposals = append(proposals, p)
				continue
			}
			// The whole cluster is infeasible as one pool; let growPools
			// split it into smaller compatible subsets.
		}

		formed, rest := m.growPools(ctx, group)
		proposals = append(proposals, formed...)
		leftover = append(leftover, rest...)
	}

	return proposals, augmented, leftover
}

// tryAugment scores every forming pool compatible with candidate using
// MatchScore and, for the best-scoring one, re-plans and reprices the pool's
// route with candidate folded in. It reports the index into pools the
// augmentation targets so the caller can keep its running snapshot of
// seats/luggage/requests in sync across the rest of the cycle.
func (m *Matcher) tryAugment(candidate Request, pools []ExistingPool) (Augmentation, int, bool) {
	best := -1
	bestScore := -1.0
	for i, pool := range pools {
		if pool.CurrentSeats+candidate.Seats > pool.MaxSeats {
			continue
		}
		if pool.CurrentLuggage+candidate.Luggage > pool.MaxLuggage {
			continue
		}
		if !compatible(pool.Requests, candidate, m.cfg.DirectionToleranceDeg) {
			continue
		}
		score := MatchScore(pool, time.Since(pool.FormedAt).Minutes())
		if score <= 0 {
			continue
		}
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best == -1 {
		return Augmentation{}, 0, false
	}

	pool := pools[best]
	members := append(append([]Request{}, pool.Requests...), candidate)

	passengers := make([]routeplan.Passenger, len(members))
	for i, r := range members {
		passengers[i] = routeplan.Passenger{
			ID: r.ID, Pickup: r.Pickup, Dropoff: r.Dropoff,
			Seats: r.Seats, Luggage: r.Luggage,
			MaxDetourMin: r.MaxDetourMin, RequestedAt: r.RequestedAt,
		}
	}

	route, ok := m.planner.Plan(pool.Centroid, passengers, routeplan.Constraints{
		MaxSeats: pool.MaxSeats, MaxLuggage: pool.MaxLuggage,
	})
	if !ok {
		return Augmentation{}, 0, false
	}

	quote := m.pricer.Price(pricing.Factors{
		DistanceKm: route.TotalDistanceKm, TimeMin: route.TotalTimeMin,
		Class: pool.Class, PoolSize: 1,
	})

	waypoints := make([]Waypoint, len(route.Waypoints))
	for i, wp := range route.Waypoints {
		kind := "pickup"
		if wp.Kind == routeplan.Dropoff {
			kind = "dropoff"
		}
		waypoints[i] = Waypoint{
			PassengerID: wp.PassengerID, Kind: kind,
			Coordinate: wp.Coordinate, Position: wp.Position,
		}
	}

	return Augmentation{
		PoolID: pool.ID,
		Added:  candidate,
		Class:  pool.Class,
		Route: PlannedRoute{
			Waypoints:          waypoints,
			TotalDistanceKm:    route.TotalDistanceKm,
			TotalTimeMin:       route.TotalTimeMin,
			DetourPerPassenger: route.DetourPerPassenger,
			EfficiencyScore:    route.EfficiencyScore,
		},
		RouteFare:       quote.Final,
		SurgeMultiplier: quote.Surge,
	}, best, true
}

// growPools handles a cluster that is oversized or infeasible as a single
// pool: repeatedly seed a pool with the
// oldest not-yet-placed request, then walk the remainder newest-first,
// admitting every compatible candidate until MaxPoolSize or the group is
// exhausted.
func (m *Matcher) growPools(ctx context.Context, group []Request) (proposals []Proposal, leftover []Request) {
	remaining := make([]Request, len(group))
	copy(remaining, group)
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].RequestedAt.Before(remaining[j].RequestedAt)
	})

	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			leftover = append(leftover, remaining...)
			return proposals, leftover
		default:
		}

		seed := remaining[0]
		pool := []Request{seed}
		rest := remaining[1:]

		order := make([]Request, len(rest))
		copy(order, rest)
		sort.Slice(order, func(i, j int) bool {
			return order[i].RequestedAt.After(order[j].RequestedAt)
		})

		placed := map[string]bool{}
		for _, cand := range order {
			if len(pool) >= m.cfg.MaxPoolSize {
				break
			}
			if compatible(pool, cand, m.cfg.DirectionToleranceDeg) {
				pool = append(pool, cand)
				placed[cand.ID] = true
			}
		}

		var next []Request
		for _, r := range rest {
			if !placed[r.ID] {
				next = append(next, r)
			}
		}
		remaining = next

		if p, ok := m.tryFormPool(pool); ok {
			proposals = append(proposals, p)
		} else {
			leftover = append(leftover, pool...)
		}
	}

	return proposals, leftover
}

// tryFormPool validates a candidate set against capacity and route
// feasibility and, if it succeeds, prices it. It picks the smallest vehicle
// class whose capacity dominates the set's combined seats and luggage and
// plans a route starting from the pickups' centroid; RouteFare (base*surge)
// is left for the caller to combine with each passenger's own
// realized-detour discount.
func (m *Matcher) tryFormPool(requests []Request) (Proposal, bool) {
	if len(requests) == 0 {
		return Proposal{}, false
	}

	var totalSeats, totalLuggage int
	pickups := make([]geospatial.Coordinate, len(requests))
	for i, r := range requests {
		totalSeats += r.Seats
		totalLuggage += r.Luggage
		pickups[i] = r.Pickup
	}

	class, ok := pricing.SelectClass(totalSeats, totalLuggage)
	if !ok {
		return Proposal{}, false
	}
	cap := pricing.Capacities[class]

	passengers := make([]routeplan.Passenger, len(requests))
	for i, r := range requests {
		passengers[i] = routeplan.Passenger{
			ID: r.ID, Pickup: r.Pickup, Dropoff: r.Dropoff,
			Seats: r.Seats, Luggage: r.Luggage,
			MaxDetourMin: r.MaxDetourMin, RequestedAt: r.RequestedAt,
		}
	}

	start := centroid(pickups)
	route, ok := m.planner.Plan(start, passengers, routeplan.Constraints{
		MaxSeats: cap.MaxSeats, MaxLuggage: cap.MaxLuggage,
	})
	if !ok {
		return Proposal{}, false
	}

	quote := m.pricer.Price(pricing.Factors{
		DistanceKm: route.TotalDistanceKm, TimeMin: route.TotalTimeMin,
		Class: class, PoolSize: 1,
	})

	waypoints := make([]Waypoint, len(route.Waypoints))
	for i, wp := range route.Waypoints {
		kind := "pickup"
		if wp.Kind == routeplan.Dropoff {
			kind = "dropoff"
		}
		waypoints[i] = Waypoint{
			PassengerID: wp.PassengerID, Kind: kind,
			Coordinate: wp.Coordinate, Position: wp.Position,
		}
	}

	return Proposal{
		Requests: requests,
		Class:    class,
		Route: PlannedRoute{
			Waypoints:          waypoints,
			TotalDistanceKm:    route.TotalDistanceKm,
			TotalTimeMin:       route.TotalTimeMin,
			DetourPerPassenger: route.DetourPerPassenger,
			EfficiencyScore:    route.EfficiencyScore,
		},
		RouteFare:       quote.Final,
		SurgeMultiplier: quote.Surge,
		FormedAt:        time.Now(),
	}, true
}

// MatchScore rates how good a destination an existing forming pool is for
// a new request: fuller pools and older pools score lower, so tryAugment
// prefers an emptier, fresher pool over a fuller or staler one. Floored at
// zero.
func MatchScore(pool ExistingPool, ageMinutes float64) float64 {
	fill := float64(pool.CurrentSeats) / float64(pool.MaxSeats)
	score := 100 - 20*fill - math.Min(ageMinutes*2, 30)
	if score < 0 {
		return 0
	}
	return score
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
