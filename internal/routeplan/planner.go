package routeplan

import (
	"math"

	"github.com/poolride/dispatch-core/internal/geospatial"
)

const (
	twoOptIterationCap = 100
	distanceEpsilon     = 1e-9
)

// Planner builds and validates waypoint sequences for a set of passengers
// sharing one vehicle.
type Planner struct{}

// NewPlanner constructs a Planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan runs the full algorithm: expand, greedy construction, detour check,
// 2-opt improvement. ok=false means no feasible sequence exists under the
// given constraints — a normal result, not an error; the caller tries a
// smaller subset. With zero passengers it returns immediately with an empty
// route.
func (p *Planner) Plan(start geospatial.Coordinate, passengers []Passenger, cons Constraints) (Route, bool) {
	if len(passengers) == 0 {
		return Route{DetourPerPassenger: map[string]float64{}, EfficiencyScore: 1.0}, true
	}

	passengerByID := make(map[string]*Passenger, len(passengers))
	for i := range passengers {
		passengerByID[passengers[i].ID] = &passengers[i]
	}

	seq, ok := greedyConstruct(start, passengers, cons)
	if !ok {
		return Route{}, false
	}

	dist, timeMin, detours, ok := evaluate(start, seq, passengerByID, cons)
	if !ok {
		return Route{}, false
	}

	seq, dist, timeMin, detours = improveTwoOpt(start, seq, passengerByID, cons, dist, timeMin, detours)

	route := Route{
		Waypoints:          seq,
		TotalDistanceKm:    dist,
		TotalTimeMin:       timeMin,
		DetourPerPassenger: detours,
		EfficiencyScore:    efficiencyScore(passengers, dist),
	}

	return route, true
}

// greedyConstruct implements step 2: starting at start with an empty
// on-board set, repeatedly select the unvisited waypoint of least
// great-circle distance from the current position that is feasible. Ties
// prefer the passenger with the smaller request timestamp (FIFO fairness).
func greedyConstruct(start geospatial.Coordinate, passengers []Passenger, cons Constraints) ([]Waypoint, bool) {
	states := make([]*waypointState, 0, len(passengers)*2)
	for i := range passengers {
		states = append(states,
			&waypointState{passenger: &passengers[i], kind: Pickup, coordinate: passengers[i].Pickup},
			&waypointState{passenger: &passengers[i], kind: Dropoff, coordinate: passengers[i].Dropoff},
		)
	}

	seq := make([]Waypoint, 0, len(states))
	current := start
	onboard := make(map[string]bool, len(passengers))
	onboardSeats, onboardLuggage := 0, 0
	remaining := len(states)

	for remaining > 0 {
		bestIdx := -1
		bestDist := math.Inf(1)

		for i, w := range states {
			if w.visited {
				continue
			}
			if !feasibleNext(w, onboard, onboardSeats, onboardLuggage, cons) {
				continue
			}

			d := geospatial.Distance(current, w.coordinate)
			if d < bestDist-distanceEpsilon {
				bestDist = d
				bestIdx = i
			} else if math.Abs(d-bestDist) <= distanceEpsilon && bestIdx != -1 {
				if w.passenger.RequestedAt.Before(states[bestIdx].passenger.RequestedAt) {
					bestIdx = i
				}
			}
		}

		if bestIdx == -1 {
			return nil, false
		}

		w := states[bestIdx]
		w.visited = true
		remaining--
		current = w.coordinate

		if w.kind == Pickup {
			onboard[w.passenger.ID] = true
			onboardSeats += w.passenger.Seats
			onboardLuggage += w.passenger.Luggage
		} else {
			onboard[w.passenger.ID] = false
			onboardSeats -= w.passenger.Seats
			onboardLuggage -= w.passenger.Luggage
		}

		seq = append(seq, Waypoint{
			PassengerID: w.passenger.ID,
			Kind:        w.kind,
			Coordinate:  w.coordinate,
			Position:    len(seq),
		})
	}

	return seq, true
}

func feasibleNext(w *waypointState, onboard map[string]bool, onboardSeats, onboardLuggage int, cons Constraints) bool {
	if w.kind == Dropoff {
		return onboard[w.passenger.ID]
	}
	return onboardSeats+w.passenger.Seats <= cons.MaxSeats &&
		onboardLuggage+w.passenger.Luggage <= cons.MaxLuggage
}

// evaluate walks a full waypoint sequence from start, re-deriving distance,
// time, and per-passenger detour, and rejecting any sequence that violates
// capacity or pickup-before-dropoff precedence. It is the single source of
// truth both the initial construction and 2-opt candidates are checked
// against.
func evaluate(start geospatial.Coordinate, seq []Waypoint, passengers map[string]*Passenger, cons Constraints) (float64, float64, map[string]float64, bool) {
	current := start
	onboardSeats, onboardLuggage := 0, 0
	onboard := make(map[string]bool, len(passengers))
	pickupElapsed := make(map[string]float64, len(passengers))
	detours := make(map[string]float64, len(passengers))

	var totalDist, totalTime float64

	for _, wp := range seq {
		d := geospatial.Distance(current, wp.Coordinate)
		totalDist += d
		totalTime += geospatial.TravelTime(d)
		current = wp.Coordinate

		p, known := passengers[wp.PassengerID]
		if !known {
			return 0, 0, nil, false
		}

		switch wp.Kind {
		case Pickup:
			if onboard[wp.PassengerID] {
				return 0, 0, nil, false
			}
			onboardSeats += p.Seats
			onboardLuggage += p.Luggage
			if onboardSeats > cons.MaxSeats || onboardLuggage > cons.MaxLuggage {
				return 0, 0, nil, false
			}
			onboard[wp.PassengerID] = true
			pickupElapsed[wp.PassengerID] = totalTime
		case Dropoff:
			if !onboard[wp.PassengerID] {
				// Dropoff preceding its Pickup: undefined detour, infeasible.
				return 0, 0, nil, false
			}
			onboard[wp.PassengerID] = false
			onboardSeats -= p.Seats
			onboardLuggage -= p.Luggage

			onboardTime := totalTime - pickupElapsed[wp.PassengerID]
			direct := geospatial.TravelTime(geospatial.Distance(p.Pickup, p.Dropoff))
			detour := onboardTime - direct
			detours[wp.PassengerID] = detour

			if detour > p.MaxDetourMin {
				return 0, 0, nil, false
			}
		}
	}

	for _, onBoard := range onboard {
		if onBoard {
			return 0, 0, nil, false
		}
	}

	return totalDist, totalTime, detours, true
}

// efficiencyScore is the ratio of summed direct distances to the realized
// route distance. 1.0 = perfectly co-linear sharing, lower = more shared
// vehicle-km.
func efficiencyScore(passengers []Passenger, totalRouteDistance float64) float64 {
	if totalRouteDistance <= 0 {
		return 1.0
	}

	var sumDirect float64
	for _, p := range passengers {
		sumDirect += geospatial.Distance(p.Pickup, p.Dropoff)
	}

	return sumDirect / totalRouteDistance
}
