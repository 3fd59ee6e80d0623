package matcher

import "github.com/poolride/dispatch-core/internal/geospatial"

// compatibilityMaxSeats and compatibilityMaxLuggage are the coarse ceiling
// checked while growing a candidate set, independent of which vehicle class
// eventually gets assigned to the pool; SelectClass re-validates against
// the real per-class capacities once the candidate set is fixed.
const (
	compatibilityMaxSeats   = 6
	compatibilityMaxLuggage = 8
)

// compatible reports whether candidate can be admitted into a pool whose
// current members are admitted. It requires candidate to travel in roughly
// the same direction as every already-admitted member (pairwise, within
// thetaDeg) and the combined seats/luggage to stay under the coarse
// ceiling.
func compatible(admitted []Request, candidate Request, thetaDeg float64) bool {
	seats, luggage := candidate.Seats, candidate.Luggage
	for _, a := range admitted {
		seats += a.Seats
		luggage += a.Luggage
	}
	if seats > compatibilityMaxSeats || luggage > compatibilityMaxLuggage {
		return false
	}

	for _, a := range admitted {
		if !geospatial.SameDirection(a.Pickup, a.Dropoff, candidate.Pickup, candidate.Dropoff, thetaDeg) {
			return false
		}
	}
	return true
}
