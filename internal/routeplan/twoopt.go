package routeplan

import "github.com/poolride/dispatch-core/internal/geospatial"

// improveTwoOpt repeatedly looks for a pair (i, j) with j >= i+2 whose
// subsequence reversal strictly reduces total distance while keeping every
// detour constraint satisfied, adopting each improving reversal as soon as
// it is found and continuing the pass from the updated sequence. It stops when a full pass finds no improving swap, or after
// twoOptIterationCap passes, whichever comes first.
func improveTwoOpt(
	start geospatial.Coordinate,
	seq []Waypoint,
	passengers map[string]*Passenger,
	cons Constraints,
	bestDist, bestTime float64,
	bestDetours map[string]float64,
) ([]Waypoint, float64, float64, map[string]float64) {
	current := seq
	currentDist := bestDist
	currentTime := bestTime
	currentDetours := bestDetours

	for iter := 0; iter < twoOptIterationCap; iter++ {
		improved := false

		for i := 0; i < len(current)-1; i++ {
			for j := i + 2; j < len(current); j++ {
				candidate := reverseSegment(current, i+1, j)

				dist, timeMin, detours, ok := evaluate(start, candidate, passengers, cons)
				if !ok {
					continue
				}
				if dist < currentDist-distanceEpsilon {
					current = candidate
					currentDist = dist
					currentTime = timeMin
					currentDetours = detours
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return current, currentDist, currentTime, currentDetours
}

// reverseSegment returns a copy of seq with the subsequence [from, to]
// (inclusive, 0-based) reversed and positions renumbered.
func reverseSegment(seq []Waypoint, from, to int) []Waypoint {
	out := make([]Waypoint, len(seq))
	copy(out, seq)

	for l, r := from, to; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}

	for i := range out {
		out[i].Position = i
	}

	return out
}
