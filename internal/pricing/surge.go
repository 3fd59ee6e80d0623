package pricing

import "math"

// SurgeRefresher recomputes a surge zone's multiplier from its current
// demand/supply counters, exponentially smoothed against the previous
// multiplier so zones don't whipsaw between ticks.
type SurgeRefresher struct{}

// NewSurgeRefresher constructs a SurgeRefresher.
func NewSurgeRefresher() *SurgeRefresher {
	return &SurgeRefresher{}
}

// Refresh computes the new multiplier and demand tier for a zone given its
// active request count, available driver count, and previous multiplier.
// new = 0.3*raw + 0.7*prevSurge, clamped to [1.0, 3.5].
func (s *SurgeRefresher) Refresh(active, drivers int, prevSurge float64) (newSurge float64, tier DemandTier) {
	r := float64(active) / math.Max(float64(drivers), 1)

	raw, tier := rawSurgeForRatio(r)

	smoothed := 0.3*raw + 0.7*prevSurge
	return clamp(smoothed, 1.0, 3.5), tier
}

// rawSurgeForRatio implements the tier table:
//
//	r < 0.5          -> Low,      raw = 1.0
//	0.5 <= r < 1.5    -> Normal,   raw = 1.0
//	1.5 <= r < 3.0    -> High,     raw = 1.0 + (r-1.5)*0.4
//	r >= 3.0          -> VeryHigh, raw = 1.6 + (r-3.0)*0.3
func rawSurgeForRatio(r float64) (float64, DemandTier) {
	switch {
	case r < 0.5:
		return 1.0, DemandLow
	case r < 1.5:
		return 1.0, DemandNormal
	case r < 3.0:
		return 1.0 + (r-1.5)*0.4, DemandHigh
	default:
		return 1.6 + (r-3.0)*0.3, DemandVeryHigh
	}
}
