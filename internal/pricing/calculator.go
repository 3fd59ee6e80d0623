package pricing

import "math"

// Calculator computes fares. It holds no state; every method is a pure
// function of its arguments, mirroring the shape of the `Calculate` entry
// point the fare pipeline uses, minus any geography/database lookups.
type Calculator struct{}

// NewCalculator constructs a pricing Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Price computes {base, surge, poolDiscount, final, breakdown} for the given
// factors, per the component design's pricing formula.
func (c *Calculator) Price(f Factors) Quote {
	class := f.Class
	if class == "" {
		class = Sedan
	}

	base := c.base(class, f.DistanceKm, f.TimeMin)
	surge, breakdown := c.surge(f, class)
	discount := c.PoolDiscount(f.PoolSize, f.DetourMinutes)

	final := base * surge * discount

	return Quote{
		Base:         round2(base),
		Surge:        round2(surge),
		PoolDiscount: round2(discount),
		Final:        round2(final),
		Breakdown:    breakdown,
	}
}

// base computes max(minFare(class), distanceKm*ratePerKm + timeMin*ratePerMin).
func (c *Calculator) base(class VehicleClass, distanceKm, timeMin float64) float64 {
	rate := resolveRate(class)
	metered := distanceKm*rate.perKm + timeMin*rate.perMin
	return math.Max(rate.min, metered)
}

// surge composes the multiplicative surge chain: zone demand, weekday peak,
// weather, clamped to [1.0, 3.5].
func (c *Calculator) surge(f Factors, class VehicleClass) (float64, Breakdown) {
	surge := 1.0
	var breakdown Breakdown

	if f.SurgeZone != nil {
		r := float64(f.SurgeZone.ActiveRequests) / math.Max(float64(f.SurgeZone.AvailableDrivers), 1)
		demandAdd := 0.0
		if r > 1.5 {
			demandAdd = math.Min((r-1.5)*0.5, 1.5)
		}
		zoneSurge := surge + demandAdd
		zoneSurge = math.Max(zoneSurge, f.SurgeZone.CurrentMultiplier)
		breakdown.DemandSurge = zoneSurge
		surge = zoneSurge
	}

	if isPeakHour(f.LocalHour, f.Weekday) {
		breakdown.PeakSurge = 1.3
		surge *= 1.3
	}

	weather := f.Weather
	if weather == "" {
		weather = WeatherClear
	}
	weatherFactor, ok := weatherFactors[weather]
	if !ok {
		weatherFactor = weatherFactors[WeatherClear]
	}
	breakdown.WeatherSurge = weatherFactor
	surge *= weatherFactor

	breakdown.RawSurge = surge
	surge = clamp(surge, 1.0, 3.5)

	return surge, breakdown
}

// PoolDiscount computes max(1 - max(raw,0), 0.50), where
// raw = 0.15*(p-1) - 0.02*max(d,0). p<=1 always yields 1.0. Exported so
// dispatch can reprice each passenger in a committed pool against their own
// realized detour, rather than the single flat per-seat price Price itself
// returns for the pool as a whole.
func (c *Calculator) PoolDiscount(poolSize int, detourMinutes float64) float64 {
	if poolSize <= 1 {
		return 1.0
	}

	raw := 0.15*float64(poolSize-1) - 0.02*math.Max(detourMinutes, 0)
	discount := math.Max(1-math.Max(raw, 0), 0.50)
	return discount
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
