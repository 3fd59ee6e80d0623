// Package pricing computes base fare, surge, and pool-discount pricing as a
// pure function of its inputs, and refreshes surge-zone multipliers.
package pricing

// VehicleClass is one of the static vehicle tiers a pool can be formed under.
type VehicleClass string

const (
	Sedan VehicleClass = "sedan"
	SUV   VehicleClass = "suv"
	Van   VehicleClass = "van"
)

// ClassCapacity is the (maxSeats, maxLuggage) ceiling for a vehicle class.
type ClassCapacity struct {
	MaxSeats   int
	MaxLuggage int
}

// Capacities is the static vehicle class table from the data model: the
// smallest class whose capacity dominates both totals is chosen.
var Capacities = map[VehicleClass]ClassCapacity{
	Sedan: {MaxSeats: 4, MaxLuggage: 3},
	SUV:   {MaxSeats: 6, MaxLuggage: 5},
	Van:   {MaxSeats: 8, MaxLuggage: 8},
}

// classRate holds the per-class fare rates.
type classRate struct {
	perKm  float64
	perMin float64
	min    float64
}

var rates = map[VehicleClass]classRate{
	Sedan: {perKm: 2.50, perMin: 0.40, min: 8.00},
	SUV:   {perKm: 3.50, perMin: 0.55, min: 12.00},
	Van:   {perKm: 4.50, perMin: 0.70, min: 15.00},
}

// WeatherCondition affects the surge multiplier composition.
type WeatherCondition string

const (
	WeatherClear WeatherCondition = "clear"
	WeatherRain  WeatherCondition = "rain"
	WeatherSnow  WeatherCondition = "snow"
)

var weatherFactors = map[WeatherCondition]float64{
	WeatherClear: 1.0,
	WeatherRain:  1.2,
	WeatherSnow:  1.5,
}

// DemandTier classifies a surge zone's current demand/supply ratio.
type DemandTier string

const (
	DemandLow      DemandTier = "low"
	DemandNormal   DemandTier = "normal"
	DemandHigh     DemandTier = "high"
	DemandVeryHigh DemandTier = "very_high"
)

// SurgeZoneSnapshot is the read the pricing engine needs from a surge zone
// to fold its multiplier into a quote; it does not mutate the zone.
type SurgeZoneSnapshot struct {
	ActiveRequests    int
	AvailableDrivers  int
	CurrentMultiplier float64
}

// Factors are the pure inputs to Price. VehicleClass defaults to Sedan when
// empty; Weather defaults to clear.
type Factors struct {
	DistanceKm      float64
	TimeMin         float64
	Class           VehicleClass
	SurgeZone       *SurgeZoneSnapshot
	LocalHour       int // 0-23, local time
	Weekday         int // time.Monday == 1 ... time.Sunday == 0 (time.Weekday numbering)
	Weather         WeatherCondition
	PoolSize        int     // number of passengers sharing the vehicle
	DetourMinutes   float64 // this passenger's realized detour, if known
}

// Breakdown documents how Price arrived at its surge multiplier, for
// diagnostics and the advisory estimate surfaced at request intake.
type Breakdown struct {
	DemandSurge   float64
	PeakSurge     float64
	WeatherSurge  float64
	RawSurge      float64
	PoolRawDiscount float64
}

// Quote is the result of Price: base fare, surge, pool discount, and final.
type Quote struct {
	Base         float64
	Surge        float64
	PoolDiscount float64
	Final        float64
	Breakdown    Breakdown
}

// isPeakHour reports whether the given local hour/weekday falls in a
// weekday peak window: Mon-Fri 07:00-10:00 or 17:00-20:00.
func isPeakHour(hour, weekday int) bool {
	if weekday < 1 || weekday > 5 {
		return false
	}
	return (hour >= 7 && hour < 10) || (hour >= 17 && hour < 20)
}

func resolveRate(class VehicleClass) classRate {
	if r, ok := rates[class]; ok {
		return r
	}
	return rates[Sedan]
}

// classOrder is the ascending dominance order used by SelectClass: Sedan is
// tried first, then SUV, then Van.
var classOrder = []VehicleClass{Sedan, SUV, Van}

// SelectClass returns the smallest vehicle class whose capacity dominates
// both totalSeats and totalLuggage, or ok=false if even a Van can't carry
// the load.
func SelectClass(totalSeats, totalLuggage int) (VehicleClass, bool) {
	for _, class := range classOrder {
		cap := Capacities[class]
		if totalSeats <= cap.MaxSeats && totalLuggage <= cap.MaxLuggage {
			return class, true
		}
	}
	return "", false
}
