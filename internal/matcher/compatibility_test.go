package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompatibleSameDirection(t *testing.T) {
	admitted := []Request{
		{ID: "a", Pickup: coord(40.6413, -73.7781), Dropoff: coord(40.7505, -73.9910), Seats: 1, Luggage: 1},
	}
	candidate := Request{ID: "b", Pickup: coord(40.6420, -73.7790), Dropoff: coord(40.7510, -73.9920), Seats: 1, Luggage: 0}

	assert.True(t, compatible(admitted, candidate, 45.0))
}

func TestIncompatibleOppositeDirection(t *testing.T) {
	admitted := []Request{
		{ID: "a", Pickup: coord(40.6413, -73.7781), Dropoff: coord(40.7505, -73.9910), Seats: 1, Luggage: 1},
	}
	// candidate travels roughly the reverse direction from a shared area.
	candidate := Request{ID: "b", Pickup: coord(40.7505, -73.9910), Dropoff: coord(40.6413, -73.7781), Seats: 1, Luggage: 0}

	assert.False(t, compatible(admitted, candidate, 45.0))
}

func TestIncompatibleOverCombinedCeiling(t *testing.T) {
	admitted := []Request{
		{ID: "a", Pickup: coord(0, 0), Dropoff: coord(0, 1), Seats: 4, Luggage: 4},
	}
	candidate := Request{ID: "b", Pickup: coord(0, 0.01), Dropoff: coord(0, 1.01), Seats: 3, Luggage: 5}

	assert.False(t, compatible(admitted, candidate, 45.0))
}

func TestMatchScoreFullAndFreshIsLow(t *testing.T) {
	pool := ExistingPool{CurrentSeats: 4, MaxSeats: 4}
	score := MatchScore(pool, 0)
	assert.InDelta(t, 80.0, score, 1e-9) // 100 - 20*1.0 - 0
}

func TestMatchScoreAgePenaltyCapped(t *testing.T) {
	pool := ExistingPool{CurrentSeats: 1, MaxSeats: 4}
	score := MatchScore(pool, 100) // age penalty capped at 30
	assert.InDelta(t, 100-5-30, score, 1e-9)
}

func TestMatchScoreFlooredAtZero(t *testing.T) {
	pool := ExistingPool{CurrentSeats: 4, MaxSeats: 4}
	score := MatchScore(pool, 1000)
	assert.Equal(t, 0.0, score)
}

func TestMatchScoreAppliesFillAndAgePenalty(t *testing.T) {
	pool := ExistingPool{CurrentSeats: 2, MaxSeats: 4, FormedAt: time.Now()}
	score := MatchScore(pool, 5)
	assert.InDelta(t, 100-10-10, score, 1e-9)
}
