package geospatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinate
		expected float64
		delta    float64
	}{
		{
			name:     "JFK to midtown Manhattan",
			a:        Coordinate{Lat: 40.6413, Lng: -73.7781},
			b:        Coordinate{Lat: 40.7580, Lng: -73.9855},
			expected: 21.77,
			delta:    0.3,
		},
		{
			name:     "same point",
			a:        Coordinate{Lat: 40.6413, Lng: -73.7781},
			b:        Coordinate{Lat: 40.6413, Lng: -73.7781},
			expected: 0,
			delta:    0.0001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, tt.delta)
		})
	}
}

func TestTravelTime(t *testing.T) {
	// 21.3km / 30 km/h * 60 = 42.6 minutes
	assert.InDelta(t, 42.6, TravelTime(21.3), 0.05)
	assert.Equal(t, 0.0, TravelTime(0))
}

func TestWithinRadius(t *testing.T) {
	center := Coordinate{Lat: 40.6413, Lng: -73.7781}
	near := Coordinate{Lat: 40.6420, Lng: -73.7790}
	far := Coordinate{Lat: 40.7580, Lng: -73.9855}

	assert.True(t, WithinRadius(near, center, 5))
	assert.False(t, WithinRadius(far, center, 5))
}

func TestBearing(t *testing.T) {
	// due north
	north := Bearing(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 1, Lng: 0})
	assert.InDelta(t, 0.0, north, 1.0)

	// due east
	east := Bearing(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 0, Lng: 1})
	assert.InDelta(t, 90.0, east, 1.0)
}

func TestSameDirection(t *testing.T) {
	a1 := Coordinate{Lat: 40.6413, Lng: -73.7781}
	a2 := Coordinate{Lat: 40.7580, Lng: -73.9855}

	// a near-identical second pair, same general direction
	b1 := Coordinate{Lat: 40.6420, Lng: -73.7790}
	b2 := Coordinate{Lat: 40.7590, Lng: -73.9860}
	assert.True(t, SameDirection(a1, a2, b1, b2, 45))

	// opposite direction: swap b1/b2
	assert.False(t, SameDirection(a1, a2, b2, b1, 45))
}

func TestSameDirectionDefaultTheta(t *testing.T) {
	a1 := Coordinate{Lat: 40.6413, Lng: -73.7781}
	a2 := Coordinate{Lat: 40.7580, Lng: -73.9855}
	b1 := Coordinate{Lat: 40.6420, Lng: -73.7790}
	b2 := Coordinate{Lat: 40.7590, Lng: -73.9860}

	// thetaDeg=0 should fall back to the 45 degree default, not reject everything
	assert.True(t, SameDirection(a1, a2, b1, b2, 0))
}
