package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSurgeRefreshSmoothing(t *testing.T) {
	r := NewSurgeRefresher()

	// prevSurge=1.0, active=30, drivers=5 -> r=6
	// raw = 1.6 + (6-3)*0.3 = 2.5
	// smoothed = 0.3*2.5 + 0.7*1.0 = 1.45
	newSurge, tier := r.Refresh(30, 5, 1.0)
	assert.InDelta(t, 1.45, newSurge, 0.001)
	assert.Equal(t, DemandVeryHigh, tier)

	// next tick with the same inputs converges toward 2.5
	second, _ := r.Refresh(30, 5, newSurge)
	assert.Greater(t, second, newSurge)
	assert.Less(t, second, 2.5)
}

func TestSurgeRefreshTiers(t *testing.T) {
	r := NewSurgeRefresher()

	tests := []struct {
		name     string
		active   int
		drivers  int
		wantTier DemandTier
	}{
		{"low demand", 1, 10, DemandLow},
		{"normal demand", 5, 5, DemandNormal},
		{"high demand", 10, 5, DemandHigh},
		{"very high demand", 20, 2, DemandVeryHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, tier := r.Refresh(tt.active, tt.drivers, 1.0)
			assert.Equal(t, tt.wantTier, tier)
		})
	}
}

func TestSurgeRefreshAlwaysClamped(t *testing.T) {
	r := NewSurgeRefresher()

	newSurge, _ := r.Refresh(10000, 1, 3.5)
	assert.LessOrEqual(t, newSurge, 3.5)
	assert.GreaterOrEqual(t, newSurge, 1.0)
}
