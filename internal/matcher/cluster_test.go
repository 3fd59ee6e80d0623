package matcher

import (
	"testing"
	"time"

	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/stretchr/testify/assert"
)

func coord(lat, lng float64) geospatial.Coordinate {
	return geospatial.Coordinate{Lat: lat, Lng: lng}
}

func TestClusterGroupsNearbyPickups(t *testing.T) {
	now := time.Now()
	requests := []Request{
		{ID: "a", Pickup: coord(40.6413, -73.7781), RequestedAt: now},
		{ID: "b", Pickup: coord(40.6420, -73.7790), RequestedAt: now.Add(time.Second)},
		{ID: "c", Pickup: coord(40.9000, -73.5000), RequestedAt: now.Add(2 * time.Second)}, // far away
	}

	clusters := cluster(requests, 5.0)

	assert.Len(t, clusters, 2)
	sizes := map[int]int{}
	for _, c := range clusters {
		sizes[len(c)]++
	}
	assert.Equal(t, 1, sizes[2])
	assert.Equal(t, 1, sizes[1])
}

func TestClusterSingleRequest(t *testing.T) {
	requests := []Request{{ID: "solo", Pickup: coord(0, 0), RequestedAt: time.Now()}}
	clusters := cluster(requests, 5.0)
	assert.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 1)
}

func TestClusterEmpty(t *testing.T) {
	assert.Nil(t, cluster(nil, 5.0))
}

func TestCentroidIsArithmeticMean(t *testing.T) {
	points := []geospatial.Coordinate{coord(0, 0), coord(2, 2)}
	c := centroid(points)
	assert.InDelta(t, 1.0, c.Lat, 1e-9)
	assert.InDelta(t, 1.0, c.Lng, 1e-9)
}
