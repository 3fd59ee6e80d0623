package matcher

import "github.com/poolride/dispatch-core/internal/geospatial"

// cluster groups pending requests into spatial clusters by their pickup
// points: walking the input in order, each not-yet-assigned request seeds a
// new cluster and absorbs every other not-yet-assigned request within
// radiusKm of that seed's pickup. The H3 cell index narrows the candidate
// set per seed before the exact great-circle check, the same "wider net,
// then precise distance" shape as the rest of the pipeline's geo lookups.
func cluster(requests []Request, radiusKm float64) [][]Request {
	n := len(requests)
	if n == 0 {
		return nil
	}

	points := make([]geospatial.Coordinate, n)
	for i, r := range requests {
		points[i] = r.Pickup
	}
	idx := newCellIndex(points)

	assigned := make([]bool, n)
	var clusters [][]Request

	for i := 0; i < n; i++ {
		if assigned[i] {
			continue
		}

		members := []int{i}
		assigned[i] = true

		for _, j := range idx.CandidateIndices(i) {
			if assigned[j] {
				continue
			}
			if geospatial.WithinRadius(points[j], points[i], radiusKm) {
				members = append(members, j)
				assigned[j] = true
			}
		}

		group := make([]Request, len(members))
		for k, m := range members {
			group[k] = requests[m]
		}
		clusters = append(clusters, group)
	}

	return clusters
}

// centroid is the arithmetic mean of a set of coordinates, used as the
// vehicle's route-planning start point for a newly formed pool.
func centroid(points []geospatial.Coordinate) geospatial.Coordinate {
	if len(points) == 0 {
		return geospatial.Coordinate{}
	}

	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return geospatial.Coordinate{Lat: lat / n, Lng: lng / n}
}
