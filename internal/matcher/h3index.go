package matcher

import (
	"github.com/poolride/dispatch-core/internal/geospatial"
	"github.com/uber/h3-go/v4"
)

// h3ResolutionPool indexes pickup points for clustering pre-filtering
// (~1.2km edge, resolution 7). k=4 rings covers a radius comfortably past
// the default 5km cluster radius, so the pre-filter never excludes a
// genuine candidate; it only trims the O(n) proximity walk that follows.
const (
	h3ResolutionPool = 7
	h3KRingPool      = 4
)

// cellIndex buckets a set of coordinates by their H3 cell at
// h3ResolutionPool, so CandidateIndices can narrow a proximity search to
// nearby cells before falling back to exact great-circle distance checks.
type cellIndex struct {
	byCell map[h3.Cell][]int
	cells  []h3.Cell
}

func newCellIndex(points []geospatial.Coordinate) *cellIndex {
	idx := &cellIndex{byCell: make(map[h3.Cell][]int, len(points)), cells: make([]h3.Cell, len(points))}
	for i, p := range points {
		cell := latLngToCell(p.Lat, p.Lng)
		idx.cells[i] = cell
		idx.byCell[cell] = append(idx.byCell[cell], i)
	}
	return idx
}

// CandidateIndices returns the indices of every point whose H3 cell lies
// within h3KRingPool rings of point i's cell, i itself excluded. Order is
// unspecified; callers must not rely on it.
func (idx *cellIndex) CandidateIndices(i int) []int {
	origin := idx.cells[i]
	ring, err := origin.GridDisk(h3KRingPool)
	if err != nil {
		ring = []h3.Cell{origin}
	}

	var out []int
	for _, cell := range ring {
		for _, j := range idx.byCell[cell] {
			if j != i {
				out = append(out, j)
			}
		}
	}
	return out
}

func latLngToCell(lat, lng float64) h3.Cell {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), h3ResolutionPool)
	if err != nil {
		return 0
	}
	return cell
}
