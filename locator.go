package roadusage

import (
	"math"

	"github.com/paulmach/orb"
)

// DEFAULT_GRID_CELL_SIZE is size of spatial index cell (degrees)
const DEFAULT_GRID_CELL_SIZE = 0.005

type cellKey struct {
	x int
	y int
}

// SegmentLocator finds segment closest to arbitrary point.
// Segments are bucketed into uniform grid by their bounds; search walks rings of cells around the point
// and stops only when no unvisited segment can be closer or equally close, so result is always the same as linear scan gives.
// Locator is read-only after creation and safe for concurrent use
type SegmentLocator struct {
	segments []*RoadSegment
	bounds   []orb.Bound
	cellSize float64
	cells    map[cellKey][]int
	minCell  cellKey
	maxCell  cellKey
}

// NewSegmentLocator prepares index over segments. Non-positive cell size disables index (linear scan only)
func NewSegmentLocator(segments []*RoadSegment, cellSize float64) *SegmentLocator {
	locator := &SegmentLocator{
		segments: segments,
		cellSize: cellSize,
	}
	if cellSize <= 0 {
		return locator
	}
	locator.cells = make(map[cellKey][]int)
	locator.bounds = make([]orb.Bound, len(segments))
	first := true
	for idx, segment := range segments {
		if len(segment.Geom) == 0 {
			continue
		}
		bound := segment.Geom.Bound()
		locator.bounds[idx] = bound
		minCell := locator.cellOf(bound.Min)
		maxCell := locator.cellOf(bound.Max)
		if first {
			locator.minCell, locator.maxCell = minCell, maxCell
			first = false
		}
		locator.minCell.x = minInt(locator.minCell.x, minCell.x)
		locator.minCell.y = minInt(locator.minCell.y, minCell.y)
		locator.maxCell.x = maxInt(locator.maxCell.x, maxCell.x)
		locator.maxCell.y = maxInt(locator.maxCell.y, maxCell.y)
		for x := minCell.x; x <= maxCell.x; x++ {
			for y := minCell.y; y <= maxCell.y; y++ {
				key := cellKey{x, y}
				locator.cells[key] = append(locator.cells[key], idx)
			}
		}
	}
	return locator
}

func (locator *SegmentLocator) cellOf(pt orb.Point) cellKey {
	return cellKey{
		x: int(math.Floor(pt.X() / locator.cellSize)),
		y: int(math.Floor(pt.Y() / locator.cellSize)),
	}
}

// Nearest returns segment with minimal planar distance to the point and the distance itself.
// On ties the segment which comes first in input order is returned
func (locator *SegmentLocator) Nearest(pt orb.Point) (*RoadSegment, float64, bool) {
	if !isFinite(pt.X()) || !isFinite(pt.Y()) {
		return nil, 0, false
	}
	if locator.cells == nil {
		return NearestSegmentLinear(locator.segments, pt)
	}
	if len(locator.cells) == 0 {
		return nil, 0, false
	}
	center := locator.cellOf(pt)
	// Rings closer than populated area are empty
	rStart := maxInt(0, maxInt(
		maxInt(locator.minCell.x-center.x, center.x-locator.maxCell.x),
		maxInt(locator.minCell.y-center.y, center.y-locator.maxCell.y),
	))

	visited := make(map[int]struct{})
	bestIdx := -1
	bestDist := math.Inf(1)
	visit := func(key cellKey) {
		for _, idx := range locator.cells[key] {
			if _, ok := visited[idx]; ok {
				continue
			}
			visited[idx] = struct{}{}
			// Bound is never farther than segment itself
			if boundDistance(locator.bounds[idx], pt) > bestDist {
				continue
			}
			dist := planarDistance(locator.segments[idx].Geom, pt)
			if dist < bestDist || (dist == bestDist && idx < bestIdx) {
				bestDist = dist
				bestIdx = idx
			}
		}
	}

	for r := rStart; ; r++ {
		for x := center.x - r; x <= center.x+r; x++ {
			visit(cellKey{x, center.y - r})
			if r > 0 {
				visit(cellKey{x, center.y + r})
			}
		}
		for y := center.y - r + 1; y <= center.y+r-1; y++ {
			visit(cellKey{center.x - r, y})
			visit(cellKey{center.x + r, y})
		}
		covered := center.x-r <= locator.minCell.x && center.x+r >= locator.maxCell.x &&
			center.y-r <= locator.minCell.y && center.y+r >= locator.maxCell.y
		if covered {
			break
		}
		if bestIdx >= 0 && bestDist < locator.searchedRadius(pt, center, r) {
			break
		}
	}
	if bestIdx < 0 {
		return nil, 0, false
	}
	return locator.segments[bestIdx], bestDist, true
}

// searchedRadius returns distance from point to the border of square of cells which have been visited already.
// Any segment outside of the square is at least that far
func (locator *SegmentLocator) searchedRadius(pt orb.Point, center cellKey, r int) float64 {
	left := float64(center.x-r) * locator.cellSize
	right := float64(center.x+r+1) * locator.cellSize
	bottom := float64(center.y-r) * locator.cellSize
	top := float64(center.y+r+1) * locator.cellSize
	return math.Min(
		math.Min(pt.X()-left, right-pt.X()),
		math.Min(pt.Y()-bottom, top-pt.Y()),
	)
}

// NearestSegmentLinear checks every segment. First one wins on ties
func NearestSegmentLinear(segments []*RoadSegment, pt orb.Point) (*RoadSegment, float64, bool) {
	if !isFinite(pt.X()) || !isFinite(pt.Y()) {
		return nil, 0, false
	}
	var best *RoadSegment
	bestDist := math.Inf(1)
	for _, segment := range segments {
		if len(segment.Geom) == 0 {
			continue
		}
		dist := planarDistance(segment.Geom, pt)
		if dist < bestDist {
			bestDist = dist
			best = segment
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestDist, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
