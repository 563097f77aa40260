package roadusage

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// GeoPoint representation of point on Earth
type GeoPoint struct {
	Lat float64
	Lon float64
}

// String returns pretty printed value for for GeoPoint
func (gp GeoPoint) String() string {
	return fmt.Sprintf("Lon: %f | Lat: %f", gp.Lon, gp.Lat)
}

// IsValid checks if coordinates are finite and within [-90, 90] / [-180, 180]
func (gp GeoPoint) IsValid() bool {
	return isFinite(gp.Lat) && isFinite(gp.Lon) &&
		gp.Lat >= -90 && gp.Lat <= 90 &&
		gp.Lon >= -180 && gp.Lon <= 180
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Point returns orb representation (X == Lon, Y == Lat)
func (gp GeoPoint) Point() orb.Point {
	return orb.Point{gp.Lon, gp.Lat}
}

// geodesicDistance returns distance between two geo-points (meters)
func geodesicDistance(p, q orb.Point) float64 {
	return geo.DistanceHaversine(p, q)
}

// getSphericalLength returns length for given line (meters)
func getSphericalLength(line []orb.Point) float64 {
	totalLength := 0.0
	if len(line) < 2 {
		return totalLength
	}
	for i := 1; i < len(line); i++ {
		totalLength += geodesicDistance(line[i-1], line[i])
	}
	return totalLength
}

// planarDistance returns distance from point to line (assuming they are Euclidean: Lon == X, Lat == Y)
func planarDistance(line orb.LineString, pt orb.Point) float64 {
	if len(line) == 1 {
		return planar.Distance(line[0], pt)
	}
	return planar.DistanceFrom(line, pt)
}

// nearestVertex returns vertex of line closest to the point (Euclidean). First one wins on ties
func nearestVertex(line orb.LineString, pt orb.Point) orb.Point {
	best := line[0]
	bestDist := planar.Distance(best, pt)
	for _, vertex := range line[1:] {
		dist := planar.Distance(vertex, pt)
		if dist < bestDist {
			best = vertex
			bestDist = dist
		}
	}
	return best
}

// boundDistance returns distance from point to the closest point of bound. Zero if point is inside
// Note: Euclidean space
func boundDistance(b orb.Bound, pt orb.Point) float64 {
	dx := math.Max(0, math.Max(b.Min.X()-pt.X(), pt.X()-b.Max.X()))
	dy := math.Max(0, math.Max(b.Min.Y()-pt.Y(), pt.Y()-b.Max.Y()))
	return math.Sqrt(dx*dx + dy*dy)
}

// roundCoordinate returns integer key for coordinate with given number of decimal digits
func roundCoordinate(v float64, precision int) int64 {
	return int64(math.Round(v * math.Pow10(precision)))
}

// copyLine returns copy of given line
func copyLine(pts orb.LineString) orb.LineString {
	output := make(orb.LineString, len(pts))
	copy(output, pts)
	return output
}
