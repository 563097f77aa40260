package roadusage

import (
	"github.com/paulmach/orb"
)

// prepareGeoJSONCoordinates returns GeoJSON coordinates of LineString
func prepareGeoJSONCoordinates(pts []orb.Point) [][]float64 {
	pts2d := make([][]float64, len(pts))
	for i := range pts {
		pts2d[i] = []float64{pts[i].Lon(), pts[i].Lat()}
	}
	return pts2d
}
