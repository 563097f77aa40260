package roadusage

import (
	"math"

	"github.com/paulmach/orb"
)

// DEFAULT_MAX_ERROR_RATIO is maximum relative difference between path length and reported trip distance
const DEFAULT_MAX_ERROR_RATIO = 0.1

// DistanceValidator compares geodesic length of path against trip distance reported by vendor
type DistanceValidator struct {
	maxErrorRatio float64
}

func NewDistanceValidator(maxErrorRatio float64) DistanceValidator {
	return DistanceValidator{maxErrorRatio: maxErrorRatio}
}

// PathDistance returns sum of geodesic distances between consecutive points (meters)
func PathDistance(pts []orb.Point) float64 {
	return getSphericalLength(pts)
}

// Validate returns path distance and error ratio. Error is *DistanceMismatchError when
// ratio exceeds maximum, path has zero length or reported distance is not a positive finite number
func (validator DistanceValidator) Validate(pts []orb.Point, reportedDistance float64) (float64, float64, error) {
	pathDistance := PathDistance(pts)
	if !isFinite(reportedDistance) || reportedDistance <= 0 {
		return pathDistance, math.Inf(1), &DistanceMismatchError{PathDistance: pathDistance, ReportedDistance: reportedDistance, ErrorRatio: math.Inf(1)}
	}
	errorRatio := math.Abs(pathDistance-reportedDistance) / reportedDistance
	if pathDistance == 0 || !isFinite(errorRatio) || errorRatio > validator.maxErrorRatio {
		return pathDistance, errorRatio, &DistanceMismatchError{PathDistance: pathDistance, ReportedDistance: reportedDistance, ErrorRatio: errorRatio}
	}
	return pathDistance, errorRatio, nil
}
