package roadusage

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnannotatedEdge is returned when a path goes through an edge which has no segment attached.
// It means graph builder is broken and must never be skipped silently.
var ErrUnannotatedEdge = errors.New("Edge has no segment annotation")

// Skip reasons. Used as metric labels and log fields
const (
	REASON_PARSE             = "parse"
	REASON_MISSING_FIELD     = "missing_field"
	REASON_DEGENERATE        = "degenerate"
	REASON_NO_PATH           = "no_path"
	REASON_DISTANCE_MISMATCH = "distance_mismatch"
	REASON_OUT_OF_RANGE      = "out_of_range"
	REASON_UNKNOWN           = "unknown"
)

// ParseError is malformed row or timestamp
type ParseError struct {
	Row   int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Can't parse field '%s' at row %d: %v", e.Field, e.Row, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MissingFieldError is blank coordinate field
type MissingFieldError struct {
	Row   int
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Field '%s' is blank at row %d", e.Field, e.Row)
}

// DegenerateTripError is a trip which starts and ends at the same point
type DegenerateTripError struct {
	Row int
}

func (e *DegenerateTripError) Error() string {
	return fmt.Sprintf("Trip at row %d starts and ends at the same point", e.Row)
}

// NoPathError is returned when target node can't be reached from source node
type NoPathError struct {
	Source NodeID
	Target NodeID
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("No path found from node %d to node %d", e.Source, e.Target)
}

// DistanceMismatchError is returned when path length differs too much from reported trip distance.
// Zero, negative or non-finite reported distance always gives this error
type DistanceMismatchError struct {
	PathDistance     float64
	ReportedDistance float64
	ErrorRatio       float64
}

func (e *DistanceMismatchError) Error() string {
	if !isFinite(e.ReportedDistance) || e.ReportedDistance <= 0 {
		return fmt.Sprintf("Reported distance %f is not a positive finite number", e.ReportedDistance)
	}
	return fmt.Sprintf("Path distance %f differs from reported %f (error ratio %f)", e.PathDistance, e.ReportedDistance, e.ErrorRatio)
}

// outOfRangeError is a trip which doesn't fall into requested date range
type outOfRangeError struct {
	Row int
}

func (e *outOfRangeError) Error() string {
	return fmt.Sprintf("Trip at row %d is out of date range", e.Row)
}

// FatalInputError aborts the whole run. Returned when road network is missing or corrupted
type FatalInputError struct {
	Source string
	Err    error
}

func (e *FatalInputError) Error() string {
	return fmt.Sprintf("Fatal input error (%s): %v", e.Source, e.Err)
}

func (e *FatalInputError) Unwrap() error {
	return e.Err
}

func fatalInput(source string, err error) error {
	return &FatalInputError{Source: source, Err: err}
}

// SkipReason returns label of per-trip error. REASON_UNKNOWN for any other error
func SkipReason(err error) string {
	var (
		parseErr      *ParseError
		missingErr    *MissingFieldError
		degenerateErr *DegenerateTripError
		noPathErr     *NoPathError
		mismatchErr   *DistanceMismatchError
		rangeErr      *outOfRangeError
	)
	switch {
	case errors.As(err, &parseErr):
		return REASON_PARSE
	case errors.As(err, &missingErr):
		return REASON_MISSING_FIELD
	case errors.As(err, &degenerateErr):
		return REASON_DEGENERATE
	case errors.As(err, &noPathErr):
		return REASON_NO_PATH
	case errors.As(err, &mismatchErr):
		return REASON_DISTANCE_MISMATCH
	case errors.As(err, &rangeErr):
		return REASON_OUT_OF_RANGE
	default:
		return REASON_UNKNOWN
	}
}

// IsFatal tells whether error must abort the run
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fatalErr *FatalInputError
	if errors.As(err, &fatalErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return SkipReason(err) == REASON_UNKNOWN
}
