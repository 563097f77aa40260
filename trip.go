package roadusage

import (
	"time"

	"github.com/pkg/errors"
)

// TRIP_TIME_LAYOUT is layout of trip timestamps, e.g. '04/01/2023 07:00:00 AM'
const TRIP_TIME_LAYOUT = "01/02/2006 03:04:05 PM"

// DATE_LAYOUT is layout of date range bounds, e.g. '01/04/2023' for 1st of April
const DATE_LAYOUT = "02/01/2006"

// Trip is single trip record. Distance is in meters
type Trip struct {
	Row              int
	StartTime        time.Time
	EndTime          time.Time
	Start            GeoPoint
	End              GeoPoint
	ReportedDistance float64
	Vendor           Vendor
	VendorTag        string
}

// IsDegenerate tells whether trip starts and ends at the same point
func (trip Trip) IsDegenerate() bool {
	return trip.Start == trip.End
}

// IsWorkday tells whether trip has been started from Monday to Friday
func (trip Trip) IsWorkday() bool {
	weekday := trip.StartTime.Weekday()
	return weekday != time.Saturday && weekday != time.Sunday
}

// DateRange is inclusive range of time. Zero bound means no limit
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange parses 'dd/mm/yyyy' bounds. Upper bound is stretched to the end of the day
func ParseDateRange(from, to string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	fromTime, err := time.ParseInLocation(DATE_LAYOUT, from, loc)
	if err != nil {
		return DateRange{}, errors.Wrap(err, "Can't parse start of date range")
	}
	toTime, err := time.ParseInLocation(DATE_LAYOUT, to, loc)
	if err != nil {
		return DateRange{}, errors.Wrap(err, "Can't parse end of date range")
	}
	toTime = toTime.Add(24*time.Hour - time.Second)
	if toTime.Before(fromTime) {
		return DateRange{}, errors.Errorf("End of date range %s is before its start %s", to, from)
	}
	return DateRange{From: fromTime, To: toTime}, nil
}

// Contains checks if moment falls into range (inclusive)
func (dr DateRange) Contains(t time.Time) bool {
	if !dr.From.IsZero() && t.Before(dr.From) {
		return false
	}
	if !dr.To.IsZero() && t.After(dr.To) {
		return false
	}
	return true
}

// ContainsTrip checks if trip starts or ends within range
func (dr DateRange) ContainsTrip(trip Trip) bool {
	return dr.Contains(trip.StartTime) || dr.Contains(trip.EndTime)
}

// DefaultOutputName returns '<dd-mm-yyyy>_<dd-mm-yyyy>' name for results of given range
func (dr DateRange) DefaultOutputName() string {
	return dr.From.Format("02-01-2006") + "_" + dr.To.Format("02-01-2006")
}
