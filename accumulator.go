package roadusage

import (
	"github.com/pkg/errors"
)

// UsageAccumulator increments counters of matched segments
type UsageAccumulator struct {
	network *RoadNetwork
}

func NewUsageAccumulator(network *RoadNetwork) *UsageAccumulator {
	return &UsageAccumulator{network: network}
}

// Apply adds accepted trip to every segment of the match: 'work' or 'free' counter by weekday of trip start
// and vendor's counter if vendor is known. Unknown vendors are ignored
func (acc *UsageAccumulator) Apply(segmentIDs []SegmentID, trip Trip) error {
	dayCounter := COUNTER_FREE
	if trip.IsWorkday() {
		dayCounter = COUNTER_WORK
	}
	err := acc.network.Increment(segmentIDs, dayCounter)
	if err != nil {
		return errors.Wrap(err, "Can't update day type counter")
	}
	if trip.Vendor == 0 || trip.Vendor == VENDOR_UNKNOWN {
		return nil
	}
	vendorCounter := trip.Vendor.CounterName()
	if _, ok := acc.network.Counters().Index(vendorCounter); !ok {
		return nil
	}
	err = acc.network.Increment(segmentIDs, vendorCounter)
	if err != nil {
		return errors.Wrap(err, "Can't update vendor counter")
	}
	return nil
}
