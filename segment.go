package roadusage

import (
	"github.com/paulmach/orb"
)

// SegmentID is stable identifier of segment. Assigned once in load order
type SegmentID int

// RoadSegment is an atomic piece of road geometry
type RoadSegment struct {
	ID           SegmentID
	Kind         string
	Name         string
	Geom         orb.LineString
	LengthMeters float64

	counters counterRow
}

// segmentRaw is segment as it has been read from source before filtering and id assignment
type segmentRaw struct {
	kind   string
	name   string
	geom   orb.LineString
	counts map[string]int64
}
