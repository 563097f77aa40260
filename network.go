package roadusage

import (
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// RoadNetwork owns segments and their usage counters.
// Geometry is immutable once network is built; counters are safe for concurrent increments
type RoadNetwork struct {
	segments []*RoadSegment
	counters *CounterSet
}

// NewRoadNetwork returns empty network with given counters registered
func NewRoadNetwork(counterNames ...string) *RoadNetwork {
	if len(counterNames) == 0 {
		counterNames = DefaultCounterNames
	}
	return &RoadNetwork{
		segments: make([]*RoadSegment, 0),
		counters: NewCounterSet(counterNames...),
	}
}

// AddSegment appends segment to the network and assigns the next identifier to it
func (net *RoadNetwork) AddSegment(kind, name string, geom orb.LineString) *RoadSegment {
	segment := &RoadSegment{
		ID:           SegmentID(len(net.segments)),
		Kind:         kind,
		Name:         name,
		Geom:         copyLine(geom),
		LengthMeters: getSphericalLength(geom),
		counters:     newCounterRow(net.counters.Len()),
	}
	net.segments = append(net.segments, segment)
	return segment
}

// Segments returns all segments in id order
func (net *RoadNetwork) Segments() []*RoadSegment {
	return net.segments
}

// Segment returns segment by its identifier
func (net *RoadNetwork) Segment(id SegmentID) (*RoadSegment, bool) {
	if id < 0 || int(id) >= len(net.segments) {
		return nil, false
	}
	return net.segments[id], true
}

// Len returns number of segments
func (net *RoadNetwork) Len() int {
	return len(net.segments)
}

// Counters returns counters registry
func (net *RoadNetwork) Counters() *CounterSet {
	return net.counters
}

// Increment adds one to the counter for every given segment
func (net *RoadNetwork) Increment(ids []SegmentID, counter string) error {
	return net.add(ids, counter, 1)
}

func (net *RoadNetwork) add(ids []SegmentID, counter string, delta int64) error {
	idx, ok := net.counters.Index(counter)
	if !ok {
		return errors.Errorf("Counter '%s' is not registered", counter)
	}
	for _, id := range ids {
		segment, ok := net.Segment(id)
		if !ok {
			return errors.Errorf("No segment with id %d", id)
		}
		err := segment.counters.add(idx, delta)
		if err != nil {
			return errors.Wrapf(err, "Can't update counter '%s' for segment %d", counter, id)
		}
	}
	return nil
}

// Count returns value of the counter for segment. Zero for unknown segment or counter
func (net *RoadNetwork) Count(id SegmentID, counter string) int64 {
	idx, ok := net.counters.Index(counter)
	if !ok {
		return 0
	}
	segment, ok := net.Segment(id)
	if !ok {
		return 0
	}
	return segment.counters.get(idx)
}

// Total returns sum of the counter over all segments
func (net *RoadNetwork) Total(counter string) int64 {
	idx, ok := net.counters.Index(counter)
	if !ok {
		return 0
	}
	total := int64(0)
	for _, segment := range net.segments {
		total += segment.counters.get(idx)
	}
	return total
}

// Merge adds counters of other network to this one. Both networks must be built from the same segments list.
// Counters unknown to this network are skipped
func (net *RoadNetwork) Merge(other *RoadNetwork) error {
	if other.Len() != net.Len() {
		return errors.Errorf("Can't merge networks with different number of segments: %d and %d", net.Len(), other.Len())
	}
	for _, name := range other.counters.Names() {
		if _, ok := net.counters.Index(name); !ok {
			continue
		}
		for _, segment := range other.segments {
			value := other.Count(segment.ID, name)
			if value == 0 {
				continue
			}
			err := net.add([]SegmentID{segment.ID}, name, value)
			if err != nil {
				return errors.Wrap(err, "Can't merge counters")
			}
		}
	}
	return nil
}
