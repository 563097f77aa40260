package roadusage

import (
	"context"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceItem struct {
	trip Trip
	err  error
}

// sliceSource replays prepared trips and errors
type sliceSource struct {
	items []sourceItem
	pos   int
}

func (source *sliceSource) Next() (Trip, error) {
	if source.pos >= len(source.items) {
		return Trip{}, io.EOF
	}
	item := source.items[source.pos]
	source.pos++
	return item.trip, item.err
}

func tripsSource(trips ...Trip) *sliceSource {
	source := &sliceSource{}
	for _, trip := range trips {
		source.items = append(source.items, sourceItem{trip: trip})
	}
	return source
}

var (
	nearA  = GeoPoint{Lat: 0.0001, Lon: 0.0002}
	nearA2 = GeoPoint{Lat: 0.0001, Lon: 0.008}
	nearCD = GeoPoint{Lat: 0.0001, Lon: 0.022}
	nearEF = GeoPoint{Lat: 1.0001, Lon: 1.002}
)

// abcTrip goes from segment AB to segment CD, so path is A-B-C
func abcTrip(net *RoadNetwork, start time.Time, vendor string) Trip {
	return Trip{
		StartTime:        start,
		EndTime:          start.Add(10 * time.Minute),
		Start:            nearA,
		End:              nearCD,
		ReportedDistance: net.Segments()[0].LengthMeters + net.Segments()[1].LengthMeters,
		Vendor:           ParseVendor(vendor),
		VendorTag:        vendor,
	}
}

func TestMatchTrip(t *testing.T) {
	net := chainNetwork()
	for _, engine := range []PathEngine{ENGINE_ASTAR, ENGINE_CH} {
		matcher, err := NewMatcher(net, WithPathEngine(engine))
		require.NoError(t, err)

		result, err := matcher.MatchTrip(abcTrip(net, workday, "Lime"))
		require.NoError(t, err, engine.String())
		assert.Equal(t, SegmentID(0), result.StartSegment)
		assert.Equal(t, SegmentID(2), result.EndSegment)
		assert.Equal(t, []SegmentID{0, 1}, result.SegmentIDs)
		assert.Len(t, result.Path, 3)
		assert.InDelta(t, 0, result.ErrorRatio, 1e-9)

		// Reverse direction covers the same segments
		reverse := abcTrip(net, workday, "Lime")
		reverse.Start, reverse.End = reverse.End, reverse.Start
		result, err = matcher.MatchTrip(reverse)
		require.NoError(t, err, engine.String())
		assert.Equal(t, []SegmentID{0, 1}, result.SegmentIDs)
	}
	// Counters are untouched by matching itself
	assert.Equal(t, int64(0), net.Total(COUNTER_WORK))
}

func TestMatchTripSkips(t *testing.T) {
	net := chainNetwork()
	matcher, err := NewMatcher(net)
	require.NoError(t, err)

	mismatch := abcTrip(net, workday, "Lime")
	mismatch.ReportedDistance *= 2
	_, err = matcher.MatchTrip(mismatch)
	assert.Equal(t, REASON_DISTANCE_MISMATCH, SkipReason(err))

	zero := abcTrip(net, workday, "Lime")
	zero.ReportedDistance = 0
	_, err = matcher.MatchTrip(zero)
	assert.Equal(t, REASON_DISTANCE_MISMATCH, SkipReason(err))

	unreachable := abcTrip(net, workday, "Lime")
	unreachable.End = nearEF
	_, err = matcher.MatchTrip(unreachable)
	assert.Equal(t, REASON_NO_PATH, SkipReason(err))

	degenerate := abcTrip(net, workday, "Lime")
	degenerate.End = degenerate.Start
	_, err = matcher.MatchTrip(degenerate)
	assert.Equal(t, REASON_DEGENERATE, SkipReason(err))

	badPoint := abcTrip(net, workday, "Lime")
	badPoint.Start.Lat = math.NaN()
	_, err = matcher.MatchTrip(badPoint)
	assert.Equal(t, REASON_PARSE, SkipReason(err))
	assert.False(t, IsFatal(err))
}

func TestMatchTripWithinSegment(t *testing.T) {
	net := chainNetwork()
	matcher, err := NewMatcher(net)
	require.NoError(t, err)
	// Both ends snap to AB: path goes between its closest vertices A and B
	trip := abcTrip(net, workday, "Lime")
	trip.End = nearA2
	trip.ReportedDistance = net.Segments()[0].LengthMeters
	result, err := matcher.MatchTrip(trip)
	require.NoError(t, err)
	assert.Equal(t, result.StartSegment, result.EndSegment)
	assert.Equal(t, []SegmentID{0}, result.SegmentIDs)
}

// countingFinder counts shortest path queries
type countingFinder struct {
	inner PathFinder
	calls atomic.Int64
}

func (finder *countingFinder) ShortestPath(source, target NodeID) (Path, error) {
	finder.calls.Add(1)
	return finder.inner.ShortestPath(source, target)
}

// singleSegmentNetwork is one segment A(0,0)-B(0,0.01)-C(0,0.02)
func singleSegmentNetwork() *RoadNetwork {
	net := NewRoadNetwork()
	net.AddSegment("footway", "ABC", orb.LineString{{0, 0}, {0, 0.01}, {0, 0.02}})
	return net
}

func singleSegmentTrip(net *RoadNetwork) Trip {
	return Trip{
		Row:              1,
		StartTime:        workday,
		EndTime:          workday.Add(10 * time.Minute),
		Start:            GeoPoint{Lat: 0.0001, Lon: 0.0001},
		End:              GeoPoint{Lat: 0.0199, Lon: 0.0001},
		ReportedDistance: net.Segments()[0].LengthMeters,
		Vendor:           VENDOR_LIME,
		VendorTag:        "Lime",
	}
}

func TestRunSingleSegmentTrip(t *testing.T) {
	net := singleSegmentNetwork()
	matcher, err := NewMatcher(net)
	require.NoError(t, err)

	result, err := matcher.MatchTrip(singleSegmentTrip(net))
	require.NoError(t, err)
	assert.Len(t, result.Path, 3)
	assert.Equal(t, []SegmentID{0}, result.SegmentIDs)
	assert.InDelta(t, 0, result.ErrorRatio, 1e-9)

	stats, err := matcher.Run(context.Background(), tripsSource(singleSegmentTrip(net)), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(1), net.Count(0, COUNTER_WORK))
	assert.Equal(t, int64(0), net.Count(0, COUNTER_FREE))
	assert.Equal(t, int64(1), net.Count(0, COUNTER_LIME))
}

func TestRunSingleSegmentTripDistanceOff(t *testing.T) {
	net := singleSegmentNetwork()
	matcher, err := NewMatcher(net)
	require.NoError(t, err)

	trip := singleSegmentTrip(net)
	trip.ReportedDistance *= 1.5
	stats, err := matcher.Run(context.Background(), tripsSource(trip), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Accepted)
	assert.Equal(t, map[string]int64{REASON_DISTANCE_MISMATCH: 1}, stats.Skipped)
	assert.Equal(t, int64(0), net.Total(COUNTER_WORK)+net.Total(COUNTER_FREE))
}

func TestRunDegenerateSkipsPathSearch(t *testing.T) {
	net := singleSegmentNetwork()
	matcher, err := NewMatcher(net)
	require.NoError(t, err)
	finder := &countingFinder{inner: matcher.finder}
	matcher.finder = finder

	trip := singleSegmentTrip(net)
	trip.End = trip.Start
	stats, err := matcher.Run(context.Background(), tripsSource(trip), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{REASON_DEGENERATE: 1}, stats.Skipped)
	assert.Equal(t, int64(0), finder.calls.Load())
	assert.Equal(t, int64(0), net.Total(COUNTER_WORK)+net.Total(COUNTER_FREE))

	_, err = matcher.MatchTrip(singleSegmentTrip(net))
	require.NoError(t, err)
	assert.Equal(t, int64(1), finder.calls.Load())
}

func TestRunBadCoordinatesAreSkipped(t *testing.T) {
	net := chainNetwork()
	matcher, err := NewMatcher(net, WithWorkers(2))
	require.NoError(t, err)
	bad := abcTrip(net, workday, "Lime")
	bad.Start.Lat = math.NaN()
	infinite := abcTrip(net, workday, "Lime")
	infinite.ReportedDistance = math.Inf(1)
	stats, err := matcher.Run(context.Background(), tripsSource(bad, infinite, abcTrip(net, workday, "Lime")), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, map[string]int64{REASON_PARSE: 1, REASON_DISTANCE_MISMATCH: 1}, stats.Skipped)
	assert.Equal(t, int64(1), net.Count(0, COUNTER_WORK))
}

func TestNewMatcherEmptyNetwork(t *testing.T) {
	_, err := NewMatcher(NewRoadNetwork())
	var fatalErr *FatalInputError
	assert.True(t, errors.As(err, &fatalErr))
	assert.True(t, IsFatal(err))
}

func TestRunAccumulates(t *testing.T) {
	net := chainNetwork()
	collector := NewCollector()
	matcher, err := NewMatcher(net, WithWorkers(4), WithCollector(collector))
	require.NoError(t, err)

	trips := make([]Trip, 0, 100)
	for i := 0; i < 100; i++ {
		start := workday
		if i%4 == 0 {
			start = weekend
		}
		vendor := "Lime"
		if i%2 == 1 {
			vendor = "Bird"
		}
		trip := abcTrip(net, start, vendor)
		trip.Row = i + 1
		trips = append(trips, trip)
	}
	stats, err := matcher.Run(context.Background(), tripsSource(trips...), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Read)
	assert.Equal(t, int64(100), stats.Accepted)
	assert.Equal(t, int64(0), stats.SkippedTotal())

	for _, id := range []SegmentID{0, 1} {
		assert.Equal(t, int64(75), net.Count(id, COUNTER_WORK))
		assert.Equal(t, int64(25), net.Count(id, COUNTER_FREE))
		assert.Equal(t, int64(50), net.Count(id, COUNTER_LIME))
		assert.Equal(t, stats.Accepted, net.Count(id, COUNTER_WORK)+net.Count(id, COUNTER_FREE))
	}
	assert.Equal(t, int64(0), net.Count(2, COUNTER_WORK)+net.Count(2, COUNTER_FREE))

	values, err := collector.Gather()
	require.NoError(t, err)
	assert.Equal(t, 100.0, values["roadusage_trips_read_total"])
	assert.Equal(t, 100.0, values["roadusage_trips_accepted_total"])
	assert.Equal(t, 4.0, values["roadusage_workers"])
}

func TestRunSkipsAndCounts(t *testing.T) {
	net := chainNetwork()
	matcher, err := NewMatcher(net, WithWorkers(3))
	require.NoError(t, err)
	dateRange, err := ParseDateRange("01/04/2023", "30/04/2023", time.UTC)
	require.NoError(t, err)

	good := abcTrip(net, workday, "Lyft")
	unreachable := abcTrip(net, workday, "Lyft")
	unreachable.End = nearEF
	mismatch := abcTrip(net, workday, "Lyft")
	mismatch.ReportedDistance *= 3
	outdated := abcTrip(net, time.Date(2022, time.April, 4, 8, 0, 0, 0, time.UTC), "Lyft")

	source := &sliceSource{items: []sourceItem{
		{trip: good},
		{err: &ParseError{Row: 2, Field: "start_time", Err: errors.New("bad time")}},
		{trip: unreachable},
		{err: &MissingFieldError{Row: 4, Field: "end_lon"}},
		{trip: mismatch},
		{trip: outdated},
		{trip: good},
	}}
	stats, err := matcher.Run(context.Background(), source, dateRange)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Read)
	assert.Equal(t, int64(2), stats.Accepted)
	assert.Equal(t, map[string]int64{
		REASON_PARSE:             1,
		REASON_NO_PATH:           1,
		REASON_MISSING_FIELD:     1,
		REASON_DISTANCE_MISMATCH: 1,
		REASON_OUT_OF_RANGE:      1,
	}, stats.Skipped)
	assert.Equal(t, stats.Read, stats.Accepted+stats.SkippedTotal())
	assert.Equal(t, int64(2), net.Count(0, COUNTER_LYFT))
}

func TestRunFatalSourceError(t *testing.T) {
	net := chainNetwork()
	matcher, err := NewMatcher(net, WithWorkers(2))
	require.NoError(t, err)
	source := &sliceSource{items: []sourceItem{
		{trip: abcTrip(net, workday, "Lime")},
		{err: errors.New("disk is gone")},
		{trip: abcTrip(net, workday, "Lime")},
	}}
	_, err = matcher.Run(context.Background(), source, DateRange{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk is gone")
}

func TestRunBrokenGraph(t *testing.T) {
	net := chainNetwork()
	matcher, err := NewMatcher(net)
	require.NoError(t, err)
	for i := range matcher.Graph().edges {
		matcher.Graph().edges[i].SegmentID = -1
	}
	_, err = matcher.Run(context.Background(), tripsSource(abcTrip(net, workday, "Lime")), DateRange{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnannotatedEdge))
}

func TestRunCanceled(t *testing.T) {
	net := chainNetwork()
	matcher, err := NewMatcher(net)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = matcher.Run(ctx, tripsSource(abcTrip(net, workday, "Lime")), DateRange{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int64(0), net.Total(COUNTER_WORK))
}
