package roadusage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MatchResult is outcome of matching single trip
type MatchResult struct {
	StartSegment SegmentID
	EndSegment   SegmentID
	Path         []NodeID
	SegmentIDs   []SegmentID
	PathDistance float64
	ErrorRatio   float64
}

// Stats is summary of a run. Accepted plus all skipped equals Read
type Stats struct {
	Read     int64
	Accepted int64
	Skipped  map[string]int64
}

// SkippedTotal returns number of skipped trips for every reason
func (stats Stats) SkippedTotal() int64 {
	total := int64(0)
	for _, n := range stats.Skipped {
		total += n
	}
	return total
}

func (stats Stats) String() string {
	return fmt.Sprintf("read: %d, accepted: %d, skipped: %v", stats.Read, stats.Accepted, stats.Skipped)
}

// Matcher snaps trips onto road network and accumulates segments usage
type Matcher struct {
	network     *RoadNetwork
	graph       *Graph
	locator     *SegmentLocator
	finder      PathFinder
	validator   DistanceValidator
	accumulator *UsageAccumulator

	workers       int
	maxErrorRatio float64
	engine        PathEngine
	cellSize      float64
	nodePrecision int
	logger        *zap.Logger
	collector     *Collector
}

func (m *Matcher) String() string {
	return fmt.Sprintf(`
Matcher parameters:
	segments: %d
	nodes: %d
	edges: %d
	workers: %d
	max_error_ratio: %f
	engine: '%s'
	grid_cell_size: %f
	node_precision: %d
	`,
		m.network.Len(),
		m.graph.NodesNum(),
		m.graph.EdgesNum(),
		m.workers,
		m.maxErrorRatio,
		m.engine,
		m.cellSize,
		m.nodePrecision,
	)
}

func WithWorkers(workers int) func(*Matcher) {
	return func(m *Matcher) {
		m.workers = workers
	}
}

func WithMaxErrorRatio(maxErrorRatio float64) func(*Matcher) {
	return func(m *Matcher) {
		m.maxErrorRatio = maxErrorRatio
	}
}

func WithPathEngine(engine PathEngine) func(*Matcher) {
	return func(m *Matcher) {
		m.engine = engine
	}
}

// WithGridCellSize sets cell size (degrees) of locator's spatial index. Non-positive value means linear scan
func WithGridCellSize(cellSize float64) func(*Matcher) {
	return func(m *Matcher) {
		m.cellSize = cellSize
	}
}

func WithNodePrecision(precision int) func(*Matcher) {
	return func(m *Matcher) {
		m.nodePrecision = precision
	}
}

func WithLogger(logger *zap.Logger) func(*Matcher) {
	return func(m *Matcher) {
		m.logger = logger
	}
}

func WithCollector(collector *Collector) func(*Matcher) {
	return func(m *Matcher) {
		m.collector = collector
	}
}

// NewMatcher builds graph, spatial index and path engine over network
func NewMatcher(network *RoadNetwork, options ...func(*Matcher)) (*Matcher, error) {
	if network == nil || network.Len() == 0 {
		return nil, fatalInput("network", errors.New("Road network is empty"))
	}
	m := &Matcher{
		network:       network,
		workers:       1,
		maxErrorRatio: DEFAULT_MAX_ERROR_RATIO,
		engine:        ENGINE_ASTAR,
		cellSize:      DEFAULT_GRID_CELL_SIZE,
		nodePrecision: DEFAULT_NODE_PRECISION,
		logger:        zap.NewNop(),
	}
	for _, option := range options {
		option(m)
	}
	if m.workers < 1 {
		m.workers = 1
	}

	st := time.Now()
	m.graph = BuildGraph(network.Segments(), m.nodePrecision)
	if m.graph.EdgesNum() == 0 {
		return nil, fatalInput("network", errors.New("Road network has no segments with at least two vertices"))
	}
	m.logger.Info("Graph prepared", zap.Int("nodes", m.graph.NodesNum()), zap.Int("edges", m.graph.EdgesNum()), zap.Duration("took", time.Since(st)))

	m.locator = NewSegmentLocator(network.Segments(), m.cellSize)
	switch m.engine {
	case ENGINE_ASTAR:
		m.finder = NewAStarFinder(m.graph)
	case ENGINE_CH:
		finder, err := NewCHFinder(m.graph, m.logger)
		if err != nil {
			return nil, errors.Wrap(err, "Can't prepare contraction hierarchies")
		}
		m.finder = finder
	default:
		return nil, errors.Errorf("Unknown path engine %d", m.engine)
	}
	m.validator = NewDistanceValidator(m.maxErrorRatio)
	m.accumulator = NewUsageAccumulator(network)
	return m, nil
}

// Graph returns graph built from network
func (m *Matcher) Graph() *Graph {
	return m.graph
}

// MatchTrip locates nearest segments for both trip ends, searches path between vertices of those segments
// closest to the trip ends and validates path length against reported distance. Counters are not touched
func (m *Matcher) MatchTrip(trip Trip) (MatchResult, error) {
	if !trip.Start.IsValid() {
		return MatchResult{}, &ParseError{Row: trip.Row, Field: "start", Err: errors.Errorf("Bad coordinates (%s)", trip.Start)}
	}
	if !trip.End.IsValid() {
		return MatchResult{}, &ParseError{Row: trip.Row, Field: "end", Err: errors.Errorf("Bad coordinates (%s)", trip.End)}
	}
	if trip.IsDegenerate() {
		return MatchResult{}, &DegenerateTripError{Row: trip.Row}
	}
	startSegment, _, ok := m.locator.Nearest(trip.Start.Point())
	if !ok {
		return MatchResult{}, errors.New("Can't locate segment for start point")
	}
	endSegment, _, ok := m.locator.Nearest(trip.End.Point())
	if !ok {
		return MatchResult{}, errors.New("Can't locate segment for end point")
	}
	result := MatchResult{
		StartSegment: startSegment.ID,
		EndSegment:   endSegment.ID,
	}

	source, okSource := m.graph.NodeByPoint(nearestVertex(startSegment.Geom, trip.Start.Point()))
	target, okTarget := m.graph.NodeByPoint(nearestVertex(endSegment.Geom, trip.End.Point()))
	if !okSource || !okTarget {
		return result, &NoPathError{Source: -1, Target: -1}
	}

	st := time.Now()
	path, err := m.finder.ShortestPath(source, target)
	if m.collector != nil {
		m.collector.PathSearchDuration.Observe(time.Since(st).Seconds())
	}
	if err != nil {
		return result, err
	}
	result.Path = path.Nodes
	result.SegmentIDs, err = PathSegments(m.graph, path)
	if err != nil {
		return result, err
	}

	result.PathDistance, result.ErrorRatio, err = m.validator.Validate(m.graph.Points(path.Nodes), trip.ReportedDistance)
	if m.collector != nil && isFinite(result.ErrorRatio) {
		m.collector.ErrorRatio.Observe(result.ErrorRatio)
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// runState is shared between reader and workers of single run
type runState struct {
	read     atomic.Int64
	accepted atomic.Int64

	mu      sync.Mutex
	skipped map[string]int64
	err     error
	cancel  context.CancelFunc
}

func (state *runState) fail(err error) {
	state.mu.Lock()
	if state.err == nil {
		state.err = err
	}
	state.mu.Unlock()
	state.cancel()
}

func (state *runState) stats() Stats {
	state.mu.Lock()
	defer state.mu.Unlock()
	skipped := make(map[string]int64, len(state.skipped))
	for reason, n := range state.skipped {
		skipped[reason] = n
	}
	return Stats{
		Read:     state.read.Load(),
		Accepted: state.accepted.Load(),
		Skipped:  skipped,
	}
}

func (m *Matcher) skip(state *runState, err error, fields ...zap.Field) {
	reason := SkipReason(err)
	state.mu.Lock()
	state.skipped[reason]++
	state.mu.Unlock()
	if m.collector != nil {
		m.collector.TripsSkipped.WithLabelValues(reason).Inc()
	}
	fields = append(fields, zap.String("reason", reason), zap.Error(err))
	if reason == REASON_NO_PATH {
		m.logger.Warn("Trip skipped", fields...)
		return
	}
	m.logger.Debug("Trip skipped", fields...)
}

// Run reads trips from source and processes them with pool of workers. Trips outside of date range are skipped.
// Per-trip errors are counted and skipped; fatal errors (stream failure, broken graph, cancellation) stop the run
// and are returned. Counters already incremented stay in network, so caller must not persist it on error
func (m *Matcher) Run(ctx context.Context, source TripSource, dateRange DateRange) (Stats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	state := &runState{
		skipped: make(map[string]int64),
		cancel:  cancel,
	}
	if m.collector != nil {
		m.collector.Workers.Set(float64(m.workers))
	}

	st := time.Now()
	jobs := make(chan Trip, m.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.work(runCtx, state, jobs)
		}()
	}

	m.feed(runCtx, state, source, dateRange, jobs)
	close(jobs)
	wg.Wait()

	stats := state.stats()
	if state.err != nil {
		return stats, state.err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	m.logger.Info("Trips processed",
		zap.Int64("read", stats.Read),
		zap.Int64("accepted", stats.Accepted),
		zap.Any("skipped", stats.Skipped),
		zap.Duration("took", time.Since(st)),
	)
	return stats, nil
}

func (m *Matcher) feed(ctx context.Context, state *runState, source TripSource, dateRange DateRange, jobs chan<- Trip) {
	for ctx.Err() == nil {
		trip, err := source.Next()
		if err == io.EOF {
			return
		}
		state.read.Add(1)
		if m.collector != nil {
			m.collector.TripsRead.Inc()
		}
		if err != nil {
			if IsFatal(err) {
				state.fail(err)
				return
			}
			m.skip(state, err)
			continue
		}
		if !dateRange.ContainsTrip(trip) {
			m.skip(state, &outOfRangeError{Row: trip.Row}, zap.Int("row", trip.Row))
			continue
		}
		select {
		case jobs <- trip:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Matcher) work(ctx context.Context, state *runState, jobs <-chan Trip) {
	for trip := range jobs {
		if ctx.Err() != nil {
			continue
		}
		result, err := m.MatchTrip(trip)
		if err == nil {
			err = m.accumulator.Apply(result.SegmentIDs, trip)
		}
		if err != nil {
			if IsFatal(err) {
				state.fail(errors.Wrapf(err, "Trip at row %d", trip.Row))
				continue
			}
			m.skip(state, err, zap.Int("row", trip.Row), zap.String("start", PrepareWKTPoint(trip.Start)), zap.String("end", PrepareWKTPoint(trip.End)))
			continue
		}
		state.accepted.Add(1)
		if m.collector != nil {
			m.collector.TripsAccepted.Inc()
		}
	}
}
