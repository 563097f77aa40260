package roadusage

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nodeOf(t *testing.T, graph *Graph, pt orb.Point) NodeID {
	t.Helper()
	id, ok := graph.NodeByPoint(pt)
	require.True(t, ok, "no node at %v", pt)
	return id
}

func TestAStarChain(t *testing.T) {
	net := chainNetwork()
	graph := BuildGraph(net.Segments(), DEFAULT_NODE_PRECISION)
	finder := NewAStarFinder(graph)

	path, err := finder.ShortestPath(nodeOf(t, graph, ptA), nodeOf(t, graph, ptD))
	require.NoError(t, err)
	assert.Len(t, path.Nodes, 4)
	assert.Len(t, path.Edges, 3)
	expectedCost := net.Segments()[0].LengthMeters + net.Segments()[1].LengthMeters + net.Segments()[2].LengthMeters
	assert.InDelta(t, expectedCost, path.Cost, 1e-6)

	ids, err := PathSegments(graph, path)
	require.NoError(t, err)
	assert.Equal(t, []SegmentID{0, 1, 2}, ids)
}

func TestAStarUsesSegmentLength(t *testing.T) {
	// Direct route is a single segment of two edges and it is shorter than the detour, but each of its edges costs the whole segment length.
	// Detour through M consists of two short segments and wins
	target := orb.Point{0.02, 0}
	middle := orb.Point{0.01, 0.005}
	net := NewRoadNetwork()
	net.AddSegment("footway", "wiggly", orb.LineString{ptA, {0.01, 0.002}, target})
	net.AddSegment("footway", "AM", orb.LineString{ptA, middle})
	net.AddSegment("footway", "MT", orb.LineString{middle, target})
	graph := BuildGraph(net.Segments(), DEFAULT_NODE_PRECISION)
	finder := NewAStarFinder(graph)

	path, err := finder.ShortestPath(nodeOf(t, graph, ptA), nodeOf(t, graph, target))
	require.NoError(t, err)
	ids, err := PathSegments(graph, path)
	require.NoError(t, err)
	assert.Equal(t, []SegmentID{1, 2}, ids)
	assert.InDelta(t, net.Segments()[1].LengthMeters+net.Segments()[2].LengthMeters, path.Cost, 1e-6)
}

func TestAStarDeterministic(t *testing.T) {
	target := orb.Point{0.02, 0}
	up := orb.Point{0.01, 0.005}
	down := orb.Point{0.01, -0.005}
	net := NewRoadNetwork()
	net.AddSegment("footway", "", orb.LineString{ptA, up})
	net.AddSegment("footway", "", orb.LineString{up, target})
	net.AddSegment("footway", "", orb.LineString{ptA, down})
	net.AddSegment("footway", "", orb.LineString{down, target})
	graph := BuildGraph(net.Segments(), DEFAULT_NODE_PRECISION)
	finder := NewAStarFinder(graph)

	first, err := finder.ShortestPath(nodeOf(t, graph, ptA), nodeOf(t, graph, target))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		path, err := finder.ShortestPath(nodeOf(t, graph, ptA), nodeOf(t, graph, target))
		require.NoError(t, err)
		assert.Equal(t, first, path)
	}
}

func TestAStarSameNode(t *testing.T) {
	graph := BuildGraph(chainNetwork().Segments(), DEFAULT_NODE_PRECISION)
	a := nodeOf(t, graph, ptA)
	path, err := NewAStarFinder(graph).ShortestPath(a, a)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a}, path.Nodes)
	assert.Empty(t, path.Edges)
	ids, err := PathSegments(graph, path)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAStarNoPath(t *testing.T) {
	graph := BuildGraph(chainNetwork().Segments(), DEFAULT_NODE_PRECISION)
	_, err := NewAStarFinder(graph).ShortestPath(nodeOf(t, graph, ptA), nodeOf(t, graph, ptE))
	var noPathErr *NoPathError
	require.True(t, errors.As(err, &noPathErr))
	assert.Equal(t, REASON_NO_PATH, SkipReason(err))
	assert.False(t, IsFatal(err))

	_, err = NewAStarFinder(graph).ShortestPath(0, NodeID(graph.NodesNum()))
	assert.True(t, errors.As(err, &noPathErr))
}

func TestPathSegmentsUnannotatedEdge(t *testing.T) {
	graph := BuildGraph(chainNetwork().Segments(), DEFAULT_NODE_PRECISION)
	path, err := NewAStarFinder(graph).ShortestPath(nodeOf(t, graph, ptA), nodeOf(t, graph, ptC))
	require.NoError(t, err)
	graph.edges[path.Edges[1]].SegmentID = -1
	_, err = PathSegments(graph, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnannotatedEdge))
	assert.True(t, IsFatal(err))
}

func TestCHMatchesAStar(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	// Grid of streets with random jitter so paths are unique
	net := NewRoadNetwork()
	const size = 6
	pts := make([][]orb.Point, size)
	for i := range pts {
		pts[i] = make([]orb.Point, size)
		for j := range pts[i] {
			pts[i][j] = orb.Point{float64(i)*0.01 + rnd.Float64()*0.002, float64(j)*0.01 + rnd.Float64()*0.002}
		}
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i+1 < size {
				net.AddSegment("residential", "", orb.LineString{pts[i][j], pts[i+1][j]})
			}
			if j+1 < size {
				net.AddSegment("residential", "", orb.LineString{pts[i][j], pts[i][j+1]})
			}
		}
	}
	net.AddSegment("footway", "island", orb.LineString{ptE, ptF})
	graph := BuildGraph(net.Segments(), DEFAULT_NODE_PRECISION)
	astar := NewAStarFinder(graph)
	contracted, err := NewCHFinder(graph, zap.NewNop())
	require.NoError(t, err)

	island := nodeOf(t, graph, ptE)
	for i := 0; i < 50; i++ {
		source := NodeID(rnd.Intn(size * size))
		target := NodeID(rnd.Intn(size * size))
		expected, err := astar.ShortestPath(source, target)
		require.NoError(t, err)
		path, err := contracted.ShortestPath(source, target)
		require.NoError(t, err)
		assert.InDelta(t, expected.Cost, path.Cost, 1e-6)
		assert.Equal(t, source, path.Nodes[0])
		assert.Equal(t, target, path.Nodes[len(path.Nodes)-1])
		_, err = PathSegments(graph, path)
		require.NoError(t, err)
	}

	_, err = contracted.ShortestPath(0, island)
	var noPathErr *NoPathError
	assert.True(t, errors.As(err, &noPathErr))
}

func TestParsePathEngine(t *testing.T) {
	engine, err := ParsePathEngine("ch")
	require.NoError(t, err)
	assert.Equal(t, ENGINE_CH, engine)
	engine, err = ParsePathEngine("")
	require.NoError(t, err)
	assert.Equal(t, ENGINE_ASTAR, engine)
	assert.Equal(t, "astar", engine.String())
	_, err = ParsePathEngine("bellman-ford")
	assert.Error(t, err)
}
