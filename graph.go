package roadusage

import (
	"github.com/paulmach/orb"
)

// DEFAULT_NODE_PRECISION is number of decimal digits of degrees used to intern coordinates (~0.1 mm)
const DEFAULT_NODE_PRECISION = 9

type NodeID int64

type EdgeID int64

// Edge connects two consecutive vertices of a segment.
// Weight is total length of the segment, not the length between two vertices
type Edge struct {
	ID        EdgeID
	Source    NodeID
	Target    NodeID
	SegmentID SegmentID
	Weight    float64
}

// Other returns opposite end of the edge
func (edge *Edge) Other(node NodeID) NodeID {
	if edge.Source == node {
		return edge.Target
	}
	return edge.Source
}

type nodeKey struct {
	lon int64
	lat int64
}

type nodePair struct {
	a NodeID
	b NodeID
}

func makeNodePair(a, b NodeID) nodePair {
	if a > b {
		a, b = b, a
	}
	return nodePair{a, b}
}

// Graph is weighted undirected graph. Nodes are distinct coordinates of segments vertices.
// Graph is read-only after building and safe for concurrent use
type Graph struct {
	precision int
	keys      map[nodeKey]NodeID
	nodes     []orb.Point
	edges     []Edge
	adjacency [][]EdgeID
	pairs     map[nodePair][]EdgeID
}

// BuildGraph prepares graph from segments. Nodes are interned coordinates rounded to given number of decimal digits.
// Segments with less than 2 vertices are skipped
func BuildGraph(segments []*RoadSegment, precision int) *Graph {
	graph := &Graph{
		precision: precision,
		keys:      make(map[nodeKey]NodeID),
		nodes:     make([]orb.Point, 0),
		edges:     make([]Edge, 0),
		adjacency: make([][]EdgeID, 0),
		pairs:     make(map[nodePair][]EdgeID),
	}
	for _, segment := range segments {
		if len(segment.Geom) < 2 {
			continue
		}
		for i := 0; i < len(segment.Geom)-1; i++ {
			source := graph.internNode(segment.Geom[i])
			target := graph.internNode(segment.Geom[i+1])
			graph.addEdge(source, target, segment.ID, segment.LengthMeters)
		}
	}
	return graph
}

func (graph *Graph) key(pt orb.Point) nodeKey {
	return nodeKey{
		lon: roundCoordinate(pt.Lon(), graph.precision),
		lat: roundCoordinate(pt.Lat(), graph.precision),
	}
}

func (graph *Graph) internNode(pt orb.Point) NodeID {
	key := graph.key(pt)
	if id, ok := graph.keys[key]; ok {
		return id
	}
	id := NodeID(len(graph.nodes))
	graph.keys[key] = id
	graph.nodes = append(graph.nodes, pt)
	graph.adjacency = append(graph.adjacency, make([]EdgeID, 0, 2))
	return id
}

func (graph *Graph) addEdge(source, target NodeID, segmentID SegmentID, weight float64) {
	id := EdgeID(len(graph.edges))
	graph.edges = append(graph.edges, Edge{
		ID:        id,
		Source:    source,
		Target:    target,
		SegmentID: segmentID,
		Weight:    weight,
	})
	graph.adjacency[source] = append(graph.adjacency[source], id)
	if target != source {
		graph.adjacency[target] = append(graph.adjacency[target], id)
	}
	pair := makeNodePair(source, target)
	graph.pairs[pair] = append(graph.pairs[pair], id)
}

// NodeByPoint returns node for given coordinate
func (graph *Graph) NodeByPoint(pt orb.Point) (NodeID, bool) {
	id, ok := graph.keys[graph.key(pt)]
	return id, ok
}

// Point returns coordinate of node
func (graph *Graph) Point(id NodeID) orb.Point {
	return graph.nodes[id]
}

// Points returns coordinates for sequence of nodes
func (graph *Graph) Points(path []NodeID) []orb.Point {
	pts := make([]orb.Point, len(path))
	for i, id := range path {
		pts[i] = graph.nodes[id]
	}
	return pts
}

// Edge returns edge by its identifier
func (graph *Graph) Edge(id EdgeID) *Edge {
	return &graph.edges[id]
}

// IncidentEdges returns edges touching node in insertion order
func (graph *Graph) IncidentEdges(id NodeID) []EdgeID {
	return graph.adjacency[id]
}

// EdgesBetween returns every edge connecting two nodes. Overlapping segments give several edges
func (graph *Graph) EdgesBetween(a, b NodeID) []*Edge {
	ids := graph.pairs[makeNodePair(a, b)]
	edges := make([]*Edge, len(ids))
	for i, id := range ids {
		edges[i] = &graph.edges[id]
	}
	return edges
}

// cheapestEdgeBetween returns edge with minimal weight between two nodes. The first added wins on equal weights
func (graph *Graph) cheapestEdgeBetween(a, b NodeID) (*Edge, bool) {
	var best *Edge
	for _, edge := range graph.EdgesBetween(a, b) {
		if best == nil || edge.Weight < best.Weight {
			best = edge
		}
	}
	return best, best != nil
}

// NodesNum returns number of nodes
func (graph *Graph) NodesNum() int {
	return len(graph.nodes)
}

// EdgesNum returns number of edges
func (graph *Graph) EdgesNum() int {
	return len(graph.edges)
}
