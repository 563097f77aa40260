package roadusage

import (
	"container/heap"
	"sort"

	"github.com/pkg/errors"
)

type PathEngine uint16

const (
	ENGINE_ASTAR = PathEngine(iota + 1)
	ENGINE_CH
)

func (iotaIdx PathEngine) String() string {
	return [...]string{"astar", "ch"}[iotaIdx-1]
}

// ParsePathEngine returns engine by its name
func ParsePathEngine(str string) (PathEngine, error) {
	switch str {
	case "astar", "":
		return ENGINE_ASTAR, nil
	case "ch":
		return ENGINE_CH, nil
	default:
		return 0, errors.Errorf("Unknown path engine '%s'", str)
	}
}

// Path is sequence of nodes and edges between them
type Path struct {
	Nodes []NodeID
	Edges []EdgeID
	Cost  float64
}

// PathFinder searches minimum-weight path between two nodes.
// Returns *NoPathError when target is unreachable
type PathFinder interface {
	ShortestPath(source, target NodeID) (Path, error)
}

// AStarFinder is A* search with zero heuristic (equals to Dijkstra's algorithm).
// Traversal cost of an edge is its weight, i.e. total length of its segment
type AStarFinder struct {
	graph *Graph
}

func NewAStarFinder(graph *Graph) *AStarFinder {
	return &AStarFinder{graph: graph}
}

func (finder *AStarFinder) heuristic(a, b NodeID) float64 {
	return 0
}

// ShortestPath returns minimum-weight path. Equal-cost frontier nodes are expanded in discovery order
func (finder *AStarFinder) ShortestPath(source, target NodeID) (Path, error) {
	n := NodeID(finder.graph.NodesNum())
	if source < 0 || source >= n || target < 0 || target >= n {
		return Path{}, &NoPathError{Source: source, Target: target}
	}
	if source == target {
		return Path{Nodes: []NodeID{source}, Edges: []EdgeID{}}, nil
	}

	gScore := map[NodeID]float64{source: 0}
	cameFrom := make(map[NodeID]EdgeID)
	closed := make(map[NodeID]struct{})

	seq := 0
	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{node: source, priority: finder.heuristic(source, target), seq: seq})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		current := item.node
		if current == target {
			return finder.reconstructPath(cameFrom, source, target, gScore[target]), nil
		}
		if _, ok := closed[current]; ok {
			continue
		}
		closed[current] = struct{}{}
		for _, edgeID := range finder.graph.IncidentEdges(current) {
			edge := finder.graph.Edge(edgeID)
			neighbor := edge.Other(current)
			if _, ok := closed[neighbor]; ok {
				continue
			}
			tentative := gScore[current] + edge.Weight
			if old, ok := gScore[neighbor]; !ok || tentative < old {
				cameFrom[neighbor] = edgeID
				gScore[neighbor] = tentative
				seq++
				heap.Push(pq, &pqItem{node: neighbor, priority: tentative + finder.heuristic(neighbor, target), seq: seq})
			}
		}
	}
	return Path{}, &NoPathError{Source: source, Target: target}
}

func (finder *AStarFinder) reconstructPath(cameFrom map[NodeID]EdgeID, source, target NodeID, cost float64) Path {
	nodes := []NodeID{target}
	edges := []EdgeID{}
	current := target
	for current != source {
		edgeID := cameFrom[current]
		edges = append(edges, edgeID)
		current = finder.graph.Edge(edgeID).Other(current)
		nodes = append(nodes, current)
	}
	reverseNodes(nodes)
	reverseEdges(edges)
	return Path{Nodes: nodes, Edges: edges, Cost: cost}
}

// PathSegments returns distinct identifiers of segments covering path (ascending)
func PathSegments(graph *Graph, path Path) ([]SegmentID, error) {
	if len(path.Edges) != len(path.Nodes)-1 && len(path.Nodes) > 0 {
		return nil, errors.Errorf("Path has %d nodes but %d edges", len(path.Nodes), len(path.Edges))
	}
	seen := make(map[SegmentID]struct{}, len(path.Edges))
	ids := make([]SegmentID, 0, len(path.Edges))
	for i, edgeID := range path.Edges {
		edge := graph.Edge(edgeID)
		if edge.SegmentID < 0 {
			return nil, errors.Wrapf(ErrUnannotatedEdge, "Edge between nodes %d and %d", path.Nodes[i], path.Nodes[i+1])
		}
		if _, ok := seen[edge.SegmentID]; ok {
			continue
		}
		seen[edge.SegmentID] = struct{}{}
		ids = append(ids, edge.SegmentID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func reverseNodes(pts []NodeID) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

func reverseEdges(pts []EdgeID) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

type pqItem struct {
	node     NodeID
	priority float64
	seq      int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority == pq[j].priority {
		return pq[i].seq < pq[j].seq
	}
	return pq[i].priority < pq[j].priority
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}
