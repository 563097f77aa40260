package roadusage

import (
	"sync"
	"time"

	"github.com/LdDl/ch"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CHFinder answers shortest path queries with contraction hierarchies built over the same graph.
// Only the cheapest of parallel edges takes part in contraction, so costs equal to AStarFinder's ones
type CHFinder struct {
	graph *Graph
	// Queries reuse internal buffers of ch.Graph
	mu sync.Mutex
	ch ch.Graph
}

// NewCHFinder contracts graph. Could take a while for big networks
func NewCHFinder(graph *Graph, logger *zap.Logger) (*CHFinder, error) {
	finder := &CHFinder{
		graph: graph,
		ch:    ch.Graph{},
	}
	for i := 0; i < graph.NodesNum(); i++ {
		err := finder.ch.CreateVertex(int64(i))
		if err != nil {
			return nil, errors.Wrap(err, "Can not create vertex")
		}
	}
	for i := 0; i < graph.EdgesNum(); i++ {
		edge := graph.Edge(EdgeID(i))
		if edge.Source == edge.Target {
			continue
		}
		cheapest, _ := graph.cheapestEdgeBetween(edge.Source, edge.Target)
		if cheapest.ID != edge.ID {
			continue
		}
		err := finder.ch.AddEdge(int64(edge.Source), int64(edge.Target), edge.Weight)
		if err != nil {
			return nil, errors.Wrap(err, "Can not wrap Source and Target vertices as Edge")
		}
		err = finder.ch.AddEdge(int64(edge.Target), int64(edge.Source), edge.Weight)
		if err != nil {
			return nil, errors.Wrap(err, "Can not wrap Target and Source vertices as Edge")
		}
	}
	st := time.Now()
	finder.ch.PrepareContractionHierarchies()
	logger.Info("Contraction hierarchies prepared", zap.Int("vertices", graph.NodesNum()), zap.Duration("took", time.Since(st)))
	return finder, nil
}

// ShortestPath returns minimum-weight path
func (finder *CHFinder) ShortestPath(source, target NodeID) (Path, error) {
	n := NodeID(finder.graph.NodesNum())
	if source < 0 || source >= n || target < 0 || target >= n {
		return Path{}, &NoPathError{Source: source, Target: target}
	}
	if source == target {
		return Path{Nodes: []NodeID{source}, Edges: []EdgeID{}}, nil
	}
	finder.mu.Lock()
	cost, vertices := finder.ch.ShortestPath(int64(source), int64(target))
	finder.mu.Unlock()
	if cost < 0 || len(vertices) < 2 {
		return Path{}, &NoPathError{Source: source, Target: target}
	}
	path := Path{
		Nodes: make([]NodeID, len(vertices)),
		Edges: make([]EdgeID, 0, len(vertices)-1),
		Cost:  cost,
	}
	for i, vertex := range vertices {
		path.Nodes[i] = NodeID(vertex)
		if i == 0 {
			continue
		}
		edge, ok := finder.graph.cheapestEdgeBetween(path.Nodes[i-1], path.Nodes[i])
		if !ok {
			return Path{}, errors.Wrapf(ErrUnannotatedEdge, "No edge between nodes %d and %d", path.Nodes[i-1], path.Nodes[i])
		}
		path.Edges = append(path.Edges, edge.ID)
	}
	return path, nil
}
