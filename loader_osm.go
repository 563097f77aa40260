package roadusage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const osmEntityName = "highway"

type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// wayRaw is OSM way which is going to become road segment
type wayRaw struct {
	ID    osm.WayID
	Kind  string
	Name  string
	Nodes []osm.NodeID
}

func newOSMScanner(filename string, file io.Reader) (OSMScanner, error) {
	// Guess file extension and prepare correct scanner
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".osm", ".xml":
		return osmxml.New(context.Background(), file), nil
	case ".pbf":
		return osmpbf.New(context.Background(), file, 4), nil
	default:
		return nil, fmt.Errorf("File extension '%s' for file '%s' is not handled yet", ext, filename)
	}
}

// readOSM reads ways tagged with 'highway'. Value of the tag is kind of segment
func (loader *NetworkLoader) readOSM() ([]segmentRaw, error) {
	file, err := os.Open(loader.filename)
	if err != nil {
		return nil, errors.Wrap(err, "File open")
	}
	defer file.Close()

	/* Process ways */
	st := time.Now()
	ways := []wayRaw{}
	nodesSeen := make(map[osm.NodeID]struct{})
	{
		scannerWays, err := newOSMScanner(loader.filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerWays.Close()

		for scannerWays.Scan() {
			obj := scannerWays.Object()
			if obj.ObjectID().Type() != "way" {
				continue
			}
			way := obj.(*osm.Way)
			kind := way.Tags.Find(osmEntityName)
			if kind == "" {
				continue
			}
			preparedWay := wayRaw{
				ID:    way.ID,
				Kind:  kind,
				Name:  way.Tags.Find("name"),
				Nodes: make([]osm.NodeID, 0, len(way.Nodes)),
			}
			for _, node := range way.Nodes {
				nodesSeen[node.ID] = struct{}{}
				preparedWay.Nodes = append(preparedWay.Nodes, node.ID)
			}
			ways = append(ways, preparedWay)
		}
		err = scannerWays.Err()
		if err != nil {
			return nil, errors.Wrap(err, "Scanner error on Ways")
		}
	}
	loader.logger.Debug("OSM ways scanned", zap.Int("ways", len(ways)), zap.Duration("took", time.Since(st)))

	// Seek file to start
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	/* Process nodes */
	st = time.Now()
	nodes := make(map[osm.NodeID]orb.Point, len(nodesSeen))
	{
		scannerNodes, err := newOSMScanner(loader.filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerNodes.Close()

		for scannerNodes.Scan() {
			obj := scannerNodes.Object()
			if obj.ObjectID().Type() != "node" {
				continue
			}
			node := obj.(*osm.Node)
			if _, ok := nodesSeen[node.ID]; ok {
				delete(nodesSeen, node.ID)
				nodes[node.ID] = orb.Point{node.Lon, node.Lat}
			}
		}
		err = scannerNodes.Err()
		if err != nil {
			return nil, errors.Wrap(err, "Scanner error on Nodes")
		}
	}
	loader.logger.Debug("OSM nodes scanned", zap.Int("nodes", len(nodes)), zap.Duration("took", time.Since(st)))

	segments := make([]segmentRaw, 0, len(ways))
	for _, way := range ways {
		line := make(orb.LineString, 0, len(way.Nodes))
		for _, nodeID := range way.Nodes {
			pt, ok := nodes[nodeID]
			if !ok {
				return nil, fmt.Errorf("Missing node with id: %d (way %d)", nodeID, way.ID)
			}
			line = append(line, pt)
		}
		segments = append(segments, segmentRaw{
			kind: way.Kind,
			name: way.Name,
			geom: line,
		})
	}
	return segments, nil
}
