package roadusage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DEFAULT_KIND_FIELD = "TYPE"
	DEFAULT_NAME_FIELD = "NAME"
)

// NetworkLoader reads road network from file and prepares it for matching
type NetworkLoader struct {
	filename     string
	kindField    string
	nameField    string
	kinds        []string
	bound        *orb.Bound
	margin       float64
	counterNames []string
	logger       *zap.Logger
}

func (loader *NetworkLoader) String() string {
	bound := "none"
	if loader.bound != nil {
		bound = fmt.Sprintf("[%f, %f] - [%f, %f]", loader.bound.Min.X(), loader.bound.Min.Y(), loader.bound.Max.X(), loader.bound.Max.Y())
	}
	return fmt.Sprintf(`
Network loader parameters:
	filename: '%s'
	kind_field: '%s'
	name_field: '%s'
	kinds: '%s'
	bound: %s
	margin: %f
	counters: '%s'
	`,
		loader.filename,
		loader.kindField,
		loader.nameField,
		strings.Join(loader.kinds, ","),
		bound,
		loader.margin,
		strings.Join(loader.counterNames, ","),
	)
}

func NewNetworkLoader(fileName string, options ...func(*NetworkLoader)) *NetworkLoader {
	loader := &NetworkLoader{
		filename:     fileName,
		kindField:    DEFAULT_KIND_FIELD,
		nameField:    DEFAULT_NAME_FIELD,
		kinds:        DefaultRoadKinds,
		counterNames: DefaultCounterNames,
		logger:       zap.NewNop(),
	}
	for _, option := range options {
		option(loader)
	}
	return loader
}

// WithRoadKinds sets allowed road kinds. Empty list disables filtering
func WithRoadKinds(kinds []string) func(*NetworkLoader) {
	return func(loader *NetworkLoader) {
		loader.kinds = kinds
	}
}

func WithKindField(kindField string) func(*NetworkLoader) {
	return func(loader *NetworkLoader) {
		loader.kindField = kindField
	}
}

func WithNameField(nameField string) func(*NetworkLoader) {
	return func(loader *NetworkLoader) {
		loader.nameField = nameField
	}
}

// WithCropBound keeps only segments intersecting bound padded by margin (degrees)
func WithCropBound(bound orb.Bound, margin float64) func(*NetworkLoader) {
	return func(loader *NetworkLoader) {
		loader.bound = &bound
		loader.margin = margin
	}
}

func WithCounterNames(counterNames []string) func(*NetworkLoader) {
	return func(loader *NetworkLoader) {
		loader.counterNames = counterNames
	}
}

func WithLoaderLogger(logger *zap.Logger) func(*NetworkLoader) {
	return func(loader *NetworkLoader) {
		loader.logger = logger
	}
}

// LoadRoadNetwork is shorthand for NewNetworkLoader(fileName, options...).Load()
func LoadRoadNetwork(fileName string, options ...func(*NetworkLoader)) (*RoadNetwork, error) {
	return NewNetworkLoader(fileName, options...).Load()
}

// Load reads segments, filters them and assigns identifiers.
// Every error is *FatalInputError since nothing can be matched without network
func (loader *NetworkLoader) Load() (*RoadNetwork, error) {
	st := time.Now()
	var raw []segmentRaw
	var err error
	ext := strings.ToLower(filepath.Ext(loader.filename))
	switch ext {
	case ".shp":
		raw, err = loader.readShapefile()
	case ".geojson", ".json":
		raw, err = loader.readGeoJSON()
	case ".osm", ".xml", ".pbf":
		raw, err = loader.readOSM()
	case ".csv":
		raw, err = loader.readCSV()
	default:
		err = fmt.Errorf("File extension '%s' for file '%s' is not handled yet", ext, loader.filename)
	}
	if err != nil {
		return nil, fatalInput(loader.filename, errors.Wrap(err, "Can't read road network"))
	}
	net := loader.prepareNetwork(raw)
	if net.Len() == 0 {
		return nil, fatalInput(loader.filename, errors.New("No road segments left after filtering"))
	}
	loader.logger.Info("Road network loaded",
		zap.String("file", loader.filename),
		zap.Int("read", len(raw)),
		zap.Int("kept", net.Len()),
		zap.Duration("took", time.Since(st)),
	)
	return net, nil
}

func (loader *NetworkLoader) prepareNetwork(raw []segmentRaw) *RoadNetwork {
	filter := NewKindFilter(loader.kinds)
	var crop orb.Bound
	if loader.bound != nil {
		crop = loader.bound.Pad(loader.margin)
	}

	counterNames := make([]string, 0, len(loader.counterNames))
	counterNames = append(counterNames, loader.counterNames...)
	extra := map[string]struct{}{}
	for _, segment := range raw {
		for name := range segment.counts {
			extra[name] = struct{}{}
		}
	}
	extraNames := make([]string, 0, len(extra))
	for name := range extra {
		extraNames = append(extraNames, name)
	}
	sort.Strings(extraNames)
	counterNames = append(counterNames, extraNames...)

	net := NewRoadNetwork(counterNames...)
	for _, segment := range raw {
		if len(segment.geom) == 0 {
			continue
		}
		if !filter.CheckKind(segment.kind) {
			continue
		}
		if loader.bound != nil && !crop.Intersects(segment.geom.Bound()) {
			continue
		}
		added := net.AddSegment(segment.kind, segment.name, segment.geom)
		for name, value := range segment.counts {
			if value <= 0 {
				continue
			}
			idx, _ := net.counters.Index(name)
			added.counters[idx].Add(value)
		}
	}
	return net
}
