package roadusage

import (
	"fmt"
	"os"
	"strings"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// readGeoJSON reads LineString and MultiLineString features of FeatureCollection
func (loader *NetworkLoader) readGeoJSON() ([]segmentRaw, error) {
	data, err := os.ReadFile(loader.filename)
	if err != nil {
		return nil, errors.Wrap(err, "File open")
	}
	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(err, "Can't unmarshal feature collection")
	}
	segments := []segmentRaw{}
	for i, feature := range collection.Features {
		if feature.Geometry == nil {
			continue
		}
		var lines [][][]float64
		switch {
		case feature.Geometry.IsLineString():
			lines = [][][]float64{feature.Geometry.LineString}
		case feature.Geometry.IsMultiLineString():
			lines = feature.Geometry.MultiLineString
		default:
			continue
		}
		kind := propertyString(feature.Properties, loader.kindField)
		name := propertyString(feature.Properties, loader.nameField)
		counts := make(map[string]int64)
		for key, value := range feature.Properties {
			if !strings.HasPrefix(key, CounterFieldPrefix) {
				continue
			}
			number, ok := value.(float64)
			if !ok {
				return nil, errors.Errorf("Counter '%s' of feature %d is not a number", key, i)
			}
			counts[strings.TrimPrefix(key, CounterFieldPrefix)] = int64(number)
		}
		for _, coords := range lines {
			line := make(orb.LineString, 0, len(coords))
			for _, pt := range coords {
				if len(pt) < 2 {
					return nil, errors.Errorf("Bad coordinate in feature %d", i)
				}
				line = append(line, orb.Point{pt[0], pt[1]})
			}
			segments = append(segments, segmentRaw{
				kind:   kind,
				name:   name,
				geom:   line,
				counts: counts,
			})
		}
	}
	return segments, nil
}

func propertyString(properties map[string]interface{}, key string) string {
	value, ok := properties[key]
	if !ok || value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", value)
}
