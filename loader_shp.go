package roadusage

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// readShapefile reads polylines of ESRI Shapefile. Multi-part polylines produce one segment per part
func (loader *NetworkLoader) readShapefile() ([]segmentRaw, error) {
	reader, err := shp.Open(loader.filename)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open shapefile")
	}
	defer reader.Close()

	kindIdx, nameIdx := -1, -1
	countFields := make(map[int]string)
	for i, field := range reader.Fields() {
		fieldName := field.String()
		switch {
		case fieldName == loader.kindField:
			kindIdx = i
		case fieldName == loader.nameField:
			nameIdx = i
		case strings.HasPrefix(fieldName, CounterFieldPrefix):
			countFields[i] = strings.TrimPrefix(fieldName, CounterFieldPrefix)
		}
	}
	if kindIdx < 0 {
		return nil, errors.Errorf("No field '%s' in shapefile", loader.kindField)
	}

	segments := []segmentRaw{}
	for reader.Next() {
		n, shape := reader.Shape()
		polyline, ok := shape.(*shp.PolyLine)
		if !ok {
			continue
		}
		kind := strings.TrimSpace(reader.ReadAttribute(n, kindIdx))
		name := ""
		if nameIdx >= 0 {
			name = strings.TrimSpace(reader.ReadAttribute(n, nameIdx))
		}
		counts := make(map[string]int64, len(countFields))
		for idx, counter := range countFields {
			text := strings.TrimSpace(reader.ReadAttribute(n, idx))
			if text == "" {
				continue
			}
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't parse counter '%s' for shape %d", counter, n)
			}
			counts[counter] = int64(value)
		}
		for _, part := range polylineParts(polyline) {
			segments = append(segments, segmentRaw{
				kind:   kind,
				name:   name,
				geom:   part,
				counts: counts,
			})
		}
	}
	if reader.Err() != nil {
		return nil, errors.Wrap(reader.Err(), "Shapefile reader error")
	}
	return segments, nil
}

func polylineParts(polyline *shp.PolyLine) []orb.LineString {
	parts := make([]orb.LineString, 0, len(polyline.Parts))
	for i := range polyline.Parts {
		start := int(polyline.Parts[i])
		end := len(polyline.Points)
		if i+1 < len(polyline.Parts) {
			end = int(polyline.Parts[i+1])
		}
		line := make(orb.LineString, 0, end-start)
		for _, pt := range polyline.Points[start:end] {
			line = append(line, orb.Point{pt.X, pt.Y})
		}
		parts = append(parts, line)
	}
	return parts
}
