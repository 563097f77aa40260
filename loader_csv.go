package roadusage

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// readCSV reads network previously written by ExportToCSV
func (loader *NetworkLoader) readCSV() ([]segmentRaw, error) {
	file, err := os.Open(loader.filename)
	if err != nil {
		return nil, errors.Wrap(err, "File open")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "Can't read header")
	}
	kindIdx, nameIdx, geomIdx := -1, -1, -1
	countFields := make(map[int]string)
	for i, column := range header {
		switch {
		case column == csvKindColumn:
			kindIdx = i
		case column == csvNameColumn:
			nameIdx = i
		case column == csvGeomColumn:
			geomIdx = i
		case strings.HasPrefix(column, CounterFieldPrefix):
			countFields[i] = strings.TrimPrefix(column, CounterFieldPrefix)
		}
	}
	if kindIdx < 0 || geomIdx < 0 {
		return nil, errors.Errorf("CSV header must contain '%s' and '%s' columns", csvKindColumn, csvGeomColumn)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "Can't read records")
	}
	segments := make([]segmentRaw, 0, len(records))
	for row, record := range records {
		geom, err := wkt.UnmarshalLineString(record[geomIdx])
		if err != nil {
			return nil, errors.Wrapf(err, "Can't parse geometry at row %d", row+1)
		}
		segment := segmentRaw{
			kind:   record[kindIdx],
			geom:   geom,
			counts: make(map[string]int64, len(countFields)),
		}
		if nameIdx >= 0 {
			segment.name = record[nameIdx]
		}
		for idx, counter := range countFields {
			value, err := strconv.ParseInt(record[idx], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't parse counter '%s' at row %d", counter, row+1)
			}
			segment.counts[counter] = value
		}
		segments = append(segments, segment)
	}
	return segments, nil
}
