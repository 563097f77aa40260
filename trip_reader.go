package roadusage

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TripSource is stream of trips. Per-row problems are returned as skippable errors;
// io.EOF ends the stream; any other error is fatal
type TripSource interface {
	Next() (Trip, error)
}

// TripColumns are zero-based positions of trip fields in a row
type TripColumns struct {
	StartTime int `yaml:"start_time"`
	EndTime   int `yaml:"end_time"`
	Distance  int `yaml:"distance"`
	Vendor    int `yaml:"vendor"`
	StartLat  int `yaml:"start_lat"`
	StartLon  int `yaml:"start_lon"`
	EndLat    int `yaml:"end_lat"`
	EndLon    int `yaml:"end_lon"`
}

// DefaultTripColumns is layout of Chicago e-scooter trips dataset
var DefaultTripColumns = TripColumns{
	StartTime: 1,
	EndTime:   2,
	Distance:  3,
	Vendor:    5,
	StartLat:  10,
	StartLon:  11,
	EndLat:    13,
	EndLon:    14,
}

func (columns TripColumns) max() int {
	values := []int{columns.StartTime, columns.EndTime, columns.Distance, columns.Vendor, columns.StartLat, columns.StartLon, columns.EndLat, columns.EndLon}
	result := values[0]
	for _, v := range values[1:] {
		result = maxInt(result, v)
	}
	return result
}

// resolve looks for well-known column names in header. Columns which are not found keep their positions
func (columns TripColumns) resolve(header []string) TripColumns {
	resolved := columns
	byName := map[string]*int{
		"start time":               &resolved.StartTime,
		"end time":                 &resolved.EndTime,
		"trip distance":            &resolved.Distance,
		"vendor":                   &resolved.Vendor,
		"start centroid latitude":  &resolved.StartLat,
		"start centroid longitude": &resolved.StartLon,
		"end centroid latitude":    &resolved.EndLat,
		"end centroid longitude":   &resolved.EndLon,
	}
	for i, column := range header {
		if ptr, ok := byName[strings.ToLower(strings.TrimSpace(column))]; ok {
			*ptr = i
		}
	}
	return resolved
}

// TripReader reads trips from 'Comma-Separated Values' with header row
type TripReader struct {
	reader     *csv.Reader
	columns    TripColumns
	timeLayout string
	location   *time.Location
	rowLimit   int
	rows       int
}

func WithTripColumns(columns TripColumns) func(*TripReader) {
	return func(reader *TripReader) {
		reader.columns = columns
	}
}

func WithTimeLayout(layout string) func(*TripReader) {
	return func(reader *TripReader) {
		reader.timeLayout = layout
	}
}

func WithTimeLocation(loc *time.Location) func(*TripReader) {
	return func(reader *TripReader) {
		reader.location = loc
	}
}

// WithRowLimit limits number of data rows to read. Zero means no limit
func WithRowLimit(limit int) func(*TripReader) {
	return func(reader *TripReader) {
		reader.rowLimit = limit
	}
}

// NewTripReader reads header and prepares stream of trips
func NewTripReader(r io.Reader, options ...func(*TripReader)) (*TripReader, error) {
	reader := &TripReader{
		reader:     csv.NewReader(r),
		columns:    DefaultTripColumns,
		timeLayout: TRIP_TIME_LAYOUT,
		location:   time.UTC,
	}
	reader.reader.FieldsPerRecord = -1
	reader.reader.LazyQuotes = true
	reader.reader.ReuseRecord = true
	for _, option := range options {
		option(reader)
	}
	header, err := reader.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("Trips file is empty")
		}
		return nil, errors.Wrap(err, "Can't read header")
	}
	reader.columns = reader.columns.resolve(header)
	return reader, nil
}

// Next returns next trip
func (reader *TripReader) Next() (Trip, error) {
	if reader.rowLimit > 0 && reader.rows >= reader.rowLimit {
		return Trip{}, io.EOF
	}
	record, err := reader.reader.Read()
	if err == io.EOF {
		return Trip{}, io.EOF
	}
	reader.rows++
	row := reader.rows
	if err != nil {
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			return Trip{}, &ParseError{Row: row, Field: "row", Err: err}
		}
		return Trip{}, errors.Wrap(err, "Can't read trips")
	}
	return reader.parseRecord(row, record)
}

func (reader *TripReader) parseRecord(row int, record []string) (Trip, error) {
	columns := reader.columns
	if len(record) <= columns.max() {
		return Trip{}, &ParseError{Row: row, Field: "row", Err: errors.Errorf("Expected at least %d fields, got %d", columns.max()+1, len(record))}
	}
	trip := Trip{Row: row}
	var err error
	trip.StartTime, err = time.ParseInLocation(reader.timeLayout, strings.TrimSpace(record[columns.StartTime]), reader.location)
	if err != nil {
		return Trip{}, &ParseError{Row: row, Field: "start_time", Err: err}
	}
	trip.EndTime, err = time.ParseInLocation(reader.timeLayout, strings.TrimSpace(record[columns.EndTime]), reader.location)
	if err != nil {
		return Trip{}, &ParseError{Row: row, Field: "end_time", Err: err}
	}
	trip.ReportedDistance, err = strconv.ParseFloat(strings.TrimSpace(record[columns.Distance]), 64)
	if err != nil {
		return Trip{}, &ParseError{Row: row, Field: "distance", Err: err}
	}
	if !isFinite(trip.ReportedDistance) {
		return Trip{}, &ParseError{Row: row, Field: "distance", Err: errors.Errorf("Not a finite number: %f", trip.ReportedDistance)}
	}
	trip.VendorTag = record[columns.Vendor]
	trip.Vendor = ParseVendor(trip.VendorTag)

	coordinates := []struct {
		name  string
		idx   int
		limit float64
		value *float64
	}{
		{"start_lat", columns.StartLat, 90, &trip.Start.Lat},
		{"start_lon", columns.StartLon, 180, &trip.Start.Lon},
		{"end_lat", columns.EndLat, 90, &trip.End.Lat},
		{"end_lon", columns.EndLon, 180, &trip.End.Lon},
	}
	for _, coordinate := range coordinates {
		text := strings.TrimSpace(record[coordinate.idx])
		if text == "" {
			return Trip{}, &MissingFieldError{Row: row, Field: coordinate.name}
		}
		*coordinate.value, err = strconv.ParseFloat(text, 64)
		if err != nil {
			return Trip{}, &ParseError{Row: row, Field: coordinate.name, Err: err}
		}
		if !isFinite(*coordinate.value) || math.Abs(*coordinate.value) > coordinate.limit {
			return Trip{}, &ParseError{Row: row, Field: coordinate.name, Err: errors.Errorf("Value %f is out of range", *coordinate.value)}
		}
	}
	return trip, nil
}
