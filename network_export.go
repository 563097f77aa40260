package roadusage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

const (
	FORMAT_CSV     = "csv"
	FORMAT_GEOJSON = "geojson"
	FORMAT_SHP     = "shp"
)

const (
	csvIDColumn     = "id"
	csvKindColumn   = "kind"
	csvNameColumn   = "name"
	csvLengthColumn = "length_meters"
	csvGeomColumn   = "geom"
)

// maxDBFFieldName is length limit of field name in dBASE table
const maxDBFFieldName = 10

const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// FormatFromFilename guesses export format by file extension
func FormatFromFilename(fname string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fname))
	switch ext {
	case ".csv":
		return FORMAT_CSV, nil
	case ".geojson", ".json":
		return FORMAT_GEOJSON, nil
	case ".shp":
		return FORMAT_SHP, nil
	default:
		return "", fmt.Errorf("File extension '%s' for file '%s' is not handled yet", ext, fname)
	}
}

// Export writes network with counters. Empty format means that it is guessed from file extension.
// Output file appears only when everything has been written
func (net *RoadNetwork) Export(fname string, format string) error {
	if format == "" {
		guessed, err := FormatFromFilename(fname)
		if err != nil {
			return err
		}
		format = guessed
	}
	switch strings.ToLower(format) {
	case FORMAT_CSV:
		return net.ExportToCSV(fname)
	case FORMAT_GEOJSON:
		return net.ExportToGeoJSON(fname)
	case FORMAT_SHP:
		return net.ExportToShapefile(fname)
	default:
		return fmt.Errorf("Export format '%s' is not supported", format)
	}
}

// tempName returns name of temporary file placed next to the target one
func tempName(fname string) string {
	dir, base := filepath.Split(fname)
	return filepath.Join(dir, fmt.Sprintf(".%s.%d.tmp", strings.TrimSuffix(base, filepath.Ext(base)), os.Getpid()))
}

// ExportToCSV writes segments as 'Comma-Separated Values' with ';' as separator and WKT geometry
func (net *RoadNetwork) ExportToCSV(fname string) error {
	tmp := tempName(fname) + ".csv"
	err := net.writeCSV(tmp)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return errors.Wrap(os.Rename(tmp, fname), "Can't move file into place")
}

func (net *RoadNetwork) writeCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	err = net.writeCSVRecords(file)
	closeErr := file.Close()
	if err != nil {
		return err
	}
	return errors.Wrap(closeErr, "Can't close file")
}

func (net *RoadNetwork) writeCSVRecords(w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	counterNames := net.counters.Names()
	header := []string{csvIDColumn, csvKindColumn, csvNameColumn, csvLengthColumn}
	for _, name := range counterNames {
		header = append(header, FieldName(name))
	}
	header = append(header, csvGeomColumn)
	err := writer.Write(header)
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	for _, segment := range net.segments {
		record := []string{
			fmt.Sprintf("%d", segment.ID),
			segment.Kind,
			segment.Name,
			fmt.Sprintf("%f", segment.LengthMeters),
		}
		for idx := range counterNames {
			record = append(record, fmt.Sprintf("%d", segment.counters.get(idx)))
		}
		record = append(record, PrepareWKTLinestring(segment.Geom))
		err = writer.Write(record)
		if err != nil {
			return errors.Wrap(err, "Can't write segment")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "Can't flush segments")
}

// ExportToGeoJSON writes segments as FeatureCollection of LineStrings. Counters are stored in properties
func (net *RoadNetwork) ExportToGeoJSON(fname string) error {
	collection := geojson.NewFeatureCollection()
	counterNames := net.counters.Names()
	for _, segment := range net.segments {
		feature := geojson.NewLineStringFeature(prepareGeoJSONCoordinates(segment.Geom))
		feature.ID = int(segment.ID)
		feature.SetProperty(DEFAULT_KIND_FIELD, segment.Kind)
		feature.SetProperty(DEFAULT_NAME_FIELD, segment.Name)
		feature.SetProperty(csvLengthColumn, segment.LengthMeters)
		for idx, name := range counterNames {
			feature.SetProperty(FieldName(name), segment.counters.get(idx))
		}
		collection.AddFeature(feature)
	}
	b, err := collection.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Can't marshal feature collection")
	}
	tmp := tempName(fname) + ".geojson"
	err = os.WriteFile(tmp, b, 0644)
	if err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "Can't write file")
	}
	return errors.Wrap(os.Rename(tmp, fname), "Can't move file into place")
}

// ExportToShapefile writes segments as ESRI Shapefile (.shp, .shx, .dbf, .prj). Counters are numeric fields
func (net *RoadNetwork) ExportToShapefile(fname string) error {
	for _, name := range net.counters.Names() {
		if len(FieldName(name)) > maxDBFFieldName {
			return errors.Errorf("Counter '%s' doesn't fit into DBF field name (%d characters max)", name, maxDBFFieldName-len(CounterFieldPrefix))
		}
	}
	base := strings.TrimSuffix(fname, filepath.Ext(fname))
	tmpBase := tempName(fname)
	extensions := []string{".shp", ".shx", ".dbf", ".prj"}
	cleanup := func() {
		for _, ext := range extensions {
			os.Remove(tmpBase + ext)
		}
	}
	err := net.writeShapefile(tmpBase + ".shp")
	if err != nil {
		cleanup()
		return err
	}
	err = os.WriteFile(tmpBase+".prj", []byte(wgs84PRJ), 0644)
	if err != nil {
		cleanup()
		return errors.Wrap(err, "Can't write projection file")
	}
	for _, ext := range extensions {
		err = os.Rename(tmpBase+ext, base+ext)
		if err != nil {
			cleanup()
			return errors.Wrapf(err, "Can't move '%s' file into place", ext)
		}
	}
	return nil
}

func (net *RoadNetwork) writeShapefile(fname string) error {
	writer, err := shp.Create(fname, shp.POLYLINE)
	if err != nil {
		return errors.Wrap(err, "Can't create shapefile")
	}
	defer writer.Close()

	kindSize, nameSize := uint8(1), uint8(1)
	for _, segment := range net.segments {
		if uint8(min(254, len(segment.Kind))) > kindSize {
			kindSize = uint8(min(254, len(segment.Kind)))
		}
		if uint8(min(254, len(segment.Name))) > nameSize {
			nameSize = uint8(min(254, len(segment.Name)))
		}
	}
	counterNames := net.counters.Names()
	fields := []shp.Field{
		shp.NumberField("ID", 10),
		shp.StringField(DEFAULT_KIND_FIELD, kindSize),
		shp.StringField(DEFAULT_NAME_FIELD, nameSize),
		shp.FloatField("LENGTH", 16, 3),
	}
	for _, name := range counterNames {
		fields = append(fields, shp.NumberField(FieldName(name), 10))
	}
	err = writer.SetFields(fields)
	if err != nil {
		return errors.Wrap(err, "Can't set fields")
	}

	for _, segment := range net.segments {
		points := make([]shp.Point, len(segment.Geom))
		for i, pt := range segment.Geom {
			points[i] = shp.Point{X: pt.Lon(), Y: pt.Lat()}
		}
		n := int(writer.Write(shp.NewPolyLine([][]shp.Point{points})))
		attributes := []interface{}{int(segment.ID), segment.Kind, segment.Name, segment.LengthMeters}
		for idx := range counterNames {
			attributes = append(attributes, int(segment.counters.get(idx)))
		}
		for field, value := range attributes {
			err = writer.WriteAttribute(n, field, value)
			if err != nil {
				return errors.Wrapf(err, "Can't write attribute %d for segment %d", field, segment.ID)
			}
		}
	}
	return nil
}
