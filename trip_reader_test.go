package roadusage

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chicagoHeader = "Trip ID,Start Time,End Time,Trip Distance,Trip Duration,Vendor,Start Community Area Number,End Community Area Number,Start Community Area Name,End Community Area Name,Start Centroid Latitude,Start Centroid Longitude,Start Centroid Location,End Centroid Latitude,End Centroid Longitude,End Centroid Location"

func chicagoRow(id, start, end, distance, vendor, startLat, startLon, endLat, endLon string) string {
	return strings.Join([]string{
		id, start, end, distance, "600", vendor, "8", "32", "NEAR NORTH SIDE", "LOOP",
		startLat, startLon, "POINT (" + startLon + " " + startLat + ")",
		endLat, endLon, "POINT (" + endLon + " " + endLat + ")",
	}, ",")
}

func TestTripReader(t *testing.T) {
	data := strings.Join([]string{
		chicagoHeader,
		chicagoRow("a1", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "1500", "Lime", "41.892", "-87.633", "41.884", "-87.632"),
		chicagoRow("a2", "04/01/2023 11:30:00 PM", "04/02/2023 12:05:00 AM", "2200.5", "Bird", "41.892", "-87.633", "41.884", "-87.632"),
	}, "\n")
	reader, err := NewTripReader(strings.NewReader(data))
	require.NoError(t, err)

	trip, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, trip.Row)
	assert.Equal(t, time.Date(2023, time.April, 3, 7, 0, 0, 0, time.UTC), trip.StartTime)
	assert.Equal(t, time.Date(2023, time.April, 3, 7, 10, 0, 0, time.UTC), trip.EndTime)
	assert.Equal(t, 1500.0, trip.ReportedDistance)
	assert.Equal(t, VENDOR_LIME, trip.Vendor)
	assert.Equal(t, GeoPoint{Lat: 41.892, Lon: -87.633}, trip.Start)
	assert.Equal(t, GeoPoint{Lat: 41.884, Lon: -87.632}, trip.End)

	trip, err = reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, trip.Row)
	assert.Equal(t, 23, trip.StartTime.Hour())
	assert.Equal(t, 0, trip.EndTime.Hour())
	assert.Equal(t, VENDOR_UNKNOWN, trip.Vendor)
	assert.Equal(t, "Bird", trip.VendorTag)

	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestTripReaderSkippableErrors(t *testing.T) {
	data := strings.Join([]string{
		chicagoHeader,
		chicagoRow("b1", "not a time", "04/03/2023 07:10:00 AM", "1500", "Lime", "41.892", "-87.633", "41.884", "-87.632"),
		chicagoRow("b2", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "1500", "Lime", "", "", "41.884", "-87.632"),
		"b3,04/03/2023 07:00:00 AM,04/03/2023 07:10:00 AM",
		chicagoRow("b4", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "far", "Lime", "41.892", "-87.633", "41.884", "-87.632"),
		chicagoRow("b5", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "+Inf", "Lime", "41.892", "-87.633", "41.884", "-87.632"),
		chicagoRow("b6", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "1500", "Lime", "NaN", "-87.633", "41.884", "-87.632"),
		chicagoRow("b7", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "1500", "Lime", "41.892", "-200", "41.884", "-87.632"),
		chicagoRow("b8", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "1500", "Link", "41.892", "-87.633", "41.884", "-87.632"),
	}, "\n")
	reader, err := NewTripReader(strings.NewReader(data))
	require.NoError(t, err)

	_, err = reader.Next()
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "start_time", parseErr.Field)
	assert.Equal(t, 1, parseErr.Row)

	_, err = reader.Next()
	var missingErr *MissingFieldError
	require.True(t, errors.As(err, &missingErr))
	assert.Equal(t, "start_lat", missingErr.Field)
	assert.Equal(t, REASON_MISSING_FIELD, SkipReason(err))

	_, err = reader.Next()
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "row", parseErr.Field)

	_, err = reader.Next()
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "distance", parseErr.Field)
	assert.False(t, IsFatal(err))

	_, err = reader.Next()
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "distance", parseErr.Field)

	_, err = reader.Next()
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "start_lat", parseErr.Field)

	_, err = reader.Next()
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "start_lon", parseErr.Field)
	assert.False(t, IsFatal(err))

	// Reader keeps going after bad rows
	trip, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 8, trip.Row)
	assert.Equal(t, VENDOR_LINK, trip.Vendor)
}

func TestTripReaderRowLimit(t *testing.T) {
	row := chicagoRow("c", "04/03/2023 07:00:00 AM", "04/03/2023 07:10:00 AM", "1500", "Lime", "41.892", "-87.633", "41.884", "-87.632")
	data := strings.Join([]string{chicagoHeader, row, row, row}, "\n")
	reader, err := NewTripReader(strings.NewReader(data), WithRowLimit(2))
	require.NoError(t, err)
	count := 0
	for {
		_, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestTripReaderResolvesHeader(t *testing.T) {
	data := "End Centroid Longitude,End Centroid Latitude,Start Centroid Longitude,Start Centroid Latitude,Vendor,Trip Distance,End Time,Start Time\n" +
		"-87.632,41.884,-87.633,41.892,Lyft,900,2023-04-03 07:10,2023-04-03 07:00\n"
	loc := time.FixedZone("CDT", -5*3600)
	reader, err := NewTripReader(strings.NewReader(data), WithTimeLayout("2006-01-02 15:04"), WithTimeLocation(loc))
	require.NoError(t, err)
	trip, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, VENDOR_LYFT, trip.Vendor)
	assert.Equal(t, 900.0, trip.ReportedDistance)
	assert.Equal(t, GeoPoint{Lat: 41.892, Lon: -87.633}, trip.Start)
	assert.Equal(t, GeoPoint{Lat: 41.884, Lon: -87.632}, trip.End)
	assert.True(t, time.Date(2023, time.April, 3, 12, 0, 0, 0, time.UTC).Equal(trip.StartTime))
}

func TestTripReaderEmpty(t *testing.T) {
	_, err := NewTripReader(strings.NewReader(""))
	assert.Error(t, err)
}
