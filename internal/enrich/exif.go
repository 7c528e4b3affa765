package enrich

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is what EXIF can tell us about a media file. All fields are
// optional; consumer code treats absence as normal.
type Metadata struct {
	CapturedAt  *time.Time
	CameraMake  string
	CameraModel string
	Latitude    *float64
	Longitude   *float64
}

// ReadEXIF extracts capture metadata from a file. Files without EXIF data
// return an error; callers treat that as a skip, not a failure.
func ReadEXIF(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("decode exif: %w", err)
	}

	var meta Metadata
	if taken, err := x.DateTime(); err == nil {
		utc := taken.UTC()
		meta.CapturedAt = &utc
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if value, err := tag.StringVal(); err == nil {
			meta.CameraMake = strings.TrimSpace(value)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if value, err := tag.StringVal(); err == nil {
			meta.CameraModel = strings.TrimSpace(value)
		}
	}
	if lat, lon, err := x.LatLong(); err == nil && validCoordinate(lat, lon) {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}
	return meta, nil
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
