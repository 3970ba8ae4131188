package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// FLAT-MAP SUPPORT
// Previews and stored centroids use Web Mercator (EPSG:3857), so the flat
// renderer and the database never deal with raw WGS84 values. Geometry is
// passed around as simplefeatures types, which marshal to WKT for storage.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ValidLatLon reports whether a WGS84 latitude/longitude pair is finite and
// within range.
func ValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return false
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return false
	}
	return true
}

// ToWebMercator converts a WGS84 latitude/longitude into an EPSG:3857 point.
func ToWebMercator(
	lat float64,
	lon float64,
) (
	point geom.Point,
	err error,
) {
	if !ValidLatLon(lat, lon) {
		return geom.Point{}, ErrInvalidCoordinates
	}
	var x, y float64
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(lon, lat, 0)
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
	if err != nil {
		return geom.Point{}, err
	}
	return point, nil
}
