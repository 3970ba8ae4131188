package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ProjectRing converts one GeoJSON polygon ring of [lon,lat] pairs into an
// EPSG:3857 geom.LineString for flat-map drawing.
func ProjectRing(ring [][]float64) (geom.LineString, error) {
	if len(ring) < 2 {
		return geom.LineString{}, fmt.Errorf("ring must have at least 2 points, got %d", len(ring))
	}

	// Build coordinate sequence for LineString
	flatCoords := make([]float64, 0, len(ring)*2)
	for i, coord := range ring {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		point, err := ToWebMercator(coord[1], coord[0])
		if err != nil {
			return geom.LineString{}, fmt.Errorf("coordinate %d: %w", i, err)
		}
		c, _ := point.Coordinates()
		flatCoords = append(flatCoords, c.X, c.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("building line string: %w", err)
	}

	return ls, nil
}
