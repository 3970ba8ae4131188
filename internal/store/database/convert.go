// internal/store/database/convert.go
package database

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/spatialplot/globeviz/internal/model"
)

// RowToRecord converts a dataset row into its database record.
func RowToRecord(row model.CountryRow) (CountryYearRecord, error) {
	values, err := json.Marshal(row.Values)
	if err != nil {
		return CountryYearRecord{}, fmt.Errorf("marshaling values for %s/%d: %w", row.Name, row.Year, err)
	}
	return CountryYearRecord{
		Name:   row.Name,
		Code:   row.Code,
		Year:   row.Year,
		Values: values,
	}, nil
}

// RecordToRow converts a database record back into a dataset row.
func RecordToRow(rec CountryYearRecord) (model.CountryRow, error) {
	values := make(map[model.Metric]float64)
	if len(rec.Values) > 0 {
		if err := json.Unmarshal(rec.Values, &values); err != nil {
			return model.CountryRow{}, fmt.Errorf("unmarshaling values for %s/%d: %w", rec.Name, rec.Year, err)
		}
	}
	return model.CountryRow{
		Name:   rec.Name,
		Code:   rec.Code,
		Year:   rec.Year,
		Values: values,
	}, nil
}

// CentroidToRecord converts a centroid into its database record.
func CentroidToRecord(c model.Centroid) (CentroidRecord, error) {
	point, err := geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: c.Lon, Y: c.Lat},
	})
	if err != nil {
		return CentroidRecord{}, fmt.Errorf("building point for %s: %w", c.Country, err)
	}
	return CentroidRecord{
		Country:  c.Country,
		Location: point,
	}, nil
}

// RecordToCentroid converts a centroid record back into the model type.
func RecordToCentroid(rec CentroidRecord) model.Centroid {
	coords, _ := rec.Location.Coordinates()
	return model.Centroid{
		Country: rec.Country,
		Lat:     coords.XY.Y,
		Lon:     coords.XY.X,
	}
}
