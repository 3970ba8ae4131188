// internal/store/store.go
package store

import "github.com/spatialplot/globeviz/internal/model"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Dataset loading
	PutCountryYears(rows []model.CountryRow) error
	PutCentroids(centroids []model.Centroid) error
	Reset() error

	// Dataset queries. SamplesForYear joins rows with centroids by
	// country name; countries without a centroid come back with nil
	// coordinates so the caller can count them as unplottable.
	SamplesForYear(metric model.Metric, year int) ([]model.MetricSample, error)
	AllValues(metric model.Metric) ([]float64, error)
	Years() ([]int, error)
	Countries(year int) ([]model.CountryRow, error)
	CountryYears(country string) ([]model.CountryRow, error)
	Centroid(country string) (model.Centroid, bool, error)
}
