package dataset

import (
	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/store"
)

// Provider is the read-only dataset surface the session service and the
// HTTP API consume.
type Provider interface {
	SamplesForYear(metric model.Metric, year int) ([]model.MetricSample, error)
	AllValues(metric model.Metric) ([]float64, error)
	Years() ([]int, error)
	Metrics() []model.Metric
	Countries(year int) ([]model.CountryRow, error)
	CountryYears(country string) ([]model.CountryRow, error)
	Centroid(country string) (model.Centroid, bool, error)
}

// storeProvider adapts a storage backend to the Provider interface.
type storeProvider struct {
	store store.Backend
}

// NewProvider wraps a storage backend as a Provider.
func NewProvider(s store.Backend) Provider {
	return &storeProvider{store: s}
}

func (p *storeProvider) SamplesForYear(metric model.Metric, year int) ([]model.MetricSample, error) {
	return p.store.SamplesForYear(metric, year)
}

func (p *storeProvider) AllValues(metric model.Metric) ([]float64, error) {
	return p.store.AllValues(metric)
}

func (p *storeProvider) Years() ([]int, error) {
	return p.store.Years()
}

// Metrics returns the known metric identifiers. The list is static;
// callers get a copy so they cannot disturb display order.
func (p *storeProvider) Metrics() []model.Metric {
	metrics := make([]model.Metric, len(model.Metrics))
	copy(metrics, model.Metrics)
	return metrics
}

func (p *storeProvider) Countries(year int) ([]model.CountryRow, error) {
	return p.store.Countries(year)
}

func (p *storeProvider) CountryYears(country string) ([]model.CountryRow, error) {
	return p.store.CountryYears(country)
}

func (p *storeProvider) Centroid(country string) (model.Centroid, bool, error) {
	return p.store.Centroid(country)
}
