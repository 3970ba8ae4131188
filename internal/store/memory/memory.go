// internal/store/memory/memory.go
package memory

import (
	"sort"
	"sync"

	"github.com/spatialplot/globeviz/internal/model"
)

// Backend stores the imported dataset in memory. It serves standalone
// runs and tests; nothing survives a restart.
type Backend struct {
	rows      map[int]map[string]model.CountryRow // year -> country name -> row
	centroids map[string]model.Centroid           // keyed by country name
	mu        sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		rows:      make(map[int]map[string]model.CountryRow),
		centroids: make(map[string]model.Centroid),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Reset drops all stored rows and centroids.
func (b *Backend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rows = make(map[int]map[string]model.CountryRow)
	b.centroids = make(map[string]model.Centroid)
	return nil
}

// PutCountryYears stores dataset rows, replacing rows with the same
// country and year.
func (b *Backend) PutCountryYears(rows []model.CountryRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, row := range rows {
		byCountry, ok := b.rows[row.Year]
		if !ok {
			byCountry = make(map[string]model.CountryRow)
			b.rows[row.Year] = byCountry
		}
		byCountry[row.Name] = row
	}
	return nil
}

// PutCentroids stores country centroids, replacing existing entries.
func (b *Backend) PutCentroids(centroids []model.Centroid) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range centroids {
		b.centroids[c.Country] = c
	}
	return nil
}

// SamplesForYear assembles one sample per stored row of the year,
// joining centroids by country name. Missing centroids leave nil
// coordinates; a row without a value for the metric leaves a nil value.
// Samples come back sorted by key.
func (b *Backend) SamplesForYear(metric model.Metric, year int) ([]model.MetricSample, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byCountry := b.rows[year]
	names := make([]string, 0, len(byCountry))
	for name := range byCountry {
		names = append(names, name)
	}
	sort.Strings(names)

	samples := make([]model.MetricSample, 0, len(names))
	for _, name := range names {
		row := byCountry[name]
		sample := model.MetricSample{Key: row.Name, Year: year}
		if v, ok := row.Values[metric]; ok {
			sample.Value = model.Float64Ptr(v)
		}
		if c, ok := b.centroids[row.Name]; ok {
			sample.Lat = model.Float64Ptr(c.Lat)
			sample.Lon = model.Float64Ptr(c.Lon)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// AllValues returns every recorded value for the metric across all years.
func (b *Backend) AllValues(metric model.Metric) ([]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var values []float64
	for _, byCountry := range b.rows {
		for _, row := range byCountry {
			if v, ok := row.Values[metric]; ok {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

// Years returns all years with stored rows, ascending.
func (b *Backend) Years() ([]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	years := make([]int, 0, len(b.rows))
	for year := range b.rows {
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}

// Countries returns the year's rows sorted by country name.
func (b *Backend) Countries(year int) ([]model.CountryRow, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byCountry := b.rows[year]
	names := make([]string, 0, len(byCountry))
	for name := range byCountry {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]model.CountryRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, byCountry[name])
	}
	return rows, nil
}

// CountryYears returns one country's rows across all years, ascending
// by year.
func (b *Backend) CountryYears(country string) ([]model.CountryRow, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var rows []model.CountryRow
	for _, byCountry := range b.rows {
		if row, ok := byCountry[country]; ok {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	return rows, nil
}

// Centroid looks up a country's centroid by name.
func (b *Backend) Centroid(country string) (model.Centroid, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.centroids[country]
	return c, ok, nil
}
