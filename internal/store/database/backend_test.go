package database

import (
	"io"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialplot/globeviz/internal/model"
)

// newTestBackend creates a Backend over a migrated in-memory SQLite DB.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	m := NewManager(zerolog.Nop())
	m.DB = newMemoryDB(t)

	b := New(Dependencies{
		Manager: m,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { require.NoError(t, b.Close()) })
	return b
}

func row(name string, year int, values map[model.Metric]float64) model.CountryRow {
	return model.CountryRow{Name: name, Code: name[:3], Year: year, Values: values}
}

func seeded(t *testing.T) *Backend {
	t.Helper()
	b := newTestBackend(t)

	require.NoError(t, b.PutCountryYears([]model.CountryRow{
		row("Norway", 2020, map[model.Metric]float64{model.MetricPower: 23000, model.MetricEnergy: 5000}),
		row("Germany", 2020, map[model.Metric]float64{model.MetricPower: 6600}),
		row("Albania", 2020, map[model.Metric]float64{model.MetricEnergy: 800}),
		row("Norway", 2019, map[model.Metric]float64{model.MetricPower: 24000}),
	}))
	require.NoError(t, b.PutCentroids([]model.Centroid{
		{Country: "Norway", Lat: 64.5, Lon: 11.5},
		{Country: "Germany", Lat: 51.1, Lon: 10.4},
	}))
	return b
}

func TestNew(t *testing.T) {
	b := New(Dependencies{Manager: NewManager(zerolog.Nop())})
	require.NotNil(t, b)
}

func TestInitClose(t *testing.T) {
	b := newTestBackend(t)
	require.NotNil(t, b.stopChan)
}

func TestSamplesForYear(t *testing.T) {
	b := seeded(t)

	samples, err := b.SamplesForYear(model.MetricPower, 2020)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	// Sorted by key
	assert.Equal(t, "Albania", samples[0].Key)
	assert.Equal(t, "Germany", samples[1].Key)
	assert.Equal(t, "Norway", samples[2].Key)

	// Albania has no power value and no centroid
	assert.Nil(t, samples[0].Value)
	assert.Nil(t, samples[0].Lat)
	assert.Nil(t, samples[0].Lon)

	// Germany has value and centroid
	require.NotNil(t, samples[1].Value)
	assert.Equal(t, 6600.0, *samples[1].Value)
	require.NotNil(t, samples[1].Lat)
	assert.Equal(t, 51.1, *samples[1].Lat)

	// Year is stamped on every sample
	for _, s := range samples {
		assert.Equal(t, 2020, s.Year)
	}
}

func TestSamplesForYear_UnknownYear(t *testing.T) {
	b := seeded(t)

	samples, err := b.SamplesForYear(model.MetricPower, 1890)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestAllValues(t *testing.T) {
	b := seeded(t)

	values, err := b.AllValues(model.MetricPower)
	require.NoError(t, err)
	// Norway 2020+2019 and Germany 2020; Albania has no power value
	require.Len(t, values, 3)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	assert.Equal(t, 23000.0+6600+24000, sum)
}

func TestYears(t *testing.T) {
	b := seeded(t)

	years, err := b.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020}, years)
}

func TestCountries(t *testing.T) {
	b := seeded(t)

	rows, err := b.Countries(2020)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Albania", rows[0].Name)
	assert.Equal(t, "Norway", rows[2].Name)
	assert.Equal(t, 800.0, rows[0].Values[model.MetricEnergy], "values should survive the JSON column")
}

func TestCountryYears(t *testing.T) {
	b := seeded(t)

	rows, err := b.CountryYears("Norway")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2019, rows[0].Year)
	assert.Equal(t, 2020, rows[1].Year)
}

func TestCentroid(t *testing.T) {
	b := seeded(t)

	c, ok, err := b.Centroid("Norway")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 64.5, c.Lat, "latitude should survive the WKB column")
	assert.Equal(t, 11.5, c.Lon, "longitude should survive the WKB column")

	_, ok, err = b.Centroid("Atlantis")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutCountryYears_ReplacesExistingRow(t *testing.T) {
	b := seeded(t)

	require.NoError(t, b.PutCountryYears([]model.CountryRow{
		row("Norway", 2020, map[model.Metric]float64{model.MetricPower: 1}),
	}))

	rows, err := b.CountryYears("Norway")
	require.NoError(t, err)
	require.Len(t, rows, 2, "upsert should not add a duplicate row")
	for _, r := range rows {
		if r.Year == 2020 {
			assert.Equal(t, 1.0, r.Values[model.MetricPower])
		}
	}
}

func TestPutCentroids_ReplacesExisting(t *testing.T) {
	b := seeded(t)

	require.NoError(t, b.PutCentroids([]model.Centroid{
		{Country: "Norway", Lat: 60.0, Lon: 10.0},
	}))

	c, ok, err := b.Centroid("Norway")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60.0, c.Lat)
	assert.Equal(t, 10.0, c.Lon)
}

func TestPut_EmptyInput(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.PutCountryYears(nil))
	require.NoError(t, b.PutCentroids(nil))
}

func TestReset(t *testing.T) {
	b := seeded(t)

	require.NoError(t, b.Reset())

	years, err := b.Years()
	require.NoError(t, err)
	assert.Empty(t, years)

	_, ok, err := b.Centroid("Norway")
	require.NoError(t, err)
	assert.False(t, ok)

	// Hard delete means the same rows can be imported again without
	// tripping the unique indexes.
	require.NoError(t, b.PutCountryYears([]model.CountryRow{
		row("Norway", 2020, map[model.Metric]float64{model.MetricPower: 23000}),
	}))
	require.NoError(t, b.PutCentroids([]model.Centroid{
		{Country: "Norway", Lat: 64.5, Lon: 11.5},
	}))
}
