package session

import (
	"io"
	"log/slog"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialplot/globeviz/internal/dispatcher"
	"github.com/spatialplot/globeviz/internal/extremum"
	"github.com/spatialplot/globeviz/internal/model"
)

// stubProvider serves a fixed sample set per (metric, year).
type stubProvider struct {
	samples map[int][]model.MetricSample
	values  []float64
	years   []int
	fail    error
}

func (p *stubProvider) SamplesForYear(metric model.Metric, year int) ([]model.MetricSample, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	return p.samples[year], nil
}

func (p *stubProvider) AllValues(metric model.Metric) ([]float64, error) {
	return p.values, nil
}

func (p *stubProvider) Years() ([]int, error) {
	return p.years, nil
}

func (p *stubProvider) Metrics() []model.Metric {
	return model.Metrics
}

func (p *stubProvider) Countries(year int) ([]model.CountryRow, error) {
	return nil, nil
}

func (p *stubProvider) CountryYears(country string) ([]model.CountryRow, error) {
	return nil, nil
}

func (p *stubProvider) Centroid(country string) (model.Centroid, bool, error) {
	return model.Centroid{}, false, nil
}

func sample(key string, lat, lon, value float64) model.MetricSample {
	return model.MetricSample{
		Key:   key,
		Lat:   model.Float64Ptr(lat),
		Lon:   model.Float64Ptr(lon),
		Value: model.Float64Ptr(value),
	}
}

func testProvider() *stubProvider {
	return &stubProvider{
		samples: map[int][]model.MetricSample{
			2019: {
				sample("Norway", 64.6, 12.6, 10),
				sample("Albania", 41.1, 20.1, 20),
				sample("Chile", -37.7, -71.4, 30),
				sample("Kenya", 0.6, 37.8, 40),
				sample("Japan", 37.6, 138.0, 50),
			},
			2020: {
				sample("Norway", 64.6, 12.6, 15),
				// Albania gone in 2020
				sample("Chile", -37.7, -71.4, 35),
				sample("Kenya", 0.6, 37.8, 45),
				sample("Japan", 37.6, 138.0, 55),
			},
		},
		values: []float64{10, 20, 30, 40, 50, 55},
		years:  []int{2019, 2020},
	}
}

func newTestService(t *testing.T, p *stubProvider) *Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := NewContext(model.Selection{Metric: model.MetricPower, Year: 2019})
	ctx.SetSphereRef(&model.SphereRef{Radius: 1, Scale: math32.Vec3(1, 1, 1)})
	return NewService(Dependencies{
		Provider: p,
		Extremum: extremum.NewCache(p, logger),
		Logger:   logger,
	}, ctx)
}

func TestService_ValidateRejectsUnknown(t *testing.T) {
	svc := newTestService(t, testProvider())

	tests := []struct {
		name    string
		sel     model.Selection
		wantErr bool
	}{
		{"known metric and year", model.Selection{Metric: model.MetricPower, Year: 2019}, false},
		{"with country", model.Selection{Metric: model.MetricEnergy, Year: 2020, Country: "Chile"}, false},
		{"unknown metric", model.Selection{Metric: "fusion", Year: 2019}, true},
		{"unknown year", model.Selection{Metric: model.MetricPower, Year: 1905}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(tt.sel)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_ApplyFirstPassCreates(t *testing.T) {
	svc := newTestService(t, testProvider())

	res, err := svc.Apply(model.Selection{Metric: model.MetricPower, Year: 2019})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Stats.Creates)
	assert.Zero(t, res.Stats.Updates)
	assert.Zero(t, res.Stats.Removes)
	assert.Equal(t, 5, svc.MarkerCount())
}

func TestService_ApplyYearChangeUpdatesAndRemoves(t *testing.T) {
	svc := newTestService(t, testProvider())

	_, err := svc.Apply(model.Selection{Metric: model.MetricPower, Year: 2019})
	require.NoError(t, err)

	res, err := svc.Apply(model.Selection{Metric: model.MetricPower, Year: 2020})
	require.NoError(t, err)

	assert.Zero(t, res.Stats.Creates)
	assert.Equal(t, 4, res.Stats.Updates)
	assert.Equal(t, 1, res.Stats.Removes, "Albania disappears in 2020")
	assert.Equal(t, 4, svc.MarkerCount())

	_, ok := svc.Markers()["Albania"]
	assert.False(t, ok)
}

func TestService_ApplyIdempotent(t *testing.T) {
	svc := newTestService(t, testProvider())
	sel := model.Selection{Metric: model.MetricPower, Year: 2019}

	_, err := svc.Apply(sel)
	require.NoError(t, err)

	res, err := svc.Apply(sel)
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Creates)
	assert.Zero(t, res.Stats.Removes)
	assert.Equal(t, 5, res.Stats.Updates)
}

func TestService_ApplyCarriesSelectedFlag(t *testing.T) {
	svc := newTestService(t, testProvider())

	_, err := svc.Apply(model.Selection{Metric: model.MetricPower, Year: 2019, Country: "Chile"})
	require.NoError(t, err)

	markers := svc.Markers()
	assert.True(t, markers["Chile"].Selected)
	assert.False(t, markers["Norway"].Selected)
}

func TestService_ApplyWithoutSphereRefSkips(t *testing.T) {
	svc := newTestService(t, testProvider())
	svc.Context().SetSphereRef(nil)

	res, err := svc.Apply(model.Selection{Metric: model.MetricPower, Year: 2019})
	require.NoError(t, err)

	assert.Zero(t, res.Stats.Creates)
	assert.Equal(t, 5, res.Stats.Skipped)
	assert.Zero(t, svc.MarkerCount())
}

func TestService_ApplyPublishesPassResult(t *testing.T) {
	p := testProvider()
	svc := newTestService(t, p)

	d, err := dispatcher.New(discardDispatchLogger{})
	require.NoError(t, err)
	svc.deps.Dispatcher = d

	var got model.PassResult
	d.Register(EventPass, "test", func(e dispatcher.Event) (any, error) {
		var ok bool
		got, ok = e.Payload.(model.PassResult)
		require.True(t, ok, "payload must be a PassResult")
		return nil, nil
	})

	res, err := svc.Apply(model.Selection{Metric: model.MetricPower, Year: 2019})
	require.NoError(t, err)
	assert.Equal(t, res.Stats, got.Stats)
	assert.Equal(t, res.Selection, got.Selection)
}

func TestService_Scene(t *testing.T) {
	svc := newTestService(t, testProvider())

	_, err := svc.Apply(model.Selection{Metric: model.MetricPower, Year: 2019})
	require.NoError(t, err)

	sel, markers, globalMax := svc.Scene()
	assert.Equal(t, 2019, sel.Year)
	assert.Len(t, markers, 5)
	assert.Equal(t, 55.0, globalMax, "all-time maximum, not the year's")

	// The returned map is a copy.
	delete(markers, "Norway")
	assert.Equal(t, 5, svc.MarkerCount())
}

func TestService_OrientationFacesTarget(t *testing.T) {
	svc := newTestService(t, testProvider())

	q := svc.Orientation(0, 0)
	rotated := math32.Vec3(0, 0, 1).MulQuat(q)
	assert.InDelta(t, 0, rotated.X, 1e-6)
	assert.InDelta(t, 0, rotated.Y, 1e-6)
	assert.InDelta(t, -1, rotated.Z, 1e-6)
}

type discardDispatchLogger struct{}

func (discardDispatchLogger) Debug(msg string, keysAndValues ...any) {}
func (discardDispatchLogger) Info(msg string, keysAndValues ...any)  {}
func (discardDispatchLogger) Error(msg string, keysAndValues ...any) {}
