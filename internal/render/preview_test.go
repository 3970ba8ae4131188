package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/quantile"
)

const testOutlineJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Boxland"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-20, -20], [20, -20], [20, 20], [-20, 20], [-20, -20]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"name": "Isleland"},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [[[[100, -10], [120, -10], [120, 10], [100, 10], [100, -10]]]]
      }
    }
  ]
}`

func equatorSample(key string, lon, value float64) model.MetricSample {
	return model.MetricSample{
		Key:   key,
		Value: model.Float64Ptr(value),
		Lat:   model.Float64Ptr(0),
		Lon:   model.Float64Ptr(lon),
		Year:  2020,
	}
}

func TestNewPreview_DefaultSize(t *testing.T) {
	p := NewPreview(0, -5, testLogger())

	img := p.Render(nil, 1, "")
	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 1024, img.Bounds().Dy())
}

func TestPreview_Render_Empty(t *testing.T) {
	p := NewPreview(1024, 1024, testLogger())

	img := p.Render(nil, 1, "")

	assert.Equal(t, previewBackground, img.RGBAAt(0, 0))
	assert.Equal(t, previewBackground, img.RGBAAt(512, 512))
	assert.Equal(t, previewBackground, img.RGBAAt(1023, 1023))
}

func TestPreview_Render_MarkerBins(t *testing.T) {
	p := NewPreview(1024, 1024, testLogger())

	// Five equator samples spanning the value range: with n=5 the
	// thresholds are 18/26/34/42, one sample per bin.
	samples := []model.MetricSample{
		equatorSample("A", -150, 10),
		equatorSample("B", -75, 20),
		equatorSample("C", 0, 30),
		equatorSample("D", 75, 40),
		equatorSample("E", 150, 50),
	}

	img := p.Render(samples, 50, "")

	for i, s := range samples {
		x, y, ok := p.toPixel(*s.Lat, *s.Lon)
		require.True(t, ok)
		assert.Equal(t, binColors[i], img.RGBAAt(x, y), "sample %s", s.Key)
	}
}

func TestPreview_Render_SelectedBorder(t *testing.T) {
	p := NewPreview(1024, 1024, testLogger())

	samples := []model.MetricSample{equatorSample("Norway", 0, 50)}
	img := p.Render(samples, 50, "Norway")

	// fraction 1 gives side 12, so the border ring sits 8 pixels out from
	// the marker center.
	x, y, ok := p.toPixel(0, 0)
	require.True(t, ok)
	half := (markerMinSide + markerSideSpan) / 2
	assert.Equal(t, previewSelected, img.RGBAAt(x-half-2, y-half-2))
	assert.Equal(t, previewSelected, img.RGBAAt(x-half+markerMinSide+markerSideSpan+2, y-half+markerMinSide+markerSideSpan+2))
}

func TestPreview_Render_SkipsNonPlottable(t *testing.T) {
	p := NewPreview(1024, 1024, testLogger())

	noCoords := model.MetricSample{Key: "Nowhere", Value: model.Float64Ptr(10), Year: 2020}
	noValue := model.MetricSample{Key: "Blank", Lat: model.Float64Ptr(0), Lon: model.Float64Ptr(0), Year: 2020}

	img := p.Render([]model.MetricSample{noCoords, noValue}, 50, "")

	x, y, ok := p.toPixel(0, 0)
	require.True(t, ok)
	assert.Equal(t, previewBackground, img.RGBAAt(x, y))
}

func TestPreview_SetOutline(t *testing.T) {
	p := NewPreview(1024, 1024, testLogger())

	require.NoError(t, p.SetOutline([]byte(testOutlineJSON)))
	require.Len(t, p.features, 2)

	img := p.Render(nil, 1, "")

	// Inside the polygon and the multipolygon: land fill.
	assert.Equal(t, previewLand, img.RGBAAt(512, 512))
	mx, my, ok := p.toPixel(0, 110)
	require.True(t, ok)
	assert.Equal(t, previewLand, img.RGBAAt(mx, my))

	// On the polygon's top edge: outline stroke.
	ex, ey, ok := p.toPixel(20, 0)
	require.True(t, ok)
	assert.Equal(t, previewOutline, img.RGBAAt(ex, ey))

	// Far outside any shape: background.
	assert.Equal(t, previewBackground, img.RGBAAt(10, 512))
}

func TestPreview_SetOutline_Invalid(t *testing.T) {
	p := NewPreview(64, 64, testLogger())

	err := p.SetOutline([]byte("not geojson"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing outline GeoJSON")
}

func TestPreview_MarkersDrawOverOutlines(t *testing.T) {
	p := NewPreview(1024, 1024, testLogger())
	require.NoError(t, p.SetOutline([]byte(testOutlineJSON)))

	samples := []model.MetricSample{equatorSample("Boxland", 0, 50)}
	img := p.Render(samples, 50, "")

	x, y, ok := p.toPixel(0, 0)
	require.True(t, ok)
	assert.Equal(t, binColor(quantile.DefaultBin), img.RGBAAt(x, y))
}

func TestPreview_WritePNG(t *testing.T) {
	p := NewPreview(64, 64, testLogger())

	var buf bytes.Buffer
	err := p.WritePNG(&buf, []model.MetricSample{equatorSample("Norway", 0, 10)}, 10, "")
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 64, cfg.Height)
}

func TestBinColor_OutOfRange(t *testing.T) {
	assert.Equal(t, binColors[quantile.DefaultBin], binColor(-1))
	assert.Equal(t, binColors[quantile.DefaultBin], binColor(5))
	assert.Equal(t, binColors[0], binColor(0))
	assert.Equal(t, binColors[4], binColor(4))
}

func TestDrawLine_ClipsOutOfBounds(t *testing.T) {
	p := NewPreview(8, 8, testLogger())
	img := p.Render(nil, 1, "")

	drawLine(img, -5, -5, 20, 20, previewSelected)

	// The in-bounds diagonal is painted, the rest silently dropped.
	assert.Equal(t, previewSelected, img.RGBAAt(3, 3))
}
