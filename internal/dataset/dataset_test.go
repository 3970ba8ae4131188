package dataset

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/store/memory"
)

const energyCSV = `Country Name,Country Code,Year,Electric Power Consumption (kWh per capita),Energy Use (kg oil equivalent per capita),Greenhouse Gas Emissions (Mt CO2e)
Norway,NOR,2020,23000.5,5000.2,41.2
Germany,DEU,2020,6600,..,720.5
Albania,ALB,2020,..,800,
Norway,NOR,2019,24000,5100,40.9
`

const centroidCSV = `COUNTRY,longitude,latitude
Norway,11.5,64.5
Germany,10.4,51.1
`

func newTestImporter(t *testing.T) (*Importer, *memory.Backend, *bytes.Buffer) {
	t.Helper()

	b := memory.New()
	require.NoError(t, b.Init())

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewImporter(b, logger), b, &buf
}

func TestImportEnergyCSV(t *testing.T) {
	imp, b, _ := newTestImporter(t)

	n, err := imp.ImportEnergyCSV(strings.NewReader(energyCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rows, err := b.Countries(2020)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Norway carries all three metrics
	norway := rows[2]
	assert.Equal(t, "Norway", norway.Name)
	assert.Equal(t, "NOR", norway.Code)
	assert.Equal(t, 23000.5, norway.Values[model.MetricPower])
	assert.Equal(t, 5000.2, norway.Values[model.MetricEnergy])
	assert.Equal(t, 41.2, norway.Values[model.MetricEmissions])

	// ".." is a missing value
	germany := rows[1]
	assert.Equal(t, 6600.0, germany.Values[model.MetricPower])
	_, ok := germany.Values[model.MetricEnergy]
	assert.False(t, ok, "'..' cell should not produce a value")

	// Empty cell is a missing value
	albania := rows[0]
	_, ok = albania.Values[model.MetricEmissions]
	assert.False(t, ok, "empty cell should not produce a value")
	assert.Equal(t, 800.0, albania.Values[model.MetricEnergy])
}

func TestImportEnergyCSV_SkipsBadRows(t *testing.T) {
	imp, b, logs := newTestImporter(t)

	csv := `Country Name,Country Code,Year,Electric Power Consumption (kWh per capita),Energy Use (kg oil equivalent per capita),Greenhouse Gas Emissions (Mt CO2e)
Norway,NOR,2020,23000,5000,41
Badyear,BAD,20x0,1,2,3
Badvalue,BAD,2020,abc,2,3
,EMP,2020,1,2,3
`
	n, err := imp.ImportEnergyCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the valid row should be stored")

	years, err := b.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2020}, years)

	out := logs.String()
	assert.Contains(t, out, "Skipping energy CSV row")
	assert.Contains(t, out, "error converting year")
	assert.Contains(t, out, "error converting power value")
	assert.Contains(t, out, "empty country name")
}

func TestImportEnergyCSV_HeaderValidation(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "wrong lead column",
			header: "Name,Country Code,Year,Electric Power Consumption (kWh per capita),Energy Use (kg oil equivalent per capita),Greenhouse Gas Emissions (Mt CO2e)",
			want:   `expected column 0 to be "Country Name"`,
		},
		{
			name:   "missing metric column",
			header: "Country Name,Country Code,Year,Electric Power Consumption (kWh per capita)",
			want:   "metric columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp, _, _ := newTestImporter(t)
			_, err := imp.ImportEnergyCSV(strings.NewReader(tt.header + "\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImportCentroidsCSV(t *testing.T) {
	imp, b, _ := newTestImporter(t)

	n, err := imp.ImportCentroidsCSV(strings.NewReader(centroidCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, ok, err := b.Centroid("Norway")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 64.5, c.Lat)
	assert.Equal(t, 11.5, c.Lon)
}

func TestImportCentroidsCSV_SkipsBadRows(t *testing.T) {
	imp, _, logs := newTestImporter(t)

	csv := `COUNTRY,longitude,latitude
Norway,11.5,64.5
Outofrange,200,95
Badnumber,abc,50
`
	n, err := imp.ImportCentroidsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out := logs.String()
	assert.Contains(t, out, "coordinates out of range")
	assert.Contains(t, out, "error converting longitude")
}

func TestImportCentroidsCSV_HeaderValidation(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	_, err := imp.ImportCentroidsCSV(strings.NewReader("country,lon,lat\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expected column 0 to be "COUNTRY"`)
}

func TestImportAll_LogsJoinGaps(t *testing.T) {
	imp, _, logs := newTestImporter(t)

	err := imp.ImportAll(strings.NewReader(energyCSV), strings.NewReader(centroidCSV))
	require.NoError(t, err)

	// Albania has energy data but no centroid
	out := logs.String()
	assert.Contains(t, out, "no centroid")
	assert.Contains(t, out, "Albania")
	assert.Contains(t, out, "ALB", "ISO hint should be resolved")
}

func TestImportFiles(t *testing.T) {
	imp, b, _ := newTestImporter(t)

	dir := t.TempDir()
	energyPath := filepath.Join(dir, "energy.csv")
	centroidsPath := filepath.Join(dir, "centroids.csv")
	require.NoError(t, os.WriteFile(energyPath, []byte(energyCSV), 0o644))
	require.NoError(t, os.WriteFile(centroidsPath, []byte(centroidCSV), 0o644))

	require.NoError(t, imp.ImportFiles(energyPath, centroidsPath))

	years, err := b.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020}, years)
}

func TestImportFiles_MissingFile(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	err := imp.ImportFiles(filepath.Join(t.TempDir(), "nope.csv"), "unused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error opening energy CSV")
}

func TestImported(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	done, err := imp.Imported()
	require.NoError(t, err)
	assert.False(t, done)

	_, err = imp.ImportEnergyCSV(strings.NewReader(energyCSV))
	require.NoError(t, err)

	done, err = imp.Imported()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestIsoHint(t *testing.T) {
	assert.Equal(t, "NOR", isoHint("Norway"))
	assert.Equal(t, "?", isoHint("Atlantis"))
}

// Read errors other than EOF skip the record rather than aborting the
// import.
func TestImportEnergyCSV_MalformedQuotes(t *testing.T) {
	imp, _, logs := newTestImporter(t)

	csv := "Country Name,Country Code,Year,Electric Power Consumption (kWh per capita),Energy Use (kg oil equivalent per capita),Greenhouse Gas Emissions (Mt CO2e)\n" +
		"Norway,NOR,2020,23000,5000,41\n" +
		"\"Broken,BAD,2020,1,2,3\n"

	_, err := imp.ImportEnergyCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Skipping malformed energy CSV row")
}
