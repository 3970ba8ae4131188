// Package dataset imports the energy and centroid CSV files into a
// storage backend and exposes the read interface the rest of the app
// consumes.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/biter777/countries"

	"github.com/spatialplot/globeviz/internal/geo"
	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/store"
)

// energyLeadColumns are the fixed leading columns of the energy CSV.
// The metric columns follow and are located by header name.
var energyLeadColumns = []string{"Country Name", "Country Code", "Year"}

// centroidColumns is the expected centroid CSV header.
var centroidColumns = []string{"COUNTRY", "longitude", "latitude"}

// Importer loads CSV datasets into a storage backend.
type Importer struct {
	store  store.Backend
	logger *slog.Logger
}

// NewImporter creates an importer writing to the given backend.
func NewImporter(s store.Backend, logger *slog.Logger) *Importer {
	return &Importer{
		store:  s,
		logger: logger,
	}
}

// Imported reports whether the backend already holds dataset rows.
func (imp *Importer) Imported() (bool, error) {
	years, err := imp.store.Years()
	if err != nil {
		return false, err
	}
	return len(years) > 0, nil
}

// ImportEnergyCSV reads the multi-year energy CSV and stores one row per
// country and year. ".." and empty cells are missing values; rows with
// unparsable numbers are skipped with a warning. Returns the number of
// rows stored.
func (imp *Importer) ImportEnergyCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("error reading energy CSV header: %w", err)
	}
	metricCols, err := energyColumnIndex(header)
	if err != nil {
		return 0, err
	}

	var rows []model.CountryRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			imp.logger.Warn("Skipping malformed energy CSV row", "line", line, "error", err)
			continue
		}

		row, err := parseEnergyRecord(record, metricCols)
		if err != nil {
			imp.logger.Warn("Skipping energy CSV row", "line", line, "error", err)
			continue
		}
		rows = append(rows, row)
	}

	if err := imp.store.PutCountryYears(rows); err != nil {
		return 0, err
	}
	imp.logger.Info("Imported energy rows", "count", len(rows))
	return len(rows), nil
}

// ImportCentroidsCSV reads the country centroid CSV. Rows with
// unparsable or out-of-range coordinates are skipped with a warning.
// Returns the number of centroids stored.
func (imp *Importer) ImportCentroidsCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("error reading centroid CSV header: %w", err)
	}
	for i, want := range centroidColumns {
		if i >= len(header) || strings.TrimSpace(header[i]) != want {
			return 0, fmt.Errorf("centroid CSV header: expected column %d to be %q", i, want)
		}
	}

	var centroids []model.Centroid
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			imp.logger.Warn("Skipping malformed centroid CSV row", "line", line, "error", err)
			continue
		}

		c, err := parseCentroidRecord(record)
		if err != nil {
			imp.logger.Warn("Skipping centroid CSV row", "line", line, "error", err)
			continue
		}
		centroids = append(centroids, c)
	}

	if err := imp.store.PutCentroids(centroids); err != nil {
		return 0, err
	}
	imp.logger.Info("Imported centroids", "count", len(centroids))
	return len(centroids), nil
}

// ImportAll loads both CSVs and logs the join gaps: a country present in
// the energy data but absent from the centroids cannot be plotted.
func (imp *Importer) ImportAll(energy, centroids io.Reader) error {
	if _, err := imp.ImportEnergyCSV(energy); err != nil {
		return err
	}
	if _, err := imp.ImportCentroidsCSV(centroids); err != nil {
		return err
	}
	return imp.logJoinGaps()
}

// ImportFiles opens and imports the configured CSV files.
func (imp *Importer) ImportFiles(energyPath, centroidsPath string) error {
	energy, err := os.Open(energyPath)
	if err != nil {
		return fmt.Errorf("error opening energy CSV: %w", err)
	}
	defer energy.Close()

	centroids, err := os.Open(centroidsPath)
	if err != nil {
		return fmt.Errorf("error opening centroid CSV: %w", err)
	}
	defer centroids.Close()

	return imp.ImportAll(energy, centroids)
}

// logJoinGaps walks every imported country and logs the ones without a
// centroid. The ISO code is a diagnostic hint only; the join matches on
// display names.
func (imp *Importer) logJoinGaps() error {
	years, err := imp.store.Years()
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	missing := 0
	for _, year := range years {
		rows, err := imp.store.Countries(year)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if seen[row.Name] {
				continue
			}
			seen[row.Name] = true

			_, ok, err := imp.store.Centroid(row.Name)
			if err != nil {
				return err
			}
			if !ok {
				missing++
				imp.logger.Debug("Country has no centroid and cannot be plotted",
					"country", row.Name, "iso", isoHint(row.Name))
			}
		}
	}

	if missing > 0 {
		imp.logger.Info("Countries without centroids", "count", missing, "total", len(seen))
	}
	return nil
}

// isoHint resolves a display name to an ISO 3166 alpha-3 code for log
// output, or "?" when the name is not recognized.
func isoHint(name string) string {
	if c := countries.ByName(name); c != countries.Unknown {
		return c.Alpha3()
	}
	return "?"
}

// energyColumnIndex validates the leading columns and locates each
// metric column by its header name.
func energyColumnIndex(header []string) (map[model.Metric]int, error) {
	for i, want := range energyLeadColumns {
		if i >= len(header) || strings.TrimSpace(header[i]) != want {
			return nil, fmt.Errorf("energy CSV header: expected column %d to be %q", i, want)
		}
	}

	cols := make(map[model.Metric]int)
	for i, name := range header {
		name = strings.TrimSpace(name)
		for _, metric := range model.Metrics {
			if name == metric.Column() {
				cols[metric] = i
			}
		}
	}
	if len(cols) != len(model.Metrics) {
		return nil, fmt.Errorf("energy CSV header: found %d of %d metric columns", len(cols), len(model.Metrics))
	}
	return cols, nil
}

func parseEnergyRecord(record []string, metricCols map[model.Metric]int) (model.CountryRow, error) {
	if len(record) < len(energyLeadColumns) {
		return model.CountryRow{}, fmt.Errorf("expected at least %d columns, got %d", len(energyLeadColumns), len(record))
	}

	name := strings.TrimSpace(record[0])
	if name == "" {
		return model.CountryRow{}, fmt.Errorf("empty country name")
	}

	year, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil {
		return model.CountryRow{}, fmt.Errorf("error converting year %q to int: %w", record[2], err)
	}

	row := model.CountryRow{
		Name:   name,
		Code:   strings.TrimSpace(record[1]),
		Year:   year,
		Values: make(map[model.Metric]float64),
	}

	for metric, col := range metricCols {
		if col >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[col])
		if cell == "" || cell == ".." {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return model.CountryRow{}, fmt.Errorf("error converting %s value %q to float: %w", metric, cell, err)
		}
		row.Values[metric] = v
	}
	return row, nil
}

func parseCentroidRecord(record []string) (model.Centroid, error) {
	if len(record) < len(centroidColumns) {
		return model.Centroid{}, fmt.Errorf("expected %d columns, got %d", len(centroidColumns), len(record))
	}

	name := strings.TrimSpace(record[0])
	if name == "" {
		return model.Centroid{}, fmt.Errorf("empty country name")
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return model.Centroid{}, fmt.Errorf("error converting longitude %q to float: %w", record[1], err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return model.Centroid{}, fmt.Errorf("error converting latitude %q to float: %w", record[2], err)
	}
	if !geo.ValidLatLon(lat, lon) {
		return model.Centroid{}, fmt.Errorf("coordinates out of range: lat=%v lon=%v", lat, lon)
	}

	return model.Centroid{Country: name, Lat: lat, Lon: lon}, nil
}
