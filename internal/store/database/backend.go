// Package database implements the store.Backend interface using
// GORM/PostgreSQL with an in-memory SQLite fallback and a periodic
// disk dump goroutine.
package database

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spatialplot/globeviz/internal/model"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	Manager *Manager
	Logger  *slog.Logger
}

// Backend implements store.Backend using GORM with the connection manager.
type Backend struct {
	deps     Dependencies
	stopChan chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init connects, migrates the schema, and starts the periodic disk dump
// goroutine when running on in-memory SQLite. A DB already present on
// the manager is used as-is.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})

	if b.deps.Manager.DB == nil {
		if err := b.deps.Manager.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
	}
	if err := b.deps.Manager.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	if b.deps.Manager.ShouldSaveLocal && viper.GetString("db.sqlitePath") == "" {
		dumpDir := viper.GetString("db.dumpDir")
		b.deps.Manager.SqliteFilePath = filepath.Join(dumpDir,
			fmt.Sprintf("globeviz_%s.db", time.Now().Format("20060102_150405")))

		if previous, err := GetBackupDBPaths(dumpDir); err == nil && len(previous) > 0 {
			b.deps.Logger.Info("Found previous DB dumps", "dir", dumpDir, "count", len(previous))
		}

		b.startDumpLoop()
	}

	return nil
}

// startDumpLoop starts the background goroutine that periodically dumps
// the in-memory database to disk.
func (b *Backend) startDumpLoop() {
	interval := time.Duration(viper.GetInt("db.dumpIntervalSeconds")) * time.Second

	go func() {
		for {
			select {
			case <-b.stopChan:
				return
			case <-time.After(interval):
			}

			if !b.deps.Manager.ShouldSaveLocal {
				continue
			}
			if err := b.deps.Manager.DumpMemoryToDisk(); err != nil {
				b.deps.Logger.Error("Failed to dump DB to disk", "error", err)
			}
		}
	}()
}

// Close stops the dump goroutine and closes the connection pool.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	return b.deps.Manager.Close()
}

// PutCountryYears converts and bulk-inserts dataset rows, replacing any
// existing row for the same country and year. Inserts are chunked by
// the connection's CreateBatchSize.
func (b *Backend) PutCountryYears(rows []model.CountryRow) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]CountryYearRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := RowToRecord(row)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	err := b.deps.Manager.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "values", "updated_at"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to insert country years: %w", err)
	}
	return nil
}

// PutCentroids converts and bulk-inserts centroids, replacing any
// existing centroid for the same country.
func (b *Backend) PutCentroids(centroids []model.Centroid) error {
	if len(centroids) == 0 {
		return nil
	}

	records := make([]CentroidRecord, 0, len(centroids))
	for _, c := range centroids {
		rec, err := CentroidToRecord(c)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	err := b.deps.Manager.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "country"}},
		DoUpdates: clause.AssignmentColumns([]string{"location", "updated_at"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to insert centroids: %w", err)
	}
	return nil
}

// Reset hard-deletes all dataset rows and centroids. Soft deletes would
// collide with the unique indexes on re-import.
func (b *Backend) Reset() error {
	db := b.deps.Manager.DB
	if err := db.Unscoped().Where("1 = 1").Delete(&CountryYearRecord{}).Error; err != nil {
		return fmt.Errorf("failed to reset country years: %w", err)
	}
	if err := db.Unscoped().Where("1 = 1").Delete(&CentroidRecord{}).Error; err != nil {
		return fmt.Errorf("failed to reset centroids: %w", err)
	}
	return nil
}

// SamplesForYear returns one sample per country row in the year, sorted
// by name. Countries without a centroid come back with nil coordinates,
// rows without the metric with a nil value.
func (b *Backend) SamplesForYear(metric model.Metric, year int) ([]model.MetricSample, error) {
	var records []CountryYearRecord
	err := b.deps.Manager.DB.Where("year = ?", year).Order("name").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query year %d: %w", year, err)
	}

	centroids, err := b.centroidsByCountry()
	if err != nil {
		return nil, err
	}

	samples := make([]model.MetricSample, 0, len(records))
	for _, rec := range records {
		row, err := RecordToRow(rec)
		if err != nil {
			return nil, err
		}

		sample := model.MetricSample{
			Key:  row.Name,
			Year: row.Year,
		}
		if v, ok := row.Values[metric]; ok {
			sample.Value = model.Float64Ptr(v)
		}
		if c, ok := centroids[row.Name]; ok {
			sample.Lat = model.Float64Ptr(c.Lat)
			sample.Lon = model.Float64Ptr(c.Lon)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// AllValues returns the metric's values across every country and year.
// Rows missing the metric are skipped.
func (b *Backend) AllValues(metric model.Metric) ([]float64, error) {
	var records []CountryYearRecord
	if err := b.deps.Manager.DB.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query country years: %w", err)
	}

	var values []float64
	for _, rec := range records {
		row, err := RecordToRow(rec)
		if err != nil {
			return nil, err
		}
		if v, ok := row.Values[metric]; ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// Years returns the distinct dataset years in ascending order.
func (b *Backend) Years() ([]int, error) {
	var years []int
	err := b.deps.Manager.DB.Model(&CountryYearRecord{}).
		Distinct().Order("year").Pluck("year", &years).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	return years, nil
}

// Countries returns all country rows for the year, sorted by name.
func (b *Backend) Countries(year int) ([]model.CountryRow, error) {
	var records []CountryYearRecord
	err := b.deps.Manager.DB.Where("year = ?", year).Order("name").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query year %d: %w", year, err)
	}
	return recordsToRows(records)
}

// CountryYears returns all rows for the country, sorted by year.
func (b *Backend) CountryYears(country string) ([]model.CountryRow, error) {
	var records []CountryYearRecord
	err := b.deps.Manager.DB.Where("name = ?", country).Order("year").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query country %s: %w", country, err)
	}
	return recordsToRows(records)
}

// Centroid looks up one country's centroid.
func (b *Backend) Centroid(country string) (model.Centroid, bool, error) {
	var rec CentroidRecord
	err := b.deps.Manager.DB.Where("country = ?", country).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.Centroid{}, false, nil
		}
		return model.Centroid{}, false, fmt.Errorf("failed to query centroid %s: %w", country, err)
	}
	return RecordToCentroid(rec), true, nil
}

func (b *Backend) centroidsByCountry() (map[string]model.Centroid, error) {
	var records []CentroidRecord
	if err := b.deps.Manager.DB.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query centroids: %w", err)
	}

	centroids := make(map[string]model.Centroid, len(records))
	for _, rec := range records {
		c := RecordToCentroid(rec)
		centroids[c.Country] = c
	}
	return centroids, nil
}

func recordsToRows(records []CountryYearRecord) ([]model.CountryRow, error) {
	rows := make([]model.CountryRow, 0, len(records))
	for _, rec := range records {
		row, err := RecordToRow(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
