package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// StorageConfig selects the dataset store backend.
type StorageConfig struct {
	Type string `json:"type" mapstructure:"type"`
}

// DatasetConfig points at the CSV inputs and the optional outline file used
// by flat-map previews.
type DatasetConfig struct {
	EnergyCSV    string `json:"energyCSV" mapstructure:"energyCSV"`
	CentroidsCSV string `json:"centroidsCSV" mapstructure:"centroidsCSV"`
	Outlines     string `json:"outlines" mapstructure:"outlines"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "database")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "globeviz")
	viper.SetDefault("db.sqlitePath", "")
	viper.SetDefault("db.dumpDir", ".")
	viper.SetDefault("db.dumpIntervalSeconds", 180)

	viper.SetDefault("dataset.energyCSV", "data/energy_data_multi_year.csv")
	viper.SetDefault("dataset.centroidsCSV", "data/country_centroids.csv")
	viper.SetDefault("dataset.outlines", "")

	viper.SetDefault("globe.radius", 1.0)
	viper.SetDefault("globe.scale", []float64{1.0, 1.0, 1.0})

	viper.SetDefault("defaults.metric", "power")
	viper.SetDefault("defaults.year", 2020)

	viper.SetDefault("http.listen", ":8080")

	viper.SetDefault("push.enabled", false)
	viper.SetDefault("push.url", "")
	viper.SetDefault("push.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "globeviz-metrics")
	viper.SetDefault("influx.bucket", "globeviz")
	viper.SetDefault("telemetry.backupDir", "backup")

	viper.SetDefault("snapshot.enabled", false)
	viper.SetDefault("snapshot.dir", "snapshots")

	viper.SetDefault("monitor.intervalSeconds", 60)

	viper.SetConfigName("globeviz.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetStorageConfig returns the storage backend selection.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
	}
}

// GetDatasetConfig returns the dataset file locations.
func GetDatasetConfig() DatasetConfig {
	return DatasetConfig{
		EnergyCSV:    viper.GetString("dataset.energyCSV"),
		CentroidsCSV: viper.GetString("dataset.centroidsCSV"),
		Outlines:     viper.GetString("dataset.outlines"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
