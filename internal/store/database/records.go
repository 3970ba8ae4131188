// internal/store/database/records.go
package database

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which
// represent tables in the database schema
var DatabaseModels = []interface{}{
	&InstanceInfo{},
	&CountryYearRecord{},
	&CentroidRecord{},
}

// InstanceInfo contains display information about the instance
type InstanceInfo struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
	Website     string `json:"websiteURL" gorm:"size:255"`
}

func (*InstanceInfo) TableName() string {
	return "instance_infos"
}

// CountryYearRecord is one imported dataset row: one country in one
// year. Metric values live in a JSON column keyed by metric identifier,
// so adding a metric never needs a schema change.
type CountryYearRecord struct {
	gorm.Model
	Name   string         `json:"name" gorm:"size:127;index:idx_country_year,unique"`
	Code   string         `json:"code" gorm:"size:3"`
	Year   int            `json:"year" gorm:"index:idx_country_year,unique;index:idx_year"`
	Values datatypes.JSON `json:"values"`
}

func (*CountryYearRecord) TableName() string {
	return "country_years"
}

// CentroidRecord ties a country name to its WGS84 centroid. Location
// stores longitude as X and latitude as Y and round-trips as WKB.
type CentroidRecord struct {
	gorm.Model
	Country  string     `json:"country" gorm:"size:127;uniqueIndex"`
	Location geom.Point `json:"location"`
}

func (*CentroidRecord) TableName() string {
	return "centroids"
}
