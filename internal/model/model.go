package model

import (
	"time"

	"cogentcore.org/core/math32"
)

// Metric identifies one of the dataset's indicator columns.
type Metric string

const (
	MetricPower     Metric = "power"
	MetricEnergy    Metric = "energy"
	MetricEmissions Metric = "emissions"
)

// Metrics lists every known metric in display order.
var Metrics = []Metric{MetricPower, MetricEnergy, MetricEmissions}

// metricColumns maps each metric to its CSV column header.
var metricColumns = map[Metric]string{
	MetricPower:     "Electric Power Consumption (kWh per capita)",
	MetricEnergy:    "Energy Use (kg oil equivalent per capita)",
	MetricEmissions: "Greenhouse Gas Emissions (Mt CO2e)",
}

// Column returns the CSV column header for the metric, or "" if unknown.
func (m Metric) Column() string {
	return metricColumns[m]
}

// Valid reports whether the metric is one of the known identifiers.
func (m Metric) Valid() bool {
	_, ok := metricColumns[m]
	return ok
}

// MetricSample is one country's value for one metric in one year.
// Key is the country display name and must be unique within a single
// year's sample set. A nil Value or missing coordinates mean the
// country is not plottable this pass.
type MetricSample struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
	Year  int      `json:"year"`
}

// Plottable reports whether the sample has coordinates and a usable
// (non-nil, non-zero) value.
func (s MetricSample) Plottable() bool {
	return s.Lat != nil && s.Lon != nil && s.Value != nil && *s.Value != 0
}

// QuantileBoundaries holds the four thresholds that partition a sorted
// value set into five bins. Valid is false when fewer than five
// positive values were available; classification then defaults to the
// middle bin.
type QuantileBoundaries struct {
	Thresholds [4]float64 `json:"thresholds"`
	Valid      bool       `json:"valid"`
}

// MarkerState is the authoritative logical state of one country's
// marker. At most one exists per key; the reconciler owns the map.
type MarkerState struct {
	Key      string         `json:"key"`
	Position math32.Vector3 `json:"position"`
	Bin      int            `json:"bin"`
	Selected bool           `json:"selected"`
}

// OpKind discriminates marker operations.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
)

// MarkerOp is one instruction for the rendering collaborator. Create
// carries the full initial pose, update carries the new position and
// bin plus the animation duration, remove carries only the key.
type MarkerOp struct {
	Kind        OpKind         `json:"kind"`
	Key         string         `json:"key"`
	Position    math32.Vector3 `json:"position"`
	Orientation math32.Quat    `json:"orientation"`
	Bin         int            `json:"bin"`
	Selected    bool           `json:"selected"`
	Duration    time.Duration  `json:"duration"`
}

// SphereRef describes the loaded reference globe: the visual radius
// markers sit on and the non-uniform scale of the parent entity they
// attach under. A nil *SphereRef means the model is not loaded and
// projection must be skipped.
type SphereRef struct {
	Radius float32        `json:"radius"`
	Scale  math32.Vector3 `json:"scale"`
}

// Selection is the active metric/year/country choice driving a
// reconciliation pass.
type Selection struct {
	Metric  Metric `json:"metric"`
	Year    int    `json:"year"`
	Country string `json:"country,omitempty"`
}

// PassStats summarizes one reconciliation pass.
type PassStats struct {
	Creates  int           `json:"creates"`
	Updates  int           `json:"updates"`
	Removes  int           `json:"removes"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// PassResult is the event payload published after each pass.
type PassResult struct {
	Selection Selection  `json:"selection"`
	Ops       []MarkerOp `json:"ops"`
	Stats     PassStats  `json:"stats"`
	Time      time.Time  `json:"time"`
}

// CountryRow is one imported dataset row: one country in one year with
// all metric values present.
type CountryRow struct {
	Name   string             `json:"name"`
	Code   string             `json:"code"`
	Year   int                `json:"year"`
	Values map[Metric]float64 `json:"values"`
}

// Centroid ties a country display name to its geographic center.
type Centroid struct {
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Float64Ptr returns a pointer to v. Convenience for building samples.
func Float64Ptr(v float64) *float64 {
	return &v
}
