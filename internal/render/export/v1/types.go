// Package v1 contains the v1 scene snapshot format. A snapshot lets an
// external renderer restore the full marker set in one document instead of
// replaying the operation history.
package v1

import "time"

// Snapshot is the root JSON structure for the v1 format
type Snapshot struct {
	Version   int       `json:"version"`
	Generated time.Time `json:"generated"`
	Metric    string    `json:"metric"`
	Year      int       `json:"year"`
	Country   string    `json:"country,omitempty"`
	GlobalMax float64   `json:"globalMax"`
	Markers   []Marker  `json:"markers"`
	Stats     Stats     `json:"stats"`
}

// Marker is one displayed marker
type Marker struct {
	Key      string     `json:"key"`
	Position [3]float32 `json:"position"`
	Bin      int        `json:"bin"`
	Selected bool       `json:"selected"`
}

// Stats carries the operation counts of the pass that produced the scene
type Stats struct {
	Creates    int   `json:"creates"`
	Updates    int   `json:"updates"`
	Removes    int   `json:"removes"`
	Skipped    int   `json:"skipped"`
	DurationMS int64 `json:"durationMs"`
}
