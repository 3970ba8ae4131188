package v1

import (
	"sort"
	"time"

	"github.com/spatialplot/globeviz/internal/model"
)

// SceneData contains everything needed to build a snapshot
type SceneData struct {
	Selection model.Selection
	Markers   map[string]model.MarkerState
	Stats     model.PassStats
	GlobalMax float64
	Time      time.Time
}

// Build creates a Snapshot from the scene data. Markers are emitted in key
// order so identical scenes produce identical documents.
func Build(data *SceneData) Snapshot {
	snap := Snapshot{
		Version:   1,
		Generated: data.Time,
		Metric:    string(data.Selection.Metric),
		Year:      data.Selection.Year,
		Country:   data.Selection.Country,
		GlobalMax: data.GlobalMax,
		Markers:   make([]Marker, 0, len(data.Markers)),
		Stats: Stats{
			Creates:    data.Stats.Creates,
			Updates:    data.Stats.Updates,
			Removes:    data.Stats.Removes,
			Skipped:    data.Stats.Skipped,
			DurationMS: data.Stats.Duration.Milliseconds(),
		},
	}

	keys := make([]string, 0, len(data.Markers))
	for k := range data.Markers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		st := data.Markers[k]
		snap.Markers = append(snap.Markers, Marker{
			Key:      st.Key,
			Position: [3]float32{st.Position.X, st.Position.Y, st.Position.Z},
			Bin:      st.Bin,
			Selected: st.Selected,
		})
	}

	return snap
}
