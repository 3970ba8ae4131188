package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/spatialplot/globeviz/internal/geo"
	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/quantile"
)

// Offsets are in normalized sphere-radius units.
const (
	// BaseOffset lifts every marker slightly off the surface so it never
	// sinks into the globe mesh.
	BaseOffset = 0.002
	// HeightScale converts a [0,1] height fraction into surface offset.
	HeightScale = 0.030
	// MoveDuration is how long an updated marker animates to its new
	// position and color.
	MoveDuration = 500 * time.Millisecond
)

// Pass is one reconciliation input: the sample set for the current metric
// and year plus the context needed to place and color markers.
type Pass struct {
	Samples     []model.MetricSample
	Metric      string
	GlobalMax   float64
	Ref         *model.SphereRef
	SelectedKey string
}

// Reconcile diffs the pass samples against the previous marker map and
// returns the operations that bring the displayed set up to date, plus the
// marker map for the next pass.
//
// Samples are processed in input order and removals appended in sorted key
// order, so output is deterministic. Samples without coordinates or with a
// nil or zero value are excluded entirely; their previous markers fall out
// through the removal sweep. A duplicate key within one pass panics.
func Reconcile(pass Pass, prev map[string]model.MarkerState) ([]model.MarkerOp, map[string]model.MarkerState) {
	boundaries := quantile.ComputeBoundaries(sampleValues(pass.Samples))

	ops := make([]model.MarkerOp, 0, len(pass.Samples))
	next := make(map[string]model.MarkerState, len(pass.Samples))

	for _, s := range pass.Samples {
		if !s.Plottable() {
			continue
		}
		if _, dup := next[s.Key]; dup {
			panic(fmt.Sprintf("reconcile: duplicate sample key %q in one pass", s.Key))
		}
		// No reference model loaded means nothing can be placed; the
		// sample is skipped without being marked seen.
		if pass.Ref == nil {
			continue
		}

		value := *s.Value
		surface := geo.Project(*s.Lat, *s.Lon, pass.Ref.Radius, pass.Ref.Scale)
		bin := quantile.Classify(value, boundaries)

		// Heights are normalized against the all-time maximum so they
		// stay comparable across year changes. Negative values get a
		// small fixed height; more negative is not taller.
		fraction := value / pass.GlobalMax
		if value < 0 {
			fraction = 0.1 / pass.GlobalMax
		}
		offset := BaseOffset + fraction*HeightScale
		position := surface.Add(surface.Normal().MulScalar(float32(offset)))

		selected := s.Key == pass.SelectedKey
		if _, ok := prev[s.Key]; ok {
			ops = append(ops, model.MarkerOp{
				Kind:     model.OpUpdate,
				Key:      s.Key,
				Position: position,
				Bin:      bin,
				Selected: selected,
				Duration: MoveDuration,
			})
		} else {
			ops = append(ops, model.MarkerOp{
				Kind:        model.OpCreate,
				Key:         s.Key,
				Position:    position,
				Orientation: geo.OutwardOrientation(surface),
				Bin:         bin,
				Selected:    selected,
			})
		}
		next[s.Key] = model.MarkerState{
			Key:      s.Key,
			Position: position,
			Bin:      bin,
			Selected: selected,
		}
	}

	removed := make([]string, 0, len(prev))
	for key := range prev {
		if _, ok := next[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	for _, key := range removed {
		ops = append(ops, model.MarkerOp{Kind: model.OpRemove, Key: key})
	}

	return ops, next
}

// sampleValues collects every present value for boundary computation; the
// classifier does its own positive filtering.
func sampleValues(samples []model.MetricSample) []float64 {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Value != nil {
			values = append(values, *s.Value)
		}
	}
	return values
}
