package stream

import (
	"sort"

	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/pkg/markerops"
)

// PassOps converts one pass result into the marker_ops wire payload.
func PassOps(res model.PassResult) markerops.OpsPayload {
	ops := make([]markerops.Op, 0, len(res.Ops))
	for _, op := range res.Ops {
		ops = append(ops, markerops.Op{
			Kind:        string(op.Kind),
			Key:         op.Key,
			Position:    [3]float32{op.Position.X, op.Position.Y, op.Position.Z},
			Orientation: [4]float32{op.Orientation.W, op.Orientation.X, op.Orientation.Y, op.Orientation.Z},
			Bin:         op.Bin,
			Selected:    op.Selected,
			DurationMS:  op.Duration.Milliseconds(),
		})
	}
	return markerops.OpsPayload{
		Metric:  string(res.Selection.Metric),
		Year:    res.Selection.Year,
		Country: res.Selection.Country,
		Ops:     ops,
	}
}

// PassEnvelope wraps one pass result as a marker_ops envelope.
func PassEnvelope(res model.PassResult) (markerops.Envelope, error) {
	return markerops.NewEnvelope(markerops.TypeMarkerOps, PassOps(res))
}

// SceneEnvelope wraps the displayed scene as a scene_snapshot envelope.
// Markers are emitted in key order.
func SceneEnvelope(sel model.Selection, markers map[string]model.MarkerState, globalMax float64) (markerops.Envelope, error) {
	keys := make([]string, 0, len(markers))
	for k := range markers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sm := make([]markerops.SceneMarker, 0, len(markers))
	for _, k := range keys {
		st := markers[k]
		sm = append(sm, markerops.SceneMarker{
			Key:      st.Key,
			Position: [3]float32{st.Position.X, st.Position.Y, st.Position.Z},
			Bin:      st.Bin,
			Selected: st.Selected,
		})
	}

	return markerops.NewEnvelope(markerops.TypeSceneSnapshot, markerops.SnapshotPayload{
		Metric:    string(sel.Metric),
		Year:      sel.Year,
		Country:   sel.Country,
		GlobalMax: globalMax,
		Markers:   sm,
	})
}
