// Package worker wires the pass-result sinks to the event dispatcher.
// Each sink is optional; only the non-nil ones get handlers.
package worker

import (
	"log/slog"

	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/render"
	"github.com/spatialplot/globeviz/internal/stream"
	"github.com/spatialplot/globeviz/internal/telemetry"
)

// SceneSource yields the current displayed scene for snapshot sinks: the
// selection, the marker map, and the metric's global maximum.
type SceneSource interface {
	Scene() (model.Selection, map[string]model.MarkerState, float64)
}

// Dependencies holds the sinks a pass result fans out to. Executor and
// Logger are required; everything else is optional per config.
type Dependencies struct {
	Executor    *render.Executor
	Broadcaster *stream.Broadcaster
	Push        *stream.PushClient
	Telemetry   *telemetry.Manager
	Snapshots   *render.SnapshotWriter
	Scene       SceneSource
	Logger      *slog.Logger
}

// Manager registers and owns the pass-result handlers.
type Manager struct {
	deps Dependencies
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}
