package worker

import (
	"fmt"

	"github.com/spatialplot/globeviz/internal/dispatcher"
	"github.com/spatialplot/globeviz/internal/model"
	exportv1 "github.com/spatialplot/globeviz/internal/render/export/v1"
	"github.com/spatialplot/globeviz/internal/session"
	"github.com/spatialplot/globeviz/internal/stream"
)

// RegisterHandlers registers a pass-result handler per configured sink.
// The executor applies ops synchronously so the scene is current before
// Apply returns; the network and disk sinks run buffered so a slow
// collector cannot stall a pass.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Scene application - sync (the marker registry must be current
	// before the next pass diffs against it)
	d.Register(session.EventPass, "executor", m.handleExecutor, dispatcher.Logged())

	if m.deps.Broadcaster != nil {
		d.Register(session.EventPass, "broadcast", m.handleBroadcast,
			dispatcher.Buffered(64), dispatcher.Logged())
	}

	if m.deps.Push != nil {
		d.Register(session.EventPass, "push", m.handlePush,
			dispatcher.Buffered(256), dispatcher.Logged())
	}

	if m.deps.Telemetry != nil {
		d.Register(session.EventPass, "telemetry", m.handleTelemetry,
			dispatcher.Buffered(256), dispatcher.Logged())
	}

	if m.deps.Snapshots != nil {
		d.Register(session.EventPass, "snapshot", m.handleSnapshot,
			dispatcher.Buffered(16), dispatcher.Logged())
	}
}

// passResult extracts the PassResult payload or fails the handler.
func passResult(e dispatcher.Event) (model.PassResult, error) {
	res, ok := e.Payload.(model.PassResult)
	if !ok {
		return model.PassResult{}, fmt.Errorf("unexpected payload type %T for %s", e.Payload, e.Name)
	}
	return res, nil
}

func (m *Manager) handleExecutor(e dispatcher.Event) (any, error) {
	res, err := passResult(e)
	if err != nil {
		return nil, err
	}
	m.deps.Executor.Apply(res.Ops)
	return nil, nil
}

func (m *Manager) handleBroadcast(e dispatcher.Event) (any, error) {
	res, err := passResult(e)
	if err != nil {
		return nil, err
	}
	env, err := stream.PassEnvelope(res)
	if err != nil {
		return nil, fmt.Errorf("error building broadcast envelope: %w", err)
	}
	m.deps.Broadcaster.Broadcast(env)
	return nil, nil
}

func (m *Manager) handlePush(e dispatcher.Event) (any, error) {
	res, err := passResult(e)
	if err != nil {
		return nil, err
	}
	if err := m.deps.Push.SendOps(stream.PassOps(res)); err != nil {
		return nil, fmt.Errorf("error pushing pass ops: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleTelemetry(e dispatcher.Event) (any, error) {
	res, err := passResult(e)
	if err != nil {
		return nil, err
	}
	if err := m.deps.Telemetry.WritePass(res); err != nil {
		return nil, fmt.Errorf("error recording pass telemetry: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleSnapshot(e dispatcher.Event) (any, error) {
	res, err := passResult(e)
	if err != nil {
		return nil, err
	}
	if m.deps.Scene == nil {
		return nil, fmt.Errorf("snapshot sink registered without a scene source")
	}

	// The scene may already reflect a later pass; snapshots record the
	// current display, not pass history.
	sel, markers, globalMax := m.deps.Scene.Scene()
	path, err := m.deps.Snapshots.Write(&exportv1.SceneData{
		Selection: sel,
		Markers:   markers,
		Stats:     res.Stats,
		GlobalMax: globalMax,
		Time:      e.Time,
	})
	if err != nil {
		return nil, fmt.Errorf("error writing scene snapshot: %w", err)
	}
	return path, nil
}

// MarkerCount reports how many markers the executor currently holds scene
// handles for. Used by the runtime monitor.
func (m *Manager) MarkerCount() int {
	return m.deps.Executor.MarkerCount()
}
