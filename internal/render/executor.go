package render

import (
	"log/slog"

	"github.com/spatialplot/globeviz/internal/cache"
	"github.com/spatialplot/globeviz/internal/model"
)

// Executor applies marker operations to a Renderer, keeping the key to
// handle registry that ties reconciliation keys to scene objects.
type Executor struct {
	renderer Renderer
	handles  *cache.HandleCache
	logger   *slog.Logger
}

// NewExecutor creates an Executor driving renderer.
func NewExecutor(renderer Renderer, logger *slog.Logger) *Executor {
	return &Executor{
		renderer: renderer,
		handles:  cache.NewHandleCache(),
		logger:   logger,
	}
}

// Apply runs one pass's operations in order. Renderer errors and unknown
// keys are logged and skipped so one bad marker cannot stall a pass.
func (e *Executor) Apply(ops []model.MarkerOp) {
	for _, op := range ops {
		switch op.Kind {
		case model.OpCreate:
			e.applyCreate(op)
		case model.OpUpdate:
			e.applyUpdate(op)
		case model.OpRemove:
			e.applyRemove(op)
		default:
			e.logger.Warn("Skipping unknown marker operation",
				"kind", string(op.Kind), "key", op.Key)
		}
	}
}

func (e *Executor) applyCreate(op model.MarkerOp) {
	if old, ok := e.handles.Get(op.Key); ok {
		// A create for a live key replaces the existing marker, otherwise
		// the old scene object would leak its handle.
		e.logger.Warn("Create for live marker key, replacing",
			"key", op.Key, "handle", old)
		if err := e.renderer.RemoveMarker(old); err != nil {
			e.logger.Error("Error removing replaced marker",
				"key", op.Key, "handle", old, "error", err)
		}
		e.handles.Delete(op.Key)
	}
	handle, err := e.renderer.CreateMarker(op.Position, op.Orientation, op.Bin, op.Selected)
	if err != nil {
		e.logger.Error("Error creating marker", "key", op.Key, "error", err)
		return
	}
	e.handles.Set(op.Key, handle)
}

func (e *Executor) applyUpdate(op model.MarkerOp) {
	handle, ok := e.handles.Get(op.Key)
	if !ok {
		e.logger.Warn("Update for unknown marker key", "key", op.Key)
		return
	}
	if err := e.renderer.MoveMarker(handle, op.Position, op.Duration); err != nil {
		e.logger.Error("Error moving marker",
			"key", op.Key, "handle", handle, "error", err)
	}
	if err := e.renderer.RecolorMarker(handle, op.Bin); err != nil {
		e.logger.Error("Error recoloring marker",
			"key", op.Key, "handle", handle, "error", err)
	}
}

func (e *Executor) applyRemove(op model.MarkerOp) {
	handle, ok := e.handles.Get(op.Key)
	if !ok {
		e.logger.Warn("Remove for unknown marker key", "key", op.Key)
		return
	}
	if err := e.renderer.RemoveMarker(handle); err != nil {
		e.logger.Error("Error removing marker",
			"key", op.Key, "handle", handle, "error", err)
	}
	e.handles.Delete(op.Key)
}

// Clear removes every live marker from the renderer and empties the
// registry. Used when the scene is rebuilt from scratch.
func (e *Executor) Clear() {
	for _, key := range e.handles.Keys() {
		handle, ok := e.handles.Get(key)
		if !ok {
			continue
		}
		if err := e.renderer.RemoveMarker(handle); err != nil {
			e.logger.Error("Error removing marker",
				"key", key, "handle", handle, "error", err)
		}
	}
	e.handles.Reset()
}

// MarkerCount reports how many markers currently hold scene handles.
func (e *Executor) MarkerCount() int {
	return e.handles.Len()
}

// Keys returns the live marker keys in sorted order.
func (e *Executor) Keys() []string {
	return e.handles.Keys()
}
