package render

import (
	"log/slog"
	"time"

	"cogentcore.org/core/math32"

	"github.com/spatialplot/globeviz/internal/cache"
)

// SceneLog is a Renderer that records every call through the structured
// logger and nothing else. It is the default sink, and its output is the
// trace external renderer implementations are checked against.
type SceneLog struct {
	logger  *slog.Logger
	handles cache.SafeCounter
}

// NewSceneLog creates a SceneLog writing to logger.
func NewSceneLog(logger *slog.Logger) *SceneLog {
	return &SceneLog{logger: logger}
}

func (s *SceneLog) CreateMarker(pos math32.Vector3, orient math32.Quat, bin int, selected bool) (uint, error) {
	handle := uint(s.handles.Next())
	s.logger.Info("Create marker",
		"handle", handle,
		"x", pos.X, "y", pos.Y, "z", pos.Z,
		"qw", orient.W, "qx", orient.X, "qy", orient.Y, "qz", orient.Z,
		"bin", bin,
		"selected", selected)
	return handle, nil
}

func (s *SceneLog) MoveMarker(handle uint, pos math32.Vector3, duration time.Duration) error {
	s.logger.Info("Move marker",
		"handle", handle,
		"x", pos.X, "y", pos.Y, "z", pos.Z,
		"duration", duration)
	return nil
}

func (s *SceneLog) RecolorMarker(handle uint, bin int) error {
	s.logger.Info("Recolor marker", "handle", handle, "bin", bin)
	return nil
}

func (s *SceneLog) RemoveMarker(handle uint) error {
	s.logger.Info("Remove marker", "handle", handle)
	return nil
}
