// Package render consumes marker operations and makes them visible: calls
// on a rendering collaborator, a flat-map preview image, and versioned
// scene snapshots.
package render

import (
	"time"

	"cogentcore.org/core/math32"
)

// Renderer is the rendering collaborator. Implementations own the scene
// graph; this side only keeps the opaque handles they hand out.
type Renderer interface {
	// CreateMarker adds a marker to the scene and returns the handle all
	// later calls for this marker use.
	CreateMarker(pos math32.Vector3, orient math32.Quat, bin int, selected bool) (uint, error)
	// MoveMarker animates the marker to pos over duration.
	MoveMarker(handle uint, pos math32.Vector3, duration time.Duration) error
	// RecolorMarker switches the marker to the bin's color class.
	RecolorMarker(handle uint, bin int) error
	// RemoveMarker takes the marker out of the scene and retires its handle.
	RemoveMarker(handle uint) error
}
