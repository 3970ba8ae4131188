package geo

import (
	"cogentcore.org/core/math32"
)

// viewForward is the camera-facing axis a focused target is rotated onto.
var viewForward = math32.Vec3(0, 0, -1)

// viewNorth is the world up direction used to pin roll.
var viewNorth = math32.Vec3(0, 1, 0)

// SolveOrientation returns the globe rotation that brings the target
// latitude/longitude to face the viewer with north kept upright.
//
// The target direction negates latitude and uses longitude unshifted. This
// convention belongs to the globe asset's rest pose and is intentionally
// different from marker placement; the two must not be unified.
func SolveOrientation(lat, lon float64) math32.Quat {
	latRad := math32.DegToRad(float32(-lat))
	lonRad := math32.DegToRad(float32(lon))

	target := math32.Vec3(
		math32.Cos(latRad)*math32.Sin(lonRad),
		math32.Sin(latRad),
		math32.Cos(latRad)*math32.Cos(lonRad),
	)

	// Shortest arc taking the target direction onto the view axis.
	var q1 math32.Quat
	q1.SetFromUnitVectors(target, viewForward)

	// That arc is free to spin the globe about the view axis, so measure
	// how far north drifted and rotate it back.
	rotatedNorth := viewNorth.MulQuat(q1)
	roll := math32.Atan2(rotatedNorth.X, rotatedNorth.Y)
	correction := math32.NewQuatAxisAngle(viewForward, -roll)

	var out math32.Quat
	out.MulQuats(correction, q1)
	return out
}
