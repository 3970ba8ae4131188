package geo

import (
	"cogentcore.org/core/math32"
)

// TextureOffsetDeg is subtracted from longitude before projecting onto the
// sphere. The equirectangular globe texture is seamed 170 degrees west of
// the prime meridian, so marker placement has to shift by the same amount
// to land on the artwork.
const TextureOffsetDeg = 170

// markerUp is the canonical axis a marker model points along before any
// orientation is applied.
var markerUp = math32.Vec3(0, 1, 0)

// Project maps a latitude/longitude in degrees onto a sphere of the given
// radius and expresses the result in the parent entity's pre-scale local
// space by dividing each component by the parent's scale.
func Project(lat, lon float64, radius float32, parentScale math32.Vector3) math32.Vector3 {
	latRad := math32.DegToRad(float32(lat))
	lonRad := math32.DegToRad(float32(lon - TextureOffsetDeg))

	p := math32.Vec3(
		radius*math32.Cos(latRad)*math32.Sin(lonRad),
		radius*math32.Sin(latRad),
		radius*math32.Cos(latRad)*math32.Cos(lonRad),
	)
	return math32.Vec3(p.X/parentScale.X, p.Y/parentScale.Y, p.Z/parentScale.Z)
}

// OutwardNormal returns the unit direction from the sphere center through
// the given surface point.
func OutwardNormal(point math32.Vector3) math32.Vector3 {
	return point.Normal()
}

// OutwardOrientation returns the rotation that takes the canonical marker
// axis onto the outward normal at the given surface point, so a marker
// placed there stands perpendicular to the surface.
func OutwardOrientation(point math32.Vector3) math32.Quat {
	var q math32.Quat
	q.SetFromUnitVectors(markerUp, point.Normal())
	return q
}
