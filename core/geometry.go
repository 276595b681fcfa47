package core

import "gonum.org/v1/gonum/spatial/r3"

// EarthRadiusKm is the mean Earth radius used by the occlusion check
// (kilometres). Orbital positions are ECEF in kilometres.
const EarthRadiusKm = 6371.0

// Distance returns the straight-line distance between two points.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// HasLineOfSight checks whether the straight segment between p1 and p2
// clears the Earth sphere. All positions are ECEF in kilometres.
func HasLineOfSight(p1, p2 r3.Vec) bool {
	v := r3.Sub(p2, p1)
	a := r3.Dot(v, v)
	if a == 0 {
		// Same point: visible only if it is outside the Earth.
		return r3.Dot(p1, p1) > EarthRadiusKm*EarthRadiusKm
	}

	// Closest point on the segment to the Earth's centre.
	t := -r3.Dot(p1, v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := r3.Add(p1, r3.Scale(t, v))
	return r3.Dot(closest, closest) > EarthRadiusKm*EarthRadiusKm
}
