package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// MotionModel reports where a component is at a given simulation time.
type MotionModel interface {
	PositionAt(simTime time.Time) r3.Vec
}

// StaticMotion keeps a component at a fixed position.
type StaticMotion struct {
	Position r3.Vec
}

// PositionAt returns the fixed position.
func (m StaticMotion) PositionAt(time.Time) r3.Vec { return m.Position }

// OrbitalSGP4Motion propagates a two-line element set with SGP4.
type OrbitalSGP4Motion struct {
	sat satellite.Satellite
}

// NewOrbitalMotionFromTLE constructs an orbital model from TLE lines.
func NewOrbitalMotionFromTLE(line1, line2 string) *OrbitalSGP4Motion {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &OrbitalSGP4Motion{sat: sat}
}

// PositionAt propagates the satellite to simTime and returns its ECEF
// position in kilometres.
func (m *OrbitalSGP4Motion) PositionAt(simTime time.Time) r3.Vec {
	simTime = simTime.UTC()
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	return r3.Vec{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
}

// NewMotionModel uses SGP4 when both TLE lines are present and a fixed
// position otherwise.
func NewMotionModel(position r3.Vec, tle1, tle2 string) MotionModel {
	if tle1 != "" && tle2 != "" {
		return NewOrbitalMotionFromTLE(tle1, tle2)
	}
	return StaticMotion{Position: position}
}
