package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestHasLineOfSight_NoObstruction(t *testing.T) {
	// The segment stays at x = 8000 km, well outside Earth.
	posA := r3.Vec{X: 8000, Y: 0, Z: 0}
	posB := r3.Vec{X: 8000, Y: 1000, Z: 0}

	if !HasLineOfSight(posA, posB) {
		t.Errorf("expected LoS between two high satellites on same side of Earth")
	}
}

func TestHasLineOfSight_Obstructed(t *testing.T) {
	posA := r3.Vec{X: 7000, Y: 0, Z: 0}
	posB := r3.Vec{X: -7000, Y: 0, Z: 0}

	if HasLineOfSight(posA, posB) {
		t.Errorf("expected LoS to be blocked by Earth")
	}
}

func TestHasLineOfSight_SamePoint(t *testing.T) {
	inside := r3.Vec{X: 100}
	if HasLineOfSight(inside, inside) {
		t.Errorf("point inside Earth should not see itself")
	}
	outside := r3.Vec{X: 7000}
	if !HasLineOfSight(outside, outside) {
		t.Errorf("point outside Earth should see itself")
	}
}

func TestDistance(t *testing.T) {
	got := Distance(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 4, Y: 6, Z: 3})
	if math.Abs(got-5) > 1e-12 {
		t.Fatalf("Distance = %v, want 5", got)
	}
}
