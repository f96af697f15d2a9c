package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestOrbitPath_CircularHasConstantRadius(t *testing.T) {
	el := ComputeElements(earthGM, earthRadius, 400, 0)
	pts := OrbitPath(el, 64)
	if len(pts) != 64 {
		t.Fatalf("len(OrbitPath) = %d, want 64", len(pts))
	}
	for i, p := range pts {
		if r := math.Hypot(p.X, p.Y); !scalar.EqualWithinRel(r, el.R1, 1e-9) {
			t.Fatalf("point %d radius = %v, want %v", i, r, el.R1)
		}
	}
	first, last := pts[0], pts[len(pts)-1]
	if !scalar.EqualWithinAbs(first.X, last.X, 1e-3) || !scalar.EqualWithinAbs(first.Y, last.Y, 1e-3) {
		t.Fatalf("path not closed: first %+v last %+v", first, last)
	}
}

func TestOrbitPath_BurnPointOnPositiveX(t *testing.T) {
	for _, dv := range []float64{700, -700} {
		el := ComputeElements(earthGM, earthRadius, 400, dv)
		pts := OrbitPath(el, 9)
		marker := BurnMarker(el)

		found := false
		for _, p := range pts {
			if scalar.EqualWithinRel(p.X, marker.X, 1e-9) && math.Abs(p.Y) < 1e-3 {
				found = true
			}
		}
		if !found {
			t.Fatalf("dv=%v: burn marker %+v not on sampled path", dv, marker)
		}
	}
}

func TestOrbitPath_UnboundIsEmpty(t *testing.T) {
	el := ComputeElements(earthGM, earthRadius, 400, 3500)
	if pts := OrbitPath(el, 32); pts != nil {
		t.Fatalf("escape trajectory produced %d points", len(pts))
	}
	if _, ok := EllipseGeometry(el); ok {
		t.Fatalf("escape trajectory produced an ellipse")
	}
	if pts := OrbitPath(ComputeElements(earthGM, earthRadius, 400, 0), 1); pts != nil {
		t.Fatalf("n=1 should produce no path")
	}
}

func TestEllipseGeometry_CentreSide(t *testing.T) {
	pro, ok := EllipseGeometry(ComputeElements(earthGM, earthRadius, 400, 900))
	if !ok || pro.CenterX >= 0 {
		t.Fatalf("prograde ellipse = %+v, want centre on -X", pro)
	}
	retro, ok := EllipseGeometry(ComputeElements(earthGM, earthRadius, 400, -900))
	if !ok || retro.CenterX <= 0 {
		t.Fatalf("retrograde ellipse = %+v, want centre on +X", retro)
	}
	if retro.SemiMinorAxis > retro.SemiMajorAxis {
		t.Fatalf("semi-minor %v exceeds semi-major %v", retro.SemiMinorAxis, retro.SemiMajorAxis)
	}
}
