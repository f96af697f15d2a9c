package core

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Point is a body-centred display coordinate in metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Ellipse describes the drawn orbit: centre offset along X and the two semi-axes.
type Ellipse struct {
	CenterX       float64
	SemiMajorAxis float64
	SemiMinorAxis float64
}

// EllipseGeometry returns the ellipse to stroke for a bound orbit. The
// centre sits on the far side of the focus from periapsis, so it moves to
// -X for prograde burns and +X for retrograde ones.
func EllipseGeometry(el OrbitalElements) (Ellipse, bool) {
	if !Classify(el.Eccentricity).Bound() {
		return Ellipse{}, false
	}
	c := el.SemiMajorAxis * el.Eccentricity
	if !el.Retrograde {
		c = -c
	}
	return Ellipse{
		CenterX:       c,
		SemiMajorAxis: el.SemiMajorAxis,
		SemiMinorAxis: el.SemiMinorAxis(),
	}, true
}

// BurnMarker is where the impulse is applied: the pre-burn radius on +X.
func BurnMarker(el OrbitalElements) Point {
	return Point{X: el.R1}
}

// OrbitPath samples n points of the conic evenly in true anomaly, closing
// the loop (first and last point coincide). It returns nil for unbound
// trajectories or n < 2.
func OrbitPath(el OrbitalElements, n int) []Point {
	if n < 2 || !Classify(el.Eccentricity).Bound() {
		return nil
	}
	e := el.Eccentricity
	p := el.SemiMajorAxis * (1 - e*e)

	anomalies := floats.Span(make([]float64, n), 0, twoPi)
	pts := make([]Point, n)
	for i, nu := range anomalies {
		r := p / (1 + e*math.Cos(nu))
		angle := DisplayAngle(el, nu)
		pts[i] = Point{X: r * math.Cos(angle), Y: r * math.Sin(angle)}
	}
	return pts
}
