package core

import (
	"fmt"
	"math"
)

const (
	twoPi = 2 * math.Pi

	// DefaultKeplerIterations is the fixed Newton step count. Five steps keep
	// the residual far below a pixel for the eccentricities the sliders reach.
	DefaultKeplerIterations = 5

	// DefaultTimeAcceleration scales simulated seconds to orbit seconds.
	DefaultTimeAcceleration = 150.0
)

// Position is the propagated location of the body on its conic.
type Position struct {
	MeanAnomaly      float64
	EccentricAnomaly float64
	// TrueAnomaly is measured from periapsis and never carries the
	// retrograde display offset.
	TrueAnomaly float64
	Radius      float64 // metres from the body centre
	AltitudeKm  float64

	// DisplayAngle is TrueAnomaly+pi for retrograde burns so the burn point
	// stays on the +X axis.
	DisplayAngle float64
	X, Y         float64 // metres, body-centred display frame
}

// Propagator solves Kepler's equation with a fixed number of Newton steps.
// The zero value uses DefaultKeplerIterations.
type Propagator struct {
	Iterations int
}

// NewPropagator returns a propagator with the given iteration count. Values
// below one fall back to the default.
func NewPropagator(iterations int) Propagator {
	return Propagator{Iterations: iterations}
}

func (p Propagator) iterations() int {
	if p.Iterations < 1 {
		return DefaultKeplerIterations
	}
	return p.Iterations
}

// Propagate places the body at elapsedSeconds*timeAcceleration seconds after
// passing the burn point. It returns ErrUnboundTrajectory when the elements
// do not describe a closed orbit; callers are expected to Classify first.
func (p Propagator) Propagate(el OrbitalElements, elapsedSeconds, timeAcceleration float64) (Position, error) {
	e := el.Eccentricity
	if !(e < 1) {
		return Position{}, fmt.Errorf("%w: e = %g", ErrUnboundTrajectory, e)
	}

	period := el.Period
	if period == 0 || math.IsNaN(period) || math.IsInf(period, 0) {
		return el.position(0, 0, 0, el.Periapsis), nil
	}

	M := math.Mod(elapsedSeconds*timeAcceleration, period) / period * twoPi
	E := SolveKepler(M, e, p.iterations())
	nu := TrueAnomalyFromEccentric(E, e)
	r := el.SemiMajorAxis * (1 - e*e) / (1 + e*math.Cos(nu))

	return el.position(M, E, nu, r), nil
}

// Propagate uses the default propagator.
func Propagate(el OrbitalElements, elapsedSeconds, timeAcceleration float64) (Position, error) {
	return Propagator{}.Propagate(el, elapsedSeconds, timeAcceleration)
}

// SolveKepler returns the eccentric anomaly for mean anomaly M after exactly
// iterations Newton steps starting from E = M. There is no convergence test;
// near-parabolic orbits may need more steps.
func SolveKepler(meanAnomaly, eccentricity float64, iterations int) float64 {
	E := meanAnomaly
	for i := 0; i < iterations; i++ {
		E -= (E - eccentricity*math.Sin(E) - meanAnomaly) / (1 - eccentricity*math.Cos(E))
	}
	return E
}

// MeanAnomalyFromEccentric evaluates Kepler's equation M = E - e sin E.
func MeanAnomalyFromEccentric(eccentricAnomaly, eccentricity float64) float64 {
	return eccentricAnomaly - eccentricity*math.Sin(eccentricAnomaly)
}

// TrueAnomalyFromEccentric uses the half-angle relation
// tan(nu/2) = sqrt((1+e)/(1-e)) tan(E/2). The result lies in (-pi, pi].
func TrueAnomalyFromEccentric(eccentricAnomaly, eccentricity float64) float64 {
	k := math.Sqrt(1+eccentricity) / math.Sqrt(1-eccentricity)
	return 2 * math.Atan(k*math.Tan(eccentricAnomaly/2))
}

// DisplayAngle applies the retrograde presentation offset to a true anomaly.
func DisplayAngle(el OrbitalElements, trueAnomaly float64) float64 {
	if el.Retrograde {
		return trueAnomaly + math.Pi
	}
	return trueAnomaly
}

func (el OrbitalElements) position(M, E, nu, r float64) Position {
	angle := DisplayAngle(el, nu)
	return Position{
		MeanAnomaly:      M,
		EccentricAnomaly: E,
		TrueAnomaly:      nu,
		Radius:           r,
		AltitudeKm:       (r - el.BodyRadius) / 1000,
		DisplayAngle:     angle,
		X:                r * math.Cos(angle),
		Y:                r * math.Sin(angle),
	}
}
