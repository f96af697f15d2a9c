package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/maneuver-lab/model"
)

var (
	// ErrNonPositiveRadius is returned when body radius plus altitude is not above zero.
	ErrNonPositiveRadius = errors.New("orbital radius must be positive")
	// ErrNegativePostBurnSpeed is returned when a retrograde burn exceeds the circular speed.
	ErrNegativePostBurnSpeed = errors.New("retrograde burn exceeds circular orbital speed")
)

// OrbitalElements are derived from a circular orbit and a single impulsive burn.
// All distances are metres, speeds m/s, period seconds.
type OrbitalElements struct {
	GM         float64
	BodyRadius float64

	R1 float64 // pre-burn radius
	V1 float64 // circular speed at R1
	V2 float64 // post-burn speed, not clamped

	SemiMajorAxis float64
	Eccentricity  float64
	Periapsis     float64
	Apoapsis      float64
	Period        float64

	// Retrograde is set when the burn point became apoapsis (deltaV < 0).
	Retrograde bool
}

// ComputeElements converts an altitude and a Delta-V into orbital elements.
//
// The eccentricity formula depends on the burn direction: a prograde burn
// leaves the burn point at periapsis, a retrograde burn leaves it at apoapsis.
// Degenerate inputs are not rejected; a vanishing vis-viva denominator yields
// infinite or NaN fields and Classify decides how they are shown.
func ComputeElements(gm, bodyRadiusMeters, altitudeKm, deltaV float64) OrbitalElements {
	r1 := bodyRadiusMeters + altitudeKm*1000
	v1 := math.Sqrt(gm / r1)
	v2 := v1 + deltaV

	a := 1 / (2/r1 - (v2*v2)/gm)

	var e float64
	if deltaV >= 0 {
		e = 1 - r1/a
	} else {
		e = r1/a - 1
	}

	return OrbitalElements{
		GM:            gm,
		BodyRadius:    bodyRadiusMeters,
		R1:            r1,
		V1:            v1,
		V2:            v2,
		SemiMajorAxis: a,
		Eccentricity:  e,
		Periapsis:     a * (1 - e),
		Apoapsis:      a * (1 + e),
		Period:        2 * math.Pi * math.Sqrt(a*a*a/gm),
		Retrograde:    deltaV < 0,
	}
}

// ElementsFor derives elements for a controls state around the given body.
func ElementsFor(body model.CentralBody, state model.OrbitalState) OrbitalElements {
	return ComputeElements(body.GM, body.RadiusMeters, state.AltitudeKm, state.DeltaV)
}

// PeriapsisAltitudeKm is the periapsis height above the body surface.
func (el OrbitalElements) PeriapsisAltitudeKm() float64 {
	return (el.Periapsis - el.BodyRadius) / 1000
}

// ApoapsisAltitudeKm is the apoapsis height above the body surface. It has no
// physical meaning for escape trajectories.
func (el OrbitalElements) ApoapsisAltitudeKm() float64 {
	return (el.Apoapsis - el.BodyRadius) / 1000
}

// SemiMinorAxis returns a*sqrt(1-e^2), NaN for unbound trajectories.
func (el OrbitalElements) SemiMinorAxis() float64 {
	return el.SemiMajorAxis * math.Sqrt(1-el.Eccentricity*el.Eccentricity)
}

// SpecificEnergy is v2^2/2 - GM/r1; negative for bound orbits.
func (el OrbitalElements) SpecificEnergy() float64 {
	return el.V2*el.V2/2 - el.GM/el.R1
}

// EscapeDeltaV is the prograde burn that brings the post-burn speed to the
// local escape speed sqrt(2 GM / r1).
func EscapeDeltaV(gm, bodyRadiusMeters, altitudeKm float64) float64 {
	r1 := bodyRadiusMeters + altitudeKm*1000
	return math.Sqrt(2*gm/r1) - math.Sqrt(gm/r1)
}

// ValidateBurn checks the arithmetic preconditions of ComputeElements. Slider
// ranges are not checked here.
func ValidateBurn(gm, bodyRadiusMeters, altitudeKm, deltaV float64) error {
	body := model.CentralBody{Name: "central body", GM: gm, RadiusMeters: bodyRadiusMeters}
	if err := body.Validate(); err != nil {
		return err
	}
	if math.IsNaN(altitudeKm) || math.IsInf(altitudeKm, 0) || math.IsNaN(deltaV) || math.IsInf(deltaV, 0) {
		return fmt.Errorf("%w: altitude %g km, delta-v %g m/s", ErrInvalidInput, altitudeKm, deltaV)
	}
	r1 := bodyRadiusMeters + altitudeKm*1000
	if r1 <= 0 {
		return fmt.Errorf("%w: r1 = %g m", ErrNonPositiveRadius, r1)
	}
	if v1 := math.Sqrt(gm / r1); v1+deltaV < 0 {
		return fmt.Errorf("%w: v1 = %.1f m/s, delta-v = %.1f m/s", ErrNegativePostBurnSpeed, v1, deltaV)
	}
	return nil
}

// ValidateState is ValidateBurn for a body and controls state.
func ValidateState(body model.CentralBody, state model.OrbitalState) error {
	return ValidateBurn(body.GM, body.RadiusMeters, state.AltitudeKm, state.DeltaV)
}
