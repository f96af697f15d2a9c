package core

import (
	"fmt"
	"math"
)

const (
	// StandardGravity converts accelerations to g.
	StandardGravity = 9.81
	// MaxAxialG is the structural limit a burn may impose on the vehicle.
	MaxAxialG = 4.1
)

// BurnStatus is the outcome of a burn load review.
type BurnStatus string

const (
	BurnApproved BurnStatus = "APPROVED"
	BurnRejected BurnStatus = "REJECTED"
)

// BurnAssessment is the axial load produced by spreading a Delta-V over a
// constant-thrust burn.
type BurnAssessment struct {
	DeltaV          float64
	DurationSeconds float64
	Acceleration    float64 // m/s^2
	GForce          float64
	Status          BurnStatus
	Reason          string
}

// EvaluateBurn approves a burn whose mean axial load stays within MaxAxialG.
// The sign of deltaV does not matter; retrograde burns load the structure too.
func EvaluateBurn(deltaV, durationSeconds float64) (BurnAssessment, error) {
	if !(durationSeconds > 0) || math.IsInf(durationSeconds, 0) {
		return BurnAssessment{}, fmt.Errorf("%w: %g s", ErrInvalidBurnDuration, durationSeconds)
	}
	if math.IsNaN(deltaV) || math.IsInf(deltaV, 0) {
		return BurnAssessment{}, fmt.Errorf("%w: delta-v %g m/s", ErrInvalidInput, deltaV)
	}

	accel := math.Abs(deltaV) / durationSeconds
	g := accel / StandardGravity
	a := BurnAssessment{
		DeltaV:          deltaV,
		DurationSeconds: durationSeconds,
		Acceleration:    accel,
		GForce:          g,
		Status:          BurnApproved,
	}
	if g > MaxAxialG {
		a.Status = BurnRejected
		a.Reason = fmt.Sprintf("axial load %.2f g exceeds %.1f g limit", g, MaxAxialG)
	}
	return a, nil
}
