package core

// MotionModel places the orbiting body for a given elapsed simulation time.
type MotionModel interface {
	PositionAt(el OrbitalElements, elapsedSeconds float64) (Position, error)
}

// KeplerMotionModel propagates along the conic with a fixed time acceleration.
type KeplerMotionModel struct {
	Propagator       Propagator
	TimeAcceleration float64
}

// NewMotionModel constructs a Kepler motion model. A non-positive
// acceleration falls back to DefaultTimeAcceleration.
func NewMotionModel(iterations int, timeAcceleration float64) *KeplerMotionModel {
	if !(timeAcceleration > 0) {
		timeAcceleration = DefaultTimeAcceleration
	}
	return &KeplerMotionModel{
		Propagator:       NewPropagator(iterations),
		TimeAcceleration: timeAcceleration,
	}
}

// PositionAt implements MotionModel.
func (m *KeplerMotionModel) PositionAt(el OrbitalElements, elapsedSeconds float64) (Position, error) {
	return m.Propagator.Propagate(el, elapsedSeconds, m.TimeAcceleration)
}

// Frame is everything a renderer needs for one animation frame.
type Frame struct {
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	SemiMajorAxis       float64 `json:"semi_major_axis"`
	Eccentricity        float64 `json:"eccentricity"`
	PeriapsisAltitudeKm float64 `json:"periapsis_altitude_km"`
	ApoapsisAltitudeKm  float64 `json:"apoapsis_altitude_km"`
	PeriodSeconds       float64 `json:"period_seconds"`
	PostBurnSpeed       float64 `json:"post_burn_speed"`

	Regime  Regime  `json:"-"`
	Summary Summary `json:"-"`

	// HasPosition is false for escape trajectories; the fields below are
	// then left at zero.
	HasPosition   bool    `json:"has_position"`
	CurrentRadius float64 `json:"current_radius"`
	TrueAnomaly   float64 `json:"true_anomaly"`
	DisplayAngle  float64 `json:"display_angle"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
}

// BuildFrame assembles the per-frame output. The motion model is consulted
// only for bound regimes.
func BuildFrame(el OrbitalElements, m MotionModel, elapsedSeconds float64) (Frame, error) {
	summary := Summarize(el)
	f := Frame{
		ElapsedSeconds:      elapsedSeconds,
		SemiMajorAxis:       el.SemiMajorAxis,
		Eccentricity:        el.Eccentricity,
		PeriapsisAltitudeKm: el.PeriapsisAltitudeKm(),
		ApoapsisAltitudeKm:  el.ApoapsisAltitudeKm(),
		PeriodSeconds:       el.Period,
		PostBurnSpeed:       el.V2,
		Regime:              summary.Regime,
		Summary:             summary,
	}
	if !summary.Regime.Bound() || m == nil {
		return f, nil
	}

	pos, err := m.PositionAt(el, elapsedSeconds)
	if err != nil {
		return f, err
	}
	f.HasPosition = true
	f.CurrentRadius = pos.Radius
	f.TrueAnomaly = pos.TrueAnomaly
	f.DisplayAngle = pos.DisplayAngle
	f.X = pos.X
	f.Y = pos.Y
	return f, nil
}
