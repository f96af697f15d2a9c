package model

// Slider ranges used by the controls side. The engine itself never clamps.
const (
	MinAltitudeKm  = 200.0
	MaxAltitudeKm  = 2000.0
	AltitudeStepKm = 50.0

	MinDeltaV  = -1500.0
	MaxDeltaV  = 3500.0
	DeltaVStep = 25.0

	DefaultAltitudeKm = 400.0
	DefaultZoom       = 0.05 // pixels per km
	ZoomFactor        = 1.5
)

// OrbitalState is the controls-owned input to the engine.
type OrbitalState struct {
	AltitudeKm float64 `json:"altitude_km"`
	DeltaV     float64 `json:"delta_v"` // m/s, positive is prograde
	Zoom       float64 `json:"zoom"`    // presentation only
}

// DefaultOrbitalState is a 400 km circular orbit with no burn planned.
func DefaultOrbitalState() OrbitalState {
	return OrbitalState{
		AltitudeKm: DefaultAltitudeKm,
		DeltaV:     0,
		Zoom:       DefaultZoom,
	}
}

// Clamp returns a copy limited to the slider ranges. A non-positive zoom
// falls back to the default.
func (s OrbitalState) Clamp() OrbitalState {
	s.AltitudeKm = clamp(s.AltitudeKm, MinAltitudeKm, MaxAltitudeKm)
	s.DeltaV = clamp(s.DeltaV, MinDeltaV, MaxDeltaV)
	if !(s.Zoom > 0) {
		s.Zoom = DefaultZoom
	}
	return s
}

// ZoomIn and ZoomOut mirror the dashboard buttons.
func (s OrbitalState) ZoomIn() OrbitalState {
	s.Zoom *= ZoomFactor
	return s
}

func (s OrbitalState) ZoomOut() OrbitalState {
	s.Zoom /= ZoomFactor
	return s
}

// ResetVector clears the planned burn and keeps altitude and zoom.
func (s OrbitalState) ResetVector() OrbitalState {
	s.DeltaV = 0
	return s
}

func clamp(v, lo, hi float64) float64 {
	// NaN fails every comparison; pin it to the lower bound.
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
