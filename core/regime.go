package core

import "math"

// Regime labels a trajectory by its eccentricity.
type Regime int

const (
	RegimeCircular Regime = iota
	RegimeElliptical
	RegimeEscape
)

const (
	// CircularThreshold is the eccentricity below which an orbit is labelled circular.
	CircularThreshold = 0.001
	// CriticalEccentricity marks highly eccentric paths drawn in the warning style.
	CriticalEccentricity = 0.8
	// MaxDisplayApoapsisKm is the largest apoapsis altitude shown as a number.
	MaxDisplayApoapsisKm = 100000.0
)

// Classify maps an eccentricity to a regime. NaN is treated as escape since
// none of the closed-orbit quantities can be trusted.
func Classify(eccentricity float64) Regime {
	switch {
	case math.IsNaN(eccentricity), eccentricity >= 1:
		return RegimeEscape
	case eccentricity < CircularThreshold:
		return RegimeCircular
	default:
		return RegimeElliptical
	}
}

// Bound reports whether Propagate may be called for this regime.
func (r Regime) Bound() bool {
	return r == RegimeCircular || r == RegimeElliptical
}

func (r Regime) String() string {
	switch r {
	case RegimeCircular:
		return "circular"
	case RegimeElliptical:
		return "elliptical"
	case RegimeEscape:
		return "escape"
	default:
		return "unknown"
	}
}

// Label is the status text shown next to the trajectory.
func (r Regime) Label() string {
	if r.Bound() {
		return "Stable Orbit"
	}
	return "Escape Trajectory"
}

// PathStyle selects how the renderer strokes the post-burn path.
type PathStyle int

const (
	PathNominal  PathStyle = iota // no burn planned
	PathTransfer                  // ordinary transfer ellipse
	PathCritical                  // e above CriticalEccentricity
	PathEscape                    // nothing to draw, show the escape warning
)

func (s PathStyle) String() string {
	switch s {
	case PathNominal:
		return "nominal"
	case PathTransfer:
		return "transfer"
	case PathCritical:
		return "critical"
	case PathEscape:
		return "escape"
	default:
		return "unknown"
	}
}

// Summary is the display policy derived from a set of elements.
type Summary struct {
	Regime         Regime
	PathStyle      PathStyle
	PeriodValid    bool
	ApoapsisValid  bool
	PeriapsisValid bool
}

// Summarize decides which derived quantities a presentation layer may show.
// Periapsis stays meaningful as closest approach on escape trajectories.
func Summarize(el OrbitalElements) Summary {
	regime := Classify(el.Eccentricity)
	s := Summary{
		Regime:         regime,
		PeriapsisValid: isFinite(el.Periapsis),
	}
	if !regime.Bound() {
		s.PathStyle = PathEscape
		return s
	}

	s.PeriodValid = isFinite(el.Period) && el.Period > 0
	apo := el.ApoapsisAltitudeKm()
	s.ApoapsisValid = isFinite(apo) && apo < MaxDisplayApoapsisKm

	switch {
	case el.V2 == el.V1:
		s.PathStyle = PathNominal
	case el.Eccentricity > CriticalEccentricity:
		s.PathStyle = PathCritical
	default:
		s.PathStyle = PathTransfer
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
