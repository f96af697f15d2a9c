package model

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultOrbitalState(t *testing.T) {
	s := DefaultOrbitalState()
	if s.AltitudeKm != 400 || s.DeltaV != 0 || s.Zoom != DefaultZoom {
		t.Fatalf("DefaultOrbitalState() = %+v", s)
	}
}

func TestOrbitalStateClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   OrbitalState
		want OrbitalState
	}{
		{name: "in range", in: OrbitalState{AltitudeKm: 800, DeltaV: 100, Zoom: 0.1}, want: OrbitalState{AltitudeKm: 800, DeltaV: 100, Zoom: 0.1}},
		{name: "low", in: OrbitalState{AltitudeKm: 10, DeltaV: -9000, Zoom: 0.1}, want: OrbitalState{AltitudeKm: MinAltitudeKm, DeltaV: MinDeltaV, Zoom: 0.1}},
		{name: "high", in: OrbitalState{AltitudeKm: 1e6, DeltaV: 1e6, Zoom: 0.1}, want: OrbitalState{AltitudeKm: MaxAltitudeKm, DeltaV: MaxDeltaV, Zoom: 0.1}},
		{name: "nan and zero zoom", in: OrbitalState{AltitudeKm: math.NaN(), DeltaV: math.NaN()}, want: OrbitalState{AltitudeKm: MinAltitudeKm, DeltaV: MinDeltaV, Zoom: DefaultZoom}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.in.Clamp(); got != tc.want {
				t.Fatalf("Clamp() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestZoomAndResetVector(t *testing.T) {
	s := OrbitalState{AltitudeKm: 600, DeltaV: 250, Zoom: 1}
	if got := s.ZoomIn().Zoom; got != 1.5 {
		t.Fatalf("ZoomIn = %v, want 1.5", got)
	}
	if got := s.ZoomIn().ZoomOut().Zoom; math.Abs(got-1) > 1e-12 {
		t.Fatalf("ZoomIn then ZoomOut = %v, want 1", got)
	}
	reset := s.ResetVector()
	if reset.DeltaV != 0 || reset.AltitudeKm != 600 || reset.Zoom != 1 {
		t.Fatalf("ResetVector() = %+v", reset)
	}
}

func TestCentralBodyValidate(t *testing.T) {
	for _, b := range DefaultBodies() {
		if err := b.Validate(); err != nil {
			t.Fatalf("built-in body %s invalid: %v", b.Name, err)
		}
	}

	bad := []CentralBody{
		{GM: 1, RadiusMeters: 1},
		{Name: "zero-gm", RadiusMeters: 1},
		{Name: "neg-radius", GM: 1, RadiusMeters: -1},
		{Name: "inf", GM: math.Inf(1), RadiusMeters: 1},
		{Name: "nan", GM: math.NaN(), RadiusMeters: 1},
	}
	for _, b := range bad {
		if err := b.Validate(); !errors.Is(err, ErrInvalidBody) {
			t.Fatalf("Validate(%+v) = %v, want ErrInvalidBody", b, err)
		}
	}
}
