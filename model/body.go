package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBody is returned when a central body has a non-physical GM or radius.
var ErrInvalidBody = errors.New("invalid central body")

// CentralBody holds the constants the two-body model needs about the attracting body.
type CentralBody struct {
	Name         string  `mapstructure:"name" json:"name"`
	GM           float64 `mapstructure:"gm" json:"gm"`                       // m^3/s^2
	RadiusMeters float64 `mapstructure:"radius_meters" json:"radius_meters"` // mean radius
}

// Built-in bodies. Earth matches the dashboard constants.
var (
	Earth = CentralBody{Name: "earth", GM: 3.986e14, RadiusMeters: 6371000}
	Moon  = CentralBody{Name: "moon", GM: 4.9048695e12, RadiusMeters: 1737400}
	Mars  = CentralBody{Name: "mars", GM: 4.282837e13, RadiusMeters: 3389500}
)

// DefaultBodies returns the catalog the engine ships with.
func DefaultBodies() []CentralBody {
	return []CentralBody{Earth, Moon, Mars}
}

// Validate reports whether the body can be used to derive orbital elements.
func (b CentralBody) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBody)
	}
	if !(b.GM > 0) || math.IsInf(b.GM, 0) {
		return fmt.Errorf("%w: %s GM must be positive and finite, got %g", ErrInvalidBody, b.Name, b.GM)
	}
	if !(b.RadiusMeters > 0) || math.IsInf(b.RadiusMeters, 0) {
		return fmt.Errorf("%w: %s radius must be positive and finite, got %g", ErrInvalidBody, b.Name, b.RadiusMeters)
	}
	return nil
}
