package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// ErrInvalidTLE is returned when a TLE cannot seed an altitude.
var ErrInvalidTLE = errors.New("invalid TLE")

const tleLineLength = 69

// StateFromTLE propagates a two-line element set with SGP4 (WGS72) to the
// given time and returns the ECI position (km) and velocity (km/s).
func StateFromTLE(line1, line2 string, at time.Time) (r, v Vec3, err error) {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if len(line1) != tleLineLength || len(line2) != tleLineLength ||
		!strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return Vec3{}, Vec3{}, fmt.Errorf("%w: expected two %d-column lines", ErrInvalidTLE, tleLineLength)
	}

	// go-satellite panics on unparsable fields.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidTLE, rec)
		}
	}()

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)

	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	pos, vel := satellite.Propagate(sat, year, int(month), day, hour, min, sec)

	r = Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	v = Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}
	if n := r.Norm(); math.IsNaN(n) || n == 0 {
		return Vec3{}, Vec3{}, fmt.Errorf("%w: propagation failed at %s", ErrInvalidTLE, at.Format(time.RFC3339))
	}
	return r, v, nil
}

// AltitudeFromTLE returns the geocentric altitude in km above
// bodyRadiusMeters of the tracked object at the given time. It seeds the
// circular-orbit altitude from a real satellite.
func AltitudeFromTLE(line1, line2 string, at time.Time, bodyRadiusMeters float64) (float64, error) {
	r, _, err := StateFromTLE(line1, line2, at)
	if err != nil {
		return 0, err
	}
	return r.Norm() - bodyRadiusMeters/1000, nil
}
