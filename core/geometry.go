package core

import "math"

// Vec3 is a Cartesian vector. SGP4 state vectors use kilometres and km/s.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// FlightPathAngle is the angle between the velocity and the local horizontal
// for position r and velocity v, in radians. It is zero on a circular orbit
// and positive while climbing.
func FlightPathAngle(r, v Vec3) float64 {
	rn, vn := r.Norm(), v.Norm()
	if rn == 0 || vn == 0 {
		return 0
	}
	s := r.Dot(v) / (rn * vn)
	// Rounding can push |s| slightly past 1.
	s = math.Max(-1, math.Min(1, s))
	return math.Asin(s)
}
