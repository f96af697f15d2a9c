package core

import "errors"

var (
	// ErrInvalidInput is returned for non-finite engine inputs.
	ErrInvalidInput = errors.New("invalid engine input")
	// ErrUnboundTrajectory is returned when propagation is requested for e >= 1.
	ErrUnboundTrajectory = errors.New("trajectory is not bound; propagation requires eccentricity < 1")
	// ErrInvalidBurnDuration is returned when a burn duration is not positive.
	ErrInvalidBurnDuration = errors.New("burn duration must be positive")
)
