package api

import (
	"errors"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/engine"
	"github.com/signalsfoundry/maneuver-lab/kb"
	"github.com/signalsfoundry/maneuver-lab/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidRequest is used for malformed request fields.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps engine errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, kb.ErrBodyNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrNonPositiveRadius),
		errors.Is(err, core.ErrNegativePostBurnSpeed),
		errors.Is(err, core.ErrInvalidBurnDuration),
		errors.Is(err, model.ErrInvalidBody),
		errors.Is(err, engine.ErrUnknownClockAction):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrUnboundTrajectory):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, kb.ErrBodyExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
