package api

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/engine"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/signalsfoundry/maneuver-lab/internal/observability"
	"github.com/signalsfoundry/maneuver-lab/model"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// maxPathSamples bounds the path returned with a frame.
	maxPathSamples = 2048
	// maxKeplerIterations bounds the Newton steps a single Propagate call may ask for.
	maxKeplerIterations = 64
)

// TrajectoryService implements TrajectoryServiceServer on top of a Session.
type TrajectoryService struct {
	session *engine.Session
	log     logging.Logger
}

var _ TrajectoryServiceServer = (*TrajectoryService)(nil)

// NewTrajectoryService wires the service to a session and optional logger.
func NewTrajectoryService(session *engine.Session, log logging.Logger) *TrajectoryService {
	if log == nil {
		log = logging.Noop()
	}
	return &TrajectoryService{session: session, log: log}
}

func (s *TrajectoryService) ensureReady() error {
	if s == nil || s.session == nil {
		return status.Error(codes.FailedPrecondition, "trajectory session is not configured")
	}
	return nil
}

// GetFrame returns the frame at the clock's elapsed time, or at
// "elapsed_seconds" when given, with the burn marker and ellipse to draw.
// "path_samples" adds the sampled orbit path.
func (s *TrajectoryService) GetFrame(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}

	elapsed, hasElapsed, err := numberField(in, "elapsed_seconds")
	if err != nil {
		return nil, ToStatusError(err)
	}
	samples, _, err := numberField(in, "path_samples")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if samples < 0 || samples > maxPathSamples {
		return nil, ToStatusError(fmt.Errorf("%w: path_samples must be in [0, %d]", ErrInvalidRequest, maxPathSamples))
	}

	ctx, span := observability.StartSpan(ctx, "engine.frame",
		attribute.Bool("explicit_elapsed", hasElapsed),
	)
	defer span.End()

	var frame core.Frame
	if hasElapsed {
		frame, err = s.session.FrameAt(ctx, elapsed)
	} else {
		frame, err = s.session.Frame(ctx)
	}
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	span.SetAttributes(attribute.String("regime", frame.Regime.String()))

	resp := map[string]interface{}{
		"frame":    frameMap(frame),
		"geometry": geometryMap(s.session.Elements()),
		"state":    stateMap(s.session.State()),
		"body":     bodyMap(s.session.Body()),
		"clock":    clockMap(s.session.ClockStatus()),
	}
	if n := int(samples); n > 0 {
		resp["path"] = pathList(s.session.Path(n))
	}
	return toStruct(resp)
}

// UpdateState applies controls input: "body", "altitude_km", "delta_v",
// "reset_vector" and "zoom" ("in" or "out"). Absent fields keep their value.
// The request is applied as a whole or not at all.
func (s *TrajectoryService) UpdateState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx, s.log)

	bodyName, err := stringField(in, "body")
	if err != nil {
		return nil, ToStatusError(err)
	}

	next := s.session.State()
	if v, ok, err := numberField(in, "altitude_km"); err != nil {
		return nil, ToStatusError(err)
	} else if ok {
		next.AltitudeKm = v
	}
	if v, ok, err := numberField(in, "delta_v"); err != nil {
		return nil, ToStatusError(err)
	} else if ok {
		next.DeltaV = v
	}
	reset, err := boolField(in, "reset_vector")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if reset {
		next = next.ResetVector()
	}

	zoom, err := stringField(in, "zoom")
	if err != nil {
		return nil, ToStatusError(err)
	}
	switch zoom {
	case "":
	case "in":
		next = next.ZoomIn()
	case "out":
		next = next.ZoomOut()
	default:
		return nil, ToStatusError(fmt.Errorf("%w: zoom must be \"in\" or \"out\"", ErrInvalidRequest))
	}

	body, state, err := s.session.Apply(ctx, bodyName, next)
	if err != nil {
		return nil, ToStatusError(err)
	}

	el := s.session.Elements()
	log.Info(ctx, "orbital state updated",
		logging.Body(body.Name),
		logging.AltitudeKm(state.AltitudeKm),
		logging.DeltaV(state.DeltaV),
		logging.Float("eccentricity", el.Eccentricity),
	)
	return toStruct(map[string]interface{}{
		"state":    stateMap(state),
		"body":     bodyMap(body),
		"elements": elementsMap(el),
		"summary":  summaryMap(core.Summarize(el)),
	})
}

// ComputeElements derives elements without touching the session. The body is
// taken from "gm"/"radius_meters", then "body", then the session.
func (s *TrajectoryService) ComputeElements(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	el, body, err := s.elementsFromRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]interface{}{
		"body":           bodyMap(body),
		"elements":       elementsMap(el),
		"summary":        summaryMap(core.Summarize(el)),
		"escape_delta_v": core.EscapeDeltaV(body.GM, body.RadiusMeters, (el.R1-body.RadiusMeters)/1000),
	})
}

// Propagate places the body on the requested trajectory at
// "elapsed_seconds" (scaled by "time_acceleration", default 150).
func (s *TrajectoryService) Propagate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	el, _, err := s.elementsFromRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	elapsed, _, err := numberField(in, "elapsed_seconds")
	if err != nil {
		return nil, ToStatusError(err)
	}
	accel, ok, err := numberField(in, "time_acceleration")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if !ok {
		accel = core.DefaultTimeAcceleration
	}
	iterations, err := iterationsField(in)
	if err != nil {
		return nil, ToStatusError(err)
	}

	_, span := observability.StartSpan(ctx, "engine.propagate",
		attribute.Float64("eccentricity", el.Eccentricity),
		attribute.Float64("elapsed_seconds", elapsed),
	)
	defer span.End()

	pos, err := core.NewPropagator(iterations).Propagate(el, elapsed, accel)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]interface{}{
		"position": positionMap(pos),
		"regime":   core.Classify(el.Eccentricity).String(),
	})
}

// iterationsField reads "iterations"; zero or absent selects the default.
func iterationsField(in *structpb.Struct) (int, error) {
	v, ok, err := numberField(in, "iterations")
	if err != nil || !ok {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > maxKeplerIterations || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: iterations must be an integer in [0, %d]", ErrInvalidRequest, maxKeplerIterations)
	}
	return int(v), nil
}

// Classify maps "eccentricity" to a regime.
func (s *TrajectoryService) Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	e, ok, err := numberField(in, "eccentricity")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if !ok {
		return nil, ToStatusError(fmt.Errorf("%w: eccentricity is required", ErrInvalidRequest))
	}
	r := core.Classify(e)
	return toStruct(map[string]interface{}{
		"regime": r.String(),
		"label":  r.Label(),
		"bound":  r.Bound(),
	})
}

// EvaluateBurn reviews the axial load of "delta_v" over "duration_seconds".
// The session's planned burn is used when delta_v is absent.
func (s *TrajectoryService) EvaluateBurn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	dv, ok, err := numberField(in, "delta_v")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if !ok {
		dv = s.session.State().DeltaV
	}
	duration, _, err := numberField(in, "duration_seconds")
	if err != nil {
		return nil, ToStatusError(err)
	}

	a, err := core.EvaluateBurn(dv, duration)
	if err != nil {
		return nil, ToStatusError(err)
	}
	logging.FromContext(ctx, s.log).Debug(ctx, "burn evaluated",
		logging.Float("g_force", a.GForce),
		logging.String("status", string(a.Status)),
	)
	return toStruct(assessmentMap(a))
}

// ControlClock applies "action" (advance, reset, pause, resume, toggle).
func (s *TrajectoryService) ControlClock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	action, err := stringField(in, "action")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if action == "" {
		return nil, ToStatusError(fmt.Errorf("%w: action is required", ErrInvalidRequest))
	}
	st, err := s.session.ControlClock(ctx, action)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]interface{}{"clock": clockMap(st)})
}

// ListBodies returns the central-body catalog and the active body name.
func (s *TrajectoryService) ListBodies(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	bodies := s.session.Catalog().ListBodies()
	list := make([]interface{}, 0, len(bodies))
	for _, b := range bodies {
		list = append(list, bodyMap(b))
	}
	return toStruct(map[string]interface{}{
		"bodies": list,
		"active": s.session.Body().Name,
	})
}

func (s *TrajectoryService) elementsFromRequest(in *structpb.Struct) (core.OrbitalElements, model.CentralBody, error) {
	body := s.session.Body()
	name, err := stringField(in, "body")
	if err != nil {
		return core.OrbitalElements{}, model.CentralBody{}, err
	}
	if name != "" {
		if body, err = s.session.Catalog().GetBody(name); err != nil {
			return core.OrbitalElements{}, model.CentralBody{}, err
		}
	}

	gm, hasGM, err := numberField(in, "gm")
	if err != nil {
		return core.OrbitalElements{}, model.CentralBody{}, err
	}
	radius, hasRadius, err := numberField(in, "radius_meters")
	if err != nil {
		return core.OrbitalElements{}, model.CentralBody{}, err
	}
	if hasGM != hasRadius {
		return core.OrbitalElements{}, model.CentralBody{}, fmt.Errorf("%w: gm and radius_meters must be given together", ErrInvalidRequest)
	}
	if hasGM {
		body = model.CentralBody{Name: "custom", GM: gm, RadiusMeters: radius}
	}

	state := s.session.State()
	if v, ok, err := numberField(in, "altitude_km"); err != nil {
		return core.OrbitalElements{}, model.CentralBody{}, err
	} else if ok {
		state.AltitudeKm = v
	}
	if v, ok, err := numberField(in, "delta_v"); err != nil {
		return core.OrbitalElements{}, model.CentralBody{}, err
	} else if ok {
		state.DeltaV = v
	}

	if err := core.ValidateState(body, state); err != nil {
		return core.OrbitalElements{}, model.CentralBody{}, err
	}
	return core.ElementsFor(body, state), body, nil
}
