// Package engine holds the controls-facing session: the current central body
// and orbital state, the simulation clock and the per-frame assembly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/signalsfoundry/maneuver-lab/kb"
	"github.com/signalsfoundry/maneuver-lab/model"
	"github.com/signalsfoundry/maneuver-lab/timectrl"
)

// ErrUnknownClockAction is returned by ControlClock for unsupported actions.
var ErrUnknownClockAction = errors.New("unknown clock action")

// Clock actions accepted by ControlClock.
const (
	ActionAdvance = "advance"
	ActionReset   = "reset"
	ActionPause   = "pause"
	ActionResume  = "resume"
	ActionToggle  = "toggle"
)

// MetricsRecorder receives per-frame and per-update observations.
// observability.EngineCollector satisfies it.
type MetricsRecorder interface {
	ObserveFrame(regime string, eccentricity, elapsed, residual float64)
	IncPropagationErrors()
	ObserveStateUpdate(applied bool)
	SetElapsed(elapsed float64)
}

// ClockStatus is a snapshot of the simulation clock.
type ClockStatus struct {
	Elapsed float64
	Running bool
	Frames  uint64
}

// Session coordinates the body catalog, the controls state and the clock.
type Session struct {
	// mu guards body, state and elements. The clock has its own lock and is
	// never called while mu is held for writing.
	mu sync.RWMutex

	catalog  *kb.BodyCatalog
	body     model.CentralBody
	state    model.OrbitalState
	elements core.OrbitalElements

	clock  *timectrl.SimulationClock
	motion core.MotionModel

	log     logging.Logger
	metrics MetricsRecorder

	unsubscribe func()
}

// Option customises Session construction.
type Option func(*Session)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithMotionModel replaces the default Kepler motion model.
func WithMotionModel(m core.MotionModel) Option {
	return func(s *Session) {
		if m != nil {
			s.motion = m
		}
	}
}

// WithClock replaces the default real-time clock.
func WithClock(c *timectrl.SimulationClock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewSession builds a session on bodyName from catalog (the built-in catalog
// when nil). The initial state is clamped to the control ranges and must
// describe a valid burn.
func NewSession(catalog *kb.BodyCatalog, bodyName string, state model.OrbitalState, opts ...Option) (*Session, error) {
	if catalog == nil {
		catalog = kb.NewDefaultCatalog()
	}
	body, err := catalog.GetBody(bodyName)
	if err != nil {
		return nil, err
	}
	state = state.Clamp()
	if err := core.ValidateState(body, state); err != nil {
		return nil, err
	}

	s := &Session{
		catalog:  catalog,
		body:     body,
		state:    state,
		elements: core.ElementsFor(body, state),
		clock:    timectrl.NewSimulationClock(0, timectrl.RealTime),
		motion:   core.NewMotionModel(core.DefaultKeplerIterations, core.DefaultTimeAcceleration),
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = catalog.Subscribe(s.onCatalogEvent)
	return s, nil
}

// Close detaches the session from catalog updates.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Catalog returns the body catalog backing the session.
func (s *Session) Catalog() *kb.BodyCatalog { return s.catalog }

// Clock returns the session clock.
func (s *Session) Clock() *timectrl.SimulationClock { return s.clock }

// Body returns the current central body.
func (s *Session) Body() model.CentralBody {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.body
}

// State returns the current controls state.
func (s *Session) State() model.OrbitalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Elements returns the elements derived from the current body and state.
func (s *Session) Elements() core.OrbitalElements {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elements
}

// Apply switches to bodyName (kept when empty) and applies next as one step.
// next is clamped to the slider ranges first. The pair is validated together:
// a burn that would reverse the orbital velocity around the target body is
// rejected and changes neither the body nor the state.
func (s *Session) Apply(ctx context.Context, bodyName string, next model.OrbitalState) (model.CentralBody, model.OrbitalState, error) {
	var body model.CentralBody
	if bodyName != "" {
		b, err := s.catalog.GetBody(bodyName)
		if err != nil {
			return model.CentralBody{}, model.OrbitalState{}, err
		}
		body = b
	}
	next = next.Clamp()

	s.mu.Lock()
	if bodyName == "" {
		body = s.body
	}
	if err := core.ValidateState(body, next); err != nil {
		s.mu.Unlock()
		s.observeUpdate(false)
		logging.FromContext(ctx, s.log).Warn(ctx, "state update rejected",
			logging.Body(body.Name),
			logging.AltitudeKm(next.AltitudeKm),
			logging.DeltaV(next.DeltaV),
			logging.Err(err),
		)
		return model.CentralBody{}, model.OrbitalState{}, err
	}
	changedBody := body.Name != s.body.Name
	s.body = body
	s.state = next
	s.elements = core.ElementsFor(body, next)
	regime := core.Classify(s.elements.Eccentricity)
	s.mu.Unlock()

	s.observeUpdate(true)
	log := logging.FromContext(ctx, s.log)
	if changedBody {
		log.Info(ctx, "central body changed",
			logging.Body(body.Name),
			logging.Float("gm", body.GM),
		)
	}
	log.Debug(ctx, "state updated",
		logging.Body(body.Name),
		logging.AltitudeKm(next.AltitudeKm),
		logging.DeltaV(next.DeltaV),
		logging.Regime(regime),
	)
	return body, next, nil
}

func (s *Session) onCatalogEvent(ev kb.Event) {
	if ev.Type != kb.EventBodyUpdated {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.EqualFold(ev.Body.Name, s.body.Name) {
		return
	}
	if err := core.ValidateState(ev.Body, s.state); err != nil {
		s.log.Warn(context.Background(), "ignoring body update that invalidates the current burn",
			logging.Body(ev.Body.Name),
			logging.Err(err),
		)
		return
	}
	s.body = ev.Body
	s.elements = core.ElementsFor(ev.Body, s.state)
}

// Frame assembles the output for the clock's current elapsed time.
func (s *Session) Frame(ctx context.Context) (core.Frame, error) {
	return s.FrameAt(ctx, s.clock.Elapsed())
}

// FrameAt assembles the output for an explicit elapsed time.
func (s *Session) FrameAt(ctx context.Context, elapsed float64) (core.Frame, error) {
	el := s.Elements()

	rec := &residualRecorder{model: s.motion, residual: -1}
	f, err := core.BuildFrame(el, rec, elapsed)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncPropagationErrors()
		}
		logging.FromContext(ctx, s.log).Error(ctx, "frame propagation failed",
			logging.Elapsed(elapsed),
			logging.Float("eccentricity", el.Eccentricity),
			logging.Err(err),
		)
		return f, err
	}
	if s.metrics != nil {
		s.metrics.ObserveFrame(f.Regime.String(), f.Eccentricity, elapsed, rec.residual)
	}
	return f, nil
}

// Path samples n points of the current trajectory in display coordinates.
func (s *Session) Path(n int) []core.Point {
	return core.OrbitPath(s.Elements(), n)
}

// ControlClock applies one of the Action* verbs to the clock.
func (s *Session) ControlClock(ctx context.Context, action string) (ClockStatus, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionAdvance:
		s.clock.Advance()
	case ActionReset:
		s.clock.Reset()
		if s.metrics != nil {
			s.metrics.SetElapsed(0)
		}
	case ActionPause:
		s.clock.Pause()
	case ActionResume:
		s.clock.Resume()
	case ActionToggle:
		s.clock.Toggle()
	default:
		return ClockStatus{}, fmt.Errorf("%w: %q", ErrUnknownClockAction, action)
	}

	st := s.ClockStatus()
	logging.FromContext(ctx, s.log).Debug(ctx, "clock control",
		logging.String("action", action),
		logging.Elapsed(st.Elapsed),
		logging.Bool("running", st.Running),
	)
	return st, nil
}

// ClockStatus snapshots the clock.
func (s *Session) ClockStatus() ClockStatus {
	return ClockStatus{
		Elapsed: s.clock.Elapsed(),
		Running: s.clock.Running(),
		Frames:  s.clock.Frames(),
	}
}

// OnTick is a clock listener that computes and records the frame for each
// applied tick.
func (s *Session) OnTick(elapsed float64) {
	_, _ = s.FrameAt(context.Background(), elapsed)
}

func (s *Session) observeUpdate(applied bool) {
	if s.metrics != nil {
		s.metrics.ObserveStateUpdate(applied)
	}
}

// residualRecorder keeps the Kepler residual of the last propagated position.
type residualRecorder struct {
	model    core.MotionModel
	residual float64
}

func (r *residualRecorder) PositionAt(el core.OrbitalElements, elapsed float64) (core.Position, error) {
	pos, err := r.model.PositionAt(el, elapsed)
	if err != nil {
		return pos, err
	}
	r.residual = math.Abs(core.MeanAnomalyFromEccentric(pos.EccentricAnomaly, el.Eccentricity) - pos.MeanAnomaly)
	return pos, nil
}
