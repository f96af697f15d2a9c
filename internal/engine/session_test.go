package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/signalsfoundry/maneuver-lab/kb"
	"github.com/signalsfoundry/maneuver-lab/model"
	"github.com/signalsfoundry/maneuver-lab/timectrl"
)

type fakeMetrics struct {
	mu        sync.Mutex
	frames    int
	regimes   []string
	residuals []float64
	errors    int
	applied   int
	rejected  int
	elapsed   float64
}

func (f *fakeMetrics) ObserveFrame(regime string, _, elapsed, residual float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	f.regimes = append(f.regimes, regime)
	f.residuals = append(f.residuals, residual)
	f.elapsed = elapsed
}

func (f *fakeMetrics) IncPropagationErrors() {
	f.mu.Lock()
	f.errors++
	f.mu.Unlock()
}

func (f *fakeMetrics) ObserveStateUpdate(applied bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if applied {
		f.applied++
	} else {
		f.rejected++
	}
}

func (f *fakeMetrics) SetElapsed(elapsed float64) {
	f.mu.Lock()
	f.elapsed = elapsed
	f.mu.Unlock()
}

type failingMotion struct{}

func (failingMotion) PositionAt(core.OrbitalElements, float64) (core.Position, error) {
	return core.Position{}, errors.New("solver exploded")
}

func setDeltaV(ctx context.Context, s *Session, deltaV float64) error {
	next := s.State()
	next.DeltaV = deltaV
	_, _, err := s.Apply(ctx, "", next)
	return err
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeMetrics) {
	t.Helper()
	metrics := &fakeMetrics{}
	opts = append([]Option{WithLogger(logging.Noop()), WithMetrics(metrics)}, opts...)
	s, err := NewSession(nil, "earth", model.DefaultOrbitalState(), opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s, metrics
}

func TestNewSessionDefaults(t *testing.T) {
	s, _ := newTestSession(t)

	if got := s.Body().Name; got != "earth" {
		t.Fatalf("Body = %q, want earth", got)
	}
	el := s.Elements()
	if el.R1 != 6771000 {
		t.Fatalf("R1 = %v, want 6771000", el.R1)
	}
	if core.Classify(el.Eccentricity) != core.RegimeCircular {
		t.Fatalf("default state should be circular, e = %v", el.Eccentricity)
	}
	if !s.Clock().Running() || s.Clock().Elapsed() != 0 {
		t.Fatalf("clock should start running at zero")
	}
}

func TestNewSessionErrors(t *testing.T) {
	if _, err := NewSession(nil, "vulcan", model.DefaultOrbitalState()); !errors.Is(err, kb.ErrBodyNotFound) {
		t.Fatalf("unknown body error = %v, want ErrBodyNotFound", err)
	}

	catalog, err := kb.NewBodyCatalog(model.CentralBody{Name: "pebble", GM: 1, RadiusMeters: 1000})
	if err != nil {
		t.Fatalf("NewBodyCatalog: %v", err)
	}
	state := model.OrbitalState{AltitudeKm: 400, DeltaV: -1000}
	if _, err := NewSession(catalog, "pebble", state); !errors.Is(err, core.ErrNegativePostBurnSpeed) {
		t.Fatalf("reverse burn error = %v, want ErrNegativePostBurnSpeed", err)
	}
}

func TestApplyClampsAndRecomputes(t *testing.T) {
	s, metrics := newTestSession(t)
	ctx := context.Background()

	_, got, err := s.Apply(ctx, "", model.OrbitalState{AltitudeKm: 5000, DeltaV: 1000, Zoom: 0.1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.AltitudeKm != model.MaxAltitudeKm {
		t.Fatalf("AltitudeKm = %v, want clamped %v", got.AltitudeKm, model.MaxAltitudeKm)
	}
	el := s.Elements()
	if el.R1 != 6371000+model.MaxAltitudeKm*1000 {
		t.Fatalf("elements not recomputed: R1 = %v", el.R1)
	}
	if core.Classify(el.Eccentricity) != core.RegimeElliptical {
		t.Fatalf("1000 m/s burn should be elliptical, e = %v", el.Eccentricity)
	}
	if metrics.applied != 1 {
		t.Fatalf("applied updates = %d, want 1", metrics.applied)
	}

	if _, _, err := s.Apply(ctx, "", model.OrbitalState{AltitudeKm: 400, Zoom: 0.1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st := s.State(); st.AltitudeKm != 400 || st.DeltaV != 0 || st.Zoom != 0.1 {
		t.Fatalf("State = %+v", st)
	}
}

func TestApplyRejectsReverseBurnOnSmallBody(t *testing.T) {
	catalog, err := kb.NewBodyCatalog(
		model.Earth,
		model.CentralBody{Name: "pebble", GM: 1e9, RadiusMeters: 100000},
	)
	if err != nil {
		t.Fatalf("NewBodyCatalog: %v", err)
	}
	metrics := &fakeMetrics{}
	s, err := NewSession(catalog, "pebble", model.DefaultOrbitalState(), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	before := s.State()
	if err := setDeltaV(context.Background(), s, -500); !errors.Is(err, core.ErrNegativePostBurnSpeed) {
		t.Fatalf("Apply error = %v, want ErrNegativePostBurnSpeed", err)
	}
	if s.State() != before {
		t.Fatalf("rejected update must not change state")
	}
	if metrics.rejected != 1 {
		t.Fatalf("rejected updates = %d, want 1", metrics.rejected)
	}
}

func TestResetVectorAndZoom(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	if err := setDeltaV(ctx, s, 800); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	_, got, err := s.Apply(ctx, "", s.State().ResetVector().ZoomIn())
	if err != nil {
		t.Fatalf("Apply(reset, zoom in): %v", err)
	}
	if got.DeltaV != 0 || s.Elements().Eccentricity > 1e-12 {
		t.Fatalf("reset left a burn: %+v e=%v", got, s.Elements().Eccentricity)
	}
	if math.Abs(got.Zoom-model.DefaultZoom*model.ZoomFactor) > 1e-12 {
		t.Fatalf("zoom in = %v", got.Zoom)
	}
	_, got, _ = s.Apply(ctx, "", got.ZoomOut())
	if math.Abs(got.Zoom-model.DefaultZoom) > 1e-12 {
		t.Fatalf("zoom out = %v", got.Zoom)
	}
}

func TestFrameBoundAndEscape(t *testing.T) {
	s, metrics := newTestSession(t)
	ctx := context.Background()

	if err := setDeltaV(ctx, s, 1000); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := s.ControlClock(ctx, ActionAdvance); err != nil {
		t.Fatalf("ControlClock: %v", err)
	}
	f, err := s.Frame(ctx)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if !f.HasPosition || f.Regime != core.RegimeElliptical {
		t.Fatalf("bound frame = %+v", f)
	}
	if f.ElapsedSeconds != timectrl.DefaultIncrement {
		t.Fatalf("ElapsedSeconds = %v, want one increment", f.ElapsedSeconds)
	}
	if r := metrics.residuals[len(metrics.residuals)-1]; r < 0 || r > 1e-9 {
		t.Fatalf("Kepler residual = %v", r)
	}

	if err := setDeltaV(ctx, s, 3500); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	f, err = s.Frame(ctx)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if f.HasPosition || f.Regime != core.RegimeEscape {
		t.Fatalf("escape frame = %+v", f)
	}
	if r := metrics.residuals[len(metrics.residuals)-1]; r != -1 {
		t.Fatalf("escape frame residual = %v, want -1 (no position)", r)
	}
	if got := metrics.regimes[len(metrics.regimes)-1]; got != "escape" {
		t.Fatalf("last regime = %q", got)
	}
	if len(s.Path(32)) != 0 {
		t.Fatalf("escape trajectory should have no closed path")
	}
}

func TestFramePropagationError(t *testing.T) {
	s, metrics := newTestSession(t, WithMotionModel(failingMotion{}))

	if _, err := s.Frame(context.Background()); err == nil {
		t.Fatalf("expected propagation error")
	}
	if metrics.errors != 1 {
		t.Fatalf("propagation errors = %d, want 1", metrics.errors)
	}
}

func TestControlClock(t *testing.T) {
	s, metrics := newTestSession(t)
	ctx := context.Background()

	st, err := s.ControlClock(ctx, "advance")
	if err != nil || st.Frames != 1 {
		t.Fatalf("advance = %+v, %v", st, err)
	}
	if st, _ = s.ControlClock(ctx, "PAUSE"); st.Running {
		t.Fatalf("pause left clock running")
	}
	if st, _ = s.ControlClock(ctx, ActionAdvance); st.Frames != 1 {
		t.Fatalf("advance while paused should not apply, frames = %d", st.Frames)
	}
	if st, _ = s.ControlClock(ctx, ActionReset); st.Elapsed != 0 || st.Running {
		t.Fatalf("reset = %+v, want zero elapsed and still paused", st)
	}
	if metrics.elapsed != 0 {
		t.Fatalf("reset should publish zero elapsed")
	}
	if st, _ = s.ControlClock(ctx, ActionResume); !st.Running {
		t.Fatalf("resume did not restart clock")
	}
	if st, _ = s.ControlClock(ctx, ActionToggle); st.Running {
		t.Fatalf("toggle did not pause clock")
	}
	if _, err := s.ControlClock(ctx, "rewind"); !errors.Is(err, ErrUnknownClockAction) {
		t.Fatalf("unknown action error = %v", err)
	}
}

func TestBodySwitchAndCatalogUpdates(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	if _, _, err := s.Apply(ctx, "Moon", s.State()); err != nil {
		t.Fatalf("Apply(Moon): %v", err)
	}
	if s.Elements().GM != model.Moon.GM {
		t.Fatalf("elements not recomputed for the Moon")
	}
	if _, _, err := s.Apply(ctx, "ceres", s.State()); !errors.Is(err, kb.ErrBodyNotFound) {
		t.Fatalf("Apply(ceres) error = %v", err)
	}

	heavierMoon := model.Moon
	heavierMoon.GM *= 2
	if err := s.Catalog().UpsertBody(heavierMoon); err != nil {
		t.Fatalf("UpsertBody: %v", err)
	}
	if s.Elements().GM != heavierMoon.GM {
		t.Fatalf("catalog update not applied to the active body")
	}

	heavierMars := model.Mars
	heavierMars.GM *= 2
	if err := s.Catalog().UpsertBody(heavierMars); err != nil {
		t.Fatalf("UpsertBody: %v", err)
	}
	if s.Body().Name != "moon" {
		t.Fatalf("updates to other bodies must not switch the session")
	}
}

func TestOnTickDrivenByClock(t *testing.T) {
	clock := timectrl.NewSimulationClock(0.5, timectrl.Accelerated)
	s, metrics := newTestSession(t, WithClock(clock))
	clock.AddListener(s.OnTick)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	<-clock.Start(ctx, 4)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.frames != 4 {
		t.Fatalf("frames observed = %d, want 4", metrics.frames)
	}
	if metrics.elapsed != 2 {
		t.Fatalf("last elapsed = %v, want 2", metrics.elapsed)
	}
}

func TestApplyBodyAndStateTogether(t *testing.T) {
	s, metrics := newTestSession(t)
	ctx := context.Background()
	before := s.State()

	reverse := before
	reverse.AltitudeKm = 2000
	reverse.DeltaV = -1500
	if _, _, err := s.Apply(ctx, "moon", reverse); !errors.Is(err, core.ErrNegativePostBurnSpeed) {
		t.Fatalf("Apply error = %v, want ErrNegativePostBurnSpeed", err)
	}
	if s.Body().Name != "earth" || s.State() != before || s.Elements().GM != model.Earth.GM {
		t.Fatalf("rejected Apply changed the session: body=%s state=%+v", s.Body().Name, s.State())
	}
	if _, _, err := s.Apply(ctx, "vulcan", before); !errors.Is(err, kb.ErrBodyNotFound) {
		t.Fatalf("Apply(vulcan) error = %v, want ErrBodyNotFound", err)
	}

	prograde := before
	prograde.DeltaV = 300
	body, state, err := s.Apply(ctx, "Moon", prograde)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if body.Name != "moon" || state.DeltaV != 300 || s.Elements().GM != model.Moon.GM {
		t.Fatalf("Apply result body=%+v state=%+v", body, state)
	}
	if metrics.rejected != 1 || metrics.applied != 1 {
		t.Fatalf("updates applied=%d rejected=%d, want 1/1", metrics.applied, metrics.rejected)
	}
}
