package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Regime label values, matching core.Regime.String.
var regimeLabels = []string{"circular", "elliptical", "escape"}

// EngineCollector exposes per-frame trajectory metrics.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	FramesTotal       prometheus.Counter
	PropagationErrors prometheus.Counter
	StateUpdates      *prometheus.CounterVec
	Eccentricity      prometheus.Gauge
	ElapsedSeconds    prometheus.Gauge
	Regime            *prometheus.GaugeVec
	KeplerResidual    prometheus.Histogram
}

// NewEngineCollector registers engine metrics against the provided registerer.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_frames_total",
		Help: "Number of animation frames computed.",
	}), "engine_frames_total")
	if err != nil {
		return nil, err
	}

	propErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_propagation_errors_total",
		Help: "Frames whose propagation failed.",
	}), "engine_propagation_errors_total")
	if err != nil {
		return nil, err
	}

	updates, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_state_updates_total",
		Help: "Orbital state updates from the controls side, labeled by result.",
	}, []string{"result"}), "engine_state_updates_total")
	if err != nil {
		return nil, err
	}

	ecc, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_eccentricity",
		Help: "Eccentricity of the current trajectory.",
	}), "engine_eccentricity")
	if err != nil {
		return nil, err
	}

	elapsed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_sim_elapsed_seconds",
		Help: "Simulated seconds on the session clock.",
	}), "engine_sim_elapsed_seconds")
	if err != nil {
		return nil, err
	}

	regime, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "engine_regime",
		Help: "1 for the current trajectory regime, 0 otherwise.",
	}, []string{"regime"}), "engine_regime")
	if err != nil {
		return nil, err
	}

	residual, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_kepler_residual_radians",
		Help:    "Absolute residual of Kepler's equation after the fixed Newton iterations.",
		Buckets: prometheus.ExponentialBuckets(1e-15, 10, 14),
	}), "engine_kepler_residual_radians")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		FramesTotal:       frames,
		PropagationErrors: propErrors,
		StateUpdates:      updates,
		Eccentricity:      ecc,
		ElapsedSeconds:    elapsed,
		Regime:            regime,
		KeplerResidual:    residual,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a /metrics handler for the collector's registry.
func (c *EngineCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

// ObserveFrame records one computed frame. residual < 0 means the frame had
// no propagated position.
func (c *EngineCollector) ObserveFrame(regime string, eccentricity, elapsed, residual float64) {
	if c == nil {
		return
	}
	c.FramesTotal.Inc()
	c.ElapsedSeconds.Set(elapsed)
	// NaN eccentricity would poison dashboards; leave the last value.
	if eccentricity == eccentricity {
		c.Eccentricity.Set(eccentricity)
	}
	for _, r := range regimeLabels {
		v := 0.0
		if r == regime {
			v = 1
		}
		c.Regime.WithLabelValues(r).Set(v)
	}
	if residual >= 0 {
		c.KeplerResidual.Observe(residual)
	}
}

// IncPropagationErrors counts a failed propagation.
func (c *EngineCollector) IncPropagationErrors() {
	if c == nil {
		return
	}
	c.PropagationErrors.Inc()
}

// ObserveStateUpdate counts a controls update as "applied" or "rejected".
func (c *EngineCollector) ObserveStateUpdate(applied bool) {
	if c == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "rejected"
	}
	c.StateUpdates.WithLabelValues(result).Inc()
}

// SetElapsed updates the clock gauge outside of frame computation (reset).
func (c *EngineCollector) SetElapsed(elapsed float64) {
	if c == nil {
		return
	}
	c.ElapsedSeconds.Set(elapsed)
}
