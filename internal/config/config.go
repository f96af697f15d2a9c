// Package config loads engine settings from flags, MANEUVER_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/signalsfoundry/maneuver-lab/internal/observability"
	"github.com/signalsfoundry/maneuver-lab/kb"
	"github.com/signalsfoundry/maneuver-lab/model"
	"github.com/signalsfoundry/maneuver-lab/timectrl"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. MANEUVER_ALTITUDE_KM.
const EnvPrefix = "MANEUVER"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// TLE optionally seeds the initial altitude from a two-line element set.
type TLE struct {
	Line1 string `mapstructure:"line1"`
	Line2 string `mapstructure:"line2"`
	// At is an RFC 3339 propagation time; empty means now.
	At string `mapstructure:"at"`
}

// Set reports whether both lines were supplied.
func (t TLE) Set() bool { return t.Line1 != "" && t.Line2 != "" }

// Time returns the propagation time, defaulting to now.
func (t TLE) Time() (time.Time, error) {
	if t.At == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, t.At)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: tle.at: %v", ErrInvalidConfig, err)
	}
	return at.UTC(), nil
}

// Config is the full runtime configuration for the simulator and the server.
type Config struct {
	Body   string              `mapstructure:"body"`
	Bodies []model.CentralBody `mapstructure:"bodies"`

	AltitudeKm float64 `mapstructure:"altitude_km"`
	DeltaV     float64 `mapstructure:"delta_v"`

	TimeAcceleration float64 `mapstructure:"time_acceleration"`
	FrameRate        int     `mapstructure:"frame_rate"`
	KeplerIterations int     `mapstructure:"kepler_iterations"`
	Mode             string  `mapstructure:"mode"`
	Frames           int     `mapstructure:"frames"`
	PathSamples      int     `mapstructure:"path_samples"`

	GRPCAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	TLE     TLE                         `mapstructure:"tle"`
	Log     logging.Config              `mapstructure:"log"`
	Tracing observability.TracingConfig `mapstructure:"tracing"`
}

// flag name -> viper key
var flagKeys = map[string]string{
	"body":              "body",
	"altitude-km":       "altitude_km",
	"delta-v":           "delta_v",
	"time-acceleration": "time_acceleration",
	"frame-rate":        "frame_rate",
	"kepler-iterations": "kepler_iterations",
	"mode":              "mode",
	"frames":            "frames",
	"path-samples":      "path_samples",
	"grpc-addr":         "grpc_addr",
	"metrics-addr":      "metrics_addr",
	"tle-line1":         "tle.line1",
	"tle-line2":         "tle.line2",
	"tle-at":            "tle.at",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"tracing":           "tracing.enabled",
	"tracing-exporter":  "tracing.exporter",
}

func setDefaults(v *viper.Viper) {
	tracing := observability.DefaultTracingConfig()

	v.SetDefault("body", model.Earth.Name)
	v.SetDefault("altitude_km", model.DefaultAltitudeKm)
	v.SetDefault("delta_v", 0.0)
	v.SetDefault("time_acceleration", 150.0)
	v.SetDefault("frame_rate", timectrl.DefaultFrameRate)
	v.SetDefault("kepler_iterations", 5)
	v.SetDefault("mode", timectrl.RealTime.String())
	v.SetDefault("frames", 0)
	v.SetDefault("path_samples", 180)
	v.SetDefault("grpc_addr", ":50061")
	v.SetDefault("metrics_addr", ":9091")
	v.SetDefault("tle.line1", "")
	v.SetDefault("tle.line2", "")
	v.SetDefault("tle.at", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.exporter", tracing.Exporter)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.endpoint", tracing.Endpoint)
	v.SetDefault("tracing.sample_ratio", tracing.SampleRatio)
}

// RegisterFlags adds the engine flags (plus --config) to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional config file (yaml, toml or json)")
	fs.String("body", model.Earth.Name, "central body name")
	fs.Float64("altitude-km", model.DefaultAltitudeKm, "initial circular orbit altitude in km")
	fs.Float64("delta-v", 0, "impulsive burn in m/s (negative is retrograde)")
	fs.Float64("time-acceleration", 150, "orbit seconds per simulated second")
	fs.Int("frame-rate", timectrl.DefaultFrameRate, "frames per simulated second")
	fs.Int("kepler-iterations", 5, "Newton iterations for Kepler's equation")
	fs.String("mode", timectrl.RealTime.String(), "clock pacing: realtime or accelerated")
	fs.Int("frames", 0, "stop after this many frames (0 runs until interrupted)")
	fs.Int("path-samples", 180, "points sampled along the orbit path")
	fs.String("grpc-addr", ":50061", "gRPC listen address")
	fs.String("metrics-addr", ":9091", "Prometheus /metrics listen address (empty disables)")
	fs.String("tle-line1", "", "TLE line 1 used to seed the altitude")
	fs.String("tle-line2", "", "TLE line 2 used to seed the altitude")
	fs.String("tle-at", "", "RFC 3339 time to propagate the TLE to (default now)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "text", "log format: text or json")
	fs.Bool("tracing", false, "enable OpenTelemetry tracing")
	fs.String("tracing-exporter", "stdout", "tracing exporter: stdout or otlp")
}

// Load parses args into fs (which must have been prepared with RegisterFlags),
// then resolves the configuration. Flags set explicitly beat environment
// variables, which beat the config file, which beats the defaults.
func Load(fs *pflag.FlagSet, args []string) (Config, error) {
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	path := v.GetString("config")
	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		path = f.Value.String()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the engine cannot fall back from.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidConfig)
	}
	if _, err := timectrl.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: frame_rate must be positive, got %d", ErrInvalidConfig, c.FrameRate)
	}
	if !(c.TimeAcceleration > 0) {
		return fmt.Errorf("%w: time_acceleration must be positive, got %g", ErrInvalidConfig, c.TimeAcceleration)
	}
	if c.KeplerIterations < 1 {
		return fmt.Errorf("%w: kepler_iterations must be at least 1, got %d", ErrInvalidConfig, c.KeplerIterations)
	}
	if c.Frames < 0 {
		return fmt.Errorf("%w: frames must not be negative", ErrInvalidConfig)
	}
	if (c.TLE.Line1 == "") != (c.TLE.Line2 == "") {
		return fmt.Errorf("%w: both TLE lines are required", ErrInvalidConfig)
	}
	if _, err := c.TLE.Time(); err != nil {
		return err
	}
	return nil
}

// Catalog returns the built-in bodies overlaid with the configured ones, and
// the selected central body.
func (c Config) Catalog() (*kb.BodyCatalog, model.CentralBody, error) {
	catalog := kb.NewDefaultCatalog()
	for _, b := range c.Bodies {
		if err := catalog.UpsertBody(b); err != nil {
			return nil, model.CentralBody{}, fmt.Errorf("configured body %q: %w", b.Name, err)
		}
	}
	body, err := catalog.GetBody(c.Body)
	if err != nil {
		return nil, model.CentralBody{}, err
	}
	return catalog, body, nil
}

// InitialState is the configured altitude and burn, clamped to the control
// ranges.
func (c Config) InitialState() model.OrbitalState {
	s := model.DefaultOrbitalState()
	s.AltitudeKm = c.AltitudeKm
	s.DeltaV = c.DeltaV
	return s.Clamp()
}

// ClockMode returns the parsed pacing mode. Validate has already rejected
// unknown values.
func (c Config) ClockMode() timectrl.Mode {
	m, _ := timectrl.ParseMode(c.Mode)
	return m
}

// Increment is the simulated seconds added per frame.
func (c Config) Increment() float64 {
	return 1 / float64(c.FrameRate)
}

// FrameInterval is the wall-clock period between real-time frames.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}
