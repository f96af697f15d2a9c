package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/config"
	"github.com/signalsfoundry/maneuver-lab/internal/engine"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/signalsfoundry/maneuver-lab/timectrl"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

type frameLine struct {
	Regime        string `json:"regime"`
	PeriodValid   bool   `json:"period_valid"`
	ApoapsisValid bool   `json:"apoapsis_valid"`
	core.Frame
}

// newFrameLine zeroes non-finite values, which encoding/json rejects; the
// validity flags say which ones were meaningful.
func newFrameLine(f core.Frame) frameLine {
	for _, v := range []*float64{
		&f.SemiMajorAxis, &f.Eccentricity, &f.PeriapsisAltitudeKm, &f.ApoapsisAltitudeKm,
		&f.PeriodSeconds, &f.PostBurnSpeed,
	} {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
	return frameLine{
		Regime:        f.Regime.String(),
		PeriodValid:   f.Summary.PeriodValid,
		ApoapsisValid: f.Summary.ApoapsisValid,
		Frame:         f,
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("simulator", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	printEvery := fs.Int("print-every", timectrl.DefaultFrameRate, "print one frame out of every N")
	jsonOut := fs.Bool("json", false, "print frames as JSON lines")
	burnDuration := fs.Float64("burn-duration", 0, "burn duration in seconds for the g-load check (0 skips it)")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	if *printEvery < 1 {
		*printEvery = 1
	}

	logCfg := cfg.Log
	logCfg.Output = stderr
	log := logging.New(logCfg)

	catalog, body, err := cfg.Catalog()
	if err != nil {
		return err
	}

	state := cfg.InitialState()
	if cfg.TLE.Set() {
		at, err := cfg.TLE.Time()
		if err != nil {
			return err
		}
		alt, err := core.AltitudeFromTLE(cfg.TLE.Line1, cfg.TLE.Line2, at, body.RadiusMeters)
		if err != nil {
			return fmt.Errorf("seed altitude: %w", err)
		}
		state.AltitudeKm = alt
		state = state.Clamp()

		fields := []logging.Field{logging.AltitudeKm(alt)}
		if r, v, err := core.StateFromTLE(cfg.TLE.Line1, cfg.TLE.Line2, at); err == nil {
			fields = append(fields,
				logging.Float("speed_km_s", v.Norm()),
				logging.Float("flight_path_angle_deg", core.FlightPathAngle(r, v)*180/math.Pi),
			)
		}
		log.Info(ctx, "altitude seeded from TLE", fields...)
	}

	clock := timectrl.NewSimulationClock(cfg.Increment(), cfg.ClockMode())
	clock.FrameInterval = cfg.FrameInterval()

	session, err := engine.NewSession(catalog, body.Name, state,
		engine.WithLogger(log),
		engine.WithClock(clock),
		engine.WithMotionModel(core.NewMotionModel(cfg.KeplerIterations, cfg.TimeAcceleration)),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	el := session.Elements()
	summary := core.Summarize(el)
	fmt.Fprintf(stdout, "body=%s altitude=%.0fkm dv=%+.0fm/s a=%.0fkm e=%.4f regime=%s (%s)\n",
		body.Name, session.State().AltitudeKm, session.State().DeltaV,
		el.SemiMajorAxis/1000, el.Eccentricity, summary.Regime, summary.Regime.Label())
	if summary.PeriodValid {
		fmt.Fprintf(stdout, "period=%.1fs periapsis=%.1fkm apoapsis=%.1fkm\n",
			el.Period, el.PeriapsisAltitudeKm(), el.ApoapsisAltitudeKm())
	}

	if *burnDuration > 0 {
		a, err := core.EvaluateBurn(session.State().DeltaV, *burnDuration)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "burn %s: %.2f g over %.1fs %s\n", a.Status, a.GForce, a.DurationSeconds, a.Reason)
	}

	enc := json.NewEncoder(stdout)
	var printErr error
	clock.AddListener(func(elapsed float64) {
		if clock.Frames()%uint64(*printEvery) != 0 || printErr != nil {
			return
		}
		f, err := session.FrameAt(ctx, elapsed)
		if err != nil {
			printErr = err
			return
		}
		if *jsonOut {
			printErr = enc.Encode(newFrameLine(f))
			return
		}
		if !f.HasPosition {
			_, printErr = fmt.Fprintf(stdout, "t=%7.2fs %s, no closed orbit\n", f.ElapsedSeconds, f.Regime)
			return
		}
		_, printErr = fmt.Fprintf(stdout, "t=%7.2fs nu=%7.2fdeg alt=%9.1fkm x=%10.0fkm y=%10.0fkm\n",
			f.ElapsedSeconds, f.TrueAnomaly*180/math.Pi, (f.CurrentRadius-body.RadiusMeters)/1000, f.X/1000, f.Y/1000)
	})

	log.Info(ctx, "simulation started",
		logging.String("mode", clock.Mode.String()),
		logging.Int("frames", cfg.Frames),
	)
	<-clock.Start(ctx, cfg.Frames)
	log.Info(ctx, "simulation stopped",
		logging.Elapsed(clock.Elapsed()),
	)
	return printErr
}
