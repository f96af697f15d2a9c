package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/api"
	"github.com/signalsfoundry/maneuver-lab/internal/config"
	"github.com/signalsfoundry/maneuver-lab/internal/engine"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/signalsfoundry/maneuver-lab/internal/observability"
	"github.com/signalsfoundry/maneuver-lab/timectrl"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "engine-server: %v\n", err)
		os.Exit(1)
	}
}

// engineServer bundles everything main starts and stops.
type engineServer struct {
	cfg     config.Config
	log     logging.Logger
	session *engine.Session
	grpc    *grpc.Server
	health  *health.Server
	rpc     *observability.RPCCollector
	metrics *observability.EngineCollector
}

func newEngineServer(cfg config.Config, log logging.Logger, reg prometheus.Registerer) (*engineServer, error) {
	rpcCollector, err := observability.NewRPCCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("rpc metrics: %w", err)
	}
	engineCollector, err := observability.NewEngineCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("engine metrics: %w", err)
	}

	catalog, body, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	state := cfg.InitialState()
	if cfg.TLE.Set() {
		at, err := cfg.TLE.Time()
		if err != nil {
			return nil, err
		}
		alt, err := core.AltitudeFromTLE(cfg.TLE.Line1, cfg.TLE.Line2, at, body.RadiusMeters)
		if err != nil {
			return nil, fmt.Errorf("seed altitude: %w", err)
		}
		state.AltitudeKm = alt
		state = state.Clamp()
	}

	clock := timectrl.NewSimulationClock(cfg.Increment(), cfg.ClockMode())
	clock.FrameInterval = cfg.FrameInterval()

	session, err := engine.NewSession(catalog, body.Name, state,
		engine.WithLogger(log),
		engine.WithMetrics(engineCollector),
		engine.WithClock(clock),
		engine.WithMotionModel(core.NewMotionModel(cfg.KeplerIterations, cfg.TimeAcceleration)),
	)
	if err != nil {
		return nil, err
	}
	clock.AddListener(session.OnTick)

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestLoggingUnaryServerInterceptor(log, api.SessionFields(session)),
			api.TracingUnaryServerInterceptor(api.SessionAttributes(session)),
			rpcCollector.UnaryServerInterceptor(),
		),
	)
	api.RegisterTrajectoryServiceServer(srv, api.NewTrajectoryService(session, log))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &engineServer{
		cfg:     cfg,
		log:     log,
		session: session,
		grpc:    srv,
		health:  healthSrv,
		rpc:     rpcCollector,
		metrics: engineCollector,
	}, nil
}

// serve runs the gRPC server on lis and the frame clock until ctx is done.
func (s *engineServer) serve(ctx context.Context, lis net.Listener) error {
	clockCtx, cancelClock := context.WithCancel(ctx)
	defer cancelClock()
	clockDone := s.session.Clock().Start(clockCtx, s.cfg.Frames)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpc.Serve(lis)
	}()

	s.log.Info(ctx, "engine gRPC server listening",
		logging.String("addr", lis.Addr().String()),
		logging.Body(s.session.Body().Name),
		logging.String("clock_mode", s.session.Clock().Mode.String()),
	)

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	s.log.Info(context.Background(), "shutting down engine server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
	cancelClock()
	<-clockDone
	s.session.Close()
	return err
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := pflag.NewFlagSet("engine-server", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)

	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	logCfg.Output = stderr
	log := logging.New(logCfg)

	tracingCfg := cfg.Tracing
	tracingCfg.Output = stderr
	tracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Close(log)

	srv, err := newEngineServer(cfg, log, nil)
	if err != nil {
		return err
	}

	metricsSrv := serveMetrics(cfg.MetricsAddr, srv.rpc, log)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	err = srv.serve(ctx, lis)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return err
}

func serveMetrics(addr string, collector *observability.RPCCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
