package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/maneuver-lab/internal/api"
	"github.com/signalsfoundry/maneuver-lab/internal/config"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func testConfig(t *testing.T, args ...string) config.Config {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	cfg, err := config.Load(fs, args)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestEngineServerServesAndStops(t *testing.T) {
	cfg := testConfig(t, "--mode=accelerated", "--delta-v=500")
	reg := prometheus.NewRegistry()
	srv, err := newEngineServer(cfg, logging.Noop(), reg)
	if err != nil {
		t.Fatalf("newEngineServer: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	hc, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v", hc.GetStatus())
	}

	client := api.NewClient(conn)
	resp, err := client.GetFrame(callCtx, 0)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if regime, _ := api.String(resp, "frame", "regime"); regime != "elliptical" {
		t.Fatalf("regime = %q, want elliptical", regime)
	}

	// The accelerated clock drives frames on its own.
	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(srv.metrics.FramesTotal) < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("clock did not produce frames")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := testutil.ToFloat64(srv.rpc.RPCRequests.WithLabelValues("TrajectoryService", "GetFrame", "OK")); got != 1 {
		t.Fatalf("engine_requests_total{GetFrame} = %v, want 1", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}

func TestNewEngineServerRejectsUnknownBody(t *testing.T) {
	cfg := testConfig(t, "--body=vulcan")
	if _, err := newEngineServer(cfg, logging.Noop(), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected unknown body error")
	}
}
