package grpcapi_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BrandonDHaskell/garita/internal/grpcapi"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyStore fails Ping while down is set.
type flakyStore struct{ down atomic.Bool }

func (f *flakyStore) Ping(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startServer(t *testing.T) (*grpcapi.Server, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpcapi.NewServer("bufnet")
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func waitFor(t *testing.T, c healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status(t, c, grpcapi.ServiceName) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status never became %s", want)
}

func TestHealth_StartsNotServing(t *testing.T) {
	_, c := startServer(t)

	if got := status(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", got)
	}
}

func TestHealthMonitor_TracksStore(t *testing.T) {
	srv, c := startServer(t)
	st := &flakyStore{}

	mon := grpcapi.NewHealthMonitor(st, srv, grpcapi.MonitorConfig{Interval: 10 * time.Millisecond}, silentLogger())
	mon.Start(context.Background())
	defer mon.Stop()

	waitFor(t, c, healthpb.HealthCheckResponse_SERVING)

	st.down.Store(true)
	waitFor(t, c, healthpb.HealthCheckResponse_NOT_SERVING)

	st.down.Store(false)
	waitFor(t, c, healthpb.HealthCheckResponse_SERVING)
}

func TestHealthMonitor_StopIsIdempotent(t *testing.T) {
	srv, _ := startServer(t)
	mon := grpcapi.NewHealthMonitor(&flakyStore{}, srv, grpcapi.MonitorConfig{Interval: time.Hour}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	mon.Start(ctx)

	cancel()
	mon.Stop()
	mon.Stop()
}
