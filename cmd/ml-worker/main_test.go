package main

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/engine/domain"
	"github.com/WessleyAI/homeprice/engine/mlclient"
	"github.com/WessleyAI/homeprice/pkg/config"
)

func testBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	scaler, err := artifact.NewStandardScaler([]float64{0, 0}, []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	return &artifact.Bundle{
		Schema: domain.MustFeatureSchema("BHK", "Bathroom"),
		Scaler: scaler,
		Model:  artifact.NewLinearModel([]float64{2, 3}, 1),
	}
}

func dial(t *testing.T, gs *grpc.Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_ServesFeatureService(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	conn := dial(t, newServer(testBundle(t), logger))
	c := mlclient.New(conn, mlclient.DefaultOptions(), logger)

	got, err := c.Predict(context.Background(), []float64{2, 1})
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Fatalf("expected 8, got %v", got)
	}
	if !strings.Contains(logs.String(), "/homeprice.ml.v1.FeatureService/Predict") {
		t.Fatalf("expected rpc to be logged, got %s", logs.String())
	}
}

func TestServer_RejectsWrongDimension(t *testing.T) {
	conn := dial(t, newServer(testBundle(t), slog.Default()))
	c := mlclient.New(conn, mlclient.DefaultOptions(), nil)
	if _, err := c.Transform(context.Background(), []float64{1, 2, 3}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	conn := dial(t, newServer(testBundle(t), slog.Default()))
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: mlclient.ServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := &config.Config{Port: "", LogFormat: "json"}
	if err := run(cfg, slog.Default()); err == nil {
		t.Fatal("expected config error")
	}
}

func TestRun_MissingArtifacts(t *testing.T) {
	cfg := &config.Config{Port: "8080", ArtifactDir: t.TempDir(), LogFormat: "json", WorkerPort: "0"}
	if err := run(cfg, slog.Default()); err == nil {
		t.Fatal("expected artifact load error")
	}
}
