// Package main implements the ml-worker: a gRPC FeatureService that scales
// feature vectors and runs the price model from locally loaded artifacts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/engine/mlclient"
	"github.com/WessleyAI/homeprice/pkg/config"
	"github.com/WessleyAI/homeprice/pkg/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ml-worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schema, scaler, model := cfg.ArtifactFiles()
	bundle, err := artifact.LoadFiles(artifact.Paths{Schema: schema, Scaler: scaler, Model: model})
	if err != nil {
		return fmt.Errorf("load artifacts: %w", err)
	}
	logger.Info("artifacts loaded", "features", bundle.Schema.Len())

	lis, err := net.Listen("tcp", ":"+cfg.WorkerPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	gs := newServer(bundle, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ml-worker starting", "port", cfg.WorkerPort)
		errCh <- gs.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		gs.Stop()
	}
	return nil
}

// newServer registers FeatureService and the standard health service.
func newServer(b *artifact.Bundle, logger *slog.Logger) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary(logger)))
	mlclient.RegisterServer(gs, mlclient.LocalServer{Scaler: b.Scaler, Predictor: b.Model})

	hs := health.NewServer()
	hs.SetServingStatus(mlclient.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func logUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "duration_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("rpc failed", append(attrs, "err", err)...)
		} else {
			logger.Debug("rpc", attrs...)
		}
		return resp, err
	}
}
