// Package main implements the homeprice API server: the HTML prediction form,
// the JSON prediction API, schema and health endpoints, and Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/engine/inference"
	"github.com/WessleyAI/homeprice/engine/mlclient"
	"github.com/WessleyAI/homeprice/pkg/config"
	"github.com/WessleyAI/homeprice/pkg/logging"
	"github.com/WessleyAI/homeprice/pkg/metrics"
	"github.com/WessleyAI/homeprice/pkg/mid"
	"github.com/WessleyAI/homeprice/pkg/natsutil"
	"github.com/WessleyAI/homeprice/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	// --- Build the prediction service ---
	svc, breaker, closeSvc, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSvc()

	reg := metrics.New("homeprice").WithRuntime()
	svc.WithMetrics(inference.NewMetrics(reg))

	// --- Connect to NATS (optional) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName+"-api"))
		if err != nil {
			logger.Warn("nats unavailable, prediction events disabled", "url", cfg.NATSURL, "err", err)
		} else {
			defer nc.Drain()
			svc.WithEvents(natsutil.NewPublisher[inference.PredictionEvent](nc, cfg.PredictionSubject))
			logger.Info("publishing prediction events", "subject", cfg.PredictionSubject)
		}
	}

	// --- Build HTTP server ---
	api, err := newServer(svc, serverOptions{
		Metrics: reg.Handler(),
		Breaker: breaker,
		Printer: message.NewPrinter(language.Make(cfg.DisplayLocale)),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := mid.Chain(api.routes(),
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(limiter),
		mid.OTel(cfg.ServiceName),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "remote_inference", cfg.RemoteInference())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildService wires the inference service to local artifacts or, when
// ML_WORKER_URL is set, to the remote ml-worker. The schema is always local.
func buildService(cfg *config.Config, logger *slog.Logger) (*inference.Service, *resilience.Breaker, func(), error) {
	schemaPath, scalerPath, modelPath := cfg.ArtifactFiles()
	opts := inference.DefaultOptions()

	if !cfg.RemoteInference() {
		bundle, err := artifact.LoadFiles(artifact.Paths{Schema: schemaPath, Scaler: scalerPath, Model: modelPath})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load artifacts: %w", err)
		}
		logger.Info("artifacts loaded", "features", bundle.Schema.Len())
		return inference.FromBundle(bundle, opts, logger), nil, func() {}, nil
	}

	schema, err := artifact.LoadSchema(schemaPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load schema: %w", err)
	}
	copts := mlclient.DefaultOptions()
	copts.Timeout = cfg.MLWorkerTimeout
	client, err := mlclient.Dial(cfg.MLWorkerURL, copts, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("using remote ml-worker", "url", cfg.MLWorkerURL, "features", schema.Len())
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close ml-worker connection", "err", err)
		}
	}
	return inference.New(schema, client, client, opts, logger), client.Breaker(), closeFn, nil
}
