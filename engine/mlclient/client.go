// Package mlclient talks to the ml-worker FeatureService over gRPC. The
// client implements the scaler and predictor collaborators used by the
// inference service, retrying transient failures and guarding the worker
// with a circuit breaker.
package mlclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/pkg/fn"
	"github.com/WessleyAI/homeprice/pkg/resilience"
)

// Options configures the client.
type Options struct {
	// Timeout bounds each attempt. Zero leaves the caller's deadline alone.
	Timeout time.Duration
	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	retry := fn.DefaultRetry
	retry.Retryable = retryable
	return Options{
		Timeout: 2 * time.Second,
		Retry:   retry,
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// Client is a remote Scaler and Predictor.
type Client struct {
	conn    grpc.ClientConnInterface
	closer  func() error
	breaker *resilience.Breaker
	opts    Options
	logger  *slog.Logger
}

var (
	_ artifact.Scaler    = (*Client)(nil)
	_ artifact.Predictor = (*Client)(nil)
)

// New wraps an existing connection. The caller keeps ownership of conn.
func New(conn grpc.ClientConnInterface, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = retryable
	}
	bopts := opts.Breaker
	if bopts.IsFailure == nil {
		bopts.IsFailure = countsAsFailure
	}
	if bopts.OnStateChange == nil {
		bopts.OnStateChange = func(from, to resilience.State) {
			logger.Warn("ml-worker circuit state changed", "from", from.String(), "to", to.String())
		}
	}
	return &Client{
		conn:    conn,
		breaker: resilience.NewBreaker(bopts),
		opts:    opts,
		logger:  logger,
	}
}

// Dial connects to the ml-worker at target. Close releases the connection.
func Dial(target string, opts Options, logger *slog.Logger, dialOpts ...grpc.DialOption) (*Client, error) {
	dialOpts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, dialOpts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("mlclient: dial %s: %w", target, err)
	}
	c := New(conn, opts, logger)
	c.closer = conn.Close
	return c, nil
}

// Close releases a connection opened by Dial.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Breaker exposes the circuit breaker state, mainly for health reporting.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// Transform scales features on the worker.
func (c *Client) Transform(ctx context.Context, features []float64) ([]float64, error) {
	out, err := c.invoke(ctx, transformMethod, features)
	if err != nil {
		return nil, fmt.Errorf("mlclient: transform: %w", err)
	}
	values, err := numbersFrom(out, fieldValues)
	if err != nil {
		return nil, fmt.Errorf("mlclient: transform: %w", err)
	}
	if len(values) != len(features) {
		return nil, fmt.Errorf("mlclient: transform: %w: sent %d values, got %d",
			artifact.ErrDimension, len(features), len(values))
	}
	return values, nil
}

// Predict runs the model on the worker.
func (c *Client) Predict(ctx context.Context, scaled []float64) (float64, error) {
	out, err := c.invoke(ctx, predictMethod, scaled)
	if err != nil {
		return 0, fmt.Errorf("mlclient: predict: %w", err)
	}
	v, err := numberFrom(out, fieldPrediction)
	if err != nil {
		return 0, fmt.Errorf("mlclient: predict: %w", err)
	}
	return v, nil
}

func (c *Client) invoke(ctx context.Context, method string, features []float64) (*structpb.Struct, error) {
	req, err := numbersStruct(fieldFeatures, features)
	if err != nil {
		return nil, err
	}
	out, err := resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[*structpb.Struct] {
		return fn.Retry(ctx, c.opts.Retry, func(ctx context.Context) fn.Result[*structpb.Struct] {
			if c.opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
				defer cancel()
			}
			out := new(structpb.Struct)
			if err := c.conn.Invoke(ctx, method, req, out); err != nil {
				return fn.Err[*structpb.Struct](err)
			}
			return fn.Ok(out)
		})
	}).Unwrap()
	if err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

// fromStatus makes worker deadline and cancellation statuses match the
// context sentinels while keeping the gRPC status reachable.
func fromStatus(err error) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
	case codes.Canceled:
		if !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", context.Canceled, err)
		}
	}
	return err
}

func retryable(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// countsAsFailure keeps caller mistakes from tripping the breaker.
func countsAsFailure(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Canceled:
		return false
	default:
		return true
	}
}
