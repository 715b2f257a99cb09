// Package inference orchestrates a price prediction: it encodes the raw form
// input, orders it by the feature schema, hands it to the scaler and the
// predictor, and rounds the result for display.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/engine/domain"
	"github.com/WessleyAI/homeprice/engine/encoder"
	"github.com/WessleyAI/homeprice/pkg/fn"
	"github.com/WessleyAI/homeprice/pkg/mid"
	"github.com/WessleyAI/homeprice/pkg/resilience"
)

var (
	ErrScaling    = errors.New("scaling failed")
	ErrPrediction = errors.New("prediction failed")
)

// Outcome labels used for the predictions_total metric.
const (
	OutcomeOK           = "ok"
	OutcomeInvalidInput = "invalid_input"
	OutcomeScaling      = "scaling_error"
	OutcomePrediction   = "prediction_error"
	OutcomeUnavailable  = "unavailable"
	OutcomeCanceled     = "canceled"
)

// PredictionEvent is published after every successful prediction.
type PredictionEvent struct {
	ID         string             `json:"id"`
	RequestID  string             `json:"request_id,omitempty"`
	At         time.Time          `json:"at"`
	Features   map[string]float64 `json:"features"`
	Prediction float64            `json:"prediction"`
}

// EventPublisher receives prediction events. natsutil.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, evt PredictionEvent) error
}

// Options configures the prediction pipeline.
type Options struct {
	// Timeout bounds the scale and predict calls. Zero means no bound.
	Timeout time.Duration
	// Decimals is the rounding applied to the displayed prediction.
	Decimals int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{Timeout: 0, Decimals: 2}
}

// Prediction is the result of one pipeline run.
type Prediction struct {
	ID      string
	Vector  *domain.FeatureVector
	Report  encoder.Report
	Scaled  []float64
	Value   float64
	Rounded float64
}

// Service is the prediction orchestration service.
type Service struct {
	schema    *domain.FeatureSchema
	scaler    artifact.Scaler
	predictor artifact.Predictor
	events    EventPublisher
	metrics   *Metrics
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
	pipeline  fn.Stage[domain.RawInput, *Prediction]
}

// New creates a Service around the given collaborators.
func New(schema *domain.FeatureSchema, scaler artifact.Scaler, predictor artifact.Predictor, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Decimals < 0 {
		opts.Decimals = 0
	}
	s := &Service{
		schema:    schema,
		scaler:    scaler,
		predictor: predictor,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
	s.pipeline = fn.Then(
		fn.Then(
			fn.TracedStage("inference.encode", fn.Lift(s.encode)),
			fn.TracedStage("inference.scale", fn.Lift(s.scale)),
		),
		fn.TracedStage("inference.predict", fn.Lift(s.predict)),
	)
	return s
}

// FromBundle wires a Service to locally loaded artifacts.
func FromBundle(b *artifact.Bundle, opts Options, logger *slog.Logger) *Service {
	return New(b.Schema, b.Scaler, b.Model, opts, logger)
}

// WithEvents enables event publication.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

// WithMetrics enables metric recording.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// Schema returns the feature schema the service encodes against.
func (s *Service) Schema() *domain.FeatureSchema { return s.schema }

// Predict runs encode, scale and predict for one request.
func (s *Service) Predict(ctx context.Context, raw domain.RawInput) (*Prediction, error) {
	start := s.now()
	p, err := s.pipeline(ctx, raw).Unwrap()
	s.metrics.observe(p, err, s.now().Sub(start))
	if err != nil {
		s.logger.Warn("prediction failed", "outcome", Outcome(err), "err", err)
		return nil, err
	}

	s.logger.Debug("prediction done",
		"prediction", p.Rounded,
		"fallbacks", len(p.Report.Fallbacks),
		"location_dropped", p.Report.LocationDropped,
	)
	s.publish(ctx, p)
	return p, nil
}

func (s *Service) encode(_ context.Context, raw domain.RawInput) (*Prediction, error) {
	vec, report, err := encoder.EncodeDetailed(raw, s.schema)
	if err != nil {
		return nil, fmt.Errorf("inference: encode: %w", err)
	}
	return &Prediction{ID: uuid.NewString(), Vector: vec, Report: report}, nil
}

func (s *Service) scale(ctx context.Context, p *Prediction) (*Prediction, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	scaled, err := s.scaler.Transform(ctx, p.Vector.Values())
	if err != nil {
		return nil, fmt.Errorf("inference: scale: %w: %w", ErrScaling, err)
	}
	if len(scaled) != s.schema.Len() {
		return nil, fmt.Errorf("inference: scale: %w: %w: got %d values, schema has %d",
			ErrScaling, artifact.ErrDimension, len(scaled), s.schema.Len())
	}
	p.Scaled = scaled
	return p, nil
}

func (s *Service) predict(ctx context.Context, p *Prediction) (*Prediction, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	v, err := s.predictor.Predict(ctx, p.Scaled)
	if err != nil {
		return nil, fmt.Errorf("inference: predict: %w: %w", ErrPrediction, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("inference: predict: %w: non-finite result %v", ErrPrediction, v)
	}
	p.Value = v
	p.Rounded = Round(v, s.opts.Decimals)
	return p, nil
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return ctx, func() {}
}

// publish sends the event; failures are logged and never reach the caller.
func (s *Service) publish(ctx context.Context, p *Prediction) {
	if s.events == nil {
		return
	}
	evt := PredictionEvent{
		ID:         p.ID,
		RequestID:  mid.RequestIDFrom(ctx),
		At:         s.now().UTC(),
		Features:   p.Vector.Map(),
		Prediction: p.Rounded,
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish prediction event failed", "id", evt.ID, "err", err)
	}
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Outcome classifies a pipeline error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, resilience.ErrCircuitOpen):
		return OutcomeUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, domain.ErrInvalidNumber), errors.Is(err, domain.ErrNotInteger):
		return OutcomeInvalidInput
	case errors.Is(err, ErrScaling):
		return OutcomeScaling
	default:
		return OutcomePrediction
	}
}
