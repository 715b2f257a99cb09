package inference

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/WessleyAI/homeprice/pkg/metrics"
)

// Metrics records prediction outcomes and encoder fallbacks.
type Metrics struct {
	predictions    *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	locationMisses prometheus.Counter
	duration       prometheus.Observer
}

// NewMetrics registers the prediction metrics on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		predictions: reg.Counter("predictions_total",
			"Prediction requests by outcome.", "outcome"),
		fallbacks: reg.Counter("category_fallbacks_total",
			"Categorical labels that were not recognised and encoded as 0.", "field"),
		locationMisses: reg.Counter("location_misses_total",
			"Locations absent from the feature schema.").WithLabelValues(),
		duration: reg.Histogram("prediction_duration_seconds",
			"End-to-end prediction latency.", nil).WithLabelValues(),
	}
}

func (m *Metrics) observe(p *Prediction, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(Outcome(err)).Inc()
	m.duration.Observe(took.Seconds())
	if p == nil {
		return
	}
	for _, f := range p.Report.Fallbacks {
		m.fallbacks.WithLabelValues(f.Field).Inc()
	}
	if p.Report.LocationDropped {
		m.locationMisses.Inc()
	}
}
