package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects per-slide counters for a run. The registry is private to
// the run so repeated runs in one process never collide.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	slides    *prometheus.CounterVec
	scores    prometheus.Histogram
	fallbacks prometheus.Counter
	fbUsed    prometheus.Counter
	review    prometheus.Counter
	duration  prometheus.Histogram
}

// NewMetrics returns an empty metrics set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		slides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cosmx_align_slides_total",
			Help: "Slides handled, by outcome.",
		}, []string{"outcome"}),
		scores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cosmx_align_combined_score",
			Help:    "Combined score of the selected transform.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "cosmx_align_fallback_total",
			Help: "Slides whose template-matching fallback pass ran.",
		}),
		fbUsed: f.NewCounter(prometheus.CounterOpts{
			Name: "cosmx_align_fallback_used_total",
			Help: "Slides whose selected transform came from the fallback pass.",
		}),
		review: f.NewCounter(prometheus.CounterOpts{
			Name: "cosmx_align_needs_review_total",
			Help: "Slides scoring below the manual-review threshold.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cosmx_align_slide_duration_seconds",
			Help:    "Wall time spent aligning one slide.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

func (m *Metrics) observe(o *Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.slides.WithLabelValues(string(o.Status)).Inc()
	if o.Status != StatusProcessed {
		return
	}
	m.duration.Observe(seconds)
	m.scores.Observe(o.Score)
	if o.Result != nil && o.Result.FallbackRan {
		m.fallbacks.Inc()
		if o.Result.FallbackUsed {
			m.fbUsed.Inc()
		}
	}
	if o.NeedsReview {
		m.review.Inc()
	}
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.slides.WithLabelValues("failed").Inc()
}

// WriteTextfile writes the metrics in Prometheus text format, suitable for
// the node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
