package metrics

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/PromptForge/internal/pkg/billing"
	"github.com/ManuelReschke/PromptForge/internal/pkg/metrics/counter"
)

// Recorder publishes webhook telemetry to Prometheus and, when configured,
// to the Redis counters behind the admin stats endpoint.
type Recorder struct {
	registry *prometheus.Registry
	webhooks *prometheus.CounterVec
	duration *prometheus.HistogramVec
	counters *counter.Store
}

// New creates a recorder with its own registry. counters may be nil.
func New(counters *counter.Store) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptforge",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by provider event type and outcome.",
		}, []string{"event_type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "promptforge",
			Subsystem: "billing",
			Name:      "webhook_duration_seconds",
			Help:      "Time spent handling a webhook delivery.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		counters: counters,
	}
	r.registry.MustRegister(
		r.webhooks,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordWebhook implements billing.Telemetry.
func (r *Recorder) RecordWebhook(ctx context.Context, eventType string, outcome billing.Outcome, d time.Duration) {
	label := eventType
	if label == "" {
		label = "unknown"
	}
	r.webhooks.WithLabelValues(label, string(outcome)).Inc()
	r.duration.WithLabelValues(string(outcome)).Observe(d.Seconds())

	if r.counters == nil {
		return
	}
	if err := r.counters.AddWebhookOutcome(ctx, eventType, string(outcome)); err != nil {
		log.Warnf("[Billing] Failed to record webhook counter: %v", err)
	}
}

// Handler serves the Prometheus exposition format.
func (r *Recorder) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
}
