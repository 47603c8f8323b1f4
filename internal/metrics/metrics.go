// Package metrics exposes prometheus instruments for the ingestion
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline instruments. A single instance is created
// at startup and shared by reference.
type Metrics struct {
	Deliveries         *prometheus.CounterVec
	ThreadMatches      *prometheus.CounterVec
	AttachmentFailures prometheus.Counter
	ProcessingSeconds  prometheus.Histogram
}

// New registers the instruments on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maildesk",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Inbound webhook deliveries by outcome.",
		}, []string{"outcome"}),
		ThreadMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maildesk",
			Subsystem: "webhook",
			Name:      "thread_matches_total",
			Help:      "Thread reconstruction results by strategy.",
		}, []string{"strategy"}),
		AttachmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maildesk",
			Subsystem: "webhook",
			Name:      "attachment_failures_total",
			Help:      "Attachments that failed to decode, fetch, or upload.",
		}),
		ProcessingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "maildesk",
			Subsystem: "webhook",
			Name:      "processing_seconds",
			Help:      "End-to-end pipeline duration per delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Deliveries, m.ThreadMatches, m.AttachmentFailures, m.ProcessingSeconds)
	}
	return m
}

// Outcome labels for Deliveries.
const (
	OutcomeProcessed    = "processed"
	OutcomeDuplicate    = "duplicate"
	OutcomeError        = "error"
	OutcomeUnauthorized = "unauthorized"
)

// NewThread is the strategy label recorded when no strategy matched and
// a fresh conversation was created.
const NewThread = "new_thread"
