package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the story engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	transcodeAttempts   *prometheus.CounterVec
	preparedAssets      *prometheus.CounterVec
	publishes           *prometheus.CounterVec
	captureReconfigured *prometheus.CounterVec
	playbackDismissals  *prometheus.CounterVec
	ingestRequests      *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	transcodeAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_transcode_tier_attempts_total",
		Help: "Export attempts per quality tier, by outcome (ok, too_large, export_failed, cancelled)",
	}, []string{"tier", "outcome"})
	preparedAssets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_transcode_prepared_total",
		Help: "Finished prepare calls, by outcome",
	}, []string{"outcome"})
	publishes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_publish_total",
		Help: "Publish attempts, by outcome",
	}, []string{"outcome"})
	captureReconfigured := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_capture_operations_total",
		Help: "Capture session operations executed on the session queue",
	}, []string{"operation", "outcome"})
	playbackDismissals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_playback_dismissals_total",
		Help: "Viewer dismissals, by trigger",
	}, []string{"reason"})
	ingestRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "story_ingest_requests_total",
		Help: "Ingestion HTTP requests, by route and status class",
	}, []string{"route", "status"})

	registry.MustRegister(
		transcodeAttempts,
		preparedAssets,
		publishes,
		captureReconfigured,
		playbackDismissals,
		ingestRequests,
	)

	return &Metrics{
		registry:            registry,
		transcodeAttempts:   transcodeAttempts,
		preparedAssets:      preparedAssets,
		publishes:           publishes,
		captureReconfigured: captureReconfigured,
		playbackDismissals:  playbackDismissals,
		ingestRequests:      ingestRequests,
	}
}

func (m *Metrics) TranscodeAttempt(tier, outcome string) {
	if m == nil {
		return
	}
	m.transcodeAttempts.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) Prepared(outcome string) {
	if m == nil {
		return
	}
	m.preparedAssets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Publish(outcome string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CaptureOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.captureReconfigured.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) PlaybackDismissed(reason string) {
	if m == nil {
		return
	}
	m.playbackDismissals.WithLabelValues(reason).Inc()
}

func (m *Metrics) IngestRequest(route, status string) {
	if m == nil {
		return
	}
	m.ingestRequests.WithLabelValues(route, status).Inc()
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
