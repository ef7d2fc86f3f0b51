// Package metrics exposes Prometheus instrumentation for Argus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusguard/argus/internal/domain"
)

// Collector contains all Argus metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Resolution metrics
	ResolutionsTotal     *prometheus.CounterVec
	ResolutionDuration   *prometheus.HistogramVec
	ResolutionConfidence prometheus.Histogram
	CandidatesHistogram  prometheus.Histogram

	// Timeline and prediction metrics
	TimelinesBuilt    prometheus.Counter
	PredictionsTotal  *prometheus.CounterVec
	AnomaliesDetected *prometheus.CounterVec
	ForecastsTotal    *prometheus.CounterVec

	// Alerting metrics
	AlertsBySeverity   *prometheus.GaugeVec
	AlertStatusUpdates *prometheus.CounterVec

	// Error metrics
	SourceFailures *prometheus.CounterVec

	// Transport metrics
	BusMessages  *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry, with Go runtime and
// process collectors attached.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		ResolutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_resolutions_total",
			Help: "Identity resolutions by mode and outcome",
		}, []string{"mode", "outcome"}),
		ResolutionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "argus_resolution_duration_seconds",
			Help:    "Duration of identity resolution in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		ResolutionConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_resolution_confidence",
			Help:    "Confidence of the best resolution candidate",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		CandidatesHistogram: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_resolution_candidates",
			Help:    "Number of scored candidates per fuzzy resolution",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),

		TimelinesBuilt: f.NewCounter(prometheus.CounterOpts{
			Name: "argus_timelines_built_total",
			Help: "Timelines built",
		}),
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_predictions_total",
			Help: "Predictive operations by kind and outcome",
		}, []string{"kind", "outcome"}),
		AnomaliesDetected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_anomalies_detected_total",
			Help: "Anomalies flagged by type",
		}, []string{"type"}),
		ForecastsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_forecasts_total",
			Help: "Occupancy forecasts by model",
		}, []string{"model"}),

		AlertsBySeverity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argus_alert_entities",
			Help: "Entities per inactivity tier in the last alert report",
		}, []string{"severity"}),
		AlertStatusUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_alert_status_updates_total",
			Help: "Alert workflow status updates by status",
		}, []string{"status"}),

		SourceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_source_failures_total",
			Help: "Isolated per-source store failures by operation and source",
		}, []string{"operation", "source"}),

		BusMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_bus_messages_total",
			Help: "Event bus messages handled by topic and outcome",
		}, []string{"topic", "outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "argus_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveResolution records one resolution call.
func (c *Collector) ObserveResolution(mode, outcome string, confidence float64, started time.Time) {
	if c == nil {
		return
	}
	c.ResolutionsTotal.WithLabelValues(mode, outcome).Inc()
	c.ResolutionDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
	if outcome == domain.OutcomeMatched {
		c.ResolutionConfidence.Observe(confidence)
	}
}

// ObserveCandidates records the candidate count of a fuzzy resolution.
func (c *Collector) ObserveCandidates(n int) {
	if c == nil {
		return
	}
	c.CandidatesHistogram.Observe(float64(n))
}

// SourceFailed records an isolated per-source failure.
func (c *Collector) SourceFailed(operation string, source domain.Source) {
	if c == nil {
		return
	}
	c.SourceFailures.WithLabelValues(operation, string(source)).Inc()
}

// TimelineBuilt records a timeline build.
func (c *Collector) TimelineBuilt() {
	if c == nil {
		return
	}
	c.TimelinesBuilt.Inc()
}

// Prediction records a predictive operation.
func (c *Collector) Prediction(kind, outcome string) {
	if c == nil {
		return
	}
	c.PredictionsTotal.WithLabelValues(kind, outcome).Inc()
}

// Anomalies records flagged anomalies.
func (c *Collector) Anomalies(anomalies []domain.Anomaly) {
	if c == nil {
		return
	}
	for _, a := range anomalies {
		c.AnomaliesDetected.WithLabelValues(string(a.Type)).Inc()
	}
}

// Forecast records a forecast served by a model.
func (c *Collector) Forecast(model string) {
	if c == nil {
		return
	}
	c.ForecastsTotal.WithLabelValues(model).Inc()
}

// AlertSummary publishes the tier counts of an alert report.
func (c *Collector) AlertSummary(s domain.AlertSummary) {
	if c == nil {
		return
	}
	c.AlertsBySeverity.WithLabelValues(string(domain.SeverityActive)).Set(float64(s.Active))
	c.AlertsBySeverity.WithLabelValues(string(domain.SeverityWarning)).Set(float64(s.Warning))
	c.AlertsBySeverity.WithLabelValues(string(domain.SeverityCritical)).Set(float64(s.Critical))
}

// AlertStatusUpdated records a workflow status change.
func (c *Collector) AlertStatusUpdated(status domain.AlertStatus) {
	if c == nil {
		return
	}
	c.AlertStatusUpdates.WithLabelValues(string(status)).Inc()
}

// BusMessage records a handled bus message.
func (c *Collector) BusMessage(topic, outcome string) {
	if c == nil {
		return
	}
	c.BusMessages.WithLabelValues(topic, outcome).Inc()
}

// HTTPRequest records a served HTTP request.
func (c *Collector) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
