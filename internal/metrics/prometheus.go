package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	clicksTotal      *prometheus.CounterVec
	changesTotal     *prometheus.CounterVec
	exportsTotal     *prometheus.CounterVec
	exportDuration   *prometheus.HistogramVec
	extractionsTotal *prometheus.CounterVec
	sessions         prometheus.Gauge
}

// NewPrometheusRecorder registers the collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)
	return &PrometheusRecorder{
		clicksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caged_clicks_total",
				Help: "Classified fretboard clicks by kind",
			},
			[]string{"kind"},
		),
		changesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caged_session_changes_total",
				Help: "Committed session changes by reason",
			},
			[]string{"reason"},
		),
		exportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caged_exports_total",
				Help: "Export attempts by format and status",
			},
			[]string{"format", "status"},
		),
		exportDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caged_export_duration_seconds",
				Help:    "Duration of export rendering in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		extractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caged_tutorial_extractions_total",
				Help: "Tutorial PDF extractions by status",
			},
			[]string{"status"},
		),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "caged_sessions",
			Help: "Live sessions",
		}),
	}
}

func (p *PrometheusRecorder) ObserveClick(kind string) {
	p.clicksTotal.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) ObserveChange(reason string) {
	p.changesTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) ObserveExport(format string, success bool, duration time.Duration) {
	p.exportsTotal.WithLabelValues(format, status(success)).Inc()
	p.exportDuration.WithLabelValues(format).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ExtractionDone(err error) {
	p.extractionsTotal.WithLabelValues(status(err == nil)).Inc()
}

func (p *PrometheusRecorder) SetSessions(n int) {
	p.sessions.Set(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
