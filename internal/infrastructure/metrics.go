package infrastructure

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourusername/yt-sync-go/internal/domain"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	jobsActive    *prometheus.GaugeVec
	jobsFinished  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsCoalesced prometheus.Counter
	workerLimit   prometheus.Gauge
	streamBytes   prometheus.Counter
	streamReqs    *prometheus.CounterVec
	catalogSaves  *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ytsync",
			Name:      "jobs_active",
			Help:      "Jobs currently queued or running.",
		}, []string{"state"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytsync",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state.",
		}, []string{"state"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ytsync",
			Name:      "job_duration_seconds",
			Help:      "Wall time from job start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"state"}),
		jobsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytsync",
			Name:      "jobs_coalesced_total",
			Help:      "Download requests answered with an existing active job.",
		}),
		workerLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ytsync",
			Name:      "worker_limit",
			Help:      "Configured maximum of concurrently running jobs.",
		}),
		streamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytsync",
			Name:      "stream_bytes_total",
			Help:      "Media bytes served by the streaming endpoint.",
		}),
		streamReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytsync",
			Name:      "stream_requests_total",
			Help:      "Streaming requests by response status.",
		}, []string{"status"}),
		catalogSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytsync",
			Name:      "catalog_saves_total",
			Help:      "Catalog persistence attempts by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsActive, m.jobsFinished, m.jobDuration, m.jobsCoalesced,
		m.workerLimit, m.streamBytes, m.streamReqs, m.catalogSaves,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnJobEvent implements domain.JobListener
func (m *Metrics) OnJobEvent(event domain.JobEvent) {
	job := event.Job
	switch event.Type {
	case domain.EventJobQueued:
		m.jobsActive.WithLabelValues(string(domain.JobQueued)).Inc()
	case domain.EventJobStarted:
		m.jobsActive.WithLabelValues(string(domain.JobQueued)).Dec()
		m.jobsActive.WithLabelValues(string(domain.JobRunning)).Inc()
	case domain.EventJobCancelled:
		m.jobsActive.WithLabelValues(string(domain.JobQueued)).Dec()
		m.jobsFinished.WithLabelValues("cancelled").Inc()
	case domain.EventJobDone, domain.EventJobFailed:
		m.jobsActive.WithLabelValues(string(domain.JobRunning)).Dec()
		m.jobsFinished.WithLabelValues(string(job.State)).Inc()
		if job.StartedAt != nil && job.FinishedAt != nil {
			m.jobDuration.WithLabelValues(string(job.State)).
				Observe(job.FinishedAt.Sub(*job.StartedAt).Seconds())
		}
	}
}

// JobCoalesced counts a request that reused an active job
func (m *Metrics) JobCoalesced() {
	m.jobsCoalesced.Inc()
}

// SetWorkerLimit records the current thread count
func (m *Metrics) SetWorkerLimit(n int) {
	m.workerLimit.Set(float64(n))
}

// StreamServed records one streaming response
func (m *Metrics) StreamServed(status string, bytes int64) {
	m.streamReqs.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.streamBytes.Add(float64(bytes))
	}
}

// CatalogSaved records a catalog persistence attempt
func (m *Metrics) CatalogSaved(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.catalogSaves.WithLabelValues(result).Inc()
}
