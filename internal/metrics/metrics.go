// Package metrics holds the Prometheus collectors for the API and worker.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every recorder is a no-op then.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	VotesTotal   *prometheus.CounterVec
	ForksTotal   prometheus.Counter
	ReportsTotal *prometheus.CounterVec

	RankCacheTotal       *prometheus.CounterVec
	EnqueueFailuresTotal *prometheus.CounterVec
	TasksProcessedTotal  *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptvexity_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptvexity_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		VotesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptvexity_votes_total",
				Help: "Votes cast, cleared votes included",
			},
			[]string{"value"},
		),
		ForksTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "promptvexity_forks_total",
				Help: "Forks created",
			},
		),
		ReportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptvexity_reports_total",
				Help: "Moderation reports by lifecycle event",
			},
			[]string{"event"},
		),
		RankCacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptvexity_rank_cache_total",
				Help: "Rank view cache lookups by result",
			},
			[]string{"result"},
		),
		EnqueueFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptvexity_enqueue_failures_total",
				Help: "Background tasks that could not be enqueued",
			},
			[]string{"task"},
		),
		TasksProcessedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptvexity_tasks_processed_total",
				Help: "Background tasks processed by the worker",
			},
			[]string{"task", "status"},
		),
	}
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordVote(value int) {
	if m == nil {
		return
	}
	label := "clear"
	switch value {
	case 1:
		label = "up"
	case -1:
		label = "down"
	}
	m.VotesTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordFork() {
	if m == nil {
		return
	}
	m.ForksTotal.Inc()
}

func (m *Metrics) RecordReport(event string) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RankCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordEnqueueFailure(task string) {
	if m == nil {
		return
	}
	m.EnqueueFailuresTotal.WithLabelValues(task).Inc()
}

func (m *Metrics) RecordTask(task string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TasksProcessedTotal.WithLabelValues(task, status).Inc()
}
