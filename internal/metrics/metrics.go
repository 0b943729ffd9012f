// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector nitrate records.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	RPCCalls        *prometheus.CounterVec
	TasksDispatched *prometheus.CounterVec
	TasksFailed     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nitrate_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nitrate_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RPCCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nitrate_xmlrpc_calls_total",
				Help: "Total number of XML-RPC calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		TasksDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nitrate_tasks_dispatched_total",
				Help: "Total number of async tasks dispatched by name and mode",
			},
			[]string{"task", "mode"},
		),
		TasksFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nitrate_tasks_failed_total",
				Help: "Total number of async task executions that returned an error",
			},
			[]string{"task"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.RPCCalls, m.TasksDispatched, m.TasksFailed)
	}
	return m
}
