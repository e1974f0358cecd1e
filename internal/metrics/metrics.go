// Package metrics exposes Prometheus collectors for the gateway, scoring
// worker pool, and collab hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"route", "status"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter, by endpoint family",
	}, []string{"family"})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_auth_failures_total",
		Help: "Requests rejected by the API key gate, by route",
	}, []string{"route"})

	ScoringQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scoring_worker_queue_depth",
		Help: "Number of scoring tasks queued or in flight",
	})

	ScoringTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_worker_tasks_total",
		Help: "Completed scoring tasks by outcome",
	}, []string{"outcome"})

	ScoringTaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scoring_worker_task_duration_seconds",
		Help:    "Scoring task latency from dequeue to result",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	})

	ScoringWorkerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoring_worker_restarts_total",
		Help: "Worker slot restarts after timeout or crash",
	})

	CollabConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_ws_connections",
		Help: "Currently open collaborative WebSocket connections",
	})

	CollabPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_lyrics_updates_total",
		Help: "Lyric draft upserts published to WebSocket subscribers",
	})

	LearningIngests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learning_ingests_total",
		Help: "Learning events ingested, by kind and dedupe outcome",
	}, []string{"kind", "deduplicated"})

	StorageFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_fallback_total",
		Help: "Postgres calls that fell back to the in-memory store",
	}, []string{"store"})
)
