// Package metrics exposes Prometheus collectors for the job processor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts every accepted job submission.
	JobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chapterforge_jobs_submitted_total",
			Help: "Total number of submitted jobs",
		},
	)

	// JobsFinished counts jobs reaching a terminal status.
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapterforge_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal status",
		},
		[]string{"status"},
	)

	// JobDuration tracks time from start to terminal status in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chapterforge_job_duration_seconds",
			Help:    "Duration of jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7m
		},
		[]string{"status"},
	)

	// JobsActive tracks jobs whose work is currently running.
	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chapterforge_jobs_active",
			Help: "Number of jobs currently executing",
		},
	)

	// JobsCleaned counts finished jobs removed by retention cleanup.
	JobsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chapterforge_jobs_cleaned_total",
			Help: "Total number of finished jobs removed by cleanup",
		},
	)
)
