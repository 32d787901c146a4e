package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "geoattend"

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Attendance sessions opened.",
	})

	// Admissions counts check-in attempts by outcome (admitted, course_mismatch, ...).
	Admissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admissions_total",
		Help:      "Attendance admission decisions by outcome.",
	}, []string{"outcome"})

	AdmissionDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "admission_distance_meters",
		Help:      "Distance between reported location and session origin.",
		Buckets:   []float64{5, 10, 25, 50, 100, 150, 250, 500, 1000, 5000},
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_events_total",
		Help:      "Queue events handled by the worker, by result.",
	}, []string{"result"})

	SessionsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_purged_total",
		Help:      "Expired sessions removed by the sweeper.",
	})
)
