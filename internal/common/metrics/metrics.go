package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	QuestionnaireStepsEntered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_steps_entered_total",
			Help: "Questionnaire steps entered, by step",
		},
		[]string{"step"},
	)

	QuestionnaireCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_completed_total",
			Help: "Questionnaires that reached the result step, by tier",
		},
		[]string{"tier"},
	)

	QuestionnaireManualQuotes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "questionnaire_manual_quotes_total",
			Help: "Questionnaires that entered the manual-quote contact form",
		},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_submissions_total",
			Help: "Inquiry and order hand-offs, by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	AnalyticsEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_dropped_total",
			Help: "Analytics events not delivered, by reason",
		},
		[]string{"reason"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "questionnaire_sessions_active",
			Help: "Questionnaire sessions currently held in memory",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Session API requests, by route and status code",
		},
		[]string{"route", "status"},
	)
)
