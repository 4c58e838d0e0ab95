package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	reportEngine = "report_engine"

	jobStatusCount    = "job_status_count"
	dispatchClaims    = "dispatch_claims_total"
	jobDuration       = "job_duration_seconds"
	jobRetries        = "job_retries_total"
	scheduleFirings   = "schedule_firings_total"
	staleLeases       = "stale_leases_reclaimed_total"
	artifactsUploaded = "artifacts_uploaded_total"

	statusLabel     = "status"
	outcomeLabel    = "outcome"
	reportTypeLabel = "report_type"
	providerLabel   = "provider"
)

/**
* Metrics definition
**/
var jobStatusCountMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: reportEngine,
		Name:      jobStatusCount,
		Help:      "number of report jobs per lifecycle status",
	},
	[]string{statusLabel},
)

var dispatchClaimsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: reportEngine,
		Name:      dispatchClaims,
		Help:      "dispatcher claim attempts partitioned by outcome (claimed, lost, error)",
	},
	[]string{outcomeLabel},
)

var jobDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: reportEngine,
		Name:      jobDuration,
		Help:      "wall time of completed report generation runs",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
	},
	[]string{reportTypeLabel},
)

var jobRetriesMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: reportEngine,
		Name:      jobRetries,
		Help:      "automatic retry re-enqueues partitioned by report type",
	},
	[]string{reportTypeLabel},
)

var scheduleFiringsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: reportEngine,
		Name:      scheduleFirings,
		Help:      "schedule trigger firings partitioned by outcome (created, deduplicated, error)",
	},
	[]string{outcomeLabel},
)

var staleLeasesMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: reportEngine,
		Name:      staleLeases,
		Help:      "running jobs reclaimed after their worker lease expired",
	},
)

var artifactsUploadedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: reportEngine,
		Name:      artifactsUploaded,
		Help:      "rendered artifacts handed to the storage backend",
	},
	[]string{providerLabel},
)

func SetJobStatusCount(status string, count int) {
	jobStatusCountMetric.With(prometheus.Labels{statusLabel: status}).Set(float64(count))
}

func IncDispatchClaim(outcome string) {
	dispatchClaimsMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func ObserveJobDuration(reportType string, d time.Duration) {
	jobDurationMetric.With(prometheus.Labels{reportTypeLabel: reportType}).Observe(d.Seconds())
}

func IncJobRetry(reportType string) {
	jobRetriesMetric.With(prometheus.Labels{reportTypeLabel: reportType}).Inc()
}

func IncScheduleFiring(outcome string) {
	scheduleFiringsMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncStaleLeaseReclaimed() {
	staleLeasesMetric.Inc()
}

func IncArtifactUploaded(provider string) {
	artifactsUploadedMetric.With(prometheus.Labels{providerLabel: provider}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobStatusCountMetric)
	prometheus.MustRegister(dispatchClaimsMetric)
	prometheus.MustRegister(jobDurationMetric)
	prometheus.MustRegister(jobRetriesMetric)
	prometheus.MustRegister(scheduleFiringsMetric)
	prometheus.MustRegister(staleLeasesMetric)
	prometheus.MustRegister(artifactsUploadedMetric)
}
