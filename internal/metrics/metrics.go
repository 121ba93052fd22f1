// Package metrics defines Prometheus metrics for auditdesk.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuditQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditdesk_audit_query_duration_seconds",
			Help:    "Audit store query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	AuditRecordsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditdesk_audit_records_written_total",
			Help: "Audit records appended",
		},
	)

	AuditRecordsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditdesk_audit_records_deleted_total",
			Help: "Audit records removed by bulk deletion",
		},
		[]string{"mode"},
	)

	AuditBatchCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditdesk_audit_batch_commits_total",
			Help: "Delete batch commits by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, AuditQueryDuration,
		AuditRecordsWritten, AuditRecordsDeleted, AuditBatchCommits,
	)
}
