package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flicks_backend_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flicks_backend_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flicks_backend_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"}, // "commit" or "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Ingest pipeline metrics
var (
	IngestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_ingests_total",
			Help: "Total number of media ingests",
		},
		[]string{"kind", "status"}, // status: "ok", "degraded", "rejected"
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flicks_backend_ingest_duration_seconds",
			Help:    "End-to-end ingest duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_ingest_queue_depth",
			Help: "Number of ingest jobs waiting in the queue",
		},
	)

	IngestWorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_ingest_workers_busy",
			Help: "Number of ingest workers currently processing a job",
		},
	)

	IngestBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_ingest_bytes_total",
			Help: "Total bytes accepted for ingest",
		},
		[]string{"kind"},
	)
)

// Normalizer metrics
var (
	ImageNormalizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_image_normalizations_total",
			Help: "Total number of image normalization operations",
		},
		[]string{"op", "status"}, // op: "square_crop", "fit_crop"; status: "ok", "degraded"
	)

	TranscodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_transcode_jobs_total",
			Help: "Total number of video transcode jobs",
		},
		[]string{"status"}, // "ok", "failed", "timeout"
	)

	TranscodeJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flicks_backend_transcode_job_duration_seconds",
			Help:    "Transcode job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_probes_total",
			Help: "Total number of duration probe invocations",
		},
		[]string{"status"}, // "ok", "failed"
	)
)

// Workspace metrics
var (
	WorkspacesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_workspaces_active",
			Help: "Number of staging workspaces currently held",
		},
	)

	WorkspaceReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flicks_backend_workspace_release_failures_total",
			Help: "Total number of workspace cleanup failures",
		},
	)
)

// View session metrics
var (
	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flicks_backend_view_sessions_started_total",
			Help: "Total number of view sessions started",
		},
	)

	SessionsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_view_sessions_ended_total",
			Help: "Total number of view sessions ended",
		},
		[]string{"qualified", "completed"},
	)

	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_view_sessions_open",
			Help: "Number of currently open view sessions",
		},
	)

	ViewsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flicks_backend_views_recorded_total",
			Help: "Total number of qualifying views recorded to analytics",
		},
	)
)

// Storage metrics
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_storage_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flicks_backend_storage_bytes_written_total",
			Help: "Total bytes written to object storage",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_fs_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_fs_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_fs_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flicks_backend_fs_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_memory_usage_ratio",
			Help: "Heap usage as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flicks_backend_memory_paused",
			Help: "Whether ingest intake is paused due to memory pressure (1 = paused)",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flicks_backend_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
