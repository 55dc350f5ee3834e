// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - DATA_DIR: Root data directory for the database, object storage, and
//     ingest workspaces (default: /data)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - INGEST_QUEUE_SIZE: Bounded ingest queue length (default: 64)
//   - INGEST_WORKERS: Override the CPU-derived worker count
//   - PROBE_TIMEOUT: ffprobe deadline as Go duration (default: 30s)
//   - TRANSCODE_TIMEOUT: ffmpeg deadline as Go duration (default: 10m)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Percentage of MEMORY_LIMIT for Go heap (default: 0.85)
//
// # Feature Flags
//
// Video transcoding is enabled only when both ffmpeg and ffprobe are on
// PATH and the workspace directory is writable. Without it video uploads
// are stored as-is and marked degraded.
package startup
