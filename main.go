package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nva0070/flicks-backend/internal/analytics"
	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/handlers"
	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/media"
	"github.com/nva0070/flicks-backend/internal/memory"
	"github.com/nva0070/flicks-backend/internal/middleware"
	"github.com/nva0070/flicks-backend/internal/pipeline"
	"github.com/nva0070/flicks-backend/internal/sessions"
	"github.com/nva0070/flicks-backend/internal/startup"
	"github.com/nva0070/flicks-backend/internal/storage"
	"github.com/nva0070/flicks-backend/internal/transcoder"
	"github.com/nva0070/flicks-backend/internal/workers"
	"github.com/nva0070/flicks-backend/internal/workspace"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	// Memory backpressure monitor
	memory.ConfigureFromEnv()
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	// Image codecs
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, webp re-encoding will degrade: %v", err)
	}
	defer media.ShutdownVips()

	// Initialize database
	ctx := context.Background()
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Refresh connection-pool gauges periodically
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		for range ticker.C {
			db.UpdateDBMetrics()
		}
	}()

	// Object storage
	backend, err := storage.NewLocal(config.StorageDir, "/api/media/object")
	if err != nil {
		logging.Fatal("Failed to initialize storage: %v", err)
	}

	// Ingest workspaces
	workspaces, err := workspace.NewManager(config.WorkspaceDir)
	if err != nil {
		logging.Fatal("Failed to initialize workspace manager: %v", err)
	}

	// Transcoder
	startup.LogTranscoderInit(config.TranscodingEnabled)
	trans := transcoder.New(transcoder.Config{
		Enabled:          config.TranscodingEnabled,
		ProbeTimeout:     config.ProbeTimeout,
		TranscodeTimeout: config.TranscodeTimeout,
	})

	// Ingest pipeline with worker pool
	workerCount := workers.ForMixed(0)
	startup.LogPipelineInit(workerCount, config.QueueSize)
	pl := pipeline.New(db, backend, workspaces, trans, config.QueueSize, monitor)
	pl.StartWorkers(workerCount)

	// View sessions and analytics
	agg := analytics.New(db)
	tracker := sessions.New(db, agg)

	// Initialize handlers
	h := handlers.New(db, pl, tracker, agg, backend)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply metrics middleware
	measuredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(measuredHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, pl, trans)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Media assets
	mediaAPI := r.PathPrefix("/api/media").Subrouter()
	mediaAPI.HandleFunc("/asset/{id}", h.GetAsset).Methods("GET")
	mediaAPI.HandleFunc("/asset/{id}", h.DeleteAsset).Methods("DELETE")
	mediaAPI.HandleFunc("/asset/{id}/content", h.GetAssetContent).Methods("GET")
	mediaAPI.HandleFunc("/asset/{id}/primary", h.SetPrimary).Methods("POST")
	mediaAPI.HandleFunc("/asset/{id}/display", h.UpdateAssetDisplay).Methods("PATCH")
	mediaAPI.HandleFunc("/object/{ref}", h.GetObjectContent).Methods("GET")
	mediaAPI.HandleFunc("/{ownerType}/{ownerID}", h.UploadMedia).Methods("POST")
	mediaAPI.HandleFunc("/{ownerType}/{ownerID}", h.ListGallery).Methods("GET")

	// View sessions and analytics
	flicks := r.PathPrefix("/api/flicks").Subrouter()
	flicks.HandleFunc("/sessions/start", h.StartSession).Methods("POST")
	flicks.HandleFunc("/sessions/end", h.EndSession).Methods("POST")
	flicks.HandleFunc("/analytics/{assetId}", h.GetAnalytics).Methods("GET")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, pl *pipeline.Pipeline, trans *transcoder.Transcoder) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop intake before draining the workers: an upload accepted after
	// the pool drains would sit in the queue forever.
	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Draining ingest workers")
	pl.StopWorkers()
	startup.LogShutdownStepComplete("Ingest workers stopped")

	startup.LogShutdownStep("Cleaning up transcoder")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
