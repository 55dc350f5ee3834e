// Package database is the sqlite persistence layer for media assets,
// view sessions, analytics counters, and catalog entities.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a lookup misses: unknown asset, unknown
// entity, or a session that does not exist or is already closed.
var ErrNotFound = errors.New("not found")

// Database manages all persistence for the service.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (and creates if needed) the database at dbPath. The parent
// directory must already exist and be writable; use startup.LoadConfig
// for that validation.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent session traffic from
	// tripping "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Catalog entities (products, shops, manufacturers); thin owners for
	-- media assets, managed elsewhere.
	CREATE TABLE IF NOT EXISTS catalog_entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_entities_type ON catalog_entities(entity_type);

	-- Media assets
	CREATE TABLE IF NOT EXISTS media_assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_type TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		file_name TEXT NOT NULL,
		raw_ref TEXT NOT NULL DEFAULT '',
		canonical_ref TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER,
		is_primary INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		degraded INTEGER NOT NULL DEFAULT 0,
		degrade_reason TEXT NOT NULL DEFAULT '',
		display_order INTEGER NOT NULL DEFAULT 0,
		alt_text TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_assets_owner ON media_assets(owner_type, owner_id, kind);
	CREATE INDEX IF NOT EXISTS idx_assets_primary ON media_assets(owner_type, owner_id, kind, is_primary);

	-- View sessions
	CREATE TABLE IF NOT EXISTS view_sessions (
		session_id TEXT PRIMARY KEY,
		asset_id INTEGER NOT NULL,
		nominal_duration INTEGER NOT NULL DEFAULT 30,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		watch_seconds INTEGER NOT NULL DEFAULT 0,
		percent_watched INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		client_ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (asset_id) REFERENCES media_assets(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_asset ON view_sessions(asset_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_open ON view_sessions(asset_id, end_time);

	-- Analytics counters, one row per video asset, created lazily on the
	-- first qualifying view.
	CREATE TABLE IF NOT EXISTS asset_analytics (
		asset_id INTEGER PRIMARY KEY,
		view_count INTEGER NOT NULL DEFAULT 0,
		total_watch_seconds INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (asset_id) REFERENCES media_assets(id) ON DELETE CASCADE
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection, for readiness probes.
func (d *Database) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(pingCtx)
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics refreshes connection-pool gauges.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// endTx commits or rolls back tx based on err, recording the transaction
// duration either way.
func endTx(tx *sql.Tx, start time.Time, err error) error {
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}
