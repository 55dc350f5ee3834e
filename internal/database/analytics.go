package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RecordView increments view_count by one and total_watch_seconds by
// watchSeconds for the asset, creating the counters row on first use.
// The single upsert statement is the atomicity guarantee under
// concurrent qualifying session-ends: sqlite serializes the increment,
// so N concurrent calls always total N.
func (d *Database) RecordView(ctx context.Context, assetID int64, watchSeconds int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_view", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO asset_analytics (asset_id, view_count, total_watch_seconds)
		 VALUES (?, 1, ?)
		 ON CONFLICT(asset_id) DO UPDATE SET
		     view_count = view_count + 1,
		     total_watch_seconds = total_watch_seconds + excluded.total_watch_seconds`,
		assetID, watchSeconds)
	return err
}

// GetAnalytics returns the counters for an asset. A missing row reads as
// zeroes: the record is created lazily by the first qualifying view.
func (d *Database) GetAnalytics(ctx context.Context, assetID int64) (*AssetAnalytics, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_analytics", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	a := &AssetAnalytics{AssetID: assetID}
	err = d.db.QueryRowContext(ctx,
		`SELECT view_count, total_watch_seconds
		 FROM asset_analytics WHERE asset_id = ?`, assetID,
	).Scan(&a.ViewCount, &a.TotalWatchSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
