// Package analytics turns qualifying view sessions into durable
// engagement counters and serves the read-side report.
package analytics

import (
	"context"
	"fmt"

	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/metrics"
)

// Store is the persistence the aggregator needs.
type Store interface {
	RecordView(ctx context.Context, assetID int64, watchSeconds int) error
	GetAnalytics(ctx context.Context, assetID int64) (*database.AssetAnalytics, error)
	SessionCounts(ctx context.Context, assetID int64) (total, completed int64, err error)
}

// Aggregator maintains per-asset view counters. All mutation funnels
// through RecordView; the store's upsert makes increments atomic under
// concurrent session-ends.
type Aggregator struct {
	store Store
}

// New creates an Aggregator.
func New(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// RecordView counts one qualifying view of watchSeconds against the
// asset, creating its counters lazily.
func (a *Aggregator) RecordView(ctx context.Context, assetID int64, watchSeconds int) error {
	if err := a.store.RecordView(ctx, assetID, watchSeconds); err != nil {
		return fmt.Errorf("recording view for asset %d: %w", assetID, err)
	}
	metrics.ViewsRecordedTotal.Inc()
	return nil
}

// Report is the read-side analytics payload for one asset.
// CompletionRate and AverageWatchSeconds are computed on demand, never
// stored.
type Report struct {
	AssetID             int64   `json:"assetId"`
	ViewCount           int64   `json:"viewCount"`
	TotalWatchSeconds   int64   `json:"totalWatchSeconds"`
	TotalWatchTime      string  `json:"totalWatchTime"`
	AverageWatchSeconds float64 `json:"averageWatchSeconds"`
	CompletionRate      float64 `json:"completionRate"`
}

// Read builds the report for an asset. Assets with no recorded views and
// no sessions report all zeroes.
func (a *Aggregator) Read(ctx context.Context, assetID int64) (*Report, error) {
	counters, err := a.store.GetAnalytics(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("reading analytics for asset %d: %w", assetID, err)
	}

	total, completed, err := a.store.SessionCounts(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("counting sessions for asset %d: %w", assetID, err)
	}

	r := &Report{
		AssetID:           assetID,
		ViewCount:         counters.ViewCount,
		TotalWatchSeconds: counters.TotalWatchSeconds,
		TotalWatchTime:    FormatWatchTime(counters.TotalWatchSeconds),
	}
	if counters.ViewCount > 0 {
		r.AverageWatchSeconds = float64(counters.TotalWatchSeconds) / float64(counters.ViewCount)
	}
	if total > 0 {
		r.CompletionRate = 100 * float64(completed) / float64(total)
	}
	return r, nil
}

// FormatWatchTime renders seconds as "1h 2m 3s", dropping leading zero
// units.
func FormatWatchTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
