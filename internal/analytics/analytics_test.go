package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/nva0070/flicks-backend/internal/database"
)

type fakeStore struct {
	counters   map[int64]*database.AssetAnalytics
	total      int64
	completed  int64
	recordErr  error
	recordings int
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: make(map[int64]*database.AssetAnalytics)}
}

func (f *fakeStore) RecordView(_ context.Context, assetID int64, watchSeconds int) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recordings++
	c, ok := f.counters[assetID]
	if !ok {
		c = &database.AssetAnalytics{AssetID: assetID}
		f.counters[assetID] = c
	}
	c.ViewCount++
	c.TotalWatchSeconds += int64(watchSeconds)
	return nil
}

func (f *fakeStore) GetAnalytics(_ context.Context, assetID int64) (*database.AssetAnalytics, error) {
	if c, ok := f.counters[assetID]; ok {
		return c, nil
	}
	return &database.AssetAnalytics{AssetID: assetID}, nil
}

func (f *fakeStore) SessionCounts(_ context.Context, _ int64) (int64, int64, error) {
	return f.total, f.completed, nil
}

func TestReadComputesDerivedFields(t *testing.T) {
	store := newFakeStore()
	agg := New(store)
	ctx := context.Background()

	if err := agg.RecordView(ctx, 1, 10); err != nil {
		t.Fatalf("RecordView: %v", err)
	}
	if err := agg.RecordView(ctx, 1, 20); err != nil {
		t.Fatalf("RecordView: %v", err)
	}
	store.total = 4
	store.completed = 1

	r, err := agg.Read(ctx, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.ViewCount != 2 || r.TotalWatchSeconds != 30 {
		t.Errorf("counters = (%d, %d), want (2, 30)", r.ViewCount, r.TotalWatchSeconds)
	}
	if r.AverageWatchSeconds != 15 {
		t.Errorf("averageWatchSeconds = %v, want 15", r.AverageWatchSeconds)
	}
	if r.CompletionRate != 25 {
		t.Errorf("completionRate = %v, want 25", r.CompletionRate)
	}
}

func TestReadZeroesWhenNothingRecorded(t *testing.T) {
	agg := New(newFakeStore())

	r, err := agg.Read(context.Background(), 7)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.ViewCount != 0 || r.TotalWatchSeconds != 0 {
		t.Errorf("counters = (%d, %d), want zeroes", r.ViewCount, r.TotalWatchSeconds)
	}
	if r.AverageWatchSeconds != 0 {
		t.Errorf("averageWatchSeconds = %v, want 0 when viewCount is 0", r.AverageWatchSeconds)
	}
	if r.CompletionRate != 0 {
		t.Errorf("completionRate = %v, want 0 with no sessions", r.CompletionRate)
	}
	if r.TotalWatchTime != "0s" {
		t.Errorf("totalWatchTime = %q, want 0s", r.TotalWatchTime)
	}
}

func TestRecordViewPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.recordErr = errors.New("disk full")
	agg := New(store)

	if err := agg.RecordView(context.Background(), 1, 5); err == nil {
		t.Error("RecordView should surface store errors")
	}
}

func TestFormatWatchTime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{59, "59s"},
		{60, "1m 0s"},
		{123, "2m 3s"},
		{3600, "1h 0m 0s"},
		{3723, "1h 2m 3s"},
		{-5, "0s"},
	}

	for _, tt := range tests {
		if got := FormatWatchTime(tt.seconds); got != tt.want {
			t.Errorf("FormatWatchTime(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
