// Package sessions implements the view session state machine: OPEN on
// start, CLOSED on end, with the qualification rule that decides which
// sessions count as views.
package sessions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nva0070/flicks-backend/internal/database"
	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/mediatypes"
	"github.com/nva0070/flicks-backend/internal/metrics"
)

const (
	// DefaultNominalDuration is assumed when the asset's duration is
	// unknown (probe failed).
	DefaultNominalDuration = 30

	// completionThreshold is the percent watched at which a session
	// counts as completed.
	completionThreshold = 80
)

// Store is the session persistence the tracker needs.
type Store interface {
	GetAsset(ctx context.Context, id int64) (*database.MediaAsset, error)
	CreateSession(ctx context.Context, s *database.ViewSession) error
	CloseSession(ctx context.Context, sessionID string, watchSeconds, percentWatched int, completed bool) (*database.ViewSession, error)
}

// Recorder receives qualifying views.
type Recorder interface {
	RecordView(ctx context.Context, assetID int64, watchSeconds int) error
}

// Tracker turns start/end calls into session records and qualifying
// views.
type Tracker struct {
	store    Store
	recorder Recorder
}

// New creates a Tracker.
func New(store Store, recorder Recorder) *Tracker {
	return &Tracker{store: store, recorder: recorder}
}

// ClientInfo is opaque viewer metadata captured at start.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// StartResult is the response to a session start.
type StartResult struct {
	SessionID              string    `json:"sessionId"`
	StartTime              time.Time `json:"startTime"`
	NominalDurationSeconds int       `json:"nominalDurationSeconds"`
}

// Start opens a session against a video asset. Unknown ids and
// non-video assets fail with database.ErrNotFound.
func (t *Tracker) Start(ctx context.Context, assetID int64, client ClientInfo) (*StartResult, error) {
	asset, err := t.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Kind != string(mediatypes.KindVideo) {
		return nil, fmt.Errorf("asset %d is not a video: %w", assetID, database.ErrNotFound)
	}

	nominal := DefaultNominalDuration
	if asset.DurationSeconds != nil && *asset.DurationSeconds > 0 {
		nominal = *asset.DurationSeconds
	}

	s := &database.ViewSession{
		SessionID:       uuid.NewString(),
		AssetID:         assetID,
		NominalDuration: nominal,
		StartTime:       time.Now(),
		ClientIP:        client.IP,
		UserAgent:       client.UserAgent,
	}
	if err := t.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	metrics.SessionsStartedTotal.Inc()
	metrics.SessionsOpen.Inc()
	logging.Debug("Session %s started for asset %d (nominal %ds)", s.SessionID, assetID, nominal)

	return &StartResult{
		SessionID:              s.SessionID,
		StartTime:              s.StartTime,
		NominalDurationSeconds: nominal,
	}, nil
}

// EndResult is the response to a session end.
type EndResult struct {
	Status       string `json:"status"`
	WatchSeconds int    `json:"watchSeconds"`
	Completed    bool   `json:"completed"`
	Qualified    bool   `json:"-"`
}

// End closes an open session. database.ErrNotFound for unknown ids and
// sessions already closed. When the watch time meets the qualification
// threshold the view is recorded exactly once: the guarded close is the
// gate, so a session can never feed analytics twice.
func (t *Tracker) End(ctx context.Context, sessionID string, watchSeconds, percentWatched int) (*EndResult, error) {
	completed := percentWatched >= completionThreshold

	s, err := t.store.CloseSession(ctx, sessionID, watchSeconds, percentWatched, completed)
	if err != nil {
		return nil, err
	}

	metrics.SessionsOpen.Dec()

	qualified := float64(watchSeconds) >= MinViewSeconds(s.NominalDuration)
	if qualified {
		if err := t.recorder.RecordView(ctx, s.AssetID, watchSeconds); err != nil {
			// The session is already closed; surfacing the error would
			// invite a retry that can only 404. Log and move on.
			logging.Error("Failed to record qualifying view for session %s (asset %d): %v", sessionID, s.AssetID, err)
		}
	}

	metrics.SessionsEndedTotal.WithLabelValues(strconv.FormatBool(qualified), strconv.FormatBool(completed)).Inc()
	logging.Debug("Session %s ended: watched %ds (%d%%), qualified=%v completed=%v",
		sessionID, watchSeconds, percentWatched, qualified, completed)

	return &EndResult{
		Status:       "success",
		WatchSeconds: watchSeconds,
		Completed:    completed,
		Qualified:    qualified,
	}, nil
}

// MinViewSeconds is the qualification threshold for a session:
// min(3, nominal × 0.25). Short clips qualify proportionally sooner.
func MinViewSeconds(nominalDuration int) float64 {
	m := float64(nominalDuration) * 0.25
	if m > 3 {
		return 3
	}
	return m
}
