package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CreateSession inserts a new open view session.
func (d *Database) CreateSession(ctx context.Context, s *ViewSession) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO view_sessions
		 (session_id, asset_id, nominal_duration, start_time, client_ip, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.AssetID, s.NominalDuration, s.StartTime.Unix(), s.ClientIP, s.UserAgent)
	return err
}

// CloseSession transitions one OPEN session to CLOSED and returns the
// closed record. The guarded UPDATE (end_time IS NULL) makes the
// transition exactly-once: an unknown id or an already-closed session
// both return ErrNotFound, and two racing End calls cannot both win.
func (d *Database) CloseSession(ctx context.Context, sessionID string, watchSeconds, percentWatched int, completed bool) (*ViewSession, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("close_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		`UPDATE view_sessions
		 SET end_time = strftime('%s', 'now'), watch_seconds = ?, percent_watched = ?, completed = ?
		 WHERE session_id = ? AND end_time IS NULL`,
		watchSeconds, percentWatched, completed, sessionID)
	if err != nil {
		return nil, err
	}

	rows, raErr := result.RowsAffected()
	if raErr != nil {
		err = raErr
		return nil, err
	}
	if rows == 0 {
		err = ErrNotFound
		return nil, err
	}

	var s *ViewSession
	s, err = d.getSessionLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession returns one session by id, ErrNotFound when missing.
func (d *Database) GetSession(ctx context.Context, sessionID string) (*ViewSession, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_session", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s *ViewSession
	s, err = d.getSessionLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Database) getSessionLocked(ctx context.Context, sessionID string) (*ViewSession, error) {
	var s ViewSession
	var startTime int64
	var endTime sql.NullInt64

	err := d.db.QueryRowContext(ctx,
		`SELECT session_id, asset_id, nominal_duration, start_time, end_time,
		        watch_seconds, percent_watched, completed, client_ip, user_agent
		 FROM view_sessions WHERE session_id = ?`, sessionID,
	).Scan(&s.SessionID, &s.AssetID, &s.NominalDuration, &startTime, &endTime,
		&s.WatchSeconds, &s.PercentWatched, &s.Completed, &s.ClientIP, &s.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.StartTime = time.Unix(startTime, 0)
	if endTime.Valid {
		t := time.Unix(endTime.Int64, 0)
		s.EndTime = &t
	}
	return &s, nil
}

// SessionCounts returns total and completed closed-session counts for an
// asset, the inputs to the on-demand completion rate.
func (d *Database) SessionCounts(ctx context.Context, assetID int64) (total, completed int64, err error) {
	start := time.Now()
	defer func() { recordQuery("session_counts", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(completed), 0)
		 FROM view_sessions WHERE asset_id = ?`, assetID,
	).Scan(&total, &completed)
	return total, completed, err
}
