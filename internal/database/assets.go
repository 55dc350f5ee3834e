package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const assetColumns = `id, owner_type, owner_id, kind, file_name, raw_ref, canonical_ref,
	duration_seconds, is_primary, status, degraded, degrade_reason,
	display_order, alt_text, created_at, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (*MediaAsset, error) {
	var a MediaAsset
	var duration sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&a.ID, &a.OwnerType, &a.OwnerID, &a.Kind, &a.FileName, &a.RawRef, &a.CanonicalRef,
		&duration, &a.IsPrimary, &a.Status, &a.Degraded, &a.DegradeReason,
		&a.DisplayOrder, &a.AltText, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if duration.Valid {
		d := int(duration.Int64)
		a.DurationSeconds = &d
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

// CreateAsset inserts a new asset. The primary flag is resolved inside
// one transaction: the first asset for an (owner, kind) pair becomes
// primary; an explicit markPrimary unsets the prior primary first. Two
// concurrent uploads can never both end up primary.
func (d *Database) CreateAsset(ctx context.Context, a *MediaAsset, markPrimary bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_asset", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = func() error {
		var siblings int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM media_assets WHERE owner_type = ? AND owner_id = ? AND kind = ?`,
			a.OwnerType, a.OwnerID, a.Kind,
		).Scan(&siblings); err != nil {
			return err
		}

		a.IsPrimary = siblings == 0 || markPrimary

		if markPrimary && siblings > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE media_assets SET is_primary = 0, updated_at = strftime('%s', 'now')
				 WHERE owner_type = ? AND owner_id = ? AND kind = ? AND is_primary = 1`,
				a.OwnerType, a.OwnerID, a.Kind,
			); err != nil {
				return err
			}
		}

		var duration any
		if a.DurationSeconds != nil {
			duration = *a.DurationSeconds
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO media_assets
			 (owner_type, owner_id, kind, file_name, raw_ref, canonical_ref, duration_seconds,
			  is_primary, status, degraded, degrade_reason, display_order, alt_text)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.OwnerType, a.OwnerID, a.Kind, a.FileName, a.RawRef, a.CanonicalRef, duration,
			a.IsPrimary, a.Status, a.Degraded, a.DegradeReason, a.DisplayOrder, a.AltText,
		)
		if err != nil {
			return err
		}

		a.ID, err = result.LastInsertId()
		return err
	}()

	return endTx(tx, start, err)
}

// GetAsset returns one asset by id, ErrNotFound when it does not exist.
func (d *Database) GetAsset(ctx context.Context, id int64) (*MediaAsset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a *MediaAsset
	a, err = scanAsset(d.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM media_assets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssetsByOwner returns an owner's gallery, primary first, then
// display order, then creation time.
func (d *Database) ListAssetsByOwner(ctx context.Context, ownerType string, ownerID int64) ([]*MediaAsset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_assets", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM media_assets
		 WHERE owner_type = ? AND owner_id = ?
		 ORDER BY is_primary DESC, display_order ASC, created_at ASC, id ASC`,
		ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*MediaAsset
	for rows.Next() {
		a, scanErr := scanAsset(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		assets = append(assets, a)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// SetPrimary marks one asset primary, atomically clearing the prior
// primary for the same (owner, kind). ErrNotFound for unknown ids.
func (d *Database) SetPrimary(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_primary", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = func() error {
		var ownerType, kind string
		var ownerID int64
		scanErr := tx.QueryRowContext(ctx,
			`SELECT owner_type, owner_id, kind FROM media_assets WHERE id = ?`, id,
		).Scan(&ownerType, &ownerID, &kind)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrNotFound
		}
		if scanErr != nil {
			return scanErr
		}

		if _, execErr := tx.ExecContext(ctx,
			`UPDATE media_assets SET is_primary = 0, updated_at = strftime('%s', 'now')
			 WHERE owner_type = ? AND owner_id = ? AND kind = ? AND is_primary = 1`,
			ownerType, ownerID, kind,
		); execErr != nil {
			return execErr
		}

		_, execErr := tx.ExecContext(ctx,
			`UPDATE media_assets SET is_primary = 1, updated_at = strftime('%s', 'now') WHERE id = ?`, id)
		return execErr
	}()

	return endTx(tx, start, err)
}

// FinishAsset records the outcome of asynchronous processing: refs,
// probed duration, degradation, and the pending → ready/failed
// transition.
func (d *Database) FinishAsset(ctx context.Context, id int64, rawRef, canonicalRef string, durationSeconds *int, status string, degraded bool, degradeReason string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("finish_asset", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var duration any
	if durationSeconds != nil {
		duration = *durationSeconds
	}

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		`UPDATE media_assets
		 SET raw_ref = ?, canonical_ref = ?, duration_seconds = ?, status = ?,
		     degraded = ?, degrade_reason = ?, updated_at = strftime('%s', 'now')
		 WHERE id = ?`,
		rawRef, canonicalRef, duration, status, degraded, degradeReason, id)
	if err != nil {
		return err
	}

	rows, raErr := result.RowsAffected()
	if raErr == nil && rows == 0 {
		err = ErrNotFound
	}
	return err
}

// UpdateAssetDisplay sets gallery presentation fields.
func (d *Database) UpdateAssetDisplay(ctx context.Context, id int64, displayOrder int, altText string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_asset_display", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		`UPDATE media_assets SET display_order = ?, alt_text = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		displayOrder, altText, id)
	if err != nil {
		return err
	}

	rows, raErr := result.RowsAffected()
	if raErr == nil && rows == 0 {
		err = ErrNotFound
	}
	return err
}

// DeleteAsset removes an asset along with its sessions and analytics,
// returning the deleted record so the caller can clean up stored
// objects. ErrNotFound for unknown ids.
func (d *Database) DeleteAsset(ctx context.Context, id int64) (*MediaAsset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_asset", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var asset *MediaAsset
	err = func() error {
		a, scanErr := scanAsset(tx.QueryRowContext(ctx,
			`SELECT `+assetColumns+` FROM media_assets WHERE id = ?`, id))
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrNotFound
		}
		if scanErr != nil {
			return scanErr
		}
		asset = a

		for _, stmt := range []string{
			`DELETE FROM asset_analytics WHERE asset_id = ?`,
			`DELETE FROM view_sessions WHERE asset_id = ?`,
			`DELETE FROM media_assets WHERE id = ?`,
		} {
			if _, execErr := tx.ExecContext(ctx, stmt, id); execErr != nil {
				return execErr
			}
		}
		return nil
	}()

	if txErr := endTx(tx, start, err); txErr != nil {
		return nil, txErr
	}
	return asset, nil
}
