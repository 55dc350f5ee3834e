package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CreateEntity registers a catalog entity (product, shop, manufacturer)
// and returns its id. The full entity lifecycle lives elsewhere; assets
// only need owners to exist.
func (d *Database) CreateEntity(ctx context.Context, entityType, name string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_entity", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		`INSERT INTO catalog_entities (entity_type, name) VALUES (?, ?)`,
		entityType, name)
	if err != nil {
		return 0, err
	}

	var id int64
	id, err = result.LastInsertId()
	return id, err
}

// EntityExists reports whether an owner of the given type exists.
func (d *Database) EntityExists(ctx context.Context, entityType string, id int64) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("entity_exists", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var one int
	err = d.db.QueryRowContext(ctx,
		`SELECT 1 FROM catalog_entities WHERE entity_type = ? AND id = ?`,
		entityType, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetEntity returns one catalog entity, ErrNotFound when missing.
func (d *Database) GetEntity(ctx context.Context, id int64) (*CatalogEntity, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_entity", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e CatalogEntity
	var createdAt int64
	err = d.db.QueryRowContext(ctx,
		`SELECT id, entity_type, name, created_at FROM catalog_entities WHERE id = ?`, id,
	).Scan(&e.ID, &e.EntityType, &e.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.CreatedAt = time.Unix(createdAt, 0)
	return &e, nil
}
