package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/minghsiao/lamp-reservation/internal/model"
)

// TowerRepo provides CRUD for towers: master data carrying the
// human-readable labels the booking surfaces display.
type TowerRepo struct {
	db *sql.DB
}

// NewTowerRepo constructs a TowerRepo with the given DB handle.
func NewTowerRepo(db *sql.DB) *TowerRepo { return &TowerRepo{db: db} }

// Create inserts a tower. On success the tower's ID is populated.
func (r *TowerRepo) Create(ctx context.Context, t *model.Tower) error {
	const q = `INSERT INTO towers (tenant_id, code, name, location) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.TenantID, t.Code, t.Name, t.Location)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID retrieves a tower by id within the tenant.
func (r *TowerRepo) GetByID(ctx context.Context, tenantID, towerID uint64) (*model.Tower, error) {
	const q = `SELECT id, tenant_id, code, name, location, created_at, updated_at
	           FROM towers WHERE id = ? AND tenant_id = ?`
	var t model.Tower
	err := r.db.QueryRowContext(ctx, q, towerID, tenantID).
		Scan(&t.ID, &t.TenantID, &t.Code, &t.Name, &t.Location, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTowerNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListByTenant returns all towers of a tenant ordered by code.
func (r *TowerRepo) ListByTenant(ctx context.Context, tenantID uint64) ([]model.Tower, error) {
	const q = `SELECT id, tenant_id, code, name, location, created_at, updated_at
	           FROM towers WHERE tenant_id = ? ORDER BY code`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Tower, 0)
	for rows.Next() {
		var t model.Tower
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Code, &t.Name, &t.Location, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
