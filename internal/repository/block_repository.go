package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/minghsiao/lamp-reservation/internal/model"
)

// BlockRepo provides CRUD for blocks. A block is the layout unit that
// owns row definitions and the slots generated from them.
type BlockRepo struct {
	db *sql.DB
}

// NewBlockRepo constructs a BlockRepo with the given DB handle.
func NewBlockRepo(db *sql.DB) *BlockRepo { return &BlockRepo{db: db} }

// Create inserts a block under a tower. On success the block's ID is populated.
func (r *BlockRepo) Create(ctx context.Context, b *model.Block) error {
	const q = `INSERT INTO blocks (tenant_id, tower_id, code, name) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.TenantID, b.TowerID, b.Code, b.Name)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID retrieves a block by id within the tenant.
func (r *BlockRepo) GetByID(ctx context.Context, tenantID, blockID uint64) (*model.Block, error) {
	const q = `SELECT id, tenant_id, tower_id, code, name, created_at, updated_at
	           FROM blocks WHERE id = ? AND tenant_id = ?`
	var b model.Block
	err := r.db.QueryRowContext(ctx, q, blockID, tenantID).
		Scan(&b.ID, &b.TenantID, &b.TowerID, &b.Code, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetByIDTx is the transactional variant of GetByID, used by the layout
// handlers so the frozen-layout check and generation see one snapshot.
func (r *BlockRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, tenantID, blockID uint64) (*model.Block, error) {
	const q = `SELECT id, tenant_id, tower_id, code, name, created_at, updated_at
	           FROM blocks WHERE id = ? AND tenant_id = ?`
	var b model.Block
	err := tx.QueryRowContext(ctx, q, blockID, tenantID).
		Scan(&b.ID, &b.TenantID, &b.TowerID, &b.Code, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListByTower returns all blocks of a tower ordered by code.
func (r *BlockRepo) ListByTower(ctx context.Context, tenantID, towerID uint64) ([]model.Block, error) {
	const q = `SELECT id, tenant_id, tower_id, code, name, created_at, updated_at
	           FROM blocks WHERE tenant_id = ? AND tower_id = ? ORDER BY code`
	rows, err := r.db.QueryContext(ctx, q, tenantID, towerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Block, 0)
	for rows.Next() {
		var b model.Block
		if err := rows.Scan(&b.ID, &b.TenantID, &b.TowerID, &b.Code, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
