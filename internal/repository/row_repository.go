package repository

import (
	"context"
	"database/sql"

	"github.com/minghsiao/lamp-reservation/internal/model"
)

// RowRepo provides data access to the lamp_rows table: the per-block row
// definitions (capacity and price) that slot generation expands. Row
// definitions are replaced wholesale and only while the block has no
// generated slots; the frozen-layout guard lives in the handler
// transaction, not here.
type RowRepo struct {
	db *sql.DB
}

// NewRowRepo constructs a RowRepo with the given DB handle.
func NewRowRepo(db *sql.DB) *RowRepo { return &RowRepo{db: db} }

// ReplaceTx deletes the block's existing row definitions and inserts the
// new set in submission order, assigning RowNo 1..n. It runs inside the
// caller's transaction so the frozen-layout check and the replacement
// commit together.
func (r *RowRepo) ReplaceTx(ctx context.Context, tx *sql.Tx, tenantID, blockID uint64, rows []model.Row) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM lamp_rows WHERE tenant_id = ? AND block_id = ?`, tenantID, blockID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	query := `INSERT INTO lamp_rows (tenant_id, block_id, row_no, capacity, price_cents) VALUES `
	args := make([]interface{}, 0, len(rows)*5)
	for i, row := range rows {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, tenantID, blockID, i+1, row.Capacity, row.PriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByBlockTx returns the block's row definitions ordered by row
// number, within the caller's transaction.
func (r *RowRepo) ListByBlockTx(ctx context.Context, tx *sql.Tx, tenantID, blockID uint64) ([]model.Row, error) {
	const q = `SELECT id, tenant_id, block_id, row_no, capacity, price_cents, created_at
	           FROM lamp_rows
	           WHERE tenant_id = ? AND block_id = ?
	           ORDER BY row_no`
	rows, err := tx.QueryContext(ctx, q, tenantID, blockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Row
	for rows.Next() {
		var row model.Row
		if err := rows.Scan(&row.ID, &row.TenantID, &row.BlockID, &row.RowNo, &row.Capacity, &row.PriceCents, &row.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByBlock is the non-transactional variant used for display.
func (r *RowRepo) ListByBlock(ctx context.Context, tenantID, blockID uint64) ([]model.Row, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	return r.ListByBlockTx(ctx, tx, tenantID, blockID)
}
