package repository // repository defines data access for lamp slots

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/minghsiao/lamp-reservation/internal/model"
)

// slotCols is the canonical column list for lamp_slots scans. Keep the
// order in sync with scanSlot.
const slotCols = `s.id, s.tenant_id, s.block_id, s.row_id, s.row_no, s.position, s.code,
                  s.status, s.price_cents, s.is_blocked, s.block_reason, s.blocked_by, s.blocked_at,
                  s.created_at, s.updated_at`

// SlotRepo provides data access to the lamp_slots table: generation,
// status mutation, the maintenance block flag and availability queries.
// Every method is tenant-scoped and filters out RETIRED slots unless it
// exists specifically to retire them. All timestamps are UTC.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo with the given DB handle.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

// translateDBError maps driver-level failures onto the repository's
// sentinel errors. MySQL error 1205 is an InnoDB lock wait timeout: the
// row is contended but the condition is transient. 1062 is a duplicate
// key, e.g. a slot code collision on generation.
func translateDBError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1205:
			return ErrLockTimeout
		case 1062:
			return ErrConflict
		}
	}
	return err
}

// scanSlot scans one lamp_slots row (slotCols order) into a model.Slot.
func scanSlot(row interface{ Scan(...interface{}) error }) (*model.Slot, error) {
	var s model.Slot
	var reason, by sql.NullString
	var at sql.NullTime
	err := row.Scan(
		&s.ID, &s.TenantID, &s.BlockID, &s.RowID, &s.RowNo, &s.Position, &s.Code,
		&s.Status, &s.PriceCents, &s.IsBlocked, &reason, &by, &at,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		v := reason.String
		s.BlockReason = &v
	}
	if by.Valid {
		v := by.String
		s.BlockedBy = &v
	}
	if at.Valid {
		v := at.Time.UTC()
		s.BlockedAt = &v
	}
	return &s, nil
}

// CreateBulkTx inserts multiple slots in a single statement within the
// provided transaction. Only structural fields are written; status
// defaults to AVAILABLE and timestamps default in the DB. Passing an
// empty slice has no effect and returns nil.
func (r *SlotRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	query := `INSERT INTO lamp_slots (tenant_id, block_id, row_id, row_no, position, code, status, price_cents) VALUES `
	args := make([]interface{}, 0, len(slots)*8)
	for i, s := range slots {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, s.TenantID, s.BlockID, s.RowID, s.RowNo, s.Position, s.Code, model.SlotAvailable, s.PriceCents)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return translateDBError(err)
	}
	return nil
}

// CountActiveByBlockTx returns the number of non-retired slots of a
// block. A non-zero count freezes the block's row definitions and
// rejects a second generation.
func (r *SlotRepo) CountActiveByBlockTx(ctx context.Context, tx *sql.Tx, tenantID, blockID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM lamp_slots WHERE tenant_id = ? AND block_id = ? AND status <> 'RETIRED'`
	var n int
	if err := tx.QueryRowContext(ctx, q, tenantID, blockID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountClaimedByBlockTx returns the number of slots of a block that are
// currently RESERVED or BOOKED. Retiring a block requires this to be zero.
func (r *SlotRepo) CountClaimedByBlockTx(ctx context.Context, tx *sql.Tx, tenantID, blockID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM lamp_slots
	           WHERE tenant_id = ? AND block_id = ? AND status IN ('RESERVED','BOOKED')`
	var n int
	if err := tx.QueryRowContext(ctx, q, tenantID, blockID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// RetireByBlockTx marks every non-retired slot of the block RETIRED and
// returns the number of slots affected. Callers must verify the block is
// entirely free of claims first (CountClaimedByBlockTx).
func (r *SlotRepo) RetireByBlockTx(ctx context.Context, tx *sql.Tx, tenantID, blockID uint64) (int64, error) {
	const q = `UPDATE lamp_slots SET status = 'RETIRED', updated_at = CURRENT_TIMESTAMP
	           WHERE tenant_id = ? AND block_id = ? AND status <> 'RETIRED'`
	res, err := tx.ExecContext(ctx, q, tenantID, blockID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByID retrieves a non-retired slot by id.
func (r *SlotRepo) GetByID(ctx context.Context, tenantID, slotID uint64) (*model.Slot, error) {
	q := `SELECT ` + slotCols + ` FROM lamp_slots s
	      WHERE s.id = ? AND s.tenant_id = ? AND s.status <> 'RETIRED'`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, slotID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetByCode retrieves a non-retired slot by its code.
func (r *SlotRepo) GetByCode(ctx context.Context, tenantID uint64, code string) (*model.Slot, error) {
	q := `SELECT ` + slotCols + ` FROM lamp_slots s
	      WHERE s.code = ? AND s.tenant_id = ? AND s.status <> 'RETIRED'`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, code, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return s, nil
}

// LockByIDTx acquires an exclusive row lock on the slot and returns its
// current state. The returned state is the sole source of truth for any
// subsequent status check: a read taken before this lock is advisory
// only. Lock wait timeouts surface as ErrLockTimeout.
func (r *SlotRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, tenantID, slotID uint64) (*model.Slot, error) {
	q := `SELECT ` + slotCols + ` FROM lamp_slots s
	      WHERE s.id = ? AND s.tenant_id = ? AND s.status <> 'RETIRED'
	      FOR UPDATE`
	s, err := scanSlot(tx.QueryRowContext(ctx, q, slotID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, translateDBError(err)
	}
	return s, nil
}

// SetStatusTx updates a slot's lifecycle status. It is used only by the
// allocation engine and the reservation lifecycle, always under the
// slot's row lock.
func (r *SlotRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, tenantID, slotID uint64, status string) error {
	const q = `UPDATE lamp_slots SET status = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND tenant_id = ?`
	res, err := tx.ExecContext(ctx, q, status, slotID, tenantID)
	if err != nil {
		return translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// BlockTx sets the maintenance flag with its reason/actor metadata. The
// caller must hold the slot's lock and have verified the slot carries no
// live claim.
func (r *SlotRepo) BlockTx(ctx context.Context, tx *sql.Tx, tenantID, slotID uint64, reason, actor string, at time.Time) error {
	const q = `UPDATE lamp_slots
	           SET is_blocked = 1, block_reason = ?, blocked_by = ?, blocked_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND tenant_id = ?`
	res, err := tx.ExecContext(ctx, q, reason, actor, at.UTC().Format("2006-01-02 15:04:05"), slotID, tenantID)
	if err != nil {
		return translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// UnblockTx clears the maintenance flag and its metadata.
func (r *SlotRepo) UnblockTx(ctx context.Context, tx *sql.Tx, tenantID, slotID uint64) error {
	const q = `UPDATE lamp_slots
	           SET is_blocked = 0, block_reason = NULL, blocked_by = NULL, blocked_at = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND tenant_id = ?`
	res, err := tx.ExecContext(ctx, q, slotID, tenantID)
	if err != nil {
		return translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Scope narrows a next-available search to a tower or a single block.
// Zero values mean "no filter".
type Scope struct {
	TowerID uint64
	BlockID uint64
}

// NextAvailable returns one AVAILABLE, non-blocked slot matching the
// scope, skipping the excluded ids, in deterministic order (block code,
// then row, then position). It takes no locks and mutates nothing: the
// result may be stale by the time the caller reserves, and the reserve
// path's post-lock re-check resolves that. ErrSlotNotFound means the
// scope is exhausted.
func (r *SlotRepo) NextAvailable(ctx context.Context, tenantID uint64, scope Scope, excludeIDs []uint64) (*model.Slot, error) {
	query := `SELECT ` + slotCols + ` FROM lamp_slots s
	          JOIN blocks b ON b.id = s.block_id
	          WHERE s.tenant_id = ? AND s.status = 'AVAILABLE' AND s.is_blocked = 0`
	args := []interface{}{tenantID}
	if scope.TowerID != 0 {
		query += ` AND b.tower_id = ?`
		args = append(args, scope.TowerID)
	}
	if scope.BlockID != 0 {
		query += ` AND s.block_id = ?`
		args = append(args, scope.BlockID)
	}
	if len(excludeIDs) > 0 {
		placeholders := make([]string, len(excludeIDs))
		for i, id := range excludeIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` AND s.id NOT IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY b.code, s.row_no, s.position LIMIT 1`
	s, err := scanSlot(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return s, nil
}

// BlockSummary carries the derived per-block counts. The counts are
// computed on demand straight from lamp_slots rather than cached, so
// they can never drift from the registry.
type BlockSummary struct {
	BlockID   uint64 `json:"block_id"`
	BlockCode string `json:"block_code"`
	BlockName string `json:"block_name"`
	Available uint32 `json:"available"`
	Reserved  uint32 `json:"reserved"`
	Booked    uint32 `json:"booked"`
	Blocked   uint32 `json:"blocked"`
	Retired   uint32 `json:"retired"`
}

// summarySelect aggregates slot counts per block. Blocked slots are
// counted by the flag regardless of their lifecycle status; the
// available count excludes them because a blocked slot cannot take a
// new allocation.
const summarySelect = `SELECT b.id, b.code, b.name,
	       COALESCE(SUM(s.status = 'AVAILABLE' AND s.is_blocked = 0), 0),
	       COALESCE(SUM(s.status = 'RESERVED'), 0),
	       COALESCE(SUM(s.status = 'BOOKED'), 0),
	       COALESCE(SUM(s.is_blocked = 1 AND s.status <> 'RETIRED'), 0),
	       COALESCE(SUM(s.status = 'RETIRED'), 0)
	FROM blocks b
	LEFT JOIN lamp_slots s ON s.block_id = b.id`

// SummaryByTower returns per-block counts for every block of a tower,
// ordered by block code.
func (r *SlotRepo) SummaryByTower(ctx context.Context, tenantID, towerID uint64) ([]BlockSummary, error) {
	q := summarySelect + `
	    WHERE b.tenant_id = ? AND b.tower_id = ?
	    GROUP BY b.id, b.code, b.name
	    ORDER BY b.code`
	rows, err := r.db.QueryContext(ctx, q, tenantID, towerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]BlockSummary, 0)
	for rows.Next() {
		var sum BlockSummary
		if err := rows.Scan(&sum.BlockID, &sum.BlockCode, &sum.BlockName,
			&sum.Available, &sum.Reserved, &sum.Booked, &sum.Blocked, &sum.Retired); err != nil {
			return nil, err
		}
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SummaryByBlock returns the counts for a single block.
func (r *SlotRepo) SummaryByBlock(ctx context.Context, tenantID, blockID uint64) (*BlockSummary, error) {
	q := summarySelect + `
	    WHERE b.tenant_id = ? AND b.id = ?
	    GROUP BY b.id, b.code, b.name`
	var sum BlockSummary
	err := r.db.QueryRowContext(ctx, q, tenantID, blockID).Scan(
		&sum.BlockID, &sum.BlockCode, &sum.BlockName,
		&sum.Available, &sum.Reserved, &sum.Booked, &sum.Blocked, &sum.Retired)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &sum, nil
}
