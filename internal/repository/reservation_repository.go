package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/minghsiao/lamp-reservation/internal/model"
)

// reservationCols is the canonical column list for reservations scans.
// Keep the order in sync with scanReservation.
const reservationCols = `r.id, r.tenant_id, r.slot_id, r.user_id, r.ref, r.holder_name, r.holder_contact,
                         r.starts_on, r.ends_on, r.amount_cents, r.status, r.reserved_until,
                         r.payment_mode_id, r.payment_ref, r.paid_at,
                         r.cancel_reason, r.cancelled_by, r.cancelled_at,
                         r.created_at, r.updated_at`

// ReservationRepo provides data access to the reservations table. The
// table is append-only: every booking attempt inserts a new row, and
// confirm/cancel/expire mutate status fields in place but rows are never
// deleted. All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// scanReservation scans one reservations row (reservationCols order).
func scanReservation(row interface{ Scan(...interface{}) error }) (*model.Reservation, error) {
	var res model.Reservation
	var payMode sql.NullInt64
	var payRef, cancelReason, cancelledBy sql.NullString
	var paidAt, cancelledAt sql.NullTime
	err := row.Scan(
		&res.ID, &res.TenantID, &res.SlotID, &res.UserID, &res.Ref, &res.HolderName, &res.HolderContact,
		&res.StartsOn, &res.EndsOn, &res.AmountCents, &res.Status, &res.ReservedUntil,
		&payMode, &payRef, &paidAt,
		&cancelReason, &cancelledBy, &cancelledAt,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payMode.Valid {
		v := uint64(payMode.Int64)
		res.PaymentModeID = &v
	}
	if payRef.Valid {
		v := payRef.String
		res.PaymentRef = &v
	}
	if paidAt.Valid {
		v := paidAt.Time.UTC()
		res.PaidAt = &v
	}
	if cancelReason.Valid {
		v := cancelReason.String
		res.CancelReason = &v
	}
	if cancelledBy.Valid {
		v := cancelledBy.String
		res.CancelledBy = &v
	}
	if cancelledAt.Valid {
		v := cancelledAt.Time.UTC()
		res.CancelledAt = &v
	}
	return &res, nil
}

// CreateTx inserts a new RESERVED reservation within the caller's
// transaction and populates the generated ID. The slot's status change
// must be part of the same transaction so both commit atomically.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (tenant_id, slot_id, user_id, ref, holder_name, holder_contact, starts_on, ends_on, amount_cents, status, reserved_until)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.TenantID, res.SlotID, res.UserID, res.Ref, res.HolderName, res.HolderContact,
		res.StartsOn.UTC().Format("2006-01-02"), res.EndsOn.UTC().Format("2006-01-02"),
		res.AmountCents, res.Status, res.ReservedUntil.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByID retrieves a reservation by id within the tenant.
func (r *ReservationRepo) GetByID(ctx context.Context, tenantID, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations r WHERE r.id = ? AND r.tenant_id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// GetByIDTx re-reads a reservation inside the caller's transaction.
// Confirm/cancel call this after acquiring the slot's lock so the status
// check sees the committed truth rather than a pre-lock snapshot.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations r WHERE r.id = ? AND r.tenant_id = ? FOR UPDATE`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, translateDBError(err)
	}
	return res, nil
}

// CurrentBySlot returns the slot's non-terminal reservation, if any.
// Used by availability checks to show who currently holds a slot.
func (r *ReservationRepo) CurrentBySlot(ctx context.Context, tenantID, slotID uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations r
	      WHERE r.tenant_id = ? AND r.slot_id = ? AND r.status IN ('RESERVED','ACTIVE')
	      ORDER BY r.id DESC LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, tenantID, slotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// ConfirmTx promotes a RESERVED reservation to ACTIVE with its payment
// fields. The status guard in the WHERE clause is the final defence: if
// another transaction moved the reservation first, zero rows match and
// ErrConflict is returned.
func (r *ReservationRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, tenantID, id, paymentModeID uint64, paymentRef string, paidAt time.Time) error {
	const q = `UPDATE reservations
	           SET status = 'ACTIVE', payment_mode_id = ?, payment_ref = ?, paid_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND tenant_id = ? AND status = 'RESERVED'`
	res, err := tx.ExecContext(ctx, q, paymentModeID, paymentRef, paidAt.UTC().Format("2006-01-02 15:04:05"), id, tenantID)
	if err != nil {
		return translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// CancelTx moves a RESERVED or ACTIVE reservation to CANCELLED,
// recording reason, actor and time. Terminal states do not match the
// WHERE clause, so a double cancel surfaces as ErrConflict.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, reason, actor string, at time.Time) error {
	const q = `UPDATE reservations
	           SET status = 'CANCELLED', cancel_reason = ?, cancelled_by = ?, cancelled_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND tenant_id = ? AND status IN ('RESERVED','ACTIVE')`
	res, err := tx.ExecContext(ctx, q, reason, actor, at.UTC().Format("2006-01-02 15:04:05"), id, tenantID)
	if err != nil {
		return translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ExpireTx moves a RESERVED reservation to EXPIRED. The status guard
// makes the sweep a no-op when a concurrent confirm or cancel won the
// slot's lock first; the sweep never overwrites a state that changed out
// from under it.
func (r *ReservationRepo) ExpireTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (bool, error) {
	const q = `UPDATE reservations
	           SET status = 'EXPIRED', updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND tenant_id = ? AND status = 'RESERVED'`
	res, err := tx.ExecContext(ctx, q, id, tenantID)
	if err != nil {
		return false, translateDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExpiredLease identifies one reservation whose lease has elapsed,
// with enough context for the sweep to process it independently.
type ExpiredLease struct {
	ReservationID uint64
	TenantID      uint64
	SlotID        uint64
}

// FindExpiredLeases returns reservations still RESERVED whose
// reserved_until is before now, across all tenants, oldest first. The
// read is unlocked; the sweep re-checks each candidate under the slot's
// lock before touching it.
func (r *ReservationRepo) FindExpiredLeases(ctx context.Context, now time.Time, limit int) ([]ExpiredLease, error) {
	const q = `SELECT id, tenant_id, slot_id FROM reservations
	           WHERE status = 'RESERVED' AND reserved_until < ?
	           ORDER BY reserved_until
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var leases []ExpiredLease
	for rows.Next() {
		var l ExpiredLease
		if err := rows.Scan(&l.ReservationID, &l.TenantID, &l.SlotID); err != nil {
			return nil, err
		}
		leases = append(leases, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leases, nil
}

// ListByUser returns all reservations created by a user, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, tenantID, userID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations r
	      WHERE r.tenant_id = ? AND r.user_id = ?
	      ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
