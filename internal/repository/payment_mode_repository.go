package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/minghsiao/lamp-reservation/internal/model"
)

// PaymentModeRepo looks up payment modes by id. The registry is owned by
// the accounting system; this service only resolves an id to a display
// name when confirming a reservation.
type PaymentModeRepo struct {
	db *sql.DB
}

// NewPaymentModeRepo constructs a PaymentModeRepo with the given DB handle.
func NewPaymentModeRepo(db *sql.DB) *PaymentModeRepo { return &PaymentModeRepo{db: db} }

// GetByID returns the payment mode or ErrPaymentModeNotFound.
func (r *PaymentModeRepo) GetByID(ctx context.Context, id uint64) (*model.PaymentMode, error) {
	const q = `SELECT id, name FROM payment_modes WHERE id = ?`
	var m model.PaymentMode
	err := r.db.QueryRowContext(ctx, q, id).Scan(&m.ID, &m.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentModeNotFound
		}
		return nil, err
	}
	return &m, nil
}

// List returns all payment modes ordered by id, for display in booking
// forms.
func (r *PaymentModeRepo) List(ctx context.Context) ([]model.PaymentMode, error) {
	const q = `SELECT id, name FROM payment_modes ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.PaymentMode, 0)
	for rows.Next() {
		var m model.PaymentMode
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
