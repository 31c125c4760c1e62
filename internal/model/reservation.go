package model

import "time"

// Reservation status values.  RESERVED and ACTIVE are the non-terminal
// states; at most one non-terminal reservation may exist per slot at any
// instant.  CANCELLED and EXPIRED are terminal for the record – a future
// booking of the same slot always creates a new row.
const (
	ReservationReserved  = "RESERVED"
	ReservationActive    = "ACTIVE"
	ReservationCancelled = "CANCELLED"
	ReservationExpired   = "EXPIRED"
)

// Reservation is a time-bounded exclusive claim on one slot.  A reservation
// starts as RESERVED with a lease deadline (ReservedUntil); confirming
// payment promotes it to ACTIVE, cancellation or lease expiry releases the
// slot.  Rows are append-only: they are mutated by confirm/cancel/expire but
// never deleted.
type Reservation struct {
	ID            uint64     `json:"id"`
	TenantID      uint64     `json:"tenant_id"`
	SlotID        uint64     `json:"slot_id"`
	UserID        uint64     `json:"user_id"`
	Ref           string     `json:"ref"`
	HolderName    string     `json:"holder_name"`
	HolderContact string     `json:"holder_contact"`
	StartsOn      time.Time  `json:"starts_on"`
	EndsOn        time.Time  `json:"ends_on"`
	AmountCents   uint32     `json:"amount_cents"`
	Status        string     `json:"status"`
	ReservedUntil time.Time  `json:"reserved_until"`
	PaymentModeID *uint64    `json:"payment_mode_id,omitempty"`
	PaymentRef    *string    `json:"payment_ref,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	CancelledBy   *string    `json:"cancelled_by,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsTerminal reports whether a reservation status can no longer change.
func IsTerminal(status string) bool {
	return status == ReservationCancelled || status == ReservationExpired
}

// CanCancel reports whether a reservation in the given status may be
// cancelled.  Both pre-payment abandonment (RESERVED) and post-payment
// termination (ACTIVE) are allowed; terminal states are not.
func CanCancel(status string) bool {
	return status == ReservationReserved || status == ReservationActive
}
