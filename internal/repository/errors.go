// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service and handlers to distinguish between different failure
// scenarios without string matching. For example, ErrSlotUnavailable
// tells a client to reselect, while ErrReservationExpired tells it to
// book again from scratch.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource belonging to another tenant. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as retiring slots that still carry
// reservations or cancelling an already-terminal reservation.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSlotNotFound is returned when a slot lookup yields no rows.
var ErrSlotNotFound = errors.New("slot not found")

// ErrSlotUnavailable is returned when a slot is no longer AVAILABLE at
// lock time. It is deliberately distinct from ErrConflict so that a
// client racing for a popular slot knows to re-poll rather than treat
// the failure as its own mistake.
var ErrSlotUnavailable = errors.New("slot no longer available")

// ErrSlotBooked is returned when blocking a slot that currently carries
// a live claim. Blocking must wait until the claim terminates.
var ErrSlotBooked = errors.New("slot has an active registration")

// ErrReservationNotFound is returned when a reservation lookup yields no rows.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrReservationExpired is returned when confirming a reservation whose
// lease deadline has already passed, whether or not the sweep has run.
var ErrReservationExpired = errors.New("reservation lease expired")

// ErrLayoutFrozen is returned when redefining rows for a block whose
// slots have already been generated. The layout is structurally
// immutable once committed.
var ErrLayoutFrozen = errors.New("layout is frozen: slots already generated")

// ErrRowsUndefined is returned when generating slots for a block that
// has no row definitions yet.
var ErrRowsUndefined = errors.New("no rows defined for block")

// ErrSlotsExist is returned when generating slots a second time for the
// same block. Generation is a one-shot operation, not a regenerate.
var ErrSlotsExist = errors.New("slots already generated for block")

// ErrTowerNotFound is returned when a tower lookup yields no rows.
var ErrTowerNotFound = errors.New("tower not found")

// ErrBlockNotFound is returned when a block lookup yields no rows.
var ErrBlockNotFound = errors.New("block not found")

// ErrPaymentModeNotFound is returned when a payment mode id does not
// exist in the registry.
var ErrPaymentModeNotFound = errors.New("payment mode not found")

// ErrLockTimeout is returned when the database gave up waiting for the
// slot's row lock. The condition is transient; callers should retry.
var ErrLockTimeout = errors.New("lock wait timeout")
