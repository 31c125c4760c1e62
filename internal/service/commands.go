package service

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input. It is raised before any
// transaction opens, so a failed validation never touches the database.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ReserveCommand is the typed request to claim a slot. Handlers build it
// from the HTTP payload and the authenticated identity; the ambient
// request context never leaks past the boundary.
type ReserveCommand struct {
	TenantID      uint64
	SlotID        uint64
	UserID        uint64
	HolderName    string
	HolderContact string
	StartsOn      string // YYYY-MM-DD
	EndsOn        string // YYYY-MM-DD
	AmountCents   uint32
}

// Validate checks the command before any transaction opens.
func (c ReserveCommand) Validate() error {
	if c.TenantID == 0 {
		return &ValidationError{Field: "tenant_id", Msg: "required"}
	}
	if c.SlotID == 0 {
		return &ValidationError{Field: "slot_id", Msg: "required"}
	}
	if strings.TrimSpace(c.HolderName) == "" {
		return &ValidationError{Field: "holder_name", Msg: "required"}
	}
	if strings.TrimSpace(c.HolderContact) == "" {
		return &ValidationError{Field: "holder_contact", Msg: "required"}
	}
	starts, err := parseDate(c.StartsOn)
	if err != nil {
		return &ValidationError{Field: "starts_on", Msg: "must be YYYY-MM-DD"}
	}
	ends, err := parseDate(c.EndsOn)
	if err != nil {
		return &ValidationError{Field: "ends_on", Msg: "must be YYYY-MM-DD"}
	}
	if !ends.After(starts) {
		return &ValidationError{Field: "ends_on", Msg: "must be after starts_on"}
	}
	if c.AmountCents == 0 {
		return &ValidationError{Field: "amount_cents", Msg: "must be positive"}
	}
	return nil
}

// ConfirmCommand promotes a reserved slot to booked with its payment
// details.
type ConfirmCommand struct {
	TenantID      uint64
	ReservationID uint64
	PaymentModeID uint64
	PaymentRef    string
}

// Validate checks the command before any transaction opens.
func (c ConfirmCommand) Validate() error {
	if c.TenantID == 0 {
		return &ValidationError{Field: "tenant_id", Msg: "required"}
	}
	if c.ReservationID == 0 {
		return &ValidationError{Field: "reservation_id", Msg: "required"}
	}
	if c.PaymentModeID == 0 {
		return &ValidationError{Field: "payment_mode_id", Msg: "required"}
	}
	if strings.TrimSpace(c.PaymentRef) == "" {
		return &ValidationError{Field: "payment_ref", Msg: "required"}
	}
	return nil
}

// CancelCommand terminates a reservation, recording who asked and why.
type CancelCommand struct {
	TenantID      uint64
	ReservationID uint64
	Reason        string
	Actor         string
}

// Validate checks the command before any transaction opens.
func (c CancelCommand) Validate() error {
	if c.TenantID == 0 {
		return &ValidationError{Field: "tenant_id", Msg: "required"}
	}
	if c.ReservationID == 0 {
		return &ValidationError{Field: "reservation_id", Msg: "required"}
	}
	if strings.TrimSpace(c.Reason) == "" {
		return &ValidationError{Field: "reason", Msg: "required"}
	}
	if strings.TrimSpace(c.Actor) == "" {
		return &ValidationError{Field: "actor", Msg: "required"}
	}
	return nil
}
