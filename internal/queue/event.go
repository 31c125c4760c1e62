// Package queue defines message payloads exchanged over the message broker.
package queue

// LampBookedEvent is published when a reservation is confirmed with
// payment. It carries enough information for downstream consumers to
// log, notify, or feed the ledger without querying the primary database.
type LampBookedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	Ref           string `json:"ref"`
	TenantID      uint64 `json:"tenant_id"`
	SlotID        uint64 `json:"slot_id"`
	SlotCode      string `json:"slot_code"`
	HolderName    string `json:"holder_name"`
	StartsOn      string `json:"starts_on"`
	EndsOn        string `json:"ends_on"`
	AmountCents   uint32 `json:"amount_cents"`
	PaymentMode   string `json:"payment_mode"`
	PaymentRef    string `json:"payment_ref"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// LampReleasedEvent is published when a slot returns to the pool, either
// through cancellation or through the expiry sweep.
type LampReleasedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	TenantID      uint64 `json:"tenant_id"`
	SlotID        uint64 `json:"slot_id"`
	SlotCode      string `json:"slot_code"`
	Cause         string `json:"cause"` // "cancelled" | "expired"
	Reason        string `json:"reason,omitempty"`
	Actor         string `json:"actor,omitempty"`
	ReleasedAt    string `json:"released_at"`
}
