package model

import "time"

// Tower is the top level of the physical layout: a free-standing lamp
// tower on the temple grounds.  Towers exist purely as master data and
// human-readable labels; slots hang off blocks.
type Tower struct {
	ID        uint64    `json:"id"`
	TenantID  uint64    `json:"tenant_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Block is one face or section of a tower.  A block owns the row
// definitions that generate its slot set; once any slot exists the
// definitions are frozen.
type Block struct {
	ID        uint64    `json:"id"`
	TenantID  uint64    `json:"tenant_id"`
	TowerID   uint64    `json:"tower_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Row declares one lamp row of a block: how many slots it holds and what
// each slot costs.  RowNo is assigned from the order rows are submitted in.
type Row struct {
	ID         uint64    `json:"id"`
	TenantID   uint64    `json:"tenant_id"`
	BlockID    uint64    `json:"block_id"`
	RowNo      uint32    `json:"row_no"`
	Capacity   uint32    `json:"capacity"`
	PriceCents uint32    `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// PaymentMode maps a payment mode id to its display name.  The registry
// itself is maintained elsewhere; this service only looks modes up when
// confirming a reservation.
type PaymentMode struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}
