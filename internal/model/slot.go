package model

import (
	"fmt"
	"time"
)

// Slot status values.  RETIRED marks a slot removed from service by a
// structural change; retired slots are filtered out of every registry
// query.  The blocked flag is deliberately not a status: a slot keeps
// its true lifecycle state while blocked so that reports stay honest.
const (
	SlotAvailable = "AVAILABLE"
	SlotReserved  = "RESERVED"
	SlotBooked    = "BOOKED"
	SlotRetired   = "RETIRED"
)

// Slot represents one individually addressable lamp position.  Slots are
// generated once from a block's row definitions and are structurally
// immutable afterwards.
//
// Fields:
//  ID          – primary key identifier.
//  TenantID    – owning temple; every query is tenant-scoped.
//  BlockID     – block the slot belongs to.
//  RowID       – lamp row the slot was generated from.
//  RowNo       – row number within the block (1-based).
//  Position    – position within the row (1-based).
//  Code        – deterministic code derived from block, row and position.
//  Status      – AVAILABLE | RESERVED | BOOKED | RETIRED.
//  IsBlocked   – maintenance flag, orthogonal to Status.
//  BlockReason – why the slot was blocked (nil when not blocked).
//  BlockedBy   – actor who blocked the slot (nil when not blocked).
//  BlockedAt   – when the slot was blocked (nil when not blocked).
type Slot struct {
	ID          uint64     `json:"id"`
	TenantID    uint64     `json:"tenant_id"`
	BlockID     uint64     `json:"block_id"`
	RowID       uint64     `json:"row_id"`
	RowNo       uint32     `json:"row_no"`
	Position    uint32     `json:"position"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	PriceCents  uint32     `json:"price_cents"`
	IsBlocked   bool       `json:"is_blocked"`
	BlockReason *string    `json:"block_reason,omitempty"`
	BlockedBy   *string    `json:"blocked_by,omitempty"`
	BlockedAt   *time.Time `json:"blocked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SlotCode derives the canonical code for a slot from its block code, row
// number and position, e.g. ("EAST", 1, 3) -> "EAST-01-003".  The same
// inputs always produce the same code, which keeps regeneration a pure
// function of the layout definition.
func SlotCode(blockCode string, rowNo, position uint32) string {
	return fmt.Sprintf("%s-%02d-%03d", blockCode, rowNo, position)
}
