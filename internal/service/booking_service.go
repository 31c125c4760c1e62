// Package service implements the allocation engine and reservation
// lifecycle. Every state-changing operation runs inside one database
// transaction whose only blocking point is the target slot's row lock;
// contenders for the same slot serialize there while unrelated slots
// proceed untouched. Each mutating path re-validates its precondition
// under the lock rather than trusting a prior read.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/minghsiao/lamp-reservation/internal/model"
	"github.com/minghsiao/lamp-reservation/internal/repository"
)

// sweepBatch bounds how many elapsed leases one sweep pass picks up.
const sweepBatch = 500

// BookingService grants exclusive claims on slots and drives reservations
// through their lifecycle. It is safe for concurrent use; multiple service
// instances may run against the same database, with correctness coming
// entirely from the row-locking discipline rather than in-process state.
type BookingService struct {
	db           *sql.DB
	slots        *repository.SlotRepo
	reservations *repository.ReservationRepo
	paymentModes *repository.PaymentModeRepo
	holdDuration time.Duration
	now          func() time.Time // injectable clock for lease tests
}

// NewBookingService constructs a BookingService. holdDuration is the
// lease granted to an unconfirmed reservation.
func NewBookingService(db *sql.DB, slots *repository.SlotRepo, reservations *repository.ReservationRepo, paymentModes *repository.PaymentModeRepo, holdDuration time.Duration) *BookingService {
	if db == nil || slots == nil || reservations == nil || paymentModes == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if holdDuration <= 0 {
		holdDuration = 10 * time.Minute
	}
	return &BookingService{
		db:           db,
		slots:        slots,
		reservations: reservations,
		paymentModes: paymentModes,
		holdDuration: holdDuration,
		now:          time.Now,
	}
}

// Receipt is returned to the holder after a successful reserve.
type Receipt struct {
	ReservationID uint64    `json:"reservation_id"`
	Ref           string    `json:"ref"`
	SlotCode      string    `json:"slot_code"`
	ReservedUntil time.Time `json:"reserved_until"`
}

// Reserve claims one slot exclusively for the caller. It locks the slot
// row, re-checks AVAILABLE under the lock (the only check that counts),
// then writes the RESERVED slot status and the new reservation row in
// one commit. A slot taken between discovery and lock acquisition
// surfaces as repository.ErrSlotUnavailable so the client knows to
// reselect rather than retry blindly.
func (s *BookingService) Reserve(ctx context.Context, cmd ReserveCommand) (*Receipt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	starts, _ := parseDate(cmd.StartsOn)
	ends, _ := parseDate(cmd.EndsOn)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	slot, err := s.slots.LockByIDTx(ctx, tx, cmd.TenantID, cmd.SlotID)
	if err != nil {
		return nil, err
	}
	// Post-lock re-check: any availability read the caller did earlier
	// was advisory only.
	if slot.Status != model.SlotAvailable || slot.IsBlocked {
		return nil, repository.ErrSlotUnavailable
	}

	until := s.now().UTC().Add(s.holdDuration)
	res := &model.Reservation{
		TenantID:      cmd.TenantID,
		SlotID:        cmd.SlotID,
		UserID:        cmd.UserID,
		Ref:           uuid.NewString(),
		HolderName:    cmd.HolderName,
		HolderContact: cmd.HolderContact,
		StartsOn:      starts,
		EndsOn:        ends,
		AmountCents:   cmd.AmountCents,
		Status:        model.ReservationReserved,
		ReservedUntil: until,
	}
	if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := s.slots.SetStatusTx(ctx, tx, cmd.TenantID, cmd.SlotID, model.SlotReserved); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &Receipt{
		ReservationID: res.ID,
		Ref:           res.Ref,
		SlotCode:      slot.Code,
		ReservedUntil: until,
	}, nil
}

// Confirm promotes a RESERVED reservation to ACTIVE and its slot to
// BOOKED, atomically, recording the payment mode and reference. A lease
// already past its deadline is rejected with ErrReservationExpired even
// if the sweep has not released it yet.
func (s *BookingService) Confirm(ctx context.Context, cmd ConfirmCommand) (*model.Reservation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	// Resolve the payment mode before opening the transaction; the
	// registry is read-only from our side.
	mode, err := s.paymentModes.GetByID(ctx, cmd.PaymentModeID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Advisory read to find the slot, then the authoritative re-read
	// under the slot's lock.
	res, err := s.reservations.GetByID(ctx, cmd.TenantID, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.slots.LockByIDTx(ctx, tx, cmd.TenantID, res.SlotID); err != nil {
		return nil, err
	}
	res, err = s.reservations.GetByIDTx(ctx, tx, cmd.TenantID, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.ReservationReserved {
		return nil, repository.ErrConflict
	}
	now := s.now().UTC()
	if now.After(res.ReservedUntil) {
		return nil, repository.ErrReservationExpired
	}
	if err := s.reservations.ConfirmTx(ctx, tx, cmd.TenantID, cmd.ReservationID, mode.ID, cmd.PaymentRef, now); err != nil {
		return nil, err
	}
	if err := s.slots.SetStatusTx(ctx, tx, cmd.TenantID, res.SlotID, model.SlotBooked); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	res.Status = model.ReservationActive
	res.PaymentModeID = &mode.ID
	ref := cmd.PaymentRef
	res.PaymentRef = &ref
	res.PaidAt = &now
	return res, nil
}

// Cancel terminates a RESERVED or ACTIVE reservation and releases its
// slot back to AVAILABLE. Cancelling an already-terminal reservation is
// rejected with ErrConflict.
func (s *BookingService) Cancel(ctx context.Context, cmd CancelCommand) (*model.Reservation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.reservations.GetByID(ctx, cmd.TenantID, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.slots.LockByIDTx(ctx, tx, cmd.TenantID, res.SlotID); err != nil {
		return nil, err
	}
	res, err = s.reservations.GetByIDTx(ctx, tx, cmd.TenantID, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if !model.CanCancel(res.Status) {
		return nil, repository.ErrConflict
	}
	now := s.now().UTC()
	if err := s.reservations.CancelTx(ctx, tx, cmd.TenantID, cmd.ReservationID, cmd.Reason, cmd.Actor, now); err != nil {
		return nil, err
	}
	if err := s.slots.SetStatusTx(ctx, tx, cmd.TenantID, res.SlotID, model.SlotAvailable); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	res.Status = model.ReservationCancelled
	reason, actor := cmd.Reason, cmd.Actor
	res.CancelReason = &reason
	res.CancelledBy = &actor
	res.CancelledAt = &now
	return res, nil
}

// NextAvailable returns one AVAILABLE, non-blocked slot in the scope,
// skipping ids the caller has already been shown. It is a pure read; the
// reserve path re-checks at claim time, so a stale answer here costs the
// caller at most one reselect.
func (s *BookingService) NextAvailable(ctx context.Context, tenantID uint64, scope repository.Scope, excludeIDs []uint64) (*model.Slot, error) {
	return s.slots.NextAvailable(ctx, tenantID, scope, excludeIDs)
}

// SlotAvailability is a point-in-time view of one slot and, when a live
// claim exists, the reservation holding it.
type SlotAvailability struct {
	Slot    *model.Slot        `json:"slot"`
	Holding *model.Reservation `json:"holding,omitempty"`
}

// CheckAvailability reads the slot's current status and its holding
// reservation, if any.
func (s *BookingService) CheckAvailability(ctx context.Context, tenantID uint64, slotCode string) (*SlotAvailability, error) {
	slot, err := s.slots.GetByCode(ctx, tenantID, slotCode)
	if err != nil {
		return nil, err
	}
	out := &SlotAvailability{Slot: slot}
	holding, err := s.reservations.CurrentBySlot(ctx, tenantID, slot.ID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return out, nil
		}
		return nil, err
	}
	out.Holding = holding
	return out, nil
}

// ReleasedLease describes one reservation the sweep expired.
type ReleasedLease struct {
	ReservationID uint64
	TenantID      uint64
	SlotID        uint64
	SlotCode      string
}

// SweepExpired releases every RESERVED reservation whose lease elapsed.
// Each candidate is processed in its own transaction so one failure does
// not block the rest: the slot's lock is re-acquired, the reservation is
// re-checked under it, and a candidate that a concurrent confirm or
// cancel already moved is skipped untouched. Returns the leases actually
// released.
func (s *BookingService) SweepExpired(ctx context.Context) ([]ReleasedLease, error) {
	leases, err := s.reservations.FindExpiredLeases(ctx, s.now().UTC(), sweepBatch)
	if err != nil {
		return nil, err
	}
	released := make([]ReleasedLease, 0, len(leases))
	for _, lease := range leases {
		code, ok, err := s.expireOne(ctx, lease)
		if err != nil {
			log.Printf("sweep: reservation %d: %v", lease.ReservationID, err)
			continue
		}
		if ok {
			released = append(released, ReleasedLease{
				ReservationID: lease.ReservationID,
				TenantID:      lease.TenantID,
				SlotID:        lease.SlotID,
				SlotCode:      code,
			})
		}
	}
	return released, nil
}

// expireOne expires a single lease in its own transaction. The boolean
// result is false when the reservation was no longer RESERVED under the
// lock, i.e. another transaction won the race.
func (s *BookingService) expireOne(ctx context.Context, lease repository.ExpiredLease) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	slot, err := s.slots.LockByIDTx(ctx, tx, lease.TenantID, lease.SlotID)
	if err != nil {
		return "", false, err
	}
	ok, err := s.reservations.ExpireTx(ctx, tx, lease.TenantID, lease.ReservationID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		// Lost the race to a confirm or cancel; leave everything as is.
		return "", false, nil
	}
	if err := s.slots.SetStatusTx(ctx, tx, lease.TenantID, lease.SlotID, model.SlotAvailable); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	committed = true
	return slot.Code, true, nil
}

// parseDate parses a YYYY-MM-DD service-period boundary in UTC.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
