package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/minghsiao/lamp-reservation/internal/model"
	"github.com/minghsiao/lamp-reservation/internal/repository"
	"github.com/minghsiao/lamp-reservation/internal/service"
)

// SlotOpsHandler exposes the administrative slot operations: manual
// blocking, availability summaries and the on-demand expiry sweep.
type SlotOpsHandler struct {
	SlotRepo *repository.SlotRepo
	Booking  *service.BookingService
}

func NewSlotOpsHandler(slotRepo *repository.SlotRepo, booking *service.BookingService) *SlotOpsHandler {
	if slotRepo == nil || booking == nil {
		panic("nil dependency passed to NewSlotOpsHandler")
	}
	return &SlotOpsHandler{SlotRepo: slotRepo, Booking: booking}
}

// BlockSlot handles POST /v1/slots/:id/block. Blocking is an admin
// override that takes a slot out of allocation without touching its
// status. A slot currently RESERVED or BOOKED cannot be blocked: the
// claim has to be resolved first.
func (h *SlotOpsHandler) BlockSlot(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Reason) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}

	ctx := c.Request().Context()
	tx, err := h.SlotRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	slot, err := h.SlotRepo.LockByIDTx(ctx, tx, tenantID, slotID)
	if err != nil {
		return slotOpError(c, err)
	}
	if slot.Status == model.SlotReserved || slot.Status == model.SlotBooked {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrSlotBooked.Error()})
	}
	if err := h.SlotRepo.BlockTx(ctx, tx, tenantID, slotID, body.Reason, actorName(c), time.Now().UTC()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to block slot"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"slot_id": slotID, "blocked": true})
}

// UnblockSlot handles DELETE /v1/slots/:id/block. Unblocking an
// already-unblocked slot is a no-op and still returns 200.
func (h *SlotOpsHandler) UnblockSlot(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	ctx := c.Request().Context()
	tx, err := h.SlotRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := h.SlotRepo.LockByIDTx(ctx, tx, tenantID, slotID); err != nil {
		return slotOpError(c, err)
	}
	if err := h.SlotRepo.UnblockTx(ctx, tx, tenantID, slotID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to unblock slot"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"slot_id": slotID, "blocked": false})
}

// TowerSummary handles GET /v1/towers/:id/summary.
func (h *SlotOpsHandler) TowerSummary(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	towerID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tower id"})
	}
	items, err := h.SlotRepo.SummaryByTower(c.Request().Context(), tenantID, towerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load summary"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// BlockSummary handles GET /v1/blocks/:id/summary.
func (h *SlotOpsHandler) BlockSummary(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	blockID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block id"})
	}
	item, err := h.SlotRepo.SummaryByBlock(c.Request().Context(), tenantID, blockID)
	if err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load summary"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item})
}

// Sweep handles POST /v1/admin/sweep. It runs one expiry pass
// synchronously, in addition to whatever the background sweeper does,
// and reports how many leases were released.
func (h *SlotOpsHandler) Sweep(c echo.Context) error {
	released, err := h.Booking.SweepExpired(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": len(released)})
}

func slotOpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrSlotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
	case errors.Is(err, repository.ErrLockTimeout):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "slot is busy, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
