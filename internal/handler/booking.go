package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/minghsiao/lamp-reservation/internal/queue"
	"github.com/minghsiao/lamp-reservation/internal/repository"
	"github.com/minghsiao/lamp-reservation/internal/service"
)

// BookingHandler exposes the reservation lifecycle to authenticated
// members: discovery, reserve, confirm, cancel and lookups. It
// translates HTTP payloads into typed commands, hands them to the
// booking service, and maps the service's sentinel errors onto status
// codes. Events are published after the commit, best effort.
type BookingHandler struct {
	Booking       *service.BookingService
	SlotRepo      *repository.SlotRepo
	ResRepo       *repository.ReservationRepo
	PaymentModes  *repository.PaymentModeRepo
	PublishEvents bool
}

func NewBookingHandler(booking *service.BookingService, slotRepo *repository.SlotRepo, resRepo *repository.ReservationRepo, paymentModes *repository.PaymentModeRepo, publishEvents bool) *BookingHandler {
	if booking == nil || slotRepo == nil || resRepo == nil || paymentModes == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{
		Booking:       booking,
		SlotRepo:      slotRepo,
		ResRepo:       resRepo,
		PaymentModes:  paymentModes,
		PublishEvents: publishEvents,
	}
}

// NextAvailable handles GET /v1/slots/next-available. Query params
// tower_id and block_id narrow the scope; exclude is a comma-separated
// list of slot ids the caller has already seen and rejected.
func (h *BookingHandler) NextAvailable(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var scope repository.Scope
	if raw := c.QueryParam("tower_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tower_id"})
		}
		scope.TowerID = id
	}
	if raw := c.QueryParam("block_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block_id"})
		}
		scope.BlockID = id
	}
	exclude := parseExclude(c.QueryParam("exclude"))
	slot, err := h.Booking.NextAvailable(c.Request().Context(), tenantID, scope, exclude)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no available slot in scope"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to find a slot"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": slot})
}

// CheckSlot handles GET /v1/slots/:code. The response is a snapshot:
// only the reserve path's post-lock check decides who gets the slot.
func (h *BookingHandler) CheckSlot(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot code is required"})
	}
	view, err := h.Booking.CheckAvailability(c.Request().Context(), tenantID, code)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slot"})
	}
	return c.JSON(http.StatusOK, view)
}

// Reserve handles POST /v1/reservations.
func (h *BookingHandler) Reserve(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SlotID        uint64 `json:"slot_id"`
		HolderName    string `json:"holder_name"`
		HolderContact string `json:"holder_contact"`
		StartsOn      string `json:"starts_on"`
		EndsOn        string `json:"ends_on"`
		AmountCents   uint32 `json:"amount_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	receipt, err := h.Booking.Reserve(c.Request().Context(), service.ReserveCommand{
		TenantID:      tenantID,
		SlotID:        body.SlotID,
		UserID:        userID,
		HolderName:    body.HolderName,
		HolderContact: body.HolderContact,
		StartsOn:      body.StartsOn,
		EndsOn:        body.EndsOn,
		AmountCents:   body.AmountCents,
	})
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, receipt)
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		PaymentModeID uint64 `json:"payment_mode_id"`
		PaymentRef    string `json:"payment_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Booking.Confirm(c.Request().Context(), service.ConfirmCommand{
		TenantID:      tenantID,
		ReservationID: reservationID,
		PaymentModeID: body.PaymentModeID,
		PaymentRef:    body.PaymentRef,
	})
	if err != nil {
		return bookingError(c, err)
	}
	if h.PublishEvents {
		go h.publishBooked(res.TenantID, res.ID, res.Ref, res.SlotID, res.HolderName,
			res.StartsOn, res.EndsOn, res.AmountCents, body.PaymentModeID, body.PaymentRef)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Booking.Cancel(c.Request().Context(), service.CancelCommand{
		TenantID:      tenantID,
		ReservationID: reservationID,
		Reason:        body.Reason,
		Actor:         actorName(c),
	})
	if err != nil {
		return bookingError(c, err)
	}
	if h.PublishEvents {
		reason, actor := "", ""
		if res.CancelReason != nil {
			reason = *res.CancelReason
		}
		if res.CancelledBy != nil {
			actor = *res.CancelledBy
		}
		go h.publishReleased(res.TenantID, res.ID, res.SlotID, "cancelled", reason, actor)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// GetReservation handles GET /v1/reservations/:id. Members may only see
// their own reservations; admins may see any in the tenant.
func (h *BookingHandler) GetReservation(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.ResRepo.GetByID(c.Request().Context(), tenantID, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if role, _ := c.Get("role").(string); role != "ADMIN" {
		userID, err := getUserID(c)
		if err != nil || res.UserID != userID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// MyReservations handles GET /v1/my-reservations.
func (h *BookingHandler) MyReservations(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.ResRepo.ListByUser(c.Request().Context(), tenantID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListPaymentModes handles GET /v1/payment-modes.
func (h *BookingHandler) ListPaymentModes(c echo.Context) error {
	items, err := h.PaymentModes.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payment modes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// publishBooked assembles and publishes the booked event. Publishing is
// decoupled from the HTTP response: a broker outage must not fail a
// committed confirmation.
func (h *BookingHandler) publishBooked(tenantID, reservationID uint64, ref string, slotID uint64, holderName string, startsOn, endsOn time.Time, amountCents uint32, paymentModeID uint64, paymentRef string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slotCode := ""
	if slot, err := h.SlotRepo.GetByID(ctx, tenantID, slotID); err == nil {
		slotCode = slot.Code
	}
	modeName := ""
	if mode, err := h.PaymentModes.GetByID(ctx, paymentModeID); err == nil {
		modeName = mode.Name
	}
	err := queue.PublishLampBooked(ctx, queue.LampBookedEvent{
		ReservationID: reservationID,
		Ref:           ref,
		TenantID:      tenantID,
		SlotID:        slotID,
		SlotCode:      slotCode,
		HolderName:    holderName,
		StartsOn:      startsOn.Format("2006-01-02"),
		EndsOn:        endsOn.Format("2006-01-02"),
		AmountCents:   amountCents,
		PaymentMode:   modeName,
		PaymentRef:    paymentRef,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("publish booked event for reservation %d: %v", reservationID, err)
	}
}

func (h *BookingHandler) publishReleased(tenantID, reservationID, slotID uint64, cause, reason, actor string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slotCode := ""
	if slot, err := h.SlotRepo.GetByID(ctx, tenantID, slotID); err == nil {
		slotCode = slot.Code
	}
	err := queue.PublishLampReleased(ctx, queue.LampReleasedEvent{
		ReservationID: reservationID,
		TenantID:      tenantID,
		SlotID:        slotID,
		SlotCode:      slotCode,
		Cause:         cause,
		Reason:        reason,
		Actor:         actor,
		ReleasedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("publish released event for reservation %d: %v", reservationID, err)
	}
}

// bookingError maps service and repository errors onto HTTP statuses.
func bookingError(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error()})
	case errors.Is(err, repository.ErrSlotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, repository.ErrPaymentModeNotFound):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment mode"})
	case errors.Is(err, repository.ErrSlotUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot is no longer available"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not in a state that allows this"})
	case errors.Is(err, repository.ErrReservationExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "reservation lease has expired"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrLockTimeout):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "slot is busy, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
