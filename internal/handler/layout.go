package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/minghsiao/lamp-reservation/internal/model"
	"github.com/minghsiao/lamp-reservation/internal/repository"
)

// LayoutHandler groups the repositories needed to administer the
// physical layout: towers, blocks, row definitions and slot generation.
// All methods assume JWT authentication and the ADMIN role have been
// enforced by middleware. Structural mutations (rows, generation,
// retirement) run inside a transaction so their guards and their writes
// commit together.
type LayoutHandler struct {
	TowerRepo *repository.TowerRepo
	BlockRepo *repository.BlockRepo
	RowRepo   *repository.RowRepo
	SlotRepo  *repository.SlotRepo
}

// NewLayoutHandler constructs a LayoutHandler with the provided
// repositories. All dependencies must be non-nil.
func NewLayoutHandler(towerRepo *repository.TowerRepo, blockRepo *repository.BlockRepo, rowRepo *repository.RowRepo, slotRepo *repository.SlotRepo) *LayoutHandler {
	if towerRepo == nil || blockRepo == nil || rowRepo == nil || slotRepo == nil {
		panic("nil repository passed to NewLayoutHandler")
	}
	return &LayoutHandler{
		TowerRepo: towerRepo,
		BlockRepo: blockRepo,
		RowRepo:   rowRepo,
		SlotRepo:  slotRepo,
	}
}

// CreateTower handles POST /v1/towers.
func (h *LayoutHandler) CreateTower(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Code = strings.ToUpper(strings.TrimSpace(body.Code))
	if body.Code == "" || strings.TrimSpace(body.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and name are required"})
	}
	t := &model.Tower{TenantID: tenantID, Code: body.Code, Name: body.Name, Location: body.Location}
	if err := h.TowerRepo.Create(c.Request().Context(), t); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create tower"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": t})
}

// ListTowers handles GET /v1/towers.
func (h *LayoutHandler) ListTowers(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	towers, err := h.TowerRepo.ListByTenant(c.Request().Context(), tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load towers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": towers})
}

// CreateBlock handles POST /v1/towers/:id/blocks.
func (h *LayoutHandler) CreateBlock(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	towerID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tower id"})
	}
	if _, err := h.TowerRepo.GetByID(c.Request().Context(), tenantID, towerID); err != nil {
		if errors.Is(err, repository.ErrTowerNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "tower not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	var body struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Code = strings.ToUpper(strings.TrimSpace(body.Code))
	if body.Code == "" || strings.TrimSpace(body.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and name are required"})
	}
	b := &model.Block{TenantID: tenantID, TowerID: towerID, Code: body.Code, Name: body.Name}
	if err := h.BlockRepo.Create(c.Request().Context(), b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create block"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": b})
}

// ListBlocks handles GET /v1/towers/:id/blocks.
func (h *LayoutHandler) ListBlocks(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	towerID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tower id"})
	}
	blocks, err := h.BlockRepo.ListByTower(c.Request().Context(), tenantID, towerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load blocks"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": blocks})
}

// DefineRows handles PUT /v1/blocks/:id/rows. It replaces the block's
// row definitions wholesale. The replacement is rejected with 409 once
// any slot has been generated: the layout is structurally immutable
// from that point.
func (h *LayoutHandler) DefineRows(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	blockID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block id"})
	}
	var body struct {
		Rows []struct {
			Capacity   uint32 `json:"capacity"`
			PriceCents uint32 `json:"price_cents"`
		} `json:"rows"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Rows) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rows is required"})
	}
	rows := make([]model.Row, 0, len(body.Rows))
	for _, r := range body.Rows {
		if r.Capacity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "row capacity must be positive"})
		}
		rows = append(rows, model.Row{Capacity: r.Capacity, PriceCents: r.PriceCents})
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
	if _, err := h.BlockRepo.GetByIDTx(ctx, tx, tenantID, blockID); err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	n, err := h.SlotRepo.CountActiveByBlockTx(ctx, tx, tenantID, blockID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check existing slots"})
	}
	if n > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrLayoutFrozen.Error()})
	}
	if err := h.RowRepo.ReplaceTx(ctx, tx, tenantID, blockID, rows); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save rows"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"rows": len(rows)})
}

// ListRows handles GET /v1/blocks/:id/rows.
func (h *LayoutHandler) ListRows(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	blockID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block id"})
	}
	rows, err := h.RowRepo.ListByBlock(c.Request().Context(), tenantID, blockID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rows"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": rows})
}

// GenerateSlots handles POST /v1/blocks/:id/slots/generate. For every
// row it creates one slot per position 1..capacity with a deterministic
// code. Generation is one-shot: a second call is rejected with 409
// rather than regenerating, and slot counts always equal the sum of the
// declared capacities.
func (h *LayoutHandler) GenerateSlots(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	blockID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block id"})
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
	block, err := h.BlockRepo.GetByIDTx(ctx, tx, tenantID, blockID)
	if err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	existing, err := h.SlotRepo.CountActiveByBlockTx(ctx, tx, tenantID, blockID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check existing slots"})
	}
	if existing > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrSlotsExist.Error()})
	}
	rows, err := h.RowRepo.ListByBlockTx(ctx, tx, tenantID, blockID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rows"})
	}
	if len(rows) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": repository.ErrRowsUndefined.Error()})
	}
	var slots []model.Slot
	for _, row := range rows {
		for pos := uint32(1); pos <= row.Capacity; pos++ {
			slots = append(slots, model.Slot{
				TenantID:   tenantID,
				BlockID:    blockID,
				RowID:      row.ID,
				RowNo:      row.RowNo,
				Position:   pos,
				Code:       model.SlotCode(block.Code, row.RowNo, pos),
				PriceCents: row.PriceCents,
			})
		}
	}
	if err := h.SlotRepo.CreateBulkTx(ctx, tx, slots); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create slots"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{"generated": len(slots)})
}

// RetireSlots handles DELETE /v1/blocks/:id/slots. Retirement is a
// destructive structural change, so it requires the block to be entirely
// free: any RESERVED or BOOKED slot rejects the request with 409. Slots
// are marked RETIRED rather than deleted, and every registry query
// filters them out.
func (h *LayoutHandler) RetireSlots(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	blockID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block id"})
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
	claimed, err := h.SlotRepo.CountClaimedByBlockTx(ctx, tx, tenantID, blockID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check slot claims"})
	}
	if claimed > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "block has reserved or booked slots"})
	}
	n, err := h.SlotRepo.RetireByBlockTx(ctx, tx, tenantID, blockID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retire slots"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"retired": n})
}
