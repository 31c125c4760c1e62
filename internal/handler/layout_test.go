package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghsiao/lamp-reservation/internal/model"
	"github.com/minghsiao/lamp-reservation/internal/repository"
)

func setupLayoutHandler(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *LayoutHandler) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewLayoutHandler(
		repository.NewTowerRepo(db),
		repository.NewBlockRepo(db),
		repository.NewRowRepo(db),
		repository.NewSlotRepo(db),
	)
	return db, mock, h
}

func adminContext(t *testing.T, method, path, body string, paramName, paramValue string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if paramName != "" {
		c.SetParamNames(paramName)
		c.SetParamValues(paramValue)
	}
	c.Set("tenant_id", uint64(1))
	c.Set("user_id", uint64(3))
	c.Set("role", "ADMIN")
	return c, rec
}

func blockRows(id uint64, code string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "tenant_id", "tower_id", "code", "name", "created_at", "updated_at"}).
		AddRow(id, 1, 5, code, "East Wing", now, now)
}

// Generating from rows with capacities 3 and 2 must produce exactly five
// slots with deterministic codes.
func TestGenerateSlots_ExpandsRowCapacities(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM blocks`).
		WithArgs(uint64(7), uint64(1)).
		WillReturnRows(blockRows(7, "EAST"))
	mock.ExpectQuery(`COUNT`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM lamp_rows`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "block_id", "row_no", "capacity", "price_cents", "created_at"}).
			AddRow(3, 1, 7, 1, 3, 50000, now).
			AddRow(4, 1, 7, 2, 2, 30000, now))
	mock.ExpectExec(`INSERT INTO lamp_slots`).
		WithArgs(
			uint64(1), uint64(7), uint64(3), uint32(1), uint32(1), "EAST-01-001", model.SlotAvailable, uint32(50000),
			uint64(1), uint64(7), uint64(3), uint32(1), uint32(2), "EAST-01-002", model.SlotAvailable, uint32(50000),
			uint64(1), uint64(7), uint64(3), uint32(1), uint32(3), "EAST-01-003", model.SlotAvailable, uint32(50000),
			uint64(1), uint64(7), uint64(4), uint32(2), uint32(1), "EAST-02-001", model.SlotAvailable, uint32(30000),
			uint64(1), uint64(7), uint64(4), uint32(2), uint32(2), "EAST-02-002", model.SlotAvailable, uint32(30000),
		).
		WillReturnResult(sqlmock.NewResult(1, 5))
	mock.ExpectCommit()

	c, rec := adminContext(t, http.MethodPost, "/v1/blocks/7/slots/generate", "", "id", "7")
	require.NoError(t, h.GenerateSlots(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp["generated"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSlots_SecondGenerationRejected(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM blocks`).
		WithArgs(uint64(7), uint64(1)).
		WillReturnRows(blockRows(7, "EAST"))
	mock.ExpectQuery(`COUNT`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	c, rec := adminContext(t, http.MethodPost, "/v1/blocks/7/slots/generate", "", "id", "7")
	require.NoError(t, h.GenerateSlots(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSlots_NoRowsDefined(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM blocks`).
		WithArgs(uint64(7), uint64(1)).
		WillReturnRows(blockRows(7, "EAST"))
	mock.ExpectQuery(`COUNT`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM lamp_rows`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "block_id", "row_no", "capacity", "price_cents", "created_at"}))
	mock.ExpectRollback()

	c, rec := adminContext(t, http.MethodPost, "/v1/blocks/7/slots/generate", "", "id", "7")
	require.NoError(t, h.GenerateSlots(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Row definitions freeze once slots exist: the count check and the
// replacement run in one transaction.
func TestDefineRows_FrozenAfterGeneration(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM blocks`).
		WithArgs(uint64(7), uint64(1)).
		WillReturnRows(blockRows(7, "EAST"))
	mock.ExpectQuery(`COUNT`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	body := `{"rows":[{"capacity":3,"price_cents":50000}]}`
	c, rec := adminContext(t, http.MethodPut, "/v1/blocks/7/rows", body, "id", "7")
	require.NoError(t, h.DefineRows(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefineRows_ReplacesDefinitions(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM blocks`).
		WithArgs(uint64(7), uint64(1)).
		WillReturnRows(blockRows(7, "EAST"))
	mock.ExpectQuery(`COUNT`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM lamp_rows`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO lamp_rows`).
		WithArgs(
			uint64(1), uint64(7), 1, uint32(3), uint32(50000),
			uint64(1), uint64(7), 2, uint32(2), uint32(30000),
		).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	body := `{"rows":[{"capacity":3,"price_cents":50000},{"capacity":2,"price_cents":30000}]}`
	c, rec := adminContext(t, http.MethodPut, "/v1/blocks/7/rows", body, "id", "7")
	require.NoError(t, h.DefineRows(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefineRows_ZeroCapacityRejected(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	body := `{"rows":[{"capacity":0,"price_cents":50000}]}`
	c, rec := adminContext(t, http.MethodPut, "/v1/blocks/7/rows", body, "id", "7")
	require.NoError(t, h.DefineRows(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetireSlots_RejectedWhileClaimed(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`COUNT`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	c, rec := adminContext(t, http.MethodDelete, "/v1/blocks/7/slots", "", "id", "7")
	require.NoError(t, h.RetireSlots(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetireSlots_MarksBlockRetired(t *testing.T) {
	db, mock, h := setupLayoutHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`COUNT`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE lamp_slots SET status = 'RETIRED'`).
		WithArgs(uint64(1), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	c, rec := adminContext(t, http.MethodDelete, "/v1/blocks/7/slots", "", "id", "7")
	require.NoError(t, h.RetireSlots(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp["retired"])
	require.NoError(t, mock.ExpectationsWereMet())
}
