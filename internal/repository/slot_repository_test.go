package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghsiao/lamp-reservation/internal/model"
)

func setupSlotRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SlotRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewSlotRepo(db)
}

var slotColumns = []string{
	"id", "tenant_id", "block_id", "row_id", "row_no", "position", "code",
	"status", "price_cents", "is_blocked", "block_reason", "blocked_by", "blocked_at",
	"created_at", "updated_at",
}

func slotRow(id uint64, code, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(slotColumns).AddRow(
		id, 1, 7, 3, 1, 1, code,
		status, 50000, false, nil, nil, nil,
		now, now,
	)
}

func TestCreateBulkTx_InsertsAllSlots(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	slots := []model.Slot{
		{TenantID: 1, BlockID: 7, RowID: 3, RowNo: 1, Position: 1, Code: "EAST-01-001", PriceCents: 50000},
		{TenantID: 1, BlockID: 7, RowID: 3, RowNo: 1, Position: 2, Code: "EAST-01-002", PriceCents: 50000},
		{TenantID: 1, BlockID: 7, RowID: 4, RowNo: 2, Position: 1, Code: "EAST-02-001", PriceCents: 30000},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO lamp_slots`).
		WithArgs(
			uint64(1), uint64(7), uint64(3), uint32(1), uint32(1), "EAST-01-001", model.SlotAvailable, uint32(50000),
			uint64(1), uint64(7), uint64(3), uint32(1), uint32(2), "EAST-01-002", model.SlotAvailable, uint32(50000),
			uint64(1), uint64(7), uint64(4), uint32(2), uint32(1), "EAST-02-001", model.SlotAvailable, uint32(30000),
		).
		WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.CreateBulkTx(context.Background(), tx, slots))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBulkTx_EmptySliceIsNoOp(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.CreateBulkTx(context.Background(), tx, nil))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_FiltersRetired(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectQuery(`FROM lamp_slots`).
		WithArgs(uint64(10), uint64(1)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockByIDTx_TranslatesLockTimeout(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uint64(10), uint64(1)).
		WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectRollback()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	_, err = repo.LockByIDTx(context.Background(), tx, 1, 10)
	assert.ErrorIs(t, err, ErrLockTimeout)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusTx_UnknownSlot(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE lamp_slots SET status`).
		WithArgs(model.SlotReserved, uint64(99), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.SetStatusTx(context.Background(), tx, 1, 99, model.SlotReserved)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextAvailable_ScopeAndExclusion(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectQuery(`NOT IN`).
		WithArgs(uint64(1), uint64(5), uint64(7), uint64(10), uint64(11)).
		WillReturnRows(slotRow(12, "EAST-01-003", model.SlotAvailable))

	slot, err := repo.NextAvailable(context.Background(), 1,
		Scope{TowerID: 5, BlockID: 7}, []uint64{10, 11})

	require.NoError(t, err)
	assert.Equal(t, uint64(12), slot.ID)
	assert.Equal(t, "EAST-01-003", slot.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextAvailable_ScopeExhausted(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectQuery(`FROM lamp_slots`).
		WithArgs(uint64(1)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.NextAvailable(context.Background(), 1, Scope{}, nil)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryByTower(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectQuery(`FROM blocks`).
		WithArgs(uint64(1), uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "name", "available", "reserved", "booked", "blocked", "retired",
		}).
			AddRow(7, "EAST", "East Wing", 3, 1, 1, 1, 0).
			AddRow(8, "WEST", "West Wing", 5, 0, 0, 0, 2))

	items, err := repo.SummaryByTower(context.Background(), 1, 5)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "EAST", items[0].BlockCode)
	assert.Equal(t, uint32(3), items[0].Available)
	assert.Equal(t, uint32(1), items[0].Blocked)
	assert.Equal(t, uint32(2), items[1].Retired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryByBlock_UnknownBlock(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	mock.ExpectQuery(`FROM blocks`).
		WithArgs(uint64(1), uint64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SummaryByBlock(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrBlockNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockTx_RecordsMetadata(t *testing.T) {
	db, mock, repo := setupSlotRepo(t)
	defer db.Close()

	at := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`SET is_blocked = 1`).
		WithArgs("annual cleaning", "user:3", "2026-08-28 09:30:00", uint64(10), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.BlockTx(context.Background(), tx, 1, 10, "annual cleaning", "user:3", at))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
