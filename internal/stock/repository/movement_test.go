package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectLedgerInsert(mockDB *testutil.MockDB) {
	mockDB.Mock.ExpectQuery("INSERT INTO location_history").
		WillReturnRows(sqlmock.NewRows([]string{"id", "moved_at"}).AddRow(int64(1), time.Now()))
}

// --- Move ---

func TestMove_RelocatesAndAppendsLedger(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(100, "BIN-01", false, nil))
	expectNoLockedLocations(mockDB)
	mockDB.Mock.ExpectExec("UPDATE stock_items SET location_code").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectLedgerInsert(mockDB)
	mockDB.Mock.ExpectCommit()

	result, err := repo.Move(context.Background(), itemID, "MS02", "", "", actor)

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "MS02", result.Item.LocationCode)
	mockDB.ExpectationsWereMet(t)
}

func TestMove_BlockedItemRefusedWithoutWrites(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(100, "BIN-01", true, "damaged packaging"))
	expectNoLockedLocations(mockDB)
	mockDB.Mock.ExpectCommit()

	result, err := repo.Move(context.Background(), itemID, "MS02", "", "", actor)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "damaged packaging")
	mockDB.ExpectationsWereMet(t)
}

func TestMove_TargetUnderCountRefused(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(100, "BIN-01", false, nil))
	mockDB.Mock.ExpectQuery("SELECT sl.location_code").
		WillReturnRows(sqlmock.NewRows([]string{"location_code"}).AddRow("MS02"))
	mockDB.Mock.ExpectCommit()

	result, err := repo.Move(context.Background(), itemID, "MS02", "", "", actor)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "inventory count")
	mockDB.ExpectationsWereMet(t)
}

func TestMove_UnknownItemNotFound(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(itemRowColumns()))
	mockDB.Mock.ExpectRollback()

	_, err := repo.Move(context.Background(), itemID, "MS02", "", "", actor)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

// --- Split ---

func TestSplit_CreatesNewItemAndTwoLedgerEntries(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(100, "BIN-01", false, nil))
	expectNoLockedLocations(mockDB)
	mockDB.Mock.ExpectExec("UPDATE stock_items SET quantity").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery("INSERT INTO stock_items").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	expectLedgerInsert(mockDB)
	expectLedgerInsert(mockDB)
	mockDB.Mock.ExpectCommit()

	result, err := repo.Split(context.Background(), itemID, 40, "MS02", actor)

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 60.0, result.Source.Quantity)
	assert.Equal(t, 40.0, result.NewItem.Quantity)
	assert.Equal(t, "MS02", result.NewItem.LocationCode)
	assert.Equal(t, result.Source.LotNumber, result.NewItem.LotNumber)
	assert.NotEqual(t, result.Source.ID, result.NewItem.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestSplit_WholeQuantityRefused(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(100, "BIN-01", false, nil))
	expectNoLockedLocations(mockDB)
	mockDB.Mock.ExpectCommit()

	result, err := repo.Split(context.Background(), itemID, 100, "MS02", actor)

	require.NoError(t, err)
	assert.False(t, result.Success, "splitting the whole pallet is a move, not a split")
	mockDB.ExpectationsWereMet(t)
}

// --- MarkMissing / MarkFound ---

func TestMarkMissing_ParksItemOnVirtualLocation(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(100, "BIN-01", false, nil))
	mockDB.Mock.ExpectExec("UPDATE stock_items SET location_code").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectLedgerInsert(mockDB)
	mockDB.Mock.ExpectCommit()

	item, err := repo.MarkMissing(context.Background(), itemID, "not on shelf during pick", actor)

	require.NoError(t, err)
	assert.Equal(t, domain.LocationMissing, item.LocationCode)
	mockDB.ExpectationsWereMet(t)
}

func TestMarkFound_VirtualTargetRejected(t *testing.T) {
	mockDB, db := newTestDB(t)
	repo := repository.NewItemRepository(db)

	_, err := repo.MarkFound(context.Background(), itemID, domain.LocationArchived, actor)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	mockDB.ExpectationsWereMet(t)
}
