package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/events"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	itemID = "5f1e3c71-99cc-45a3-9f3e-0a4c2c6f2b11"
	actor  = "11111111-1111-1111-1111-111111111111"
)

func newConsumptionService(t *testing.T) (*service.ConsumptionService, *testutil.MockDB, *testutil.MockPublisher) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "development")
	db := database.FromSqlx(mockDB.DB, log)
	mockPub := testutil.NewMockPublisher()
	publisher := events.NewStockEventPublisherWith(mockPub, log)

	svc := service.NewConsumptionService(repository.NewConsumptionRepository(db), publisher, log)
	return svc, mockDB, mockPub
}

func itemRow(quantity float64, location string) *sqlmock.Rows {
	now := time.Now()
	columns := []string{
		"id", "product_name", "lot_number", "item_kind", "quantity", "unit", "location_code",
		"blocked", "block_reason", "blocked_by", "blocked_at", "expiry_date", "created_at", "updated_at",
	}
	return sqlmock.NewRows(columns).AddRow(
		itemID, "Wheat Flour T550", "LOT-42", "raw_material", quantity, "kg", location,
		false, nil, nil, nil, nil, now, now,
	)
}

func TestConsume_PublishesRecordedEvent(t *testing.T) {
	svc, mockDB, mockPub := newConsumptionService(t)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM consumption_records WHERE id = .* FOR UPDATE").
		WillReturnError(sql.ErrNoRows)
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(100, "MS01"))
	mockDB.Mock.ExpectQuery("SELECT sl.location_code").
		WillReturnRows(sqlmock.NewRows([]string{"location_code"}))
	mockDB.Mock.ExpectExec("UPDATE stock_items SET quantity").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery("INSERT INTO consumption_records").
		WillReturnRows(sqlmock.NewRows([]string{"consumed_at"}).AddRow(time.Now()))
	mockDB.Mock.ExpectQuery("INSERT INTO location_history").
		WillReturnRows(sqlmock.NewRows([]string{"id", "moved_at"}).AddRow(int64(1), time.Now()))
	mockDB.Mock.ExpectCommit()

	result, err := svc.Consume(context.Background(), repository.ConsumeRequest{
		BatchID:  "batch-B1",
		ItemID:   itemID,
		Quantity: 30,
		Context:  domain.ContextProduction,
		Actor:    actor,
	})

	require.NoError(t, err)
	require.True(t, result.Success)
	mockPub.AssertEventPublished(t, messaging.EventConsumptionRecorded)
	mockDB.ExpectationsWereMet(t)
}

func TestConsume_ArchivalAlsoPublishesArchivedEvent(t *testing.T) {
	svc, mockDB, mockPub := newConsumptionService(t)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM consumption_records WHERE id = .* FOR UPDATE").
		WillReturnError(sql.ErrNoRows)
	mockDB.Mock.ExpectQuery("FROM stock_items WHERE id = .* FOR UPDATE").
		WillReturnRows(itemRow(50, "MS01"))
	mockDB.Mock.ExpectQuery("SELECT sl.location_code").
		WillReturnRows(sqlmock.NewRows([]string{"location_code"}))
	mockDB.Mock.ExpectExec("UPDATE stock_items SET quantity").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectExec("UPDATE stock_items SET location_code").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery("INSERT INTO consumption_records").
		WillReturnRows(sqlmock.NewRows([]string{"consumed_at"}).AddRow(time.Now()))
	mockDB.Mock.ExpectQuery("INSERT INTO location_history").
		WillReturnRows(sqlmock.NewRows([]string{"id", "moved_at"}).AddRow(int64(1), time.Now()))
	mockDB.Mock.ExpectCommit()

	result, err := svc.Consume(context.Background(), repository.ConsumeRequest{
		BatchID:  "batch-B2",
		ItemID:   itemID,
		Quantity: 80,
		Context:  domain.ContextProduction,
		Actor:    actor,
	})

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, domain.LocationArchived, result.Item.LocationCode)
	mockPub.AssertEventPublished(t, messaging.EventConsumptionRecorded)
	mockPub.AssertEventPublished(t, messaging.EventItemArchived)
}

func TestConsume_DuplicateDoesNotRepublish(t *testing.T) {
	svc, mockDB, mockPub := newConsumptionService(t)

	recordColumns := []string{
		"id", "batch_id", "item_id", "product_name", "requested_quantity", "consumed_quantity",
		"clamped", "archived_item", "source_location", "is_annulled", "is_adjustment",
		"performed_by", "consumed_at", "annulled_by", "annulled_at",
	}
	existing := sqlmock.NewRows(recordColumns).AddRow(
		"cons-1", "batch-B1", itemID, "Wheat Flour T550", 30.0, 30.0,
		false, false, "MS01", false, false, actor, time.Now(), nil, nil,
	)

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectQuery("FROM consumption_records WHERE id = .* FOR UPDATE").
		WillReturnRows(existing)
	mockDB.Mock.ExpectCommit()

	result, err := svc.Consume(context.Background(), repository.ConsumeRequest{
		ConsumptionID: "cons-1",
		BatchID:       "batch-B1",
		ItemID:        itemID,
		Quantity:      30,
		Context:       domain.ContextProduction,
		Actor:         actor,
	})

	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	mockPub.AssertNoEventsPublished(t)
}
