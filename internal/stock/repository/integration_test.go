package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if !testing.Short() {
		ctx := context.Background()
		var err error
		suite, err = testutil.NewIntegrationSuite(ctx)
		if err != nil {
			log.Fatalf("failed to create integration suite: %v", err)
		}
		defer testutil.TerminateContainer(ctx)
	}
	os.Exit(m.Run())
}

func insertItem(t *testing.T, ctx context.Context, quantity float64, location string) string {
	t.Helper()
	id, err := testutil.InsertStockItem(ctx, suite.RawDB, "Wheat Flour T550", "LOT-42", "raw_material", quantity, location)
	require.NoError(t, err)
	return id
}

// --- Consume / Annul flow ---

func TestConsumptionFlow_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	itemRepo := repository.NewItemRepository(suite.DB)
	repo := repository.NewConsumptionRepository(suite.DB)
	id := insertItem(t, ctx, 100, "MS01")

	// Partial consumption debits the item.
	result, err := repo.Consume(ctx, repository.ConsumeRequest{
		BatchID:  "batch-B1",
		ItemID:   id,
		Quantity: 30,
		Context:  domain.ContextProduction,
		Actor:    testutil.TestActorID,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 70.0, result.Item.Quantity)

	// Retrying the same consumption ID does not debit again.
	retry, err := repo.Consume(ctx, repository.ConsumeRequest{
		ConsumptionID: result.Record.ID,
		BatchID:       "batch-B1",
		ItemID:        id,
		Quantity:      30,
		Context:       domain.ContextProduction,
		Actor:         testutil.TestActorID,
	})
	require.NoError(t, err)
	assert.True(t, retry.Duplicate)

	item, err := itemRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 70.0, item.Quantity)

	// Annulment restores the quantity, the record stays flagged.
	record, item, err := repo.Annul(ctx, result.Record.ID, testutil.TestActorID)
	require.NoError(t, err)
	assert.True(t, record.IsAnnulled)
	assert.Equal(t, 100.0, item.Quantity)

	// A second annulment is rejected.
	_, _, err = repo.Annul(ctx, result.Record.ID, testutil.TestActorID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyAnnulled))

	// Over-consumption clamps to available and archives the item.
	clamped, err := repo.Consume(ctx, repository.ConsumeRequest{
		BatchID:  "batch-B2",
		ItemID:   id,
		Quantity: 150,
		Context:  domain.ContextProduction,
		Actor:    testutil.TestActorID,
	})
	require.NoError(t, err)
	require.True(t, clamped.Success)
	assert.True(t, clamped.Clamped)
	assert.Equal(t, 100.0, clamped.ConsumedQuantity)
	assert.Equal(t, domain.LocationArchived, clamped.Item.LocationCode)

	// Annulling the archiving consumption revives the item in place.
	_, revived, err := repo.Annul(ctx, clamped.Record.ID, testutil.TestActorID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, revived.Quantity)
	assert.Equal(t, "MS01", revived.LocationCode)

	// Every step left a ledger entry, oldest first.
	history, err := itemRepo.GetHistory(ctx, id)
	require.NoError(t, err)
	actions := make([]domain.LedgerAction, len(history))
	for i, entry := range history {
		actions[i] = entry.Action
	}
	assert.Equal(t, []domain.LedgerAction{
		domain.ActionReceived,
		domain.ActionConsumedInProduction,
		domain.ActionConsumptionAnnulled,
		domain.ActionConsumedAndArchived,
		domain.ActionConsumptionAnnulled,
	}, actions)
}

func TestConsume_BlockedItem_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	itemRepo := repository.NewItemRepository(suite.DB)
	repo := repository.NewConsumptionRepository(suite.DB)
	id := insertItem(t, ctx, 100, "MS01")

	_, err := itemRepo.Block(ctx, id, "moisture out of range", testutil.TestActorID)
	require.NoError(t, err)

	result, err := repo.Consume(ctx, repository.ConsumeRequest{
		BatchID:  "batch-B1",
		ItemID:   id,
		Quantity: 10,
		Context:  domain.ContextProduction,
		Actor:    testutil.TestActorID,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "moisture out of range")

	_, err = itemRepo.Unblock(ctx, id, "lab released", testutil.TestActorID, nil)
	require.NoError(t, err)

	result, err = repo.Consume(ctx, repository.ConsumeRequest{
		BatchID:  "batch-B1",
		ItemID:   id,
		Quantity: 10,
		Context:  domain.ContextProduction,
		Actor:    testutil.TestActorID,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

// --- Blind count session flow ---

func TestSessionFlow_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	itemRepo := repository.NewItemRepository(suite.DB)
	consumptionRepo := repository.NewConsumptionRepository(suite.DB)
	sessionRepo := repository.NewSessionRepository(suite.DB)

	item1 := insertItem(t, ctx, 100, "MS01")
	item2 := insertItem(t, ctx, 50, "MS02")
	thresholds := domain.DefaultThresholds()

	session, err := sessionRepo.Create(ctx, "weekly count", []string{"MS01", "MS02"}, testutil.TestActorID)
	require.NoError(t, err)

	// Locations under count are locked against moves and consumption.
	moveResult, err := itemRepo.Move(ctx, item1, "MS03", "", "", testutil.TestActorID)
	require.NoError(t, err)
	assert.False(t, moveResult.Success)

	consumeResult, err := consumptionRepo.Consume(ctx, repository.ConsumeRequest{
		BatchID:  "batch-B1",
		ItemID:   item1,
		Quantity: 10,
		Context:  domain.ContextProduction,
		Actor:    testutil.TestActorID,
	})
	require.NoError(t, err)
	assert.False(t, consumeResult.Success)

	// A count within tolerance commits directly.
	scan, err := sessionRepo.RecordScan(ctx, repository.ScanRequest{
		SessionID:       session.ID,
		LocationCode:    "MS01",
		ItemID:          item1,
		CountedQuantity: 99.8,
		Actor:           testutil.TestActorID,
	}, thresholds)
	require.NoError(t, err)
	assert.True(t, scan.Committed)

	// A count beyond tolerance is held back until forced.
	scan, err = sessionRepo.RecordScan(ctx, repository.ScanRequest{
		SessionID:       session.ID,
		LocationCode:    "MS02",
		ItemID:          item2,
		CountedQuantity: 45,
		Actor:           testutil.TestActorID,
	}, thresholds)
	require.NoError(t, err)
	assert.True(t, scan.RecountNeeded)
	assert.False(t, scan.Committed)

	scan, err = sessionRepo.RecordScan(ctx, repository.ScanRequest{
		SessionID:       session.ID,
		LocationCode:    "MS02",
		ItemID:          item2,
		CountedQuantity: 45,
		Force:           true,
		Actor:           testutil.TestActorID,
	}, thresholds)
	require.NoError(t, err)
	assert.True(t, scan.Committed)

	// Completion requires every location to be finished.
	_, err = sessionRepo.Complete(ctx, session.ID, testutil.TestActorID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	require.NoError(t, sessionRepo.FinishLocation(ctx, session.ID, "MS01", testutil.TestActorID))
	require.NoError(t, sessionRepo.FinishLocation(ctx, session.ID, "MS02", testutil.TestActorID))

	report, err := sessionRepo.Complete(ctx, session.ID, testutil.TestActorID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ItemsCounted)
	assert.InDelta(t, -5.2, report.NetDelta, 0.0001)

	// A finished location releases its lock once the session closes.
	moveResult, err = itemRepo.Move(ctx, item1, "MS03", "", "", testutil.TestActorID)
	require.NoError(t, err)
	assert.True(t, moveResult.Success)

	// Applying the adjustments corrects stock and records shortfalls.
	applied, err := sessionRepo.ApplyAdjustments(ctx, session.ID, testutil.TestActorID)
	require.NoError(t, err)
	require.Len(t, applied, 2)

	corrected, err := itemRepo.GetByID(ctx, item2)
	require.NoError(t, err)
	assert.Equal(t, 45.0, corrected.Quantity)

	// Applying twice is rejected.
	_, err = sessionRepo.ApplyAdjustments(ctx, session.ID, testutil.TestActorID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestReceiveAndAnnulDuringCount_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	itemRepo := repository.NewItemRepository(suite.DB)
	consumptionRepo := repository.NewConsumptionRepository(suite.DB)
	sessionRepo := repository.NewSessionRepository(suite.DB)

	id := insertItem(t, ctx, 100, "MS01")
	consumed, err := consumptionRepo.Consume(ctx, repository.ConsumeRequest{
		BatchID:  "batch-B1",
		ItemID:   id,
		Quantity: 30,
		Context:  domain.ContextProduction,
		Actor:    testutil.TestActorID,
	})
	require.NoError(t, err)
	require.True(t, consumed.Success)

	session, err := sessionRepo.Create(ctx, "spot check", []string{"MS01"}, testutil.TestActorID)
	require.NoError(t, err)

	// Receiving stock onto a location mid-count is refused like any other
	// mutation there.
	err = itemRepo.Create(ctx, &domain.StockItem{
		ProductName:  "Wheat Flour T550",
		LotNumber:    "LOT-43",
		ItemKind:     domain.ItemKindRawMaterial,
		Quantity:     500,
		LocationCode: "MS01",
	}, testutil.TestActorID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionLock))

	// The virtual markers never accept received stock.
	err = itemRepo.Create(ctx, &domain.StockItem{
		ProductName:  "Wheat Flour T550",
		LotNumber:    "LOT-44",
		ItemKind:     domain.ItemKindRawMaterial,
		Quantity:     500,
		LocationCode: domain.LocationArchived,
	}, testutil.TestActorID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	// Annulment mid-count would credit quantity back under a captured
	// expected value, so it is refused until the count releases the lock.
	_, _, err = consumptionRepo.Annul(ctx, consumed.Record.ID, testutil.TestActorID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionLock))

	scan, err := sessionRepo.RecordScan(ctx, repository.ScanRequest{
		SessionID:       session.ID,
		LocationCode:    "MS01",
		ItemID:          id,
		CountedQuantity: 70,
		Actor:           testutil.TestActorID,
	}, domain.DefaultThresholds())
	require.NoError(t, err)
	require.True(t, scan.Committed)
	require.NoError(t, sessionRepo.FinishLocation(ctx, session.ID, "MS01", testutil.TestActorID))
	_, err = sessionRepo.Complete(ctx, session.ID, testutil.TestActorID)
	require.NoError(t, err)

	// With the session closed the annulment goes through.
	_, item, err := consumptionRepo.Annul(ctx, consumed.Record.ID, testutil.TestActorID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, item.Quantity)
}

func TestSessionReopen_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	sessionRepo := repository.NewSessionRepository(suite.DB)
	id := insertItem(t, ctx, 100, "MS01")
	thresholds := domain.DefaultThresholds()

	session, err := sessionRepo.Create(ctx, "recount drill", []string{"MS01"}, testutil.TestActorID)
	require.NoError(t, err)

	scan, err := sessionRepo.RecordScan(ctx, repository.ScanRequest{
		SessionID:       session.ID,
		LocationCode:    "MS01",
		ItemID:          id,
		CountedQuantity: 100,
		Actor:           testutil.TestActorID,
	}, thresholds)
	require.NoError(t, err)
	require.True(t, scan.Committed)

	require.NoError(t, sessionRepo.FinishLocation(ctx, session.ID, "MS01", testutil.TestActorID))
	current, err := sessionRepo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, current.Locations, 1)
	assert.Equal(t, domain.LocationScanned, current.Locations[0].Status)

	// Scanning into a finished location flips it back to pending and the
	// new count replaces the earlier entry.
	scan, err = sessionRepo.RecordScan(ctx, repository.ScanRequest{
		SessionID:       session.ID,
		LocationCode:    "MS01",
		ItemID:          id,
		CountedQuantity: 99.8,
		Actor:           testutil.TestActorID,
	}, thresholds)
	require.NoError(t, err)
	require.True(t, scan.Committed)

	current, err = sessionRepo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LocationPending, current.Locations[0].Status)

	// Manual reopening works the same way.
	require.NoError(t, sessionRepo.FinishLocation(ctx, session.ID, "MS01", testutil.TestActorID))
	require.NoError(t, sessionRepo.ReopenLocation(ctx, session.ID, "MS01"))
	current, err = sessionRepo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LocationPending, current.Locations[0].Status)

	// A reopened location blocks completion until finished again.
	_, err = sessionRepo.Complete(ctx, session.ID, testutil.TestActorID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	require.NoError(t, sessionRepo.FinishLocation(ctx, session.ID, "MS01", testutil.TestActorID))
	report, err := sessionRepo.Complete(ctx, session.ID, testutil.TestActorID)
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.Equal(t, 1, report.ItemsCounted)
	assert.InDelta(t, 99.8, report.Lines[0].CountedQuantity, 0.0001, "the re-scan replaced the first count")
}

// --- Planning read model ---

func TestReservations_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	itemRepo := repository.NewItemRepository(suite.DB)
	orderRepo := repository.NewOrderRepository(suite.DB)

	insertItem(t, ctx, 200, "BIN-01")
	_, err := testutil.InsertBlockedStockItem(ctx, suite.RawDB, "Wheat Flour T550", 50, "BIN-02", "damaged")
	require.NoError(t, err)

	recipeID, err := testutil.InsertRecipe(ctx, suite.RawDB, "white bread", 100, map[string]float64{
		"Wheat Flour T550": 60,
		"Water":            35,
	})
	require.NoError(t, err)
	_, err = testutil.InsertPlannedOrder(ctx, suite.RawDB, recipeID, 200)
	require.NoError(t, err)

	orders, err := orderRepo.ListPlanned(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	recipes, err := orderRepo.RecipesByID(ctx, orders)
	require.NoError(t, err)
	require.Contains(t, recipes, recipeID)

	report := domain.ComputeReservations(orders, recipes, domain.DefaultOverageFactor)
	assert.InDelta(t, 126.0, report.Reserved["Wheat Flour T550"], 0.0001)

	// Blocked stock does not count as physical availability.
	physical, err := itemRepo.PhysicalUnblockedStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200.0, physical["Wheat Flour T550"])
	assert.InDelta(t, 74.0, domain.AvailableForPlanning(physical["Wheat Flour T550"], report.Reserved["Wheat Flour T550"]), 0.0001)
}

// --- Split and missing flow ---

func TestSplitAndMissing_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.Reset(t, ctx)

	itemRepo := repository.NewItemRepository(suite.DB)
	id := insertItem(t, ctx, 100, "BIN-01")

	split, err := itemRepo.Split(ctx, id, 40, "MS01", testutil.TestActorID)
	require.NoError(t, err)
	require.True(t, split.Success)
	assert.Equal(t, 60.0, split.Source.Quantity)
	assert.Equal(t, 40.0, split.NewItem.Quantity)

	newHistory, err := itemRepo.GetHistory(ctx, split.NewItem.ID)
	require.NoError(t, err)
	require.Len(t, newHistory, 1)
	assert.Equal(t, domain.ActionSplit, newHistory[0].Action)

	missing, err := itemRepo.MarkMissing(ctx, id, "not on shelf", testutil.TestActorID)
	require.NoError(t, err)
	assert.Equal(t, domain.LocationMissing, missing.LocationCode)

	found, err := itemRepo.MarkFound(ctx, id, "BIN-02", testutil.TestActorID)
	require.NoError(t, err)
	assert.Equal(t, "BIN-02", found.LocationCode)
}
