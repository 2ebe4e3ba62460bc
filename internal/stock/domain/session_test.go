package domain_test

import (
	"testing"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ongoingSession(locations ...domain.SessionLocation) domain.InventorySession {
	return domain.InventorySession{
		ID:        "session-1",
		Name:      "Weekly count hall A",
		Status:    domain.SessionOngoing,
		Locations: locations,
	}
}

// --- EvaluateScan ---

func TestEvaluateScan_WithinToleranceCommits(t *testing.T) {
	decision := domain.EvaluateScan(100, 99.8, domain.DefaultThresholds(), false)

	assert.True(t, decision.Accepted)
	assert.False(t, decision.RecountNeeded)
	assert.InDelta(t, -0.2, decision.Delta, 1e-9)
}

func TestEvaluateScan_LargeDeviationNeedsRecount(t *testing.T) {
	decision := domain.EvaluateScan(100, 90, domain.DefaultThresholds(), false)

	assert.False(t, decision.Accepted)
	assert.True(t, decision.RecountNeeded)
	assert.InDelta(t, -10, decision.Delta, 1e-9)
}

func TestEvaluateScan_ForceOverridesRecount(t *testing.T) {
	decision := domain.EvaluateScan(100, 90, domain.DefaultThresholds(), true)

	assert.True(t, decision.Accepted)
	assert.False(t, decision.RecountNeeded)
}

func TestEvaluateScan_RelativeToleranceDominatesForHeavyItems(t *testing.T) {
	// 2% of 1000kg is 20kg, far above the 0.5kg floor
	decision := domain.EvaluateScan(1000, 985, domain.DefaultThresholds(), false)
	assert.True(t, decision.Accepted)

	decision = domain.EvaluateScan(1000, 975, domain.DefaultThresholds(), false)
	assert.True(t, decision.RecountNeeded)
}

func TestEvaluateScan_AbsoluteFloorForLightItems(t *testing.T) {
	// 2% of 10kg is 0.2kg, so the 0.5kg floor applies
	decision := domain.EvaluateScan(10, 10.4, domain.DefaultThresholds(), false)
	assert.True(t, decision.Accepted)

	decision = domain.EvaluateScan(10, 10.6, domain.DefaultThresholds(), false)
	assert.True(t, decision.RecountNeeded)
}

// --- Session completion ---

func TestCanComplete_AllScanned(t *testing.T) {
	session := ongoingSession(
		domain.SessionLocation{LocationCode: "MS01", Status: domain.LocationScanned},
		domain.SessionLocation{LocationCode: "MS02", Status: domain.LocationScanned},
	)

	assert.True(t, session.CanComplete())
	assert.Empty(t, session.PendingLocations())
}

func TestCanComplete_PendingLocationBlocksCompletion(t *testing.T) {
	session := ongoingSession(
		domain.SessionLocation{LocationCode: "MS01", Status: domain.LocationScanned},
		domain.SessionLocation{LocationCode: "MS02", Status: domain.LocationPending},
	)

	assert.False(t, session.CanComplete())
	assert.Equal(t, []string{"MS02"}, session.PendingLocations())
}

func TestCanComplete_CompletedSessionCannotCompleteAgain(t *testing.T) {
	session := ongoingSession(
		domain.SessionLocation{LocationCode: "MS01", Status: domain.LocationScanned},
	)
	session.Status = domain.SessionCompleted

	assert.False(t, session.CanComplete())
}

func TestHasLocation(t *testing.T) {
	session := ongoingSession(
		domain.SessionLocation{LocationCode: "MS01", Status: domain.LocationPending},
	)

	assert.True(t, session.HasLocation("MS01"))
	assert.False(t, session.HasLocation("MS09"))
}

// --- Location locks ---

func TestLockedLocations_PendingLocationsOfOngoingSessions(t *testing.T) {
	sessions := []domain.InventorySession{
		ongoingSession(
			domain.SessionLocation{LocationCode: "MS01", Status: domain.LocationPending},
			domain.SessionLocation{LocationCode: "MS02", Status: domain.LocationScanned},
		),
	}

	locked := domain.LockedLocations(sessions)

	assert.True(t, locked["MS01"])
	assert.False(t, locked["MS02"], "a scanned location is released")
}

func TestLockedLocations_CompletedSessionLocksNothing(t *testing.T) {
	session := ongoingSession(
		domain.SessionLocation{LocationCode: "MS01", Status: domain.LocationPending},
	)
	session.Status = domain.SessionCompleted

	locked := domain.LockedLocations([]domain.InventorySession{session})
	assert.Empty(t, locked)
}

// --- Reconciliation report ---

func TestBuildReport(t *testing.T) {
	scans := []domain.SessionScan{
		{ItemID: "item-1", LocationCode: "MS01", ExpectedQuantity: 100, CountedQuantity: 98},
		{ItemID: "item-2", LocationCode: "MS01", ExpectedQuantity: 40, CountedQuantity: 40},
		{ItemID: "item-3", LocationCode: "MS02", ExpectedQuantity: 10, CountedQuantity: 15, Forced: true},
	}
	items := map[string]*domain.StockItem{
		"item-1": {ID: "item-1", ProductName: "Wheat Flour T550"},
		"item-2": {ID: "item-2", ProductName: "Salt"},
		"item-3": {ID: "item-3", ProductName: "Sugar"},
	}

	report := domain.BuildReport("session-1", scans, items)

	require.Len(t, report.Lines, 3)
	assert.Equal(t, 3, report.ItemsCounted)
	assert.InDelta(t, 3, report.NetDelta, 1e-9)
	assert.Equal(t, "Wheat Flour T550", report.Lines[0].ProductName)
	assert.InDelta(t, -2, report.Lines[0].Delta, 1e-9)
	assert.True(t, report.Lines[2].Forced)
}
