package domain_test

import (
	"testing"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stretchr/testify/assert"
)

func testItem() *domain.StockItem {
	return &domain.StockItem{
		ID:           "item-1",
		ProductName:  "Wheat Flour T550",
		ItemKind:     domain.ItemKindRawMaterial,
		Quantity:     100,
		Unit:         "kg",
		LocationCode: "MS01",
	}
}

func blockedItem(reason string) *domain.StockItem {
	item := testItem()
	item.Blocked = true
	item.BlockReason = &reason
	return item
}

// --- ValidateMove ---

func TestValidateMove_Allowed(t *testing.T) {
	check := domain.ValidateMove(testItem(), "MS02", nil)

	assert.True(t, check.Valid)
	assert.Empty(t, check.Message)
}

func TestValidateMove_BlockedItemRejected(t *testing.T) {
	check := domain.ValidateMove(blockedItem("moisture out of range"), "MS02", nil)

	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "blocked")
	assert.Contains(t, check.Message, "moisture out of range")
}

func TestValidateMove_VirtualTargetRejected(t *testing.T) {
	for _, target := range []string{domain.LocationArchived, domain.LocationMissing} {
		check := domain.ValidateMove(testItem(), target, nil)
		assert.False(t, check.Valid, "target=%s", target)
	}
}

func TestValidateMove_ArchivedItemRejected(t *testing.T) {
	item := testItem()
	item.Quantity = 0
	item.LocationCode = domain.LocationArchived

	check := domain.ValidateMove(item, "MS02", nil)
	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "archived")
}

func TestValidateMove_SameLocationRejected(t *testing.T) {
	check := domain.ValidateMove(testItem(), "MS01", nil)
	assert.False(t, check.Valid)
}

func TestValidateMove_SourceLocationUnderCount(t *testing.T) {
	locked := map[string]bool{"MS01": true}

	check := domain.ValidateMove(testItem(), "MS02", locked)
	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "inventory count")
}

func TestValidateMove_TargetLocationUnderCount(t *testing.T) {
	locked := map[string]bool{"MS02": true}

	check := domain.ValidateMove(testItem(), "MS02", locked)
	assert.False(t, check.Valid)
}

// --- ValidateConsumption ---

func TestValidateConsumption_Allowed(t *testing.T) {
	check := domain.ValidateConsumption(testItem(), nil)
	assert.True(t, check.Valid)
}

func TestValidateConsumption_BlockedItemRejectedWithReason(t *testing.T) {
	check := domain.ValidateConsumption(blockedItem("pending lab release"), nil)

	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "pending lab release")
}

func TestValidateConsumption_LockedLocationRejected(t *testing.T) {
	locked := map[string]bool{"MS01": true}

	check := domain.ValidateConsumption(testItem(), locked)
	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "inventory count")
}

func TestValidateConsumption_ArchivedItemRejected(t *testing.T) {
	item := testItem()
	item.Quantity = 0
	item.LocationCode = domain.LocationArchived

	check := domain.ValidateConsumption(item, nil)
	assert.False(t, check.Valid)
}

// --- ValidateSplit ---

func TestValidateSplit_Allowed(t *testing.T) {
	check := domain.ValidateSplit(testItem(), 40, "MS02", nil)
	assert.True(t, check.Valid)
}

func TestValidateSplit_SameLocationAllowed(t *testing.T) {
	check := domain.ValidateSplit(testItem(), 40, "MS01", nil)
	assert.True(t, check.Valid)
}

func TestValidateSplit_WholeQuantityRejected(t *testing.T) {
	check := domain.ValidateSplit(testItem(), 100, "MS02", nil)
	assert.False(t, check.Valid)
}

func TestValidateSplit_NonPositiveQuantityRejected(t *testing.T) {
	assert.False(t, domain.ValidateSplit(testItem(), 0, "MS02", nil).Valid)
	assert.False(t, domain.ValidateSplit(testItem(), -5, "MS02", nil).Valid)
}

func TestValidateSplit_BlockedItemRejected(t *testing.T) {
	check := domain.ValidateSplit(blockedItem("hold"), 40, "MS02", nil)
	assert.False(t, check.Valid)
}
