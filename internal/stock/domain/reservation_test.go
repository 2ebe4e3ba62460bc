package domain_test

import (
	"testing"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doughRecipe() domain.Recipe {
	return domain.Recipe{
		ID:          "recipe-dough",
		Name:        "Standard Dough",
		BatchWeight: 100,
		Lines: []domain.RecipeLine{
			{ProductName: "Wheat Flour T550", Quantity: 60, Unit: "kg"},
			{ProductName: "Water", Quantity: 35, Unit: "kg"},
			{ProductName: "Salt", Quantity: 2, Unit: "kg"},
		},
	}
}

func TestComputeReservations_SingleOrder(t *testing.T) {
	orders := []domain.PlannedOrder{
		{ID: "order-1", RecipeID: "recipe-dough", TargetQuantity: 200, Status: domain.OrderStatusPlanned},
	}
	recipes := map[string]domain.Recipe{"recipe-dough": doughRecipe()}

	report := domain.ComputeReservations(orders, recipes, 1.05)

	// (60 / 100) * 200 * 1.05 = 126
	require.Empty(t, report.InvalidRecipeOrders)
	assert.InDelta(t, 126, report.Reserved["Wheat Flour T550"], 1e-9)
	assert.InDelta(t, 73.5, report.Reserved["Water"], 1e-9)
	assert.InDelta(t, 4.2, report.Reserved["Salt"], 1e-9)
}

func TestComputeReservations_AggregatesAcrossOrders(t *testing.T) {
	orders := []domain.PlannedOrder{
		{ID: "order-1", RecipeID: "recipe-dough", TargetQuantity: 200, Status: domain.OrderStatusPlanned},
		{ID: "order-2", RecipeID: "recipe-dough", TargetQuantity: 100, Status: domain.OrderStatusPlanned},
	}
	recipes := map[string]domain.Recipe{"recipe-dough": doughRecipe()}

	report := domain.ComputeReservations(orders, recipes, 1.05)

	// Sum over both orders: 126 + 63
	assert.InDelta(t, 189, report.Reserved["Wheat Flour T550"], 1e-9)
}

func TestComputeReservations_SkipsStartedAndCancelled(t *testing.T) {
	orders := []domain.PlannedOrder{
		{ID: "order-1", RecipeID: "recipe-dough", TargetQuantity: 200, Status: domain.OrderStatusStarted},
		{ID: "order-2", RecipeID: "recipe-dough", TargetQuantity: 100, Status: domain.OrderStatusCancelled},
	}
	recipes := map[string]domain.Recipe{"recipe-dough": doughRecipe()}

	report := domain.ComputeReservations(orders, recipes, 1.05)

	assert.Empty(t, report.Reserved)
	assert.Empty(t, report.InvalidRecipeOrders)
}

func TestComputeReservations_ZeroBatchWeightFlagged(t *testing.T) {
	broken := doughRecipe()
	broken.BatchWeight = 0

	orders := []domain.PlannedOrder{
		{ID: "order-1", RecipeID: "recipe-dough", TargetQuantity: 200, Status: domain.OrderStatusPlanned},
	}
	recipes := map[string]domain.Recipe{"recipe-dough": broken}

	report := domain.ComputeReservations(orders, recipes, 1.05)

	// Guards divide-by-zero: contributes nothing, but is not silently ignored
	assert.Empty(t, report.Reserved)
	assert.Equal(t, []string{"order-1"}, report.InvalidRecipeOrders)
}

func TestComputeReservations_MissingRecipeFlagged(t *testing.T) {
	orders := []domain.PlannedOrder{
		{ID: "order-1", RecipeID: "recipe-unknown", TargetQuantity: 200, Status: domain.OrderStatusPlanned},
	}

	report := domain.ComputeReservations(orders, map[string]domain.Recipe{}, 1.05)

	assert.Equal(t, []string{"order-1"}, report.InvalidRecipeOrders)
}

func TestAvailableForPlanning(t *testing.T) {
	assert.Equal(t, 74.0, domain.AvailableForPlanning(200, 126))
	// Over-reservation is visible as a negative availability, not clamped
	assert.Equal(t, -26.0, domain.AvailableForPlanning(100, 126))
}
