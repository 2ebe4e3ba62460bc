package domain

import "time"

// DefaultOverageFactor is the production waste buffer applied to every
// reservation.
const DefaultOverageFactor = 1.05

// OrderStatus values for the planned-order read model.
const (
	OrderStatusPlanned   = "planned"
	OrderStatusStarted   = "started"
	OrderStatusCancelled = "cancelled"
)

// OrderKind values for the planned-order read model.
const (
	OrderKindProduction = "production"
	OrderKindMixing     = "mixing"
	OrderKindTransfer   = "transfer"
)

// PlannedOrder is a read-model row synced from the order system.
type PlannedOrder struct {
	ID             string     `db:"id" json:"id"`
	RecipeID       string     `db:"recipe_id" json:"recipe_id"`
	OrderKind      string     `db:"order_kind" json:"order_kind"`
	TargetQuantity float64    `db:"target_quantity" json:"target_quantity"`
	Status         string     `db:"status" json:"status"`
	PlannedFor     *time.Time `db:"planned_for" json:"planned_for,omitempty"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Recipe is a read-model recipe with its ingredient lines.
type Recipe struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	BatchWeight float64      `db:"batch_weight" json:"batch_weight"`
	Lines       []RecipeLine `json:"lines"`
}

// RecipeLine is one ingredient requirement per recipe batch.
type RecipeLine struct {
	RecipeID    string  `db:"recipe_id" json:"-"`
	ProductName string  `db:"product_name" json:"product_name"`
	Quantity    float64 `db:"quantity" json:"quantity"`
	Unit        string  `db:"unit" json:"unit"`
}

// ReservationReport aggregates earmarked quantities across all planned
// orders, per product name.
type ReservationReport struct {
	Reserved map[string]float64 `json:"reserved"`
	// InvalidRecipeOrders lists orders whose recipe is missing or has a
	// non-positive batch weight. They contribute zero reservation and must
	// be surfaced upstream, not silently dropped.
	InvalidRecipeOrders []string `json:"invalid_recipe_orders,omitempty"`
}

// ComputeReservations scales each planned order's recipe lines by
// targetQuantity / batchWeight, applies the overage factor, and accumulates
// per product name across all orders. Orders not in planned status are
// skipped: started or cancelled work no longer reserves.
func ComputeReservations(orders []PlannedOrder, recipes map[string]Recipe, overageFactor float64) ReservationReport {
	report := ReservationReport{Reserved: make(map[string]float64)}

	for _, order := range orders {
		if order.Status != OrderStatusPlanned {
			continue
		}

		recipe, ok := recipes[order.RecipeID]
		if !ok || recipe.BatchWeight <= 0 {
			report.InvalidRecipeOrders = append(report.InvalidRecipeOrders, order.ID)
			continue
		}

		scale := order.TargetQuantity / recipe.BatchWeight
		for _, line := range recipe.Lines {
			report.Reserved[line.ProductName] += line.Quantity * scale * overageFactor
		}
	}

	return report
}

// AvailableForPlanning derives plannable stock for one product from physical
// unblocked stock and the reservation total.
func AvailableForPlanning(physicalUnblocked, reserved float64) float64 {
	return physicalUnblocked - reserved
}
