package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// OrderRepository maintains the planned-order and recipe read model that the
// reservation tracker computes from. It is fed by the order event consumer;
// nothing here mutates the order system itself.
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order read-model repository.
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// UpsertOrder inserts or refreshes a planned order.
func (r *OrderRepository) UpsertOrder(ctx context.Context, order *domain.PlannedOrder) error {
	if order.OrderKind == "" {
		order.OrderKind = domain.OrderKindProduction
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPlanned
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO planned_orders (id, recipe_id, order_kind, target_quantity, status, planned_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET recipe_id = EXCLUDED.recipe_id,
		    order_kind = EXCLUDED.order_kind,
		    target_quantity = EXCLUDED.target_quantity,
		    status = EXCLUDED.status,
		    planned_for = EXCLUDED.planned_for,
		    updated_at = NOW()`,
		order.ID, order.RecipeID, order.OrderKind, order.TargetQuantity, order.Status, order.PlannedFor)
	return err
}

// SetOrderStatus updates an order's status. Unknown orders are ignored:
// status events may arrive for orders planned before this service existed.
func (r *OrderRepository) SetOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE planned_orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, status)
	return err
}

// UpsertRecipe replaces a recipe and its lines.
func (r *OrderRepository) UpsertRecipe(ctx context.Context, recipe *domain.Recipe) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recipes (id, name, batch_weight)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, batch_weight = EXCLUDED.batch_weight, updated_at = NOW()`,
			recipe.ID, recipe.Name, recipe.BatchWeight)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recipe_lines WHERE recipe_id = $1`, recipe.ID); err != nil {
			return err
		}

		for _, line := range recipe.Lines {
			unit := line.Unit
			if unit == "" {
				unit = "kg"
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO recipe_lines (recipe_id, product_name, quantity, unit)
				VALUES ($1, $2, $3, $4)`,
				recipe.ID, line.ProductName, line.Quantity, unit)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecipe gets a recipe with its lines.
func (r *OrderRepository) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	var recipe domain.Recipe
	err := r.db.GetContext(ctx, &recipe,
		`SELECT id, name, batch_weight FROM recipes WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("recipe")
	}
	if err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &recipe.Lines, `
		SELECT recipe_id, product_name, quantity, unit
		FROM recipe_lines WHERE recipe_id = $1 ORDER BY product_name`, id); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListPlanned lists all orders still in planned status.
func (r *OrderRepository) ListPlanned(ctx context.Context) ([]domain.PlannedOrder, error) {
	var orders []domain.PlannedOrder
	err := r.db.SelectContext(ctx, &orders, `
		SELECT id, recipe_id, order_kind, target_quantity, status, planned_for, updated_at
		FROM planned_orders WHERE status = $1 ORDER BY planned_for NULLS LAST, id`,
		domain.OrderStatusPlanned)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// RecipesByID loads all recipes referenced by the given orders, keyed by id.
// Missing recipes are simply absent from the map; the reservation math flags
// their orders as invalid.
func (r *OrderRepository) RecipesByID(ctx context.Context, orders []domain.PlannedOrder) (map[string]domain.Recipe, error) {
	ids := make([]string, 0, len(orders))
	seen := make(map[string]bool, len(orders))
	for _, order := range orders {
		if !seen[order.RecipeID] {
			seen[order.RecipeID] = true
			ids = append(ids, order.RecipeID)
		}
	}
	if len(ids) == 0 {
		return map[string]domain.Recipe{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, name, batch_weight FROM recipes WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var recipes []domain.Recipe
	if err := r.db.SelectContext(ctx, &recipes, query, args...); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Recipe, len(recipes))
	for _, recipe := range recipes {
		byID[recipe.ID] = recipe
	}

	lineQuery, lineArgs, err := sqlx.In(`
		SELECT recipe_id, product_name, quantity, unit
		FROM recipe_lines WHERE recipe_id IN (?) ORDER BY recipe_id, product_name`, ids)
	if err != nil {
		return nil, err
	}
	lineQuery = r.db.Rebind(lineQuery)

	var lines []domain.RecipeLine
	if err := r.db.SelectContext(ctx, &lines, lineQuery, lineArgs...); err != nil {
		return nil, err
	}
	for _, line := range lines {
		recipe, ok := byID[line.RecipeID]
		if !ok {
			continue
		}
		recipe.Lines = append(recipe.Lines, line)
		byID[line.RecipeID] = recipe
	}

	return byID, nil
}
