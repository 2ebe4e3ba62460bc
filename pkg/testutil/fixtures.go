package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TestActorID is the actor used by fixtures and integration tests.
const TestActorID = "11111111-1111-1111-1111-111111111111"

// InsertStockItem inserts a stock item row and returns its ID.
func InsertStockItem(ctx context.Context, db *sqlx.DB, productName, lotNumber, itemKind string, quantity float64, locationCode string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_items (id, product_name, lot_number, item_kind, quantity, location_code)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, productName, lotNumber, itemKind, quantity, locationCode,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert stock item: %w", err)
	}
	return id, nil
}

// InsertBlockedStockItem inserts a stock item already under a quality block.
func InsertBlockedStockItem(ctx context.Context, db *sqlx.DB, productName string, quantity float64, locationCode, reason string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_items (id, product_name, item_kind, quantity, location_code, blocked, block_reason, blocked_by, blocked_at)
		VALUES ($1, $2, 'raw_material', $3, $4, TRUE, $5, $6, NOW())`,
		id, productName, quantity, locationCode, reason, TestActorID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert blocked stock item: %w", err)
	}
	return id, nil
}

// InsertRecipe inserts a recipe with its lines and returns its ID.
func InsertRecipe(ctx context.Context, db *sqlx.DB, name string, batchWeight float64, lines map[string]float64) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO recipes (id, name, batch_weight) VALUES ($1, $2, $3)`,
		id, name, batchWeight,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert recipe: %w", err)
	}

	for productName, quantity := range lines {
		_, err := db.ExecContext(ctx, `
			INSERT INTO recipe_lines (recipe_id, product_name, quantity)
			VALUES ($1, $2, $3)`,
			id, productName, quantity,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert recipe line: %w", err)
		}
	}

	return id, nil
}

// InsertPlannedOrder inserts a planned order row and returns its ID.
func InsertPlannedOrder(ctx context.Context, db *sqlx.DB, recipeID string, targetQuantity float64) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO planned_orders (id, recipe_id, target_quantity, status, planned_for)
		VALUES ($1, $2, $3, 'planned', $4)`,
		id, recipeID, targetQuantity, time.Now().Add(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert planned order: %w", err)
	}
	return id, nil
}

// InsertSession inserts an ongoing inventory session covering the given
// locations, all pending, and returns its ID.
func InsertSession(ctx context.Context, db *sqlx.DB, name string, locationCodes ...string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory_sessions (id, name, started_by) VALUES ($1, $2, $3)`,
		id, name, TestActorID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	for _, code := range locationCodes {
		_, err := db.ExecContext(ctx, `
			INSERT INTO session_locations (session_id, location_code) VALUES ($1, $2)`,
			id, code,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert session location: %w", err)
		}
	}

	return id, nil
}

// TruncateStockTables empties all stock tables between integration tests.
func TruncateStockTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE session_scans, session_locations, inventory_sessions,
			consumption_records, location_history, stock_items,
			recipe_lines, recipes, planned_orders CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to truncate stock tables: %w", err)
	}
	return nil
}
