package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// MoveResult is the outcome of a move attempt. Validation refusals come back
// as Success=false with a renderable message, not as errors.
type MoveResult struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message,omitempty"`
	Previous string            `json:"previous_location,omitempty"`
	Item     *domain.StockItem `json:"item,omitempty"`
}

// Move relocates an item. The validation runs inside the transaction against
// the row-locked item and the current session locks, so a concurrent count
// or block cannot race the decision.
func (r *ItemRepository) Move(ctx context.Context, itemID, targetLocation string, action domain.LedgerAction, notes, actor string) (*MoveResult, error) {
	if action == "" {
		action = domain.ActionManualMove
	}

	var result *MoveResult
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		locked, err := lockedLocationSet(ctx, tx)
		if err != nil {
			return err
		}

		if check := domain.ValidateMove(item, targetLocation, locked); !check.Valid {
			result = &MoveResult{Success: false, Message: check.Message}
			return nil
		}

		previous := item.LocationCode
		if err := setItemLocation(ctx, tx, item.ID, targetLocation); err != nil {
			return err
		}
		item.LocationCode = targetLocation

		if err := appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           item.ID,
			PreviousLocation: previous,
			TargetLocation:   targetLocation,
			Action:           action,
			Notes:            notes,
			MovedBy:          actor,
		}); err != nil {
			return err
		}

		result = &MoveResult{Success: true, Previous: previous, Item: item}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SplitResult is the outcome of splitting quantity off a pallet.
type SplitResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Source  *domain.StockItem `json:"source,omitempty"`
	NewItem *domain.StockItem `json:"new_item,omitempty"`
}

// Split moves quantity from an item onto a newly created unit at the target
// location. Both ledgers are appended in the same transaction.
func (r *ItemRepository) Split(ctx context.Context, itemID string, quantity float64, targetLocation, actor string) (*SplitResult, error) {
	var result *SplitResult
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		source, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		locked, err := lockedLocationSet(ctx, tx)
		if err != nil {
			return err
		}

		if check := domain.ValidateSplit(source, quantity, targetLocation, locked); !check.Valid {
			result = &SplitResult{Success: false, Message: check.Message}
			return nil
		}

		if err := setItemQuantity(ctx, tx, source.ID, source.Quantity-quantity); err != nil {
			return err
		}
		source.Quantity -= quantity

		newItem := &domain.StockItem{
			ID:           uuid.NewString(),
			ProductName:  source.ProductName,
			LotNumber:    source.LotNumber,
			ItemKind:     source.ItemKind,
			Quantity:     quantity,
			Unit:         source.Unit,
			LocationCode: targetLocation,
			ExpiryDate:   source.ExpiryDate,
		}
		insert := `
			INSERT INTO stock_items (id, product_name, lot_number, item_kind, quantity, unit, location_code, expiry_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, insert,
			newItem.ID, newItem.ProductName, newItem.LotNumber, newItem.ItemKind,
			newItem.Quantity, newItem.Unit, newItem.LocationCode, newItem.ExpiryDate,
		).Scan(&newItem.CreatedAt, &newItem.UpdatedAt); err != nil {
			return err
		}

		if err := appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           source.ID,
			PreviousLocation: source.LocationCode,
			TargetLocation:   source.LocationCode,
			Action:           domain.ActionSplit,
			Notes:            fmt.Sprintf("split off %.3f %s to item %s", quantity, source.Unit, newItem.ID),
			MovedBy:          actor,
		}); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           newItem.ID,
			PreviousLocation: source.LocationCode,
			TargetLocation:   targetLocation,
			Action:           domain.ActionSplit,
			Notes:            fmt.Sprintf("split from item %s", source.ID),
			MovedBy:          actor,
		}); err != nil {
			return err
		}

		result = &SplitResult{Success: true, Source: source, NewItem: newItem}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkMissing parks an item on the virtual missing location. System
// transition, so it bypasses the move validator.
func (r *ItemRepository) MarkMissing(ctx context.Context, itemID, notes, actor string) (*domain.StockItem, error) {
	return r.systemRelocate(ctx, itemID, domain.LocationMissing, domain.ActionMarkedMissing, notes, actor)
}

// MarkFound returns a missing item to a physical location.
func (r *ItemRepository) MarkFound(ctx context.Context, itemID, location, actor string) (*domain.StockItem, error) {
	if domain.IsVirtualLocation(location) {
		return nil, errors.BadRequest("location " + location + " is a system marker")
	}
	return r.systemRelocate(ctx, itemID, location, domain.ActionFound, "", actor)
}

func (r *ItemRepository) systemRelocate(ctx context.Context, itemID, target string, action domain.LedgerAction, notes, actor string) (*domain.StockItem, error) {
	var moved *domain.StockItem
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		previous := item.LocationCode
		if err := setItemLocation(ctx, tx, item.ID, target); err != nil {
			return err
		}
		item.LocationCode = target

		if err := appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           item.ID,
			PreviousLocation: previous,
			TargetLocation:   target,
			Action:           action,
			Notes:            notes,
			MovedBy:          actor,
		}); err != nil {
			return err
		}

		moved = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func setItemLocation(ctx context.Context, tx *sqlx.Tx, id, location string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE stock_items SET location_code = $2, updated_at = NOW() WHERE id = $1`, id, location)
	return err
}

func setItemQuantity(ctx context.Context, tx *sqlx.Tx, id string, quantity float64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE stock_items SET quantity = $2, updated_at = NOW() WHERE id = $1`, id, quantity)
	return err
}
