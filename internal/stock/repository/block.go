package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Block places a quality hold on an item and records it in the ledger.
func (r *ItemRepository) Block(ctx context.Context, itemID, reason, actor string) (*domain.StockItem, error) {
	if reason == "" {
		return nil, errors.BadRequest("a block reason is required")
	}

	var blocked *domain.StockItem
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.Blocked {
			return errors.Conflict("item is already blocked")
		}
		if item.IsArchived() {
			return errors.Conflict("archived items cannot be blocked")
		}

		query := `
			UPDATE stock_items
			SET blocked = TRUE, block_reason = $2, blocked_by = $3, blocked_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING blocked_at
		`
		if err := tx.QueryRowxContext(ctx, query, item.ID, reason, actor).Scan(&item.BlockedAt); err != nil {
			return err
		}
		item.Blocked = true
		item.BlockReason = &reason
		item.BlockedBy = &actor

		if err := appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           item.ID,
			PreviousLocation: item.LocationCode,
			TargetLocation:   item.LocationCode,
			Action:           domain.ActionBlock,
			Notes:            reason,
			MovedBy:          actor,
		}); err != nil {
			return err
		}

		blocked = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocked, nil
}

// Unblock lifts a quality hold. The justification is mandatory; newExpiry
// optionally extends shelf life after a lab release.
func (r *ItemRepository) Unblock(ctx context.Context, itemID, reason, actor string, newExpiry *time.Time) (*domain.StockItem, error) {
	if reason == "" {
		return nil, errors.BadRequest("an unblock reason is required")
	}

	var unblocked *domain.StockItem
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !item.Blocked {
			return errors.Conflict("item is not blocked")
		}

		query := `
			UPDATE stock_items
			SET blocked = FALSE, block_reason = NULL, blocked_by = NULL, blocked_at = NULL,
			    expiry_date = COALESCE($2, expiry_date), updated_at = NOW()
			WHERE id = $1
			RETURNING expiry_date
		`
		if err := tx.QueryRowxContext(ctx, query, item.ID, newExpiry).Scan(&item.ExpiryDate); err != nil {
			return err
		}
		item.Blocked = false
		item.BlockReason = nil
		item.BlockedBy = nil
		item.BlockedAt = nil

		if err := appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           item.ID,
			PreviousLocation: item.LocationCode,
			TargetLocation:   item.LocationCode,
			Action:           domain.ActionUnblock,
			Notes:            reason,
			MovedBy:          actor,
		}); err != nil {
			return err
		}

		unblocked = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unblocked, nil
}
