package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// ApplyAdjustments writes a completed session's reviewed deltas to the stock
// store. Each corrected item gets an inventory_adjustment ledger entry;
// shortfalls additionally get an is_adjustment consumption record keyed to
// the session. Idempotent at the session level: a second call is a conflict.
func (r *SessionRepository) ApplyAdjustments(ctx context.Context, sessionID, actor string) ([]domain.AdjustmentLine, error) {
	var applied []domain.AdjustmentLine

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		session, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionCompleted {
			return errors.Conflict("session is not completed")
		}
		if session.AdjustmentsAppliedAt != nil {
			return errors.Conflict("adjustments were already applied")
		}

		report, err := buildSessionReport(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		for _, line := range report.Lines {
			if domain.IsEffectivelyZero(line.Delta) {
				continue
			}

			item, err := lockItem(ctx, tx, line.ItemID)
			if err != nil {
				return err
			}

			newQuantity := line.CountedQuantity
			if domain.IsEffectivelyZero(newQuantity) {
				newQuantity = 0
			}
			if err := setItemQuantity(ctx, tx, item.ID, newQuantity); err != nil {
				return err
			}

			previous := item.LocationCode
			target := previous
			switch {
			case newQuantity == 0 && !item.IsArchived():
				target = domain.LocationArchived
			case newQuantity > 0 && item.IsArchived():
				// A counted pallet that the books had written off comes back.
				target = line.LocationCode
			}
			if target != previous {
				if err := setItemLocation(ctx, tx, item.ID, target); err != nil {
					return err
				}
			}

			if err := appendLedger(ctx, tx, &domain.LedgerEntry{
				ItemID:           item.ID,
				PreviousLocation: previous,
				TargetLocation:   target,
				Action:           domain.ActionInventoryAdjustment,
				Notes: fmt.Sprintf("count corrected %.3f -> %.3f (session %s)",
					line.ExpectedQuantity, line.CountedQuantity, sessionID),
				MovedBy: actor,
			}); err != nil {
				return err
			}

			if line.Delta < 0 {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO consumption_records (id, batch_id, item_id, product_name, requested_quantity,
						consumed_quantity, source_location, is_adjustment, performed_by)
					VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)`,
					uuid.NewString(), sessionID, item.ID, item.ProductName,
					-line.Delta, -line.Delta, previous, actor)
				if err != nil {
					return err
				}
			}

			applied = append(applied, line)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE inventory_sessions SET adjustments_applied_by = $2, adjustments_applied_at = NOW()
			WHERE id = $1`, sessionID, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}
