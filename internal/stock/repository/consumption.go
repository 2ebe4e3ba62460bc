package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const recordColumns = `id, batch_id, item_id, product_name, requested_quantity, consumed_quantity,
	clamped, archived_item, source_location, is_annulled, is_adjustment,
	performed_by, consumed_at, annulled_by, annulled_at`

// ConsumptionRepository handles consumption records and the debit/credit
// paths against stock items.
type ConsumptionRepository struct {
	db *database.DB
}

// NewConsumptionRepository creates a new consumption repository.
func NewConsumptionRepository(db *database.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// ConsumeRequest describes one debit against a batch.
type ConsumeRequest struct {
	// ConsumptionID may be supplied by the caller for idempotent retries.
	// When empty a new id is generated.
	ConsumptionID string
	BatchID       string
	ItemID        string
	Quantity      float64
	Context       domain.ConsumptionContext
	Actor         string
}

// ConsumeResult is the outcome of a consumption attempt.
type ConsumeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// Clamped signals partial fulfillment: less was consumed than requested.
	Clamped          bool                      `json:"clamped"`
	ConsumedQuantity float64                   `json:"consumed_quantity"`
	Duplicate        bool                      `json:"duplicate,omitempty"`
	Record           *domain.ConsumptionRecord `json:"record,omitempty"`
	Item             *domain.StockItem         `json:"item,omitempty"`
}

// Consume debits the source item for a batch. Item row lock, session-lock
// check, clamp, archival, ledger append and record insert commit as one
// transaction. Retrying with the same ConsumptionID returns the original
// record without consuming again.
func (r *ConsumptionRepository) Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error) {
	if req.ConsumptionID == "" {
		req.ConsumptionID = uuid.NewString()
	}

	var result *ConsumeResult
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		existing, err := getRecordForUpdate(ctx, tx, req.ConsumptionID)
		if err == nil {
			result = &ConsumeResult{
				Success:          true,
				Duplicate:        true,
				Clamped:          existing.Clamped,
				ConsumedQuantity: existing.ConsumedQuantity,
				Record:           existing,
			}
			return nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return err
		}

		item, err := lockItem(ctx, tx, req.ItemID)
		if err != nil {
			return err
		}

		locked, err := lockedLocationSet(ctx, tx)
		if err != nil {
			return err
		}

		if check := domain.ValidateConsumption(item, locked); !check.Valid {
			result = &ConsumeResult{Success: false, Message: check.Message}
			return nil
		}

		outcome := domain.ApplyConsumption(item.Quantity, req.Quantity)

		sourceLocation := item.LocationCode
		if err := setItemQuantity(ctx, tx, item.ID, outcome.Remaining); err != nil {
			return err
		}
		item.Quantity = outcome.Remaining

		action := req.Context.LedgerAction()
		target := sourceLocation
		if outcome.Archive {
			action = domain.ActionConsumedAndArchived
			target = domain.LocationArchived
			if err := setItemLocation(ctx, tx, item.ID, domain.LocationArchived); err != nil {
				return err
			}
			item.LocationCode = domain.LocationArchived
		}

		record := &domain.ConsumptionRecord{
			ID:                req.ConsumptionID,
			BatchID:           req.BatchID,
			ItemID:            item.ID,
			ProductName:       item.ProductName,
			RequestedQuantity: req.Quantity,
			ConsumedQuantity:  outcome.Consumed,
			Clamped:           outcome.Clamped,
			ArchivedItem:      outcome.Archive,
			SourceLocation:    sourceLocation,
			PerformedBy:       req.Actor,
		}
		insert := `
			INSERT INTO consumption_records (id, batch_id, item_id, product_name, requested_quantity,
				consumed_quantity, clamped, archived_item, source_location, performed_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING consumed_at
		`
		if err := tx.QueryRowxContext(ctx, insert,
			record.ID, record.BatchID, record.ItemID, record.ProductName,
			record.RequestedQuantity, record.ConsumedQuantity, record.Clamped,
			record.ArchivedItem, record.SourceLocation, record.PerformedBy,
		).Scan(&record.ConsumedAt); err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		if err := appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           item.ID,
			PreviousLocation: sourceLocation,
			TargetLocation:   target,
			Action:           action,
			Notes:            fmt.Sprintf("consumed %.3f %s for batch %s", outcome.Consumed, item.Unit, req.BatchID),
			MovedBy:          req.Actor,
		}); err != nil {
			return err
		}

		result = &ConsumeResult{
			Success:          true,
			Clamped:          outcome.Clamped,
			ConsumedQuantity: outcome.Consumed,
			Record:           record,
			Item:             item,
		}
		if outcome.Clamped {
			result.Message = fmt.Sprintf("only %.3f of requested %.3f was available", outcome.Consumed, req.Quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Annul reverses a consumption: the record stays, flagged annulled, and the
// consumed quantity is credited back onto the source item. An item archived
// purely by this consumption returns to its pre-consumption location. While
// the item's location is mid-count in an open session the reversal is
// refused.
func (r *ConsumptionRepository) Annul(ctx context.Context, consumptionID, actor string) (*domain.ConsumptionRecord, *domain.StockItem, error) {
	var (
		record *domain.ConsumptionRecord
		item   *domain.StockItem
	)

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		record, err = getRecordForUpdate(ctx, tx, consumptionID)
		if err != nil {
			return err
		}
		if record.IsAnnulled {
			return errors.AlreadyAnnulled(consumptionID)
		}

		item, err = lockItem(ctx, tx, record.ItemID)
		if err != nil {
			return err
		}

		// Crediting quantity back mid-count would invalidate the captured
		// expected values, so annulment honors the same location locks as
		// the debit paths.
		locked, err := lockedLocationSet(ctx, tx)
		if err != nil {
			return err
		}

		outcome := domain.ApplyAnnulment(record, item)

		if locked[item.LocationCode] {
			return errors.SessionLock(item.LocationCode)
		}
		if outcome.RestoreLocation != "" && locked[outcome.RestoreLocation] {
			return errors.SessionLock(outcome.RestoreLocation)
		}

		if err := setItemQuantity(ctx, tx, item.ID, item.Quantity+outcome.RestoredQuantity); err != nil {
			return err
		}
		item.Quantity += outcome.RestoredQuantity

		target := item.LocationCode
		if outcome.RestoreLocation != "" {
			if err := setItemLocation(ctx, tx, item.ID, outcome.RestoreLocation); err != nil {
				return err
			}
			item.LocationCode = outcome.RestoreLocation
			target = outcome.RestoreLocation
		}

		update := `
			UPDATE consumption_records
			SET is_annulled = TRUE, annulled_by = $2, annulled_at = NOW()
			WHERE id = $1
			RETURNING annulled_at
		`
		if err := tx.QueryRowxContext(ctx, update, record.ID, actor).Scan(&record.AnnulledAt); err != nil {
			return err
		}
		record.IsAnnulled = true
		record.AnnulledBy = &actor

		return appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           item.ID,
			PreviousLocation: record.SourceLocation,
			TargetLocation:   target,
			Action:           domain.ActionConsumptionAnnulled,
			Notes:            fmt.Sprintf("annulled consumption %s, restored %.3f %s", record.ID, outcome.RestoredQuantity, item.Unit),
			MovedBy:          actor,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return record, item, nil
}

// GetByID gets a consumption record by ID.
func (r *ConsumptionRepository) GetByID(ctx context.Context, id string) (*domain.ConsumptionRecord, error) {
	var record domain.ConsumptionRecord
	query := `SELECT ` + recordColumns + ` FROM consumption_records WHERE id = $1`

	err := r.db.GetContext(ctx, &record, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("consumption record")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByBatch lists all records for a batch, oldest first, annulled included.
func (r *ConsumptionRepository) ListByBatch(ctx context.Context, batchID string) ([]domain.ConsumptionRecord, error) {
	var records []domain.ConsumptionRecord
	query := `SELECT ` + recordColumns + ` FROM consumption_records WHERE batch_id = $1 ORDER BY consumed_at, id`

	if err := r.db.SelectContext(ctx, &records, query, batchID); err != nil {
		return nil, err
	}
	return records, nil
}

func getRecordForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.ConsumptionRecord, error) {
	var record domain.ConsumptionRecord
	query := `SELECT ` + recordColumns + ` FROM consumption_records WHERE id = $1 FOR UPDATE`

	err := tx.GetContext(ctx, &record, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("consumption record")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
