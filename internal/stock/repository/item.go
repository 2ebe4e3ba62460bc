// Package repository persists the stock engine's state. Every mutating
// operation runs as a single transaction that locks the affected item rows,
// re-evaluates the domain decision against the latest state, and writes the
// item, the ledger and any records together.
package repository

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const itemColumns = `id, product_name, lot_number, item_kind, quantity, unit, location_code,
	blocked, block_reason, blocked_by, blocked_at, expiry_date, created_at, updated_at`

// ItemRepository handles stock item and ledger persistence.
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository.
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create registers a received item and writes its first ledger entry. Items
// can only arrive on real locations: the virtual markers are reserved for
// system transitions, and a location mid-count refuses receipts like every
// other mutation.
func (r *ItemRepository) Create(ctx context.Context, item *domain.StockItem, actor string) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Unit == "" {
		item.Unit = "kg"
	}
	if domain.IsVirtualLocation(item.LocationCode) {
		return errors.BadRequest("location " + item.LocationCode + " is a system marker and cannot receive stock")
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		locked, err := lockedLocationSet(ctx, tx)
		if err != nil {
			return err
		}
		if locked[item.LocationCode] {
			return errors.SessionLock(item.LocationCode)
		}

		query := `
			INSERT INTO stock_items (id, product_name, lot_number, item_kind, quantity, unit, location_code, expiry_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`
		err = tx.QueryRowxContext(ctx, query,
			item.ID, item.ProductName, item.LotNumber, item.ItemKind,
			item.Quantity, item.Unit, item.LocationCode, item.ExpiryDate,
		).Scan(&item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		return appendLedger(ctx, tx, &domain.LedgerEntry{
			ItemID:           item.ID,
			PreviousLocation: "",
			TargetLocation:   item.LocationCode,
			Action:           domain.ActionReceived,
			MovedBy:          actor,
		})
	})
}

// GetByID gets an item by ID. Archived and missing items remain queryable
// for traceability.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.StockItem, error) {
	var item domain.StockItem
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE id = $1`

	err := r.db.GetContext(ctx, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List lists items with pagination, optionally filtered by location, product
// name or kind. Archived items are excluded unless includeArchived is set.
func (r *ItemRepository) List(ctx context.Context, page, perPage int, location, product string, includeArchived bool) ([]*domain.StockItem, int64, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if !includeArchived {
		where += ` AND location_code <> '` + domain.LocationArchived + `'`
	}
	if location != "" {
		args = append(args, location)
		where += ` AND location_code = $` + strconv.Itoa(len(args))
	}
	if product != "" {
		args = append(args, product)
		where += ` AND product_name = $` + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_items`+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := `SELECT ` + itemColumns + ` FROM stock_items` + where +
		` ORDER BY product_name, created_at LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	var items []*domain.StockItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetHistory returns an item's full ledger, oldest first.
func (r *ItemRepository) GetHistory(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	if _, err := r.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	var history []domain.LedgerEntry
	query := `
		SELECT id, item_id, previous_location, target_location, action, notes, moved_by, moved_at
		FROM location_history WHERE item_id = $1 ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &history, query, itemID); err != nil {
		return nil, err
	}
	return history, nil
}

// PhysicalUnblockedStock sums unblocked, non-virtual stock per product name.
func (r *ItemRepository) PhysicalUnblockedStock(ctx context.Context) (map[string]float64, error) {
	rows := []struct {
		ProductName string  `db:"product_name"`
		Total       float64 `db:"total"`
	}{}

	query := `
		SELECT product_name, SUM(quantity) AS total
		FROM stock_items
		WHERE blocked = FALSE AND location_code NOT IN ($1, $2)
		GROUP BY product_name
	`
	if err := r.db.SelectContext(ctx, &rows, query, domain.LocationArchived, domain.LocationMissing); err != nil {
		return nil, err
	}

	stock := make(map[string]float64, len(rows))
	for _, row := range rows {
		stock[row.ProductName] = row.Total
	}
	return stock, nil
}

// lockItem loads an item under FOR UPDATE so that concurrent mutators against
// the same pallet serialize.
func lockItem(ctx context.Context, tx *sqlx.Tx, id string) (*domain.StockItem, error) {
	var item domain.StockItem
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE id = $1 FOR UPDATE`

	err := tx.GetContext(ctx, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// appendLedger writes one history row. The ledger is append-only; nothing in
// this package updates or deletes location_history.
func appendLedger(ctx context.Context, tx *sqlx.Tx, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO location_history (item_id, previous_location, target_location, action, notes, moved_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, moved_at
	`
	return tx.QueryRowxContext(ctx, query,
		entry.ItemID, entry.PreviousLocation, entry.TargetLocation,
		entry.Action, entry.Notes, entry.MovedBy,
	).Scan(&entry.ID, &entry.MovedAt)
}

