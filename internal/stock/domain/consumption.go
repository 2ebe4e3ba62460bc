package domain

import "time"

// ConsumptionContext names the kind of batch a consumption debits against.
type ConsumptionContext string

const (
	ContextProduction ConsumptionContext = "production"
	ContextMixing     ConsumptionContext = "mixing"
)

// Valid reports whether c is a known consumption context.
func (c ConsumptionContext) Valid() bool {
	return c == ContextProduction || c == ContextMixing
}

// LedgerAction returns the ledger action for a consumption in this context.
// Exhausting consumptions use ActionConsumedAndArchived instead.
func (c ConsumptionContext) LedgerAction() LedgerAction {
	if c == ContextMixing {
		return ActionConsumedInMixing
	}
	return ActionConsumedInProduction
}

// ConsumptionRecord links a debit to a production batch or mixing task.
// Records are retained forever: annulment flips IsAnnulled, it never deletes.
// Batch totals must always be recomputed over IsAnnulled == false.
type ConsumptionRecord struct {
	ID                string     `db:"id" json:"id"`
	BatchID           string     `db:"batch_id" json:"batch_id"`
	ItemID            string     `db:"item_id" json:"item_id"`
	ProductName       string     `db:"product_name" json:"product_name"`
	RequestedQuantity float64    `db:"requested_quantity" json:"requested_quantity"`
	ConsumedQuantity  float64    `db:"consumed_quantity" json:"consumed_quantity"`
	Clamped           bool       `db:"clamped" json:"clamped"`
	ArchivedItem      bool       `db:"archived_item" json:"archived_item"`
	SourceLocation    string     `db:"source_location" json:"source_location"`
	IsAnnulled        bool       `db:"is_annulled" json:"is_annulled"`
	IsAdjustment      bool       `db:"is_adjustment" json:"is_adjustment"`
	PerformedBy       string     `db:"performed_by" json:"performed_by"`
	ConsumedAt        time.Time  `db:"consumed_at" json:"consumed_at"`
	AnnulledBy        *string    `db:"annulled_by" json:"annulled_by,omitempty"`
	AnnulledAt        *time.Time `db:"annulled_at" json:"annulled_at,omitempty"`
}

// AnnulmentOutcome describes what reversing a consumption restores.
type AnnulmentOutcome struct {
	// RestoredQuantity is credited back onto the source item.
	RestoredQuantity float64
	// RestoreLocation is non-empty when the item was archived purely by
	// this consumption and must return to its pre-consumption location.
	RestoreLocation string
}

// ApplyAnnulment computes the credit for reversing record against the item's
// current state. The item un-archives only when this record caused the
// archival.
func ApplyAnnulment(record *ConsumptionRecord, item *StockItem) AnnulmentOutcome {
	outcome := AnnulmentOutcome{RestoredQuantity: record.ConsumedQuantity}
	if record.ArchivedItem && item.IsArchived() {
		outcome.RestoreLocation = record.SourceLocation
	}
	return outcome
}

// BatchTotal sums the non-annulled consumed quantity across records.
func BatchTotal(records []ConsumptionRecord) float64 {
	var total float64
	for _, r := range records {
		if !r.IsAnnulled {
			total += r.ConsumedQuantity
		}
	}
	return total
}
