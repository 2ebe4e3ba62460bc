package domain

import "time"

// LedgerAction describes what a ledger entry records.
type LedgerAction string

const (
	ActionReceived             LedgerAction = "received"
	ActionManualMove           LedgerAction = "manual_move"
	ActionBinToStation         LedgerAction = "bin_to_station"
	ActionBlock                LedgerAction = "block"
	ActionUnblock              LedgerAction = "unblock"
	ActionConsumedInProduction LedgerAction = "consumed_in_production"
	ActionConsumedInMixing     LedgerAction = "consumed_in_mixing"
	ActionConsumedAndArchived  LedgerAction = "consumed_and_archived"
	ActionConsumptionAnnulled  LedgerAction = "consumption_annulled"
	ActionSplit                LedgerAction = "split"
	ActionMarkedMissing        LedgerAction = "marked_missing"
	ActionFound                LedgerAction = "found"
	ActionInventoryAdjustment  LedgerAction = "inventory_adjustment"
)

// LedgerEntry is one row of an item's location history. The ledger is
// append-only: entries are never updated, reordered or deleted. Ordering per
// item is the insertion sequence.
type LedgerEntry struct {
	ID               int64        `db:"id" json:"id"`
	ItemID           string       `db:"item_id" json:"item_id"`
	PreviousLocation string       `db:"previous_location" json:"previous_location"`
	TargetLocation   string       `db:"target_location" json:"target_location"`
	Action           LedgerAction `db:"action" json:"action"`
	Notes            string       `db:"notes" json:"notes"`
	MovedBy          string       `db:"moved_by" json:"moved_by"`
	MovedAt          time.Time    `db:"moved_at" json:"moved_at"`
}
