// Package domain holds the stock consistency rules: clamping and archival
// arithmetic, move and consumption gates, reservation math and the
// reconciliation session state machine. Everything here is pure; repositories
// re-run these decisions inside their transactions.
package domain

import "time"

// ItemKind distinguishes the three trackable unit types.
type ItemKind string

const (
	ItemKindRawMaterial  ItemKind = "raw_material"
	ItemKindFinishedGood ItemKind = "finished_good"
	ItemKindPackaging    ItemKind = "packaging"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindRawMaterial, ItemKindFinishedGood, ItemKindPackaging:
		return true
	}
	return false
}

// Virtual location markers. System-only transitions: no caller may move an
// item to these directly.
const (
	LocationArchived = "ARCHIVED"
	LocationMissing  = "MISSING"
)

// IsVirtualLocation reports whether code is a system-only marker.
func IsVirtualLocation(code string) bool {
	return code == LocationArchived || code == LocationMissing
}

// StockItem is the authoritative record for a pallet or packaging unit.
type StockItem struct {
	ID           string     `db:"id" json:"id"`
	ProductName  string     `db:"product_name" json:"product_name"`
	LotNumber    string     `db:"lot_number" json:"lot_number"`
	ItemKind     ItemKind   `db:"item_kind" json:"item_kind"`
	Quantity     float64    `db:"quantity" json:"quantity"`
	Unit         string     `db:"unit" json:"unit"`
	LocationCode string     `db:"location_code" json:"location_code"`
	Blocked      bool       `db:"blocked" json:"blocked"`
	BlockReason  *string    `db:"block_reason" json:"block_reason,omitempty"`
	BlockedBy    *string    `db:"blocked_by" json:"blocked_by,omitempty"`
	BlockedAt    *time.Time `db:"blocked_at" json:"blocked_at,omitempty"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsArchived reports whether the item has been consumed down to zero and
// parked on the virtual archive location.
func (i *StockItem) IsArchived() bool {
	return i.LocationCode == LocationArchived
}

// IsMissing reports whether the item was marked missing during a count.
func (i *StockItem) IsMissing() bool {
	return i.LocationCode == LocationMissing
}

// ExpiryStatus classifies an item's shelf-life state. Informational only.
type ExpiryStatus string

const (
	ExpiryOK       ExpiryStatus = "ok"
	ExpiryWarning  ExpiryStatus = "warning"
	ExpiryCritical ExpiryStatus = "critical"
	ExpiryExpired  ExpiryStatus = "expired"
)

const (
	expiryWarningDays  = 30
	expiryCriticalDays = 7
)

// ExpiryStatusAt classifies the item's expiry relative to now. Items without
// an expiry date are always ok.
func (i *StockItem) ExpiryStatusAt(now time.Time) ExpiryStatus {
	if i.ExpiryDate == nil {
		return ExpiryOK
	}
	remaining := i.ExpiryDate.Sub(now)
	switch {
	case remaining < 0:
		return ExpiryExpired
	case remaining < expiryCriticalDays*24*time.Hour:
		return ExpiryCritical
	case remaining < expiryWarningDays*24*time.Hour:
		return ExpiryWarning
	default:
		return ExpiryOK
	}
}
