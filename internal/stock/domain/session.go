package domain

import (
	"math"
	"time"
)

// SessionStatus values for a reconciliation session.
type SessionStatus string

const (
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
)

// LocationStatus values for a location under count.
type LocationStatus string

const (
	LocationPending LocationStatus = "pending"
	LocationScanned LocationStatus = "scanned"
)

// InventorySession is a blind-count workflow over a fixed set of locations.
type InventorySession struct {
	ID                   string            `db:"id" json:"id"`
	Name                 string            `db:"name" json:"name"`
	Status               SessionStatus     `db:"status" json:"status"`
	StartedBy            string            `db:"started_by" json:"started_by"`
	StartedAt            time.Time         `db:"started_at" json:"started_at"`
	CompletedBy          *string           `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt          *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	AdjustmentsAppliedBy *string           `db:"adjustments_applied_by" json:"adjustments_applied_by,omitempty"`
	AdjustmentsAppliedAt *time.Time        `db:"adjustments_applied_at" json:"adjustments_applied_at,omitempty"`
	Locations            []SessionLocation `json:"locations"`
}

// SessionLocation is one location under count within a session.
type SessionLocation struct {
	SessionID    string         `db:"session_id" json:"-"`
	LocationCode string         `db:"location_code" json:"location_code"`
	Status       LocationStatus `db:"status" json:"status"`
	FinishedBy   *string        `db:"finished_by" json:"finished_by,omitempty"`
	FinishedAt   *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}

// SessionScan is one recorded count of a pallet at a location. Re-scanning
// the same pallet replaces the entry; it is a correction, not a duplicate.
type SessionScan struct {
	ID               string    `db:"id" json:"id"`
	SessionID        string    `db:"session_id" json:"-"`
	LocationCode     string    `db:"location_code" json:"location_code"`
	ItemID           string    `db:"item_id" json:"item_id"`
	ExpectedQuantity float64   `db:"expected_quantity" json:"expected_quantity"`
	CountedQuantity  float64   `db:"counted_quantity" json:"counted_quantity"`
	Forced           bool      `db:"forced" json:"forced"`
	ScannedBy        string    `db:"scanned_by" json:"scanned_by"`
	ScannedAt        time.Time `db:"scanned_at" json:"scanned_at"`
}

// Delta is the counted-minus-expected difference for this scan.
func (s *SessionScan) Delta() float64 {
	return s.CountedQuantity - s.ExpectedQuantity
}

// DiscrepancyThresholds gate scan acceptance. A count is accepted without
// recount when its deviation is within max(AbsoluteKg, Relative * expected).
type DiscrepancyThresholds struct {
	AbsoluteKg float64
	Relative   float64
}

// DefaultThresholds returns the standard recount gate: half a kilogram or
// two percent of the expected quantity, whichever is larger.
func DefaultThresholds() DiscrepancyThresholds {
	return DiscrepancyThresholds{AbsoluteKg: 0.5, Relative: 0.02}
}

// ScanDecision is the outcome of the discrepancy gate.
type ScanDecision struct {
	// Accepted means the scan commits. RecountNeeded means the deviation
	// exceeded tolerance and the scan must not be stored until the operator
	// re-enters the count or forces the override.
	Accepted      bool    `json:"accepted"`
	RecountNeeded bool    `json:"recount_needed"`
	Delta         float64 `json:"delta"`
	Tolerance     float64 `json:"tolerance"`
}

// EvaluateScan applies the discrepancy gate to a counted quantity.
func EvaluateScan(expected, counted float64, thresholds DiscrepancyThresholds, force bool) ScanDecision {
	delta := counted - expected
	tolerance := math.Max(thresholds.AbsoluteKg, thresholds.Relative*math.Abs(expected))

	decision := ScanDecision{Delta: delta, Tolerance: tolerance}
	if math.Abs(delta) <= tolerance || force {
		decision.Accepted = true
		return decision
	}
	decision.RecountNeeded = true
	return decision
}

// PendingLocations returns the codes of locations not yet scanned.
func (s *InventorySession) PendingLocations() []string {
	var pending []string
	for _, loc := range s.Locations {
		if loc.Status != LocationScanned {
			pending = append(pending, loc.LocationCode)
		}
	}
	return pending
}

// CanComplete reports whether every location has been scanned. A session
// completes only when nothing is pending.
func (s *InventorySession) CanComplete() bool {
	return s.Status == SessionOngoing && len(s.PendingLocations()) == 0
}

// HasLocation reports whether code belongs to the session's location set.
func (s *InventorySession) HasLocation(code string) bool {
	for _, loc := range s.Locations {
		if loc.LocationCode == code {
			return true
		}
	}
	return false
}

// LockedLocations collects, across all ongoing sessions, the locations whose
// count is still pending. Items at these locations must refuse moves and
// consumption until the location is scanned.
func LockedLocations(sessions []InventorySession) map[string]bool {
	locked := make(map[string]bool)
	for _, session := range sessions {
		if session.Status != SessionOngoing {
			continue
		}
		for _, loc := range session.Locations {
			if loc.Status != LocationScanned {
				locked[loc.LocationCode] = true
			}
		}
	}
	return locked
}

// AdjustmentLine is one per-item delta in a reconciliation report.
type AdjustmentLine struct {
	ItemID           string  `json:"item_id"`
	ProductName      string  `json:"product_name"`
	LocationCode     string  `json:"location_code"`
	ExpectedQuantity float64 `json:"expected_quantity"`
	CountedQuantity  float64 `json:"counted_quantity"`
	Delta            float64 `json:"delta"`
	Forced           bool    `json:"forced"`
}

// ReconciliationReport is emitted on session completion. Applying the deltas
// to the stock store is a separate, reviewed step.
type ReconciliationReport struct {
	SessionID    string           `json:"session_id"`
	Lines        []AdjustmentLine `json:"lines"`
	ItemsCounted int              `json:"items_counted"`
	NetDelta     float64          `json:"net_delta"`
}

// BuildReport assembles the reconciliation report from the session's scans.
// Only lines with a non-zero delta (within epsilon) carry an adjustment.
func BuildReport(sessionID string, scans []SessionScan, items map[string]*StockItem) ReconciliationReport {
	report := ReconciliationReport{SessionID: sessionID, ItemsCounted: len(scans)}
	for _, scan := range scans {
		line := AdjustmentLine{
			ItemID:           scan.ItemID,
			LocationCode:     scan.LocationCode,
			ExpectedQuantity: scan.ExpectedQuantity,
			CountedQuantity:  scan.CountedQuantity,
			Delta:            scan.Delta(),
			Forced:           scan.Forced,
		}
		if item, ok := items[scan.ItemID]; ok {
			line.ProductName = item.ProductName
		}
		report.Lines = append(report.Lines, line)
		report.NetDelta += line.Delta
	}
	return report
}
