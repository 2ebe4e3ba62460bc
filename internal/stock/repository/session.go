package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const sessionColumns = `id, name, status, started_by, started_at, completed_by, completed_at,
	adjustments_applied_by, adjustments_applied_at`

// SessionRepository handles inventory reconciliation sessions.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create opens a session over a fixed set of locations, all pending.
func (r *SessionRepository) Create(ctx context.Context, name string, locationCodes []string, actor string) (*domain.InventorySession, error) {
	if len(locationCodes) == 0 {
		return nil, errors.BadRequest("a session needs at least one location")
	}
	for _, code := range locationCodes {
		if domain.IsVirtualLocation(code) {
			return nil, errors.BadRequest("location " + code + " is a system marker and cannot be counted")
		}
	}

	session := &domain.InventorySession{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    domain.SessionOngoing,
		StartedBy: actor,
	}

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO inventory_sessions (id, name, started_by)
			VALUES ($1, $2, $3)
			RETURNING started_at
		`
		if err := tx.QueryRowxContext(ctx, insert, session.ID, session.Name, actor).Scan(&session.StartedAt); err != nil {
			return err
		}

		for _, code := range locationCodes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO session_locations (session_id, location_code) VALUES ($1, $2)`,
				session.ID, code)
			if err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
			session.Locations = append(session.Locations, domain.SessionLocation{
				SessionID:    session.ID,
				LocationCode: code,
				Status:       domain.LocationPending,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetByID gets a session with its locations.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.InventorySession, error) {
	var session domain.InventorySession
	err := r.db.GetContext(ctx, &session,
		`SELECT `+sessionColumns+` FROM inventory_sessions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("session")
	}
	if err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &session.Locations, `
		SELECT session_id, location_code, status, finished_by, finished_at
		FROM session_locations WHERE session_id = $1 ORDER BY location_code`, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListOngoing lists all ongoing sessions with their locations.
func (r *SessionRepository) ListOngoing(ctx context.Context) ([]domain.InventorySession, error) {
	var sessions []domain.InventorySession
	err := r.db.SelectContext(ctx, &sessions,
		`SELECT `+sessionColumns+` FROM inventory_sessions WHERE status = $1 ORDER BY started_at`,
		domain.SessionOngoing)
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		if err := r.db.SelectContext(ctx, &sessions[i].Locations, `
			SELECT session_id, location_code, status, finished_by, finished_at
			FROM session_locations WHERE session_id = $1 ORDER BY location_code`, sessions[i].ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// ScanRequest is one blind count of a pallet at a location.
type ScanRequest struct {
	SessionID       string
	LocationCode    string
	ItemID          string
	CountedQuantity float64
	Force           bool
	Actor           string
}

// ScanResult is the outcome of recording a scan. RecountNeeded means nothing
// was stored: the operator must re-enter the count or force the override.
type ScanResult struct {
	Committed     bool    `json:"committed"`
	RecountNeeded bool    `json:"recount_needed"`
	Delta         float64 `json:"delta"`
	Tolerance     float64 `json:"tolerance"`
	Message       string  `json:"message,omitempty"`
}

// RecordScan applies the discrepancy gate and upserts the scan. Scanning a
// location already finished reopens it; re-scanning a pallet replaces its
// entry.
func (r *SessionRepository) RecordScan(ctx context.Context, req ScanRequest, thresholds domain.DiscrepancyThresholds) (*ScanResult, error) {
	if req.CountedQuantity < 0 {
		return nil, errors.BadRequest("counted quantity must not be negative")
	}

	var result *ScanResult
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		session, err := lockSession(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionOngoing {
			return errors.Conflict("session is already completed")
		}
		if !session.HasLocation(req.LocationCode) {
			return errors.NotFound("session location")
		}

		item, err := lockItem(ctx, tx, req.ItemID)
		if err != nil {
			return err
		}

		decision := domain.EvaluateScan(item.Quantity, req.CountedQuantity, thresholds, req.Force)
		if decision.RecountNeeded {
			result = &ScanResult{
				RecountNeeded: true,
				Delta:         decision.Delta,
				Tolerance:     decision.Tolerance,
				Message: fmt.Sprintf("counted %.3f deviates %.3f from expected %.3f, re-count or force",
					req.CountedQuantity, decision.Delta, item.Quantity),
			}
			return nil
		}

		// Scanning into a finished location reopens the count there.
		_, err = tx.ExecContext(ctx, `
			UPDATE session_locations SET status = $3, finished_by = NULL, finished_at = NULL
			WHERE session_id = $1 AND location_code = $2 AND status = $4`,
			req.SessionID, req.LocationCode, domain.LocationPending, domain.LocationScanned)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_scans (id, session_id, location_code, item_id, expected_quantity, counted_quantity, forced, scanned_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (session_id, location_code, item_id) DO UPDATE
			SET expected_quantity = EXCLUDED.expected_quantity,
			    counted_quantity = EXCLUDED.counted_quantity,
			    forced = EXCLUDED.forced,
			    scanned_by = EXCLUDED.scanned_by,
			    scanned_at = NOW()`,
			uuid.NewString(), req.SessionID, req.LocationCode, req.ItemID,
			item.Quantity, req.CountedQuantity, req.Force, req.Actor)
		if err != nil {
			return err
		}

		result = &ScanResult{Committed: true, Delta: decision.Delta, Tolerance: decision.Tolerance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FinishLocation transitions a location pending -> scanned, releasing its
// mutation lock.
func (r *SessionRepository) FinishLocation(ctx context.Context, sessionID, locationCode, actor string) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		session, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionOngoing {
			return errors.Conflict("session is already completed")
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE session_locations SET status = $3, finished_by = $4, finished_at = NOW()
			WHERE session_id = $1 AND location_code = $2`,
			sessionID, locationCode, domain.LocationScanned, actor)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return errors.NotFound("session location")
		}
		return nil
	})
}

// ReopenLocation transitions a location scanned -> pending for a correction
// before session completion.
func (r *SessionRepository) ReopenLocation(ctx context.Context, sessionID, locationCode string) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		session, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionOngoing {
			return errors.Conflict("session is already completed")
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE session_locations SET status = $3, finished_by = NULL, finished_at = NULL
			WHERE session_id = $1 AND location_code = $2`,
			sessionID, locationCode, domain.LocationPending)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return errors.NotFound("session location")
		}
		return nil
	})
}

// Complete closes the session once every location is scanned and returns the
// reconciliation report. Applying the deltas is a separate reviewed step.
func (r *SessionRepository) Complete(ctx context.Context, sessionID, actor string) (*domain.ReconciliationReport, error) {
	var report *domain.ReconciliationReport
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		session, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionOngoing {
			return errors.Conflict("session is already completed")
		}
		if pending := session.PendingLocations(); len(pending) > 0 {
			return errors.Conflict("locations not yet scanned: " + strings.Join(pending, ", "))
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE inventory_sessions SET status = $2, completed_by = $3, completed_at = NOW()
			WHERE id = $1`,
			sessionID, domain.SessionCompleted, actor)
		if err != nil {
			return err
		}

		report, err = buildSessionReport(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Report rebuilds the reconciliation report of a completed session.
func (r *SessionRepository) Report(ctx context.Context, sessionID string) (*domain.ReconciliationReport, error) {
	session, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionCompleted {
		return nil, errors.Conflict("session is not completed")
	}

	var report *domain.ReconciliationReport
	err = r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		report, err = buildSessionReport(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// lockedLocationSet collects the locations locked by pending counts of
// ongoing sessions. Runs inside the caller's transaction so the check and
// the mutation are atomic.
func lockedLocationSet(ctx context.Context, tx *sqlx.Tx) (map[string]bool, error) {
	var codes []string
	err := tx.SelectContext(ctx, &codes, `
		SELECT sl.location_code
		FROM session_locations sl
		JOIN inventory_sessions s ON s.id = sl.session_id
		WHERE s.status = $1 AND sl.status = $2`,
		domain.SessionOngoing, domain.LocationPending)
	if err != nil {
		return nil, err
	}

	locked := make(map[string]bool, len(codes))
	for _, code := range codes {
		locked[code] = true
	}
	return locked, nil
}

func lockSession(ctx context.Context, tx *sqlx.Tx, id string) (*domain.InventorySession, error) {
	var session domain.InventorySession
	err := tx.GetContext(ctx, &session,
		`SELECT `+sessionColumns+` FROM inventory_sessions WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("session")
	}
	if err != nil {
		return nil, err
	}

	if err := tx.SelectContext(ctx, &session.Locations, `
		SELECT session_id, location_code, status, finished_by, finished_at
		FROM session_locations WHERE session_id = $1 ORDER BY location_code`, id); err != nil {
		return nil, err
	}
	return &session, nil
}

func buildSessionReport(ctx context.Context, tx *sqlx.Tx, sessionID string) (*domain.ReconciliationReport, error) {
	var scans []domain.SessionScan
	err := tx.SelectContext(ctx, &scans, `
		SELECT id, session_id, location_code, item_id, expected_quantity, counted_quantity, forced, scanned_by, scanned_at
		FROM session_scans WHERE session_id = $1 ORDER BY location_code, item_id`, sessionID)
	if err != nil {
		return nil, err
	}

	items := make(map[string]*domain.StockItem, len(scans))
	for _, scan := range scans {
		if _, ok := items[scan.ItemID]; ok {
			continue
		}
		var item domain.StockItem
		if err := tx.GetContext(ctx, &item,
			`SELECT `+itemColumns+` FROM stock_items WHERE id = $1`, scan.ItemID); err != nil {
			return nil, err
		}
		items[scan.ItemID] = &item
	}

	report := domain.BuildReport(sessionID, scans, items)
	return &report, nil
}
