package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/events"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// SessionService handles blind-count reconciliation sessions.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	publisher   *events.StockEventPublisher
	thresholds  domain.DiscrepancyThresholds
	logger      *logger.Logger
}

// NewSessionService creates a new session service. Zero thresholds fall back
// to the defaults.
func NewSessionService(sessionRepo *repository.SessionRepository, publisher *events.StockEventPublisher, thresholds domain.DiscrepancyThresholds, log *logger.Logger) *SessionService {
	if thresholds.AbsoluteKg <= 0 && thresholds.Relative <= 0 {
		thresholds = domain.DefaultThresholds()
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		publisher:   publisher,
		thresholds:  thresholds,
		logger:      log,
	}
}

// Create opens a session over the given locations. The locations are locked
// against moves and consumption until each is scanned or the session closes.
func (s *SessionService) Create(ctx context.Context, name string, locationCodes []string, actor string) (*domain.InventorySession, error) {
	session, err := s.sessionRepo.Create(ctx, name, locationCodes, actor)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Strs("locations", locationCodes).
		Msg("inventory session opened")
	return session, nil
}

// Get gets a session with its locations
func (s *SessionService) Get(ctx context.Context, id string) (*domain.InventorySession, error) {
	return s.sessionRepo.GetByID(ctx, id)
}

// ListOngoing lists all ongoing sessions
func (s *SessionService) ListOngoing(ctx context.Context) ([]domain.InventorySession, error) {
	return s.sessionRepo.ListOngoing(ctx)
}

// Scan records one blind count. Counts beyond tolerance are not stored until
// re-entered or forced.
func (s *SessionService) Scan(ctx context.Context, req repository.ScanRequest) (*repository.ScanResult, error) {
	result, err := s.sessionRepo.RecordScan(ctx, req, s.thresholds)
	if err != nil {
		return nil, err
	}

	if result.RecountNeeded {
		s.logger.Warn().
			Str("session_id", req.SessionID).
			Str("item_id", req.ItemID).
			Float64("delta", result.Delta).
			Float64("tolerance", result.Tolerance).
			Msg("scan outside tolerance, recount requested")
	}
	return result, nil
}

// FinishLocation marks a location's count as done, releasing its lock.
func (s *SessionService) FinishLocation(ctx context.Context, sessionID, locationCode, actor string) error {
	return s.sessionRepo.FinishLocation(ctx, sessionID, locationCode, actor)
}

// ReopenLocation puts a finished location back under count.
func (s *SessionService) ReopenLocation(ctx context.Context, sessionID, locationCode string) error {
	return s.sessionRepo.ReopenLocation(ctx, sessionID, locationCode)
}

// Complete closes the session and returns the reconciliation report. The
// stock corrections it proposes are applied separately via ApplyAdjustments.
func (s *SessionService) Complete(ctx context.Context, sessionID, actor string) (*domain.ReconciliationReport, error) {
	report, err := s.sessionRepo.Complete(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("items_counted", report.ItemsCounted).
		Float64("net_delta", report.NetDelta).
		Msg("inventory session completed")
	s.publisher.PublishSessionCompleted(ctx, session, report, actor)
	return report, nil
}

// Report returns the reconciliation report of a completed session.
func (s *SessionService) Report(ctx context.Context, sessionID string) (*domain.ReconciliationReport, error) {
	return s.sessionRepo.Report(ctx, sessionID)
}

// ApplyAdjustments writes the reviewed count corrections back onto stock.
func (s *SessionService) ApplyAdjustments(ctx context.Context, sessionID, actor string) ([]domain.AdjustmentLine, error) {
	applied, err := s.sessionRepo.ApplyAdjustments(ctx, sessionID, actor)
	if err != nil {
		return nil, err
	}

	for _, line := range applied {
		s.publisher.PublishAdjustmentApplied(ctx, sessionID, line)
	}
	return applied, nil
}
