package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/events"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ConsumptionService handles consumption business logic
type ConsumptionService struct {
	consumptionRepo *repository.ConsumptionRepository
	publisher       *events.StockEventPublisher
	logger          *logger.Logger
}

// NewConsumptionService creates a new consumption service
func NewConsumptionService(consumptionRepo *repository.ConsumptionRepository, publisher *events.StockEventPublisher, log *logger.Logger) *ConsumptionService {
	return &ConsumptionService{
		consumptionRepo: consumptionRepo,
		publisher:       publisher,
		logger:          log,
	}
}

// Consume debits stock for a batch. A retried request with the same
// consumption ID returns the original record without debiting again, and
// without re-publishing events.
func (s *ConsumptionService) Consume(ctx context.Context, req repository.ConsumeRequest) (*repository.ConsumeResult, error) {
	result, err := s.consumptionRepo.Consume(ctx, req)
	if err != nil {
		return nil, err
	}

	if result.Success && !result.Duplicate {
		if result.Clamped {
			s.logger.Warn().
				Str("item_id", req.ItemID).
				Str("batch_id", req.BatchID).
				Float64("requested", req.Quantity).
				Float64("consumed", result.ConsumedQuantity).
				Msg("consumption clamped to available quantity")
		}
		s.publisher.PublishConsumptionRecorded(ctx, result.Record)
		if result.Record.ArchivedItem {
			s.publisher.PublishItemArchived(ctx, result.Item, result.Record.SourceLocation)
		}
	}
	return result, nil
}

// Annul reverses a consumption and credits the quantity back.
func (s *ConsumptionService) Annul(ctx context.Context, consumptionID, actor string) (*domain.ConsumptionRecord, *domain.StockItem, error) {
	record, item, err := s.consumptionRepo.Annul(ctx, consumptionID, actor)
	if err != nil {
		return nil, nil, err
	}

	restored := !item.IsArchived() && record.ArchivedItem
	s.publisher.PublishConsumptionAnnulled(ctx, record, record.ConsumedQuantity, restored)
	return record, item, nil
}

// Get gets a consumption record by ID
func (s *ConsumptionService) Get(ctx context.Context, id string) (*domain.ConsumptionRecord, error) {
	return s.consumptionRepo.GetByID(ctx, id)
}

// BatchSummary is a batch's consumption trail with its effective total.
type BatchSummary struct {
	BatchID string                     `json:"batch_id"`
	Records []domain.ConsumptionRecord `json:"records"`
	Total   float64                    `json:"total"`
}

// ListByBatch lists a batch's consumptions, annulled entries included, with
// the effective total excluding annulled quantities.
func (s *ConsumptionService) ListByBatch(ctx context.Context, batchID string) (*BatchSummary, error) {
	records, err := s.consumptionRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &BatchSummary{
		BatchID: batchID,
		Records: records,
		Total:   domain.BatchTotal(records),
	}, nil
}
