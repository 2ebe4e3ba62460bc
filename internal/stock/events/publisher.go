// Package events publishes the stock domain's event catalogue onto the
// stock.events exchange. Publishing is fire and forget: a broker outage must
// not fail the transaction that already committed.
package events

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// Publisher is the minimal surface StockEventPublisher needs. Satisfied by
// messaging.Publisher and by the test double in pkg/testutil.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// StockEventPublisher publishes stock-related events
type StockEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a publisher bound to the stock events exchange.
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// NewStockEventPublisherWith wires an existing publisher, used in tests.
func NewStockEventPublisherWith(publisher Publisher, log *logger.Logger) *StockEventPublisher {
	return &StockEventPublisher{publisher: publisher, logger: log}
}

// PublishItemCreated publishes a stock item created event
func (p *StockEventPublisher) PublishItemCreated(ctx context.Context, item *domain.StockItem) {
	if p == nil {
		return
	}

	data := messaging.ItemCreatedEvent{
		ItemID:       item.ID,
		ProductName:  item.ProductName,
		LotNumber:    item.LotNumber,
		ItemKind:     string(item.ItemKind),
		Quantity:     item.Quantity,
		Unit:         item.Unit,
		LocationCode: item.LocationCode,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemCreated, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item created event")
	}
}

// PublishItemMoved publishes an item moved event
func (p *StockEventPublisher) PublishItemMoved(ctx context.Context, item *domain.StockItem, previousLocation, movedBy string) {
	if p == nil {
		return
	}

	data := messaging.ItemMovedEvent{
		ItemID:       item.ID,
		FromLocation: previousLocation,
		ToLocation:   item.LocationCode,
		MovedBy:      movedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemMoved, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item moved event")
	}
}

// PublishItemBlocked publishes an item blocked event
func (p *StockEventPublisher) PublishItemBlocked(ctx context.Context, item *domain.StockItem) {
	if p == nil {
		return
	}

	reason := ""
	if item.BlockReason != nil {
		reason = *item.BlockReason
	}
	blockedBy := ""
	if item.BlockedBy != nil {
		blockedBy = *item.BlockedBy
	}

	data := messaging.ItemBlockedEvent{
		ItemID:    item.ID,
		Reason:    reason,
		BlockedBy: blockedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemBlocked, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item blocked event")
	}
}

// PublishItemUnblocked publishes an item unblocked event
func (p *StockEventPublisher) PublishItemUnblocked(ctx context.Context, item *domain.StockItem, unblockedBy string) {
	if p == nil {
		return
	}

	data := messaging.ItemUnblockedEvent{
		ItemID:      item.ID,
		UnblockedBy: unblockedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemUnblocked, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item unblocked event")
	}
}

// PublishItemArchived publishes an item archived event
func (p *StockEventPublisher) PublishItemArchived(ctx context.Context, item *domain.StockItem, lastLocation string) {
	if p == nil {
		return
	}

	data := messaging.ItemArchivedEvent{
		ItemID:       item.ID,
		ProductName:  item.ProductName,
		LotNumber:    item.LotNumber,
		LastLocation: lastLocation,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemArchived, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item archived event")
	}
}

// PublishConsumptionRecorded publishes a consumption recorded event
func (p *StockEventPublisher) PublishConsumptionRecorded(ctx context.Context, record *domain.ConsumptionRecord) {
	if p == nil {
		return
	}

	data := messaging.ConsumptionRecordedEvent{
		ConsumptionID:     record.ID,
		ItemID:            record.ItemID,
		BatchID:           record.BatchID,
		ProductName:       record.ProductName,
		RequestedQuantity: record.RequestedQuantity,
		ConsumedQuantity:  record.ConsumedQuantity,
		Clamped:           record.Clamped,
		PerformedBy:       record.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventConsumptionRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("consumption_id", record.ID).Msg("failed to publish consumption recorded event")
	}
}

// PublishConsumptionAnnulled publishes a consumption annulled event
func (p *StockEventPublisher) PublishConsumptionAnnulled(ctx context.Context, record *domain.ConsumptionRecord, restoredQuantity float64, itemRestored bool) {
	if p == nil {
		return
	}

	annulledBy := ""
	if record.AnnulledBy != nil {
		annulledBy = *record.AnnulledBy
	}

	data := messaging.ConsumptionAnnulledEvent{
		ConsumptionID:    record.ID,
		ItemID:           record.ItemID,
		RestoredQuantity: restoredQuantity,
		ItemRestored:     itemRestored,
		AnnulledBy:       annulledBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventConsumptionAnnulled, data); err != nil {
		p.logger.Error().Err(err).Str("consumption_id", record.ID).Msg("failed to publish consumption annulled event")
	}
}

// PublishSessionCompleted publishes an inventory session completed event
func (p *StockEventPublisher) PublishSessionCompleted(ctx context.Context, session *domain.InventorySession, report *domain.ReconciliationReport, completedBy string) {
	if p == nil {
		return
	}

	codes := make([]string, 0, len(session.Locations))
	for _, loc := range session.Locations {
		codes = append(codes, loc.LocationCode)
	}
	missing := 0
	for _, line := range report.Lines {
		if domain.IsEffectivelyZero(line.CountedQuantity) {
			missing++
		}
	}

	data := messaging.SessionCompletedEvent{
		SessionID:     report.SessionID,
		LocationCodes: codes,
		ItemsScanned:  report.ItemsCounted,
		ItemsMissing:  missing,
		CompletedBy:   completedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventSessionCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("session_id", report.SessionID).Msg("failed to publish session completed event")
	}
}

// PublishAdjustmentApplied publishes one event per corrected item
func (p *StockEventPublisher) PublishAdjustmentApplied(ctx context.Context, sessionID string, line domain.AdjustmentLine) {
	if p == nil {
		return
	}

	data := messaging.AdjustmentAppliedEvent{
		SessionID:        sessionID,
		ItemID:           line.ItemID,
		ExpectedQuantity: line.ExpectedQuantity,
		CountedQuantity:  line.CountedQuantity,
		Delta:            line.Delta,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAdjustmentApplied, data); err != nil {
		p.logger.Error().Err(err).Str("session_id", sessionID).Str("item_id", line.ItemID).Msg("failed to publish adjustment applied event")
	}
}
