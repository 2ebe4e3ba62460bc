package service

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/events"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// StockService handles stock item business logic
type StockService struct {
	itemRepo  *repository.ItemRepository
	publisher *events.StockEventPublisher
	logger    *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(itemRepo *repository.ItemRepository, publisher *events.StockEventPublisher, log *logger.Logger) *StockService {
	return &StockService{
		itemRepo:  itemRepo,
		publisher: publisher,
		logger:    log,
	}
}

// Receive registers a newly arrived stock unit and opens its ledger.
func (s *StockService) Receive(ctx context.Context, item *domain.StockItem, actor string) error {
	if err := s.itemRepo.Create(ctx, item, actor); err != nil {
		return err
	}

	s.publisher.PublishItemCreated(ctx, item)
	return nil
}

// Get gets a stock item by ID
func (s *StockService) Get(ctx context.Context, id string) (*domain.StockItem, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// List lists stock items with pagination and filters
func (s *StockService) List(ctx context.Context, page, perPage int, location, product string, includeArchived bool) ([]*domain.StockItem, int64, error) {
	return s.itemRepo.List(ctx, page, perPage, location, product, includeArchived)
}

// History returns the full location ledger of an item, oldest first.
func (s *StockService) History(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	return s.itemRepo.GetHistory(ctx, itemID)
}

// Move relocates an item after validation. A refused move comes back with
// Success=false and the reason; only committed moves publish an event.
func (s *StockService) Move(ctx context.Context, itemID, targetLocation string, action domain.LedgerAction, notes, actor string) (*repository.MoveResult, error) {
	result, err := s.itemRepo.Move(ctx, itemID, targetLocation, action, notes, actor)
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.publisher.PublishItemMoved(ctx, result.Item, result.Previous, actor)
	}
	return result, nil
}

// Split carves a quantity off an item onto a new unit at the target location.
func (s *StockService) Split(ctx context.Context, itemID string, quantity float64, targetLocation, actor string) (*repository.SplitResult, error) {
	result, err := s.itemRepo.Split(ctx, itemID, quantity, targetLocation, actor)
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.publisher.PublishItemCreated(ctx, result.NewItem)
	}
	return result, nil
}

// Block places an item under a quality block. Blocked items refuse moves,
// splits and consumption until unblocked.
func (s *StockService) Block(ctx context.Context, itemID, reason, actor string) (*domain.StockItem, error) {
	item, err := s.itemRepo.Block(ctx, itemID, reason, actor)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("item_id", itemID).Str("reason", reason).Msg("item blocked")
	s.publisher.PublishItemBlocked(ctx, item)
	return item, nil
}

// Unblock lifts a block, optionally correcting the expiry date the lab
// established during the hold.
func (s *StockService) Unblock(ctx context.Context, itemID, reason, actor string, newExpiry *time.Time) (*domain.StockItem, error) {
	item, err := s.itemRepo.Unblock(ctx, itemID, reason, actor, newExpiry)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("item_id", itemID).Str("reason", reason).Msg("item unblocked")
	s.publisher.PublishItemUnblocked(ctx, item, actor)
	return item, nil
}

// MarkMissing parks an item on the virtual missing location.
func (s *StockService) MarkMissing(ctx context.Context, itemID, notes, actor string) (*domain.StockItem, error) {
	item, err := s.itemRepo.MarkMissing(ctx, itemID, notes, actor)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishItemMoved(ctx, item, "", actor)
	return item, nil
}

// MarkFound returns a missing item to a physical location.
func (s *StockService) MarkFound(ctx context.Context, itemID, location, actor string) (*domain.StockItem, error) {
	item, err := s.itemRepo.MarkFound(ctx, itemID, location, actor)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishItemMoved(ctx, item, domain.LocationMissing, actor)
	return item, nil
}
