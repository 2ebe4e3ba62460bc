// Package consumers keeps the planned order book and recipe read model in
// sync with the planning system's event stream.
package consumers

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// OrderEventConsumer consumes planning events
type OrderEventConsumer struct {
	consumer  *messaging.Consumer
	orderRepo *repository.OrderRepository
	logger    *logger.Logger
}

// NewOrderEventConsumer creates a new order event consumer
func NewOrderEventConsumer(rmq *messaging.RabbitMQ, orderRepo *repository.OrderRepository, log *logger.Logger) (*OrderEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.order-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeOrderEvents, "orders.#"); err != nil {
		return nil, err
	}

	c := &OrderEventConsumer{
		consumer:  consumer,
		orderRepo: orderRepo,
		logger:    log,
	}

	consumer.RegisterHandler(messaging.EventOrderPlanned, c.handleOrderPlanned)
	consumer.RegisterHandler(messaging.EventOrderStarted, c.handleOrderStarted)
	consumer.RegisterHandler(messaging.EventOrderCancelled, c.handleOrderCancelled)
	consumer.RegisterHandler(messaging.EventRecipeUpserted, c.handleRecipeUpserted)

	return c, nil
}

// Start starts consuming messages
func (c *OrderEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *OrderEventConsumer) handleOrderPlanned(ctx context.Context, event *messaging.Event) error {
	var data messaging.OrderPlannedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("order_id", data.OrderID).
		Str("recipe_id", data.RecipeID).
		Float64("target_quantity", data.TargetQuantity).
		Msg("received order planned event")

	order := &domain.PlannedOrder{
		ID:             data.OrderID,
		RecipeID:       data.RecipeID,
		OrderKind:      data.OrderKind,
		TargetQuantity: data.TargetQuantity,
		Status:         domain.OrderStatusPlanned,
	}
	if !data.PlannedFor.IsZero() {
		plannedFor := data.PlannedFor
		order.PlannedFor = &plannedFor
	}

	return c.orderRepo.UpsertOrder(ctx, order)
}

func (c *OrderEventConsumer) handleOrderStarted(ctx context.Context, event *messaging.Event) error {
	var data messaging.OrderStartedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("order_id", data.OrderID).
		Msg("received order started event")

	return c.orderRepo.SetOrderStatus(ctx, data.OrderID, domain.OrderStatusStarted)
}

func (c *OrderEventConsumer) handleOrderCancelled(ctx context.Context, event *messaging.Event) error {
	var data messaging.OrderCancelledEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("order_id", data.OrderID).
		Str("reason", data.Reason).
		Msg("received order cancelled event")

	return c.orderRepo.SetOrderStatus(ctx, data.OrderID, domain.OrderStatusCancelled)
}

func (c *OrderEventConsumer) handleRecipeUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.RecipeUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("recipe_id", data.RecipeID).
		Int("ingredients", len(data.Ingredients)).
		Msg("received recipe upserted event")

	recipe := &domain.Recipe{
		ID:          data.RecipeID,
		Name:        data.Name,
		BatchWeight: data.BatchWeight,
	}
	for _, ing := range data.Ingredients {
		recipe.Lines = append(recipe.Lines, domain.RecipeLine{
			RecipeID:    data.RecipeID,
			ProductName: ing.ProductName,
			Quantity:    ing.Quantity,
			Unit:        ing.Unit,
		})
	}

	return c.orderRepo.UpsertRecipe(ctx, recipe)
}
