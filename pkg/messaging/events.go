package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types. The type doubles as the routing key on the topic exchange.
const (
	// Stock item events
	EventItemCreated   = "stock.item.created"
	EventItemMoved     = "stock.item.moved"
	EventItemBlocked   = "stock.item.blocked"
	EventItemUnblocked = "stock.item.unblocked"
	EventItemArchived  = "stock.item.archived"

	// Consumption events
	EventConsumptionRecorded = "stock.consumption.recorded"
	EventConsumptionAnnulled = "stock.consumption.annulled"

	// Reconciliation events
	EventSessionCompleted  = "stock.session.completed"
	EventAdjustmentApplied = "stock.adjustment.applied"

	// Planning events consumed from the order system
	EventOrderPlanned   = "orders.order.planned"
	EventOrderStarted   = "orders.order.started"
	EventOrderCancelled = "orders.order.cancelled"
	EventRecipeUpserted = "orders.recipe.upserted"
)

// Exchange names
const (
	ExchangeStockEvents = "stock.events"
	ExchangeOrderEvents = "orders.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Item Events

// ItemCreatedEvent is published when a stock item is registered
type ItemCreatedEvent struct {
	ItemID       string  `json:"item_id"`
	ProductName  string  `json:"product_name"`
	LotNumber    string  `json:"lot_number"`
	ItemKind     string  `json:"item_kind"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	LocationCode string  `json:"location_code"`
}

// ItemMovedEvent is published when an item changes location
type ItemMovedEvent struct {
	ItemID       string `json:"item_id"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	MovedBy      string `json:"moved_by"`
}

// ItemBlockedEvent is published when an item is placed under a block
type ItemBlockedEvent struct {
	ItemID    string `json:"item_id"`
	Reason    string `json:"reason"`
	BlockedBy string `json:"blocked_by"`
}

// ItemUnblockedEvent is published when a block is lifted
type ItemUnblockedEvent struct {
	ItemID      string `json:"item_id"`
	UnblockedBy string `json:"unblocked_by"`
}

// ItemArchivedEvent is published when an item's quantity reaches zero
type ItemArchivedEvent struct {
	ItemID       string `json:"item_id"`
	ProductName  string `json:"product_name"`
	LotNumber    string `json:"lot_number"`
	LastLocation string `json:"last_location"`
}

// Consumption Events

// ConsumptionRecordedEvent is published after a successful consumption
type ConsumptionRecordedEvent struct {
	ConsumptionID     string  `json:"consumption_id"`
	ItemID            string  `json:"item_id"`
	BatchID           string  `json:"batch_id"`
	ProductName       string  `json:"product_name"`
	RequestedQuantity float64 `json:"requested_quantity"`
	ConsumedQuantity  float64 `json:"consumed_quantity"`
	Clamped           bool    `json:"clamped"`
	PerformedBy       string  `json:"performed_by"`
}

// ConsumptionAnnulledEvent is published when a consumption is rolled back
type ConsumptionAnnulledEvent struct {
	ConsumptionID    string  `json:"consumption_id"`
	ItemID           string  `json:"item_id"`
	RestoredQuantity float64 `json:"restored_quantity"`
	ItemRestored     bool    `json:"item_restored"`
	AnnulledBy       string  `json:"annulled_by"`
}

// Reconciliation Events

// SessionCompletedEvent is published when a reconciliation session closes
type SessionCompletedEvent struct {
	SessionID     string   `json:"session_id"`
	LocationCodes []string `json:"location_codes"`
	ItemsScanned  int      `json:"items_scanned"`
	ItemsMissing  int      `json:"items_missing"`
	CompletedBy   string   `json:"completed_by"`
}

// AdjustmentAppliedEvent is published per corrected item on session completion
type AdjustmentAppliedEvent struct {
	SessionID        string  `json:"session_id"`
	ItemID           string  `json:"item_id"`
	ExpectedQuantity float64 `json:"expected_quantity"`
	CountedQuantity  float64 `json:"counted_quantity"`
	Delta            float64 `json:"delta"`
}

// Planning Events (consumed)

// OrderPlannedEvent is received when the planning system schedules an order
type OrderPlannedEvent struct {
	OrderID        string    `json:"order_id"`
	RecipeID       string    `json:"recipe_id"`
	OrderKind      string    `json:"order_kind"`
	TargetQuantity float64   `json:"target_quantity"`
	PlannedFor     time.Time `json:"planned_for"`
}

// OrderStartedEvent is received when an order enters production
type OrderStartedEvent struct {
	OrderID string `json:"order_id"`
}

// OrderCancelledEvent is received when an order is withdrawn from the plan
type OrderCancelledEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// RecipeUpsertedEvent is received when a recipe definition changes
type RecipeUpsertedEvent struct {
	RecipeID    string             `json:"recipe_id"`
	Name        string             `json:"name"`
	BatchWeight float64            `json:"batch_weight"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

// RecipeIngredient is a single line of a recipe payload
type RecipeIngredient struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
