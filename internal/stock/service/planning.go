package service

import (
	"context"
	"sort"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// PlanningService computes soft reservations and plannable availability from
// the planned order book.
type PlanningService struct {
	orderRepo     *repository.OrderRepository
	itemRepo      *repository.ItemRepository
	overageFactor float64
	logger        *logger.Logger
}

// NewPlanningService creates a new planning service. A zero overage factor
// falls back to the default production waste buffer.
func NewPlanningService(orderRepo *repository.OrderRepository, itemRepo *repository.ItemRepository, overageFactor float64, log *logger.Logger) *PlanningService {
	if overageFactor <= 0 {
		overageFactor = domain.DefaultOverageFactor
	}
	return &PlanningService{
		orderRepo:     orderRepo,
		itemRepo:      itemRepo,
		overageFactor: overageFactor,
		logger:        log,
	}
}

// Reservations computes the reservation totals per product over all planned
// orders. Orders with a missing or invalid recipe are flagged, not dropped.
func (s *PlanningService) Reservations(ctx context.Context) (*domain.ReservationReport, error) {
	orders, err := s.orderRepo.ListPlanned(ctx)
	if err != nil {
		return nil, err
	}

	recipes, err := s.orderRepo.RecipesByID(ctx, orders)
	if err != nil {
		return nil, err
	}

	report := domain.ComputeReservations(orders, recipes, s.overageFactor)
	if len(report.InvalidRecipeOrders) > 0 {
		s.logger.Warn().
			Strs("order_ids", report.InvalidRecipeOrders).
			Msg("planned orders with missing or invalid recipes excluded from reservations")
	}
	return &report, nil
}

// ProductAvailability is the planning view of one product.
type ProductAvailability struct {
	ProductName string  `json:"product_name"`
	Physical    float64 `json:"physical"`
	Reserved    float64 `json:"reserved"`
	Available   float64 `json:"available"`
}

// Availability returns per-product plannable stock: physical unblocked
// quantity minus soft reservations. Negative values are reported as is so
// planners can see over-commitment.
func (s *PlanningService) Availability(ctx context.Context) ([]ProductAvailability, error) {
	physical, err := s.itemRepo.PhysicalUnblockedStock(ctx)
	if err != nil {
		return nil, err
	}

	reservations, err := s.Reservations(ctx)
	if err != nil {
		return nil, err
	}

	products := make(map[string]bool, len(physical))
	for name := range physical {
		products[name] = true
	}
	for name := range reservations.Reserved {
		products[name] = true
	}

	result := make([]ProductAvailability, 0, len(products))
	for name := range products {
		result = append(result, ProductAvailability{
			ProductName: name,
			Physical:    physical[name],
			Reserved:    reservations.Reserved[name],
			Available:   domain.AvailableForPlanning(physical[name], reservations.Reserved[name]),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductName < result[j].ProductName })

	return result, nil
}
