package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ConsumptionHandler handles consumption endpoints
type ConsumptionHandler struct {
	service *service.ConsumptionService
	logger  *logger.Logger
}

// NewConsumptionHandler creates a new consumption handler
func NewConsumptionHandler(svc *service.ConsumptionService, log *logger.Logger) *ConsumptionHandler {
	return &ConsumptionHandler{
		service: svc,
		logger:  log,
	}
}

// ConsumeRequest is the payload for debiting stock against a batch. The
// consumption ID is client-generated so a retried request stays idempotent.
type ConsumeRequest struct {
	ConsumptionID string  `json:"consumption_id" validate:"omitempty,uuid"`
	BatchID       string  `json:"batch_id" validate:"required"`
	ItemID        string  `json:"item_id" validate:"required,uuid"`
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	Context       string  `json:"context" validate:"required,oneof=production mixing"`
}

// Consume debits stock for a batch
func (h *ConsumptionHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Consume(r.Context(), repository.ConsumeRequest{
		ConsumptionID: req.ConsumptionID,
		BatchID:       req.BatchID,
		ItemID:        req.ItemID,
		Quantity:      req.Quantity,
		Context:       domain.ConsumptionContext(req.Context),
		Actor:         actor.IDOrSystem(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if !result.Success {
		httputil.JSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	if result.Duplicate {
		httputil.JSON(w, http.StatusOK, result)
		return
	}
	httputil.JSON(w, http.StatusCreated, result)
}

// Annul reverses a consumption
func (h *ConsumptionHandler) Annul(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, item, err := h.service.Annul(r.Context(), id, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"record": record,
		"item":   item,
	})
}

// Get gets a consumption record by ID
func (h *ConsumptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}

// ListByBatch lists a batch's consumption trail with its effective total
func (h *ConsumptionHandler) ListByBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	summary, err := h.service.ListByBatch(r.Context(), batchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}
