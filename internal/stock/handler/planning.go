package handler

import (
	"net/http"

	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// PlanningHandler handles reservation and availability endpoints
type PlanningHandler struct {
	service *service.PlanningService
	logger  *logger.Logger
}

// NewPlanningHandler creates a new planning handler
func NewPlanningHandler(svc *service.PlanningService, log *logger.Logger) *PlanningHandler {
	return &PlanningHandler{
		service: svc,
		logger:  log,
	}
}

// Reservations returns the per-product reservation totals
func (h *PlanningHandler) Reservations(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reservations(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// Availability returns per-product plannable stock
func (h *PlanningHandler) Availability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.service.Availability(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, availability)
}
