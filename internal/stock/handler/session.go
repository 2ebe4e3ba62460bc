package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// SessionHandler handles inventory session endpoints
type SessionHandler struct {
	service *service.SessionService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc *service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  log,
	}
}

// CreateSessionRequest is the payload for opening a counting session.
type CreateSessionRequest struct {
	Name          string   `json:"name" validate:"required"`
	LocationCodes []string `json:"location_codes" validate:"required,min=1,dive,required"`
}

// Create opens a counting session over the given locations
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	session, err := h.service.Create(r.Context(), req.Name, req.LocationCodes, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, session)
}

// Get gets a session with its locations
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, session)
}

// ListOngoing lists all ongoing sessions
func (h *SessionHandler) ListOngoing(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListOngoing(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sessions)
}

// ScanPalletRequest is one blind count of a pallet.
type ScanPalletRequest struct {
	LocationCode    string  `json:"location_code" validate:"required"`
	ItemID          string  `json:"item_id" validate:"required,uuid"`
	CountedQuantity float64 `json:"counted_quantity" validate:"gte=0"`
	Force           bool    `json:"force"`
}

// Scan records one blind count
func (h *SessionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ScanPalletRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Scan(r.Context(), repository.ScanRequest{
		SessionID:       id,
		LocationCode:    req.LocationCode,
		ItemID:          req.ItemID,
		CountedQuantity: req.CountedQuantity,
		Force:           req.Force,
		Actor:           actor.IDOrSystem(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if result.RecountNeeded {
		httputil.JSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// FinishLocation marks a location's count as done
func (h *SessionHandler) FinishLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	code := chi.URLParam(r, "code")

	if err := h.service.FinishLocation(r.Context(), id, code, actor.IDOrSystem(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ReopenLocation puts a finished location back under count
func (h *SessionHandler) ReopenLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	code := chi.URLParam(r, "code")

	if err := h.service.ReopenLocation(r.Context(), id, code); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Complete closes the session and returns the reconciliation report
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.Complete(r.Context(), id, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// Report returns the reconciliation report of a completed session
func (h *SessionHandler) Report(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.Report(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// ApplyAdjustments writes the reviewed count corrections back onto stock
func (h *SessionHandler) ApplyAdjustments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	applied, err := h.service.ApplyAdjustments(r.Context(), id, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, applied)
}
