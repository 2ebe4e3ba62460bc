package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ItemHandler handles stock item endpoints
type ItemHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.StockService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// ReceiveItemRequest is the payload for registering arrived stock.
type ReceiveItemRequest struct {
	ProductName  string     `json:"product_name" validate:"required"`
	LotNumber    string     `json:"lot_number" validate:"required"`
	ItemKind     string     `json:"item_kind" validate:"required,oneof=raw_material finished_good packaging"`
	Quantity     float64    `json:"quantity" validate:"required,gt=0"`
	Unit         string     `json:"unit"`
	LocationCode string     `json:"location_code" validate:"required"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
}

// Receive registers a newly arrived stock unit
func (h *ItemHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item := &domain.StockItem{
		ProductName:  req.ProductName,
		LotNumber:    req.LotNumber,
		ItemKind:     domain.ItemKind(req.ItemKind),
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		LocationCode: req.LocationCode,
		ExpiryDate:   req.ExpiryDate,
	}

	if err := h.service.Receive(r.Context(), item, actor.IDOrSystem(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// List lists stock items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	location := r.URL.Query().Get("location")
	product := r.URL.Query().Get("product")
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	items, total, err := h.service.List(r.Context(), page, perPage, location, product, includeArchived)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a stock item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// History returns the location ledger of an item
func (h *ItemHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// MoveItemRequest is the payload for relocating an item.
type MoveItemRequest struct {
	TargetLocation string `json:"target_location" validate:"required"`
	Action         string `json:"action" validate:"omitempty,oneof=manual_move bin_to_station"`
	Notes          string `json:"notes"`
}

// Move relocates an item
func (h *ItemHandler) Move(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MoveItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Move(r.Context(), id, req.TargetLocation, domain.LedgerAction(req.Action), req.Notes, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if !result.Success {
		httputil.JSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// SplitItemRequest is the payload for splitting quantity off an item.
type SplitItemRequest struct {
	Quantity       float64 `json:"quantity" validate:"required,gt=0"`
	TargetLocation string  `json:"target_location" validate:"required"`
}

// Split carves a quantity off an item onto a new unit
func (h *ItemHandler) Split(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SplitItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Split(r.Context(), id, req.Quantity, req.TargetLocation, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if !result.Success {
		httputil.JSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// BlockItemRequest is the payload for placing an item under a block.
type BlockItemRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Block places an item under a quality block
func (h *ItemHandler) Block(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req BlockItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.Block(r.Context(), id, req.Reason, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// UnblockItemRequest is the payload for lifting a block.
type UnblockItemRequest struct {
	Reason        string     `json:"reason" validate:"required"`
	NewExpiryDate *time.Time `json:"new_expiry_date,omitempty"`
}

// Unblock lifts a quality block
func (h *ItemHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UnblockItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.Unblock(r.Context(), id, req.Reason, actor.IDOrSystem(r.Context()), req.NewExpiryDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// MarkMissingRequest is the payload for parking an item as missing.
type MarkMissingRequest struct {
	Notes string `json:"notes"`
}

// MarkMissing parks an item on the virtual missing location
func (h *ItemHandler) MarkMissing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MarkMissingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.MarkMissing(r.Context(), id, req.Notes, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// MarkFoundRequest is the payload for restoring a missing item.
type MarkFoundRequest struct {
	LocationCode string `json:"location_code" validate:"required"`
}

// MarkFound returns a missing item to a physical location
func (h *ItemHandler) MarkFound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MarkFoundRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.MarkFound(r.Context(), id, req.LocationCode, actor.IDOrSystem(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}
