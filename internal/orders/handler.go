package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orderbridge/orderbridge/internal/lineage"
	"github.com/orderbridge/orderbridge/internal/netsuite"
	"github.com/orderbridge/orderbridge/internal/platform/httpx"
	"github.com/orderbridge/orderbridge/internal/shared"
)

// IdempotencyHeader carries the optional client key for split submissions.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the /order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/split/create", h.createSplit)
	r.Get("/{id}", h.showOrder)
	r.Post("/{id}/update", h.updateOrder)
	r.Post("/{id}/split", h.createSplit)
	r.Get("/{id}/splits", h.listSplits)
	r.Get("/{id}/family", h.showFamily)
}

type splitsResponse struct {
	Success bool                  `json:"success"`
	Splits  []lineage.SplitRecord `json:"splits"`
}

type familyResponse struct {
	Success bool `json:"success"`
	*Family
}

// splitFailure reports a split that failed after touching the ERP.
type splitFailure struct {
	httpx.ErrorBody
	ParentOrderID  string   `json:"parentOrderId"`
	NewOrderID     string   `json:"newOrderId,omitempty"`
	NewOrderNumber string   `json:"newOrderNumber,omitempty"`
	Logs           []string `json:"logs"`
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.service.ApplyUpdate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) createSplit(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))

	result, err := h.service.CreateSplit(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		if result != nil && !errors.Is(err, ErrValidation) {
			h.logger.Error("split failed", slog.String("parent_order_id", result.ParentOrderID),
				slog.String("child_order_id", result.NewOrderID), slog.Any("error", err))
			httpx.JSON(w, http.StatusInternalServerError, splitFailure{
				ErrorBody:      httpx.ErrorBody{Success: false, Error: splitFailureMessage(result, err)},
				ParentOrderID:  result.ParentOrderID,
				NewOrderID:     result.NewOrderID,
				NewOrderNumber: result.NewOrderNumber,
				Logs:           result.Logs,
			})
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func splitFailureMessage(result *SplitResult, err error) string {
	switch {
	case errors.Is(err, ErrPersistence):
		return "Split applied in NetSuite but history could not be recorded"
	case result.NewOrderID != "":
		return "Split partially applied: " + netsuite.Message(err)
	default:
		return "Split order could not be created"
	}
}

func (h *Handler) listSplits(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Splits(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, splitsResponse{Success: true, Splits: records})
}

func (h *Handler) showFamily(w http.ResponseWriter, r *http.Request) {
	family, err := h.service.Family(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, familyResponse{Success: true, Family: family})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, netsuite.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "Sales order not found")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Error(w, http.StatusConflict, "Split request already submitted")
	default:
		httpx.RespondError(w, h.logger, err)
	}
}
