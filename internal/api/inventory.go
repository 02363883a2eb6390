package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/inventory"
)

// InventoryHandler serves the inventory dashboard.
type InventoryHandler struct {
	*Handler
	tracker *inventory.Tracker
}

// NewInventoryHandler creates an inventory handler.
func NewInventoryHandler(base *Handler, tracker *inventory.Tracker) *InventoryHandler {
	return &InventoryHandler{Handler: base, tracker: tracker}
}

// RegisterRoutes registers inventory routes.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/inventory", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Upsert)
		r.Delete("/{index}", h.Remove)
		r.Get("/insights", h.Insights)
	})
}

func inventoryResponse(records []domain.InventoryRecord) map[string]interface{} {
	return map[string]interface{}{
		"items": records,
		"rows":  inventory.Rows(records),
	}
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.tracker.Load(r.Context(), identity.VisitorIDFromContext(r.Context()))
	JSON(w, http.StatusOK, inventoryResponse(records))
}

// Upsert handles POST /api/inventory.
func (h *InventoryHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var form inventory.Form
	if err := DecodeJSON(w, r, &form); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			DecodeError(w, err)
			return
		}
		Error(w, http.StatusBadRequest, inventory.ValidationMessage)
		return
	}

	visitorID := identity.VisitorIDFromContext(r.Context())
	records, err := h.tracker.Upsert(r.Context(), visitorID, form)
	if err != nil {
		writeDomainError(w, err, "failed to save inventory", visitorID)
		return
	}
	JSON(w, http.StatusOK, inventoryResponse(records))
}

// Remove handles DELETE /api/inventory/{index}.
func (h *InventoryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid index")
		return
	}

	visitorID := identity.VisitorIDFromContext(r.Context())
	records, err := h.tracker.Remove(r.Context(), visitorID, index)
	if err != nil {
		writeDomainError(w, err, "failed to save inventory", visitorID)
		return
	}
	JSON(w, http.StatusOK, inventoryResponse(records))
}

// Insights handles GET /api/inventory/insights.
func (h *InventoryHandler) Insights(w http.ResponseWriter, r *http.Request) {
	records := h.tracker.Load(r.Context(), identity.VisitorIDFromContext(r.Context()))
	JSON(w, http.StatusOK, map[string]interface{}{"insights": inventory.DeriveInsights(records)})
}

// writeDomainError maps validation failures to 400 with their message and
// anything else to 500.
func writeDomainError(w http.ResponseWriter, err error, fallback, visitorID string) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		JSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  verr.Message,
			"fields": verr.Fields,
		})
		return
	}
	slog.Error(fallback, "visitor_id", visitorID, "error", err)
	Error(w, http.StatusInternalServerError, fallback)
}
