package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/ui"
)

// UIHandler exposes the page chrome state machines.
type UIHandler struct {
	*Handler
	sessions *ui.SessionManager
}

// NewUIHandler creates a UI handler.
func NewUIHandler(base *Handler, sessions *ui.SessionManager) *UIHandler {
	return &UIHandler{Handler: base, sessions: sessions}
}

// RegisterRoutes registers UI routes.
func (h *UIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ui", func(r chi.Router) {
		r.Post("/dispatch", h.Dispatch)
		r.Get("/state", h.State)
	})
}

// Dispatch handles POST /api/ui/dispatch.
func (h *UIHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var action ui.Action
	if err := DecodeJSON(w, r, &action); err != nil {
		DecodeError(w, err)
		return
	}

	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	state, err := h.sessions.Dispatch(visitorID, sessionID, action)
	switch {
	case errors.Is(err, ui.ErrUnknownAction):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ui.ErrFeatureDisabled):
		Error(w, http.StatusForbidden, err.Error())
	case err != nil:
		Error(w, http.StatusBadRequest, err.Error())
	default:
		JSON(w, http.StatusOK, state)
	}
}

// State handles GET /api/ui/state.
func (h *UIHandler) State(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	JSON(w, http.StatusOK, h.sessions.Snapshot(visitorID, sessionID))
}
