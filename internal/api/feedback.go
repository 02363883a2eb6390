package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/feedback"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
)

// FeedbackHandler serves the feedback form.
type FeedbackHandler struct {
	*Handler
	collector *feedback.Collector
}

// NewFeedbackHandler creates a feedback handler.
func NewFeedbackHandler(base *Handler, collector *feedback.Collector) *FeedbackHandler {
	return &FeedbackHandler{Handler: base, collector: collector}
}

// RegisterRoutes registers feedback routes.
func (h *FeedbackHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/feedback", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Submit)
		r.Get("/sentiment", h.Sentiment)
	})
}

// List handles GET /api/feedback.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.collector.List(r.Context(), identity.VisitorIDFromContext(r.Context()))
	if records == nil {
		JSON(w, http.StatusOK, map[string]interface{}{"feedback": []struct{}{}})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"feedback": records})
}

// Submit handles POST /api/feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form feedback.Form
	if err := DecodeJSON(w, r, &form); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			DecodeError(w, err)
			return
		}
		Error(w, http.StatusBadRequest, feedback.InvalidRatingMessage)
		return
	}

	visitorID := identity.VisitorIDFromContext(r.Context())
	sub, err := h.collector.Submit(r.Context(), visitorID, form)
	if err != nil {
		writeDomainError(w, err, "failed to save feedback", visitorID)
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{
		"submission": sub,
		"sentiment":  h.collector.Sentiment(r.Context(), visitorID),
	})
}

// Sentiment handles GET /api/feedback/sentiment.
func (h *FeedbackHandler) Sentiment(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.collector.Sentiment(r.Context(), identity.VisitorIDFromContext(r.Context())))
}
