package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/config"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
)

// SiteConfig is the public page configuration returned by GET /api/config.
type SiteConfig struct {
	Name              string          `json:"name"`
	VisitorLabel      string          `json:"visitor_label"`
	Features          config.Features `json:"features"`
	ChatMode          string          `json:"chat_mode"`
	Greeting          string          `json:"greeting"`
	ThinkingText      string          `json:"thinking_text"`
	QuickQuestions    []string        `json:"quick_questions"`
	TakeawayItems     []string        `json:"takeaway_items"`
	UnitPrice         int             `json:"unit_price"`
	DesktopBreakpoint int             `json:"desktop_breakpoint"`
	RevealThreshold   float64         `json:"reveal_threshold"`
}

// RegisterSite registers GET /api/config.
func (h *Handler) RegisterSite(r chi.Router) {
	r.Get("/api/config", h.GetConfig)
}

// GetConfig returns the capability flags and page content the frontend needs.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, SiteConfig{
		Name:              h.site.Name,
		VisitorLabel:      identity.LabelFromContext(r.Context()),
		Features:          h.cfg.Features,
		ChatMode:          h.cfg.Chat.Mode,
		Greeting:          h.site.Greeting,
		ThinkingText:      h.site.ThinkingText,
		QuickQuestions:    h.site.QuickQuestions,
		TakeawayItems:     h.site.Takeaway.Items,
		UnitPrice:         h.site.Takeaway.UnitPrice,
		DesktopBreakpoint: h.site.Nav.DesktopBreakpoint,
		RevealThreshold:   h.site.Reveal.Threshold,
	})
}
