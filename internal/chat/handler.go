package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/api"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/config"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/store"
)

// CredentialKey is the per-visitor item holding a saved API key (direct mode).
const CredentialKey = "geminiApiKey"

const maxCredentialLength = 256

// HandlerConfig carries the non-dependency settings of a Handler.
type HandlerConfig struct {
	Mode           string
	DefaultAPIKey  string
	QuickQuestions []string
}

// Handler serves the chat HTTP API.
type Handler struct {
	orch        *Orchestrator
	sessions    *SessionManager
	rateLimiter *RateLimiter
	items       store.ItemStore
	log         ConversationLogger
	cfg         HandlerConfig
}

// NewHandler creates a chat handler. A nil conversation logger disables logging.
func NewHandler(orch *Orchestrator, sessions *SessionManager, rateLimiter *RateLimiter, items store.ItemStore, conversationLogger ConversationLogger, cfg HandlerConfig) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	return &Handler{
		orch:        orch,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		items:       items,
		log:         conversationLogger,
		cfg:         cfg,
	}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse reports a finished submission and the resulting transcript.
type ChatResponse struct {
	Outcome    Outcome   `json:"outcome"`
	Transcript []Message `json:"transcript"`
}

// CredentialRequest is the body of PUT /api/chat/credential.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.HandleChat)
		r.Post("/quick/{index}", h.HandleQuickQuestion)
		r.Get("/quick-questions", h.HandleQuickQuestions)
		r.Get("/transcript", h.HandleTranscript)
		r.Post("/clear", h.HandleClear)
		r.Get("/credential", h.HandleCredentialStatus)
		r.Put("/credential", h.HandleSaveCredential)
	})
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.DecodeError(w, err)
		return
	}
	h.respondSubmit(w, r, req.Message, "chat_http")
}

// HandleQuickQuestion handles POST /api/chat/quick/{index}: submits one of
// the configured quick questions as if typed.
func (h *Handler) HandleQuickQuestion(w http.ResponseWriter, r *http.Request) {
	question, ok := h.quickQuestion(chi.URLParam(r, "index"))
	if !ok {
		api.Error(w, http.StatusNotFound, "unknown quick question")
		return
	}
	h.respondSubmit(w, r, question, "quick_question")
}

// HandleQuickQuestions handles GET /api/chat/quick-questions.
func (h *Handler) HandleQuickQuestions(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, map[string]interface{}{"questions": h.cfg.QuickQuestions})
}

// HandleTranscript handles GET /api/chat/transcript.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	s := h.session(r.Context())
	api.JSON(w, http.StatusOK, map[string]interface{}{
		"messages": s.Transcript(),
		"busy":     s.Busy(),
	})
}

// HandleClear handles POST /api/chat/clear.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	s := h.session(r.Context())
	s.Clear()
	h.log.Log(ConversationLogEvent{
		VisitorID: identity.VisitorIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
		Channel:   "chat_http",
		Direction: "outbound",
		EventType: "chat_cleared",
	})
	api.JSON(w, http.StatusOK, map[string]interface{}{"messages": s.Transcript()})
}

// HandleCredentialStatus handles GET /api/chat/credential. The key itself is
// never returned.
func (h *Handler) HandleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]interface{}{
		"mode":    h.cfg.Mode,
		"has_key": h.apiKey(r.Context(), identity.VisitorIDFromContext(r.Context())) != "",
	})
}

// HandleSaveCredential handles PUT /api/chat/credential. An empty key removes
// the saved one.
func (h *Handler) HandleSaveCredential(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Mode != config.ChatModeDirect {
		api.Error(w, http.StatusConflict, "credentials are only used in direct mode")
		return
	}
	var req CredentialRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.DecodeError(w, err)
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if len(key) > maxCredentialLength {
		api.Error(w, http.StatusBadRequest, "api key is too long")
		return
	}

	visitorID := identity.VisitorIDFromContext(r.Context())
	var err error
	if key == "" {
		err = h.items.RemoveItem(r.Context(), visitorID, CredentialKey)
	} else {
		err = h.items.SetItem(r.Context(), visitorID, CredentialKey, key)
	}
	if err != nil {
		slog.Error("Failed to save chat credential", "visitor_id", visitorID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to save credential")
		return
	}
	api.JSON(w, http.StatusOK, map[string]interface{}{"mode": h.cfg.Mode, "has_key": key != "" || h.cfg.DefaultAPIKey != ""})
}

func (h *Handler) respondSubmit(w http.ResponseWriter, r *http.Request, prompt, channel string) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if !h.rateLimiter.Allow(visitorID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	s := h.session(r.Context())
	outcome, err := h.Submit(r.Context(), s, prompt, channel, nil)
	switch {
	case errors.Is(err, ErrEmptyPrompt):
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, ErrSessionBusy):
		api.Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.JSON(w, http.StatusOK, ChatResponse{Outcome: outcome, Transcript: s.Transcript()})
}

// Submit runs prompt through the orchestrator for the visitor in ctx and
// records both sides in the conversation log. Once sent, a prompt runs to
// completion even if the caller goes away; the backend timeout bounds it.
func (h *Handler) Submit(ctx context.Context, s *Session, prompt, channel string, observer Observer) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	visitorID := identity.VisitorIDFromContext(ctx)
	sessionID := identity.SessionIDFromContext(ctx)
	reqID := chiMiddleware.GetReqID(ctx)

	h.log.Log(ConversationLogEvent{
		VisitorID:  visitorID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: prompt,
		Meta:       map[string]any{"request_id": reqID},
	})

	start := time.Now()
	outcome, err := h.orch.Submit(ctx, s, prompt, Options{
		APIKey:   h.apiKey(ctx, visitorID),
		Observer: observer,
	})
	if err != nil {
		return outcome, err
	}

	slog.Info("Chat request finished",
		"visitor_id", visitorID,
		"session_id", sessionID,
		"ok", outcome.OK,
		"model", outcome.Model,
		"attempts", outcome.Attempts,
		"duration", time.Since(start),
	)
	meta := map[string]any{
		"request_id": reqID,
		"ok":         outcome.OK,
		"model":      outcome.Model,
		"attempts":   outcome.Attempts,
		"stale":      outcome.Stale,
	}
	if outcome.Err != nil {
		meta["error"] = outcome.Err.Error()
	}
	h.log.Log(ConversationLogEvent{
		VisitorID:  visitorID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: outcome.Reply,
		Meta:       meta,
	})
	return outcome, nil
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
	if err := h.log.Close(); err != nil {
		slog.Warn("failed to close conversation logger", "error", err)
	}
}

func (h *Handler) session(ctx context.Context) *Session {
	return h.sessions.Get(identity.VisitorIDFromContext(ctx), identity.SessionIDFromContext(ctx))
}

func (h *Handler) quickQuestion(raw string) (string, bool) {
	i, err := strconv.Atoi(raw)
	if err != nil {
		return "", false
	}
	return h.quickQuestionAt(i)
}

func (h *Handler) quickQuestionAt(i int) (string, bool) {
	if i < 0 || i >= len(h.cfg.QuickQuestions) {
		return "", false
	}
	return h.cfg.QuickQuestions[i], true
}

// apiKey resolves the direct-mode credential: the visitor's saved key, else
// the server default. Storage errors are logged and treated as absent.
func (h *Handler) apiKey(ctx context.Context, visitorID string) string {
	if h.cfg.Mode != config.ChatModeDirect {
		return ""
	}
	if visitorID != "" && h.items != nil {
		key, ok, err := h.items.GetItem(ctx, visitorID, CredentialKey)
		if err != nil {
			slog.Warn("Failed to read saved chat credential", "visitor_id", visitorID, "error", err)
		} else if ok && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key)
		}
	}
	return h.cfg.DefaultAPIKey
}
