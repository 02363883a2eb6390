package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
)

const wsWriteTimeout = 10 * time.Second

// wsMessage is the client-to-server message structure.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Index   *int   `json:"index,omitempty"`
}

// wsReply is the server-to-client message structure.
type wsReply struct {
	Type       string    `json:"type"`
	Event      *Event    `json:"event,omitempty"`
	Outcome    *Outcome  `json:"outcome,omitempty"`
	Transcript []Message `json:"transcript,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ConnRegistry tracks the live WebSocket per visitor tab. Registering a new
// connection for a tab closes the previous one.
type ConnRegistry struct {
	mu     sync.Mutex
	active map[string]*websocket.Conn
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{active: make(map[string]*websocket.Conn)}
}

// Register records conn as the live connection for key.
func (m *ConnRegistry) Register(key string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.active[key]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	m.active[key] = conn
}

// Unregister removes conn if it is still the live connection for key.
func (m *ConnRegistry) Unregister(key string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.active[key]; ok && current == conn {
		delete(m.active, key)
	}
}

// WebSocketHandler serves /ws/chat: prompts in, state events and outcomes out.
type WebSocketHandler struct {
	chat          *Handler
	conns         *ConnRegistry
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(chat *Handler, conns *ConnRegistry, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		chat:          chat,
		conns:         conns,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	key := identity.SessionKey(visitorID, sessionID)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "visitor_id", visitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", visitorID)
		}
	}()

	h.conns.Register(key, ws)
	defer h.conns.Unregister(key, ws)
	slog.Info("Chat WebSocket connected", "visitor_id", visitorID, "session_id", sessionID)

	s := h.chat.session(r.Context())
	if err := writeJSON(r.Context(), ws, wsReply{Type: "transcript", Transcript: s.Transcript()}); err != nil {
		slog.Debug("Failed to send initial transcript", "error", err)
		return
	}

	h.readLoop(r.Context(), ws, s)
	slog.Info("Chat WebSocket closed", "visitor_id", visitorID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, s *Session) {
	visitorID := identity.VisitorIDFromContext(ctx)
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "visitor_id", visitorID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "visitor_id", visitorID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := writeJSON(ctx, ws, wsReply{Type: "error", Error: "invalid message"}); err != nil {
				return
			}
			continue
		}

		var reply wsReply
		switch msg.Type {
		case "prompt":
			reply = h.submit(ctx, ws, s, msg.Content, "chat_ws")
		case "quick":
			question, ok := "", false
			if msg.Index != nil {
				question, ok = h.chat.quickQuestionAt(*msg.Index)
			}
			if !ok {
				reply = wsReply{Type: "error", Error: "unknown quick question"}
				break
			}
			reply = h.submit(ctx, ws, s, question, "quick_question")
		case "clear":
			s.Clear()
			reply = wsReply{Type: "transcript", Transcript: s.Transcript()}
		case "ping":
			reply = wsReply{Type: "pong"}
		default:
			reply = wsReply{Type: "error", Error: "unknown message type"}
		}

		if err := writeJSON(ctx, ws, reply); err != nil {
			slog.Debug("Failed to write WebSocket reply", "error", err, "visitor_id", visitorID)
			return
		}
	}
}

// submit streams each state event to the client and returns the final reply.
func (h *WebSocketHandler) submit(ctx context.Context, ws *websocket.Conn, s *Session, prompt, channel string) wsReply {
	if !h.chat.rateLimiter.Allow(identity.VisitorIDFromContext(ctx)) {
		return wsReply{Type: "error", Error: "rate limit exceeded"}
	}
	observer := func(ev Event) {
		if err := writeJSON(ctx, ws, wsReply{Type: "state", Event: &ev}); err != nil {
			slog.Debug("Failed to stream chat state", "error", err)
		}
	}
	outcome, err := h.chat.Submit(ctx, s, prompt, channel, observer)
	if err != nil {
		return wsReply{Type: "error", Error: err.Error()}
	}
	return wsReply{Type: "outcome", Outcome: &outcome, Transcript: s.Transcript()}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
