package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/config"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
)

type memItems struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemItems() *memItems { return &memItems{items: make(map[string]string)} }

func (m *memItems) GetItem(_ context.Context, visitorID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[visitorID+"/"+key]
	return v, ok, nil
}

func (m *memItems) SetItem(_ context.Context, visitorID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[visitorID+"/"+key] = value
	return nil
}

func (m *memItems) RemoveItem(_ context.Context, visitorID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, visitorID+"/"+key)
	return nil
}

type handlerFixture struct {
	router  http.Handler
	backend *fakeBackend
	items   *memItems
}

func newHandlerFixture(t *testing.T, mode string, limit int) *handlerFixture {
	t.Helper()
	fx := &handlerFixture{
		backend: &fakeBackend{fn: func(call Call, _ int) (*Completion, error) {
			return &Completion{Text: "Bot: echo " + call.Prompt + " key=" + call.APIKey, Model: call.Model}, nil
		}},
		items: newMemItems(),
	}
	orch, _ := newTestOrchestrator(fx.backend, testPolicy("gemma"))
	rl := NewRateLimiter(limit, time.Minute)
	h := NewHandler(orch, NewSessionManager("👋 Hi!"), rl, fx.items, nil, HandlerConfig{
		Mode:           mode,
		DefaultAPIKey:  "server-key",
		QuickQuestions: []string{"What are your hours?", "Do you deliver?"},
	})
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := identity.WithVisitor(r.Context(), "anon_test", r.Header.Get(identity.SessionHeaderName))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	fx.router = r
	return fx
}

func (fx *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.SessionHeaderName, "tab-1")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func TestHandleChat(t *testing.T) {
	fx := newHandlerFixture(t, config.ChatModeProxied, 10)

	w := fx.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Outcome.OK || resp.Outcome.Reply != "echo hello key=" {
		t.Fatalf("unexpected outcome %+v", resp.Outcome)
	}
	if len(resp.Transcript) != 3 {
		t.Fatalf("expected 3 transcript messages, got %d", len(resp.Transcript))
	}

	w = fx.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", w.Code)
	}
}

func TestHandleQuickQuestion(t *testing.T) {
	fx := newHandlerFixture(t, config.ChatModeProxied, 10)

	w := fx.do(t, http.MethodPost, "/api/chat/quick/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := fx.backend.calls[0].Prompt; got != "Do you deliver?" {
		t.Errorf("expected quick question prompt, got %q", got)
	}

	for _, idx := range []string{"2", "-1", "abc"} {
		if w := fx.do(t, http.MethodPost, "/api/chat/quick/"+idx, nil); w.Code != http.StatusNotFound {
			t.Errorf("index %s: expected 404, got %d", idx, w.Code)
		}
	}
}

func TestHandleClearAndTranscript(t *testing.T) {
	fx := newHandlerFixture(t, config.ChatModeProxied, 10)
	fx.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "hello"})

	w := fx.do(t, http.MethodPost, "/api/chat/clear", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = fx.do(t, http.MethodGet, "/api/chat/transcript", nil)
	var resp struct {
		Messages []Message `json:"messages"`
		Busy     bool      `json:"busy"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Text != "👋 Hi!" || resp.Busy {
		t.Fatalf("unexpected transcript after clear: %+v", resp)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	fx := newHandlerFixture(t, config.ChatModeProxied, 1)

	if w := fx.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "one"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := fx.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "two"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestCredentialFlow(t *testing.T) {
	t.Run("proxied mode rejects credentials", func(t *testing.T) {
		fx := newHandlerFixture(t, config.ChatModeProxied, 10)
		w := fx.do(t, http.MethodPut, "/api/chat/credential", CredentialRequest{APIKey: "abc"})
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})

	t.Run("direct mode prefers the saved key", func(t *testing.T) {
		fx := newHandlerFixture(t, config.ChatModeDirect, 10)

		w := fx.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "a"})
		var resp ChatResponse
		_ = json.NewDecoder(w.Body).Decode(&resp)
		if resp.Outcome.Reply != "echo a key=server-key" {
			t.Fatalf("expected server default key, got %q", resp.Outcome.Reply)
		}

		if w := fx.do(t, http.MethodPut, "/api/chat/credential", CredentialRequest{APIKey: " mine "}); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if v, ok, _ := fx.items.GetItem(context.Background(), "anon_test", CredentialKey); !ok || v != "mine" {
			t.Fatalf("expected saved key, got %q ok=%v", v, ok)
		}

		w = fx.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "b"})
		resp = ChatResponse{}
		_ = json.NewDecoder(w.Body).Decode(&resp)
		if resp.Outcome.Reply != "echo b key=mine" {
			t.Fatalf("expected saved key, got %q", resp.Outcome.Reply)
		}

		if w := fx.do(t, http.MethodPut, "/api/chat/credential", CredentialRequest{}); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if _, ok, _ := fx.items.GetItem(context.Background(), "anon_test", CredentialKey); ok {
			t.Fatal("expected saved key to be removed")
		}
	})
}

type blockingBackend struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Send(ctx context.Context, call Call) (*Completion, error) {
	close(b.started)
	select {
	case <-b.release:
		return &Completion{Text: "Bot: Kulhad chai is earthy.", Model: call.Model}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestHandleChatSurvivesClientDisconnect(t *testing.T) {
	backend := &blockingBackend{started: make(chan struct{}), release: make(chan struct{})}
	orch, _ := newTestOrchestrator(backend, testPolicy("gemma"))
	sessions := NewSessionManager("👋 Hi!")
	h := NewHandler(orch, sessions, NewRateLimiter(10, time.Minute), newMemItems(), nil, HandlerConfig{Mode: config.ChatModeProxied})
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	ctx, cancel := context.WithCancel(identity.WithVisitor(context.Background(), "anon_test", "tab-1"))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(`{"message":"tell me about kulhad"}`)).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, req)
	}()

	<-backend.started
	cancel()
	close(backend.release)
	<-done

	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Outcome.OK || resp.Outcome.Reply != "Kulhad chai is earthy." {
		t.Fatalf("expected the exchange to complete, got %+v", resp.Outcome)
	}

	s := sessions.Peek("anon_test", "tab-1")
	transcript := s.Transcript()
	if last := transcript[len(transcript)-1]; last.Text != "Kulhad chai is earthy." || last.Pending {
		t.Fatalf("unexpected last message %+v", last)
	}
	if got := len(s.History()); got != 2 {
		t.Fatalf("expected 2 history turns, got %d", got)
	}
}
