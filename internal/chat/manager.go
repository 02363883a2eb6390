package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/metrics"
)

const ttlWorkerInterval = 5 * time.Minute

// SessionManager holds one Session per visitor tab.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	greeting string
}

// NewSessionManager creates a manager whose sessions start with greeting.
func NewSessionManager(greeting string) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		greeting: greeting,
	}
}

// Get returns the session for visitorID/sessionID, creating it if needed.
func (m *SessionManager) Get(visitorID, sessionID string) *Session {
	key := identity.SessionKey(visitorID, sessionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := NewSession(key, m.greeting)
	m.sessions[key] = s
	metrics.ChatSessionsActive.Set(float64(len(m.sessions)))
	slog.Debug("Chat session created", "session", key)
	return s
}

// Peek returns the session if it exists without creating it.
func (m *SessionManager) Peek(visitorID, sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[identity.SessionKey(visitorID, sessionID)]
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle drops sessions idle for at least ttl and returns their keys.
// Sessions with a submission in flight are kept.
func (m *SessionManager) EvictIdle(now time.Time, ttl time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for key, s := range m.sessions {
		if s.Busy() || now.Sub(s.LastActive()) < ttl {
			continue
		}
		delete(m.sessions, key)
		evicted = append(evicted, key)
	}
	metrics.ChatSessionsActive.Set(float64(len(m.sessions)))
	return evicted
}

// StartTTLWorker runs a background goroutine that periodically evicts idle
// chat sessions until ctx is done.
func (m *SessionManager) StartTTLWorker(ctx context.Context, ttl time.Duration) {
	interval := ttlWorkerInterval
	if ttl < interval {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Chat TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case now := <-ticker.C:
				if evicted := m.EvictIdle(now, ttl); len(evicted) > 0 {
					slog.Info("Chat TTL worker evicted idle sessions", "count", len(evicted))
				}
			case <-ctx.Done():
				slog.Info("Chat TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
