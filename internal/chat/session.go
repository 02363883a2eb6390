package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

// Transcript authors.
const (
	AuthorUser = "user"
	AuthorBot  = "bot"
)

// Message is one rendered line in the chat transcript.
type Message struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Text    string `json:"text"`
	Pending bool   `json:"pending,omitempty"`
}

// Session is one visitor tab's conversation: the model-facing history and
// the rendered transcript. At most one submission runs at a time.
type Session struct {
	mu         sync.Mutex
	key        string
	greeting   string
	transcript []Message
	history    []domain.Turn
	inFlight   bool
	lastActive time.Time
}

// NewSession creates a session whose transcript starts with greeting.
func NewSession(key, greeting string) *Session {
	s := &Session{key: key, greeting: greeting, lastActive: time.Now()}
	s.resetLocked()
	return s
}

// Key returns the visitor:tab key the session was created for.
func (s *Session) Key() string { return s.key }

// TryBegin claims the session for one submission. It returns ErrSessionBusy
// if another submission is still in flight.
func (s *Session) TryBegin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrSessionBusy
	}
	s.inFlight = true
	s.lastActive = time.Now()
	return nil
}

// End releases the claim taken by TryBegin.
func (s *Session) End() {
	s.mu.Lock()
	s.inFlight = false
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Clear resets the transcript to the greeting and forgets the history.
// A reply still in flight is discarded when it arrives.
func (s *Session) Clear() {
	s.mu.Lock()
	s.resetLocked()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) resetLocked() {
	s.history = nil
	s.transcript = []Message{{ID: uuid.NewString(), Author: AuthorBot, Text: s.greeting}}
}

// Transcript returns a copy of the rendered messages.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// History returns a copy of the conversation turns.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// LastActive returns when the session was last touched.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) recentHistory(n int) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	recent := domain.RecentTurns(s.history, n)
	out := make([]domain.Turn, len(recent))
	copy(out, recent)
	return out
}

// appendExchange renders the user's prompt followed by a pending bot
// placeholder and returns the placeholder's ID.
func (s *Session) appendExchange(prompt, placeholder string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.transcript = append(s.transcript,
		Message{ID: uuid.NewString(), Author: AuthorUser, Text: prompt},
		Message{ID: id, Author: AuthorBot, Text: placeholder, Pending: true},
	)
	return id
}

// resolve replaces the placeholder with text and appends turns to the
// history. It reports false, changing nothing, when the placeholder no
// longer exists.
func (s *Session) resolve(placeholderID, text string, turns ...domain.Turn) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transcript {
		if s.transcript[i].ID != placeholderID {
			continue
		}
		s.transcript[i].Text = text
		s.transcript[i].Pending = false
		s.history = append(s.history, turns...)
		s.lastActive = time.Now()
		return s.transcript[i], true
	}
	return Message{}, false
}
