package ui

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/identity"
)

// ErrUnknownAction is returned for an action type with no handler.
var ErrUnknownAction = errors.New("unknown action")

// ErrFeatureDisabled is returned for takeaway actions when the takeaway
// feature is off.
var ErrFeatureDisabled = errors.New("feature disabled")

// Action is one UI event sent by the page.
type Action struct {
	Type   string  `json:"type"`
	Width  int     `json:"width,omitempty"`
	Inside bool    `json:"inside,omitempty"`
	Target string  `json:"target,omitempty"`
	Ratio  float64 `json:"ratio,omitempty"`
}

// State is the chrome of one visitor tab.
type State struct {
	Nav      Nav    `json:"nav"`
	Reveal   Reveal `json:"reveal"`
	Order    Order  `json:"order"`
	Widget   Widget `json:"widget"`
	Modal    Modal  `json:"modal"`
	Takeaway bool   `json:"takeaway"`
}

// Settings configure fresh States.
type Settings struct {
	DesktopBreakpoint int
	RevealThreshold   float64
	TakeawayItems     []string
	UnitPrice         int
	Takeaway          bool
}

// NewState creates the initial chrome state.
func NewState(s Settings) *State {
	return &State{
		Nav:      Nav{Breakpoint: s.DesktopBreakpoint},
		Reveal:   Reveal{Threshold: s.RevealThreshold, Visible: map[string]bool{}},
		Order:    NewOrder(s.TakeawayItems, s.UnitPrice),
		Takeaway: s.Takeaway,
	}
}

// clone deep-copies the maps so snapshots do not alias live state.
func (s *State) clone() State {
	out := *s
	out.Reveal.Visible = make(map[string]bool, len(s.Reveal.Visible))
	for k, v := range s.Reveal.Visible {
		out.Reveal.Visible[k] = v
	}
	out.Order.Items = append([]string(nil), s.Order.Items...)
	out.Order.Quantities = make(map[string]int, len(s.Order.Quantities))
	for k, v := range s.Order.Quantities {
		out.Order.Quantities[k] = v
	}
	return out
}

// HandlerFunc applies an action to state.
type HandlerFunc func(state *State, a Action) error

// Dispatcher maps action types to handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher returns a dispatcher with the page's standard actions registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]HandlerFunc)}

	d.Register("nav.toggle", func(s *State, _ Action) error { s.Nav.Toggle(); return nil })
	d.Register("nav.link_click", func(s *State, a Action) error { s.Nav.LinkClicked(a.Width); return nil })
	d.Register("nav.outside_click", func(s *State, a Action) error { s.Nav.OutsideClick(a.Width, a.Inside); return nil })
	d.Register("viewport.resize", func(s *State, a Action) error { s.Nav.Resize(a.Width); return nil })

	d.Register("reveal.intersect", func(s *State, a Action) error {
		if a.Target == "" {
			return fmt.Errorf("reveal.intersect requires a target")
		}
		_, err := s.Reveal.Observe(a.Target, a.Ratio)
		return err
	})

	d.Register("widget.toggle", func(s *State, _ Action) error { s.Widget.Toggle(); return nil })
	d.Register("widget.open", func(s *State, _ Action) error { s.Widget.Show(); return nil })
	d.Register("widget.close", func(s *State, _ Action) error { s.Widget.Hide(); return nil })
	d.Register("widget.outside_click", func(s *State, a Action) error { s.Widget.OutsideClick(a.Inside); return nil })

	d.Register("takeaway.open", takeaway(func(s *State, _ Action) error { s.Modal.Show(); return nil }))
	d.Register("takeaway.close", takeaway(func(s *State, _ Action) error { s.Modal.Hide(); return nil }))
	d.Register("takeaway.backdrop_click", takeaway(func(s *State, a Action) error { s.Modal.BackdropClick(!a.Inside); return nil }))
	d.Register("takeaway.increment", takeaway(func(s *State, a Action) error { return s.Order.Increment(a.Target) }))
	d.Register("takeaway.decrement", takeaway(func(s *State, a Action) error { return s.Order.Decrement(a.Target) }))

	return d
}

func takeaway(next HandlerFunc) HandlerFunc {
	return func(s *State, a Action) error {
		if !s.Takeaway {
			return ErrFeatureDisabled
		}
		return next(s, a)
	}
}

// Register adds or replaces the handler for an action type.
func (d *Dispatcher) Register(actionType string, h HandlerFunc) {
	d.handlers[actionType] = h
}

// Actions lists the registered action types, sorted.
func (d *Dispatcher) Actions() []string {
	out := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dispatch applies a to state.
func (d *Dispatcher) Dispatch(state *State, a Action) error {
	h, ok := d.handlers[a.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	return h(state, a)
}

type entry struct {
	state    *State
	lastUsed time.Time
}

// SessionManager holds a State per visitor tab.
type SessionManager struct {
	mu         sync.Mutex
	states     map[string]*entry
	settings   Settings
	dispatcher *Dispatcher
}

// NewSessionManager creates a manager that builds fresh states from settings.
func NewSessionManager(settings Settings, dispatcher *Dispatcher) *SessionManager {
	return &SessionManager{
		states:     make(map[string]*entry),
		settings:   settings,
		dispatcher: dispatcher,
	}
}

// Snapshot returns a copy of the state for the visitor tab.
func (m *SessionManager) Snapshot(visitorID, sessionID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(visitorID, sessionID).clone()
}

// Dispatch applies a to the visitor tab's state and returns the new state.
// A failed action leaves the state unchanged.
func (m *SessionManager) Dispatch(visitorID, sessionID string, a Action) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.getLocked(visitorID, sessionID)
	next := st.clone()
	if err := m.dispatcher.Dispatch(&next, a); err != nil {
		return st.clone(), err
	}
	*st = next
	return next.clone(), nil
}

// EvictIdle drops states unused for at least ttl and returns how many were removed.
func (m *SessionManager) EvictIdle(now time.Time, ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, e := range m.states {
		if now.Sub(e.lastUsed) >= ttl {
			delete(m.states, key)
			n++
		}
	}
	return n
}

func (m *SessionManager) getLocked(visitorID, sessionID string) *State {
	key := identity.SessionKey(visitorID, sessionID)
	e, ok := m.states[key]
	if !ok {
		e = &entry{state: NewState(m.settings)}
		m.states[key] = e
	}
	e.lastUsed = time.Now()
	return e.state
}
