// Package domain contains core domain types for the Kadak Adda site service.
package domain

import (
	"time"
)

// Visitor is an anonymous browser identity. All per-visitor storage (inventory,
// feedback, saved credentials) is scoped to a visitor.
type Visitor struct {
	VisitorID  string    `json:"visitor_id"`
	Label      string    `json:"label"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IdleFor returns how long the visitor has been inactive as of now.
func (v *Visitor) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(v.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}
