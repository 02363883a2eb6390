// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

// ItemStore is a per-visitor string key/value store. Values are opaque
// (callers store JSON); an absent key is a valid state, not an error.
type ItemStore interface {
	// GetItem returns the value stored under key and whether it exists.
	GetItem(ctx context.Context, visitorID, key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, visitorID, key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, visitorID, key string) error
}

// Repository defines the interface for persisting visitors and their items.
type Repository interface {
	ItemStore

	// GetVisitor retrieves a visitor by ID. Returns nil, nil when absent.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error

	// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error

	// Ping verifies storage connectivity and returns an error if it is unreachable.
	Ping(ctx context.Context) error

	// Close releases the underlying storage.
	Close() error
}
