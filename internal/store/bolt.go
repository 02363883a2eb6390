package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var (
	visitorsBucket = []byte("visitors")
	itemsBucket    = []byte("items")
)

// BoltStore implements Repository on a single BoltDB file. Visitors live in
// one bucket as JSON; items live in a nested bucket per visitor.
type BoltStore struct {
	db *bolt.DB
}

// NewBolt opens (or creates) a BoltDB-backed repository at path.
func NewBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(visitorsBucket); e != nil {
			return e
		}
		_, e := tx.CreateBucketIfNotExists(itemsBucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Ping verifies the database file is still open.
func (s *BoltStore) Ping(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(visitorsBucket) == nil {
			return fmt.Errorf("visitors bucket missing")
		}
		return nil
	})
}

// GetVisitor retrieves a visitor by ID.
func (s *BoltStore) GetVisitor(_ context.Context, visitorID string) (*domain.Visitor, error) {
	var visitor *domain.Visitor
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(visitorsBucket).Get([]byte(visitorID))
		if raw == nil {
			return nil
		}
		var v domain.Visitor
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode visitor: %w", err)
		}
		visitor = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visitor, nil
}

// UpsertVisitor creates or updates a visitor record. CreatedAt is kept from
// the existing record.
func (s *BoltStore) UpsertVisitor(_ context.Context, visitor *domain.Visitor) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(visitorsBucket)
		next := *visitor
		if raw := b.Get([]byte(visitor.VisitorID)); raw != nil {
			var existing domain.Visitor
			if err := json.Unmarshal(raw, &existing); err == nil {
				next.CreatedAt = existing.CreatedAt
			}
		}
		enc, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode visitor: %w", err)
		}
		if err := b.Put([]byte(visitor.VisitorID), enc); err != nil {
			return fmt.Errorf("upsert visitor: %w", err)
		}
		return nil
	})
}

// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
func (s *BoltStore) UpdateLastSeen(_ context.Context, visitorID string, lastSeen time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(visitorsBucket)
		raw := b.Get([]byte(visitorID))
		if raw == nil {
			slog.Warn("UpdateLastSeen found no visitor", "visitor_id", visitorID)
			return nil
		}
		var v domain.Visitor
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode visitor: %w", err)
		}
		v.LastSeenAt = lastSeen
		v.UpdatedAt = time.Now()
		enc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode visitor: %w", err)
		}
		return b.Put([]byte(visitorID), enc)
	})
}

// GetItem returns the value stored under key for a visitor.
func (s *BoltStore) GetItem(_ context.Context, visitorID, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		vb := tx.Bucket(itemsBucket).Bucket([]byte(visitorID))
		if vb == nil {
			return nil
		}
		if raw := vb.Get([]byte(key)); raw != nil {
			value = string(raw)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return value, found, nil
}

// SetItem stores value under key for a visitor.
func (s *BoltStore) SetItem(_ context.Context, visitorID, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		vb, err := tx.Bucket(itemsBucket).CreateBucketIfNotExists([]byte(visitorID))
		if err != nil {
			return err
		}
		return vb.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key for a visitor.
func (s *BoltStore) RemoveItem(_ context.Context, visitorID, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		vb := tx.Bucket(itemsBucket).Bucket([]byte(visitorID))
		if vb == nil {
			return nil
		}
		return vb.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close bolt database: %w", err)
	}
	return nil
}
