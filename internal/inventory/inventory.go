// Package inventory tracks per-visitor stock levels and derives restocking
// insights.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/metrics"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/store"
)

// StorageKey is the per-visitor item holding the JSON inventory array.
const StorageKey = "chaiInventory"

// Tracker reads and writes a visitor's inventory. Every operation re-reads
// the stored collection.
type Tracker struct {
	items store.ItemStore
	seed  []domain.InventoryRecord
}

// NewTracker creates a tracker that falls back to seed when nothing valid is stored.
func NewTracker(items store.ItemStore, seed []domain.InventoryRecord) *Tracker {
	return &Tracker{items: items, seed: seed}
}

// Load returns the stored collection, or a copy of the seed when it is
// absent, unreadable or malformed.
func (t *Tracker) Load(ctx context.Context, owner string) []domain.InventoryRecord {
	raw, ok, err := t.items.GetItem(ctx, owner, StorageKey)
	if err != nil {
		slog.Warn("Failed to read inventory, using seed", "visitor_id", owner, "error", err)
		return t.seedCopy()
	}
	if !ok {
		return t.seedCopy()
	}

	var records []domain.InventoryRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		slog.Warn("Malformed inventory, using seed", "visitor_id", owner, "error", err)
		return t.seedCopy()
	}
	if records == nil {
		return t.seedCopy()
	}
	return records
}

// Upsert validates form and replaces the record with the same name
// (case-insensitive) or appends a new one. Invalid input returns a
// *domain.ValidationError and leaves storage untouched.
func (t *Tracker) Upsert(ctx context.Context, owner string, form Form) ([]domain.InventoryRecord, error) {
	rec, err := form.Record()
	if err != nil {
		return nil, err
	}

	records := t.Load(ctx, owner)
	replaced := false
	for i := range records {
		if records[i].SameItem(rec.Name) {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	if err := t.save(ctx, owner, records); err != nil {
		return nil, err
	}
	op := "insert"
	if replaced {
		op = "update"
	}
	metrics.InventoryWritesTotal.WithLabelValues(op).Inc()
	return records, nil
}

// Remove deletes the record at index. An out-of-range index is a no-op.
func (t *Tracker) Remove(ctx context.Context, owner string, index int) ([]domain.InventoryRecord, error) {
	records := t.Load(ctx, owner)
	if index < 0 || index >= len(records) {
		return records, nil
	}
	records = append(records[:index], records[index+1:]...)
	if err := t.save(ctx, owner, records); err != nil {
		return nil, err
	}
	metrics.InventoryWritesTotal.WithLabelValues("remove").Inc()
	return records, nil
}

func (t *Tracker) save(ctx context.Context, owner string, records []domain.InventoryRecord) error {
	if records == nil {
		records = []domain.InventoryRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	if err := t.items.SetItem(ctx, owner, StorageKey, string(data)); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	return nil
}

func (t *Tracker) seedCopy() []domain.InventoryRecord {
	out := make([]domain.InventoryRecord, len(t.seed))
	copy(out, t.seed)
	return out
}
