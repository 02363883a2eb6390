package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/config"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

func openDrivers(t *testing.T) map[string]Repository {
	t.Helper()
	repos := make(map[string]Repository)
	for _, driver := range []string{config.StoreDriverSQLite, config.StoreDriverBolt} {
		repo, err := Open(driver, filepath.Join(t.TempDir(), "kadak-"+driver+".db"))
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", driver, err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		repos[driver] = repo
	}
	return repos
}

func TestItemsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for driver, repo := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			if _, ok, err := repo.GetItem(ctx, "v1", "chaiInventory"); err != nil || ok {
				t.Fatalf("expected absent item, got ok=%v err=%v", ok, err)
			}

			if err := repo.SetItem(ctx, "v1", "chaiInventory", `[{"item":"Samosa"}]`); err != nil {
				t.Fatalf("SetItem failed: %v", err)
			}
			if err := repo.SetItem(ctx, "v1", "chaiInventory", `[]`); err != nil {
				t.Fatalf("SetItem overwrite failed: %v", err)
			}

			got, ok, err := repo.GetItem(ctx, "v1", "chaiInventory")
			if err != nil || !ok {
				t.Fatalf("expected stored item, got ok=%v err=%v", ok, err)
			}
			if got != `[]` {
				t.Errorf("expected overwritten value, got %q", got)
			}

			if _, ok, _ := repo.GetItem(ctx, "v2", "chaiInventory"); ok {
				t.Error("items must be scoped per visitor")
			}

			if err := repo.RemoveItem(ctx, "v1", "chaiInventory"); err != nil {
				t.Fatalf("RemoveItem failed: %v", err)
			}
			if _, ok, _ := repo.GetItem(ctx, "v1", "chaiInventory"); ok {
				t.Error("expected item to be removed")
			}
			if err := repo.RemoveItem(ctx, "v1", "missing"); err != nil {
				t.Errorf("removing an absent key should not fail: %v", err)
			}
		})
	}
}

func TestVisitorUpsertAndLastSeen(t *testing.T) {
	ctx := context.Background()
	for driver, repo := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			created := time.Unix(1700000000, 0)
			v := &domain.Visitor{
				VisitorID:  "anon_1",
				Label:      "guest-1",
				LastSeenAt: created,
				CreatedAt:  created,
				UpdatedAt:  created,
			}
			if err := repo.UpsertVisitor(ctx, v); err != nil {
				t.Fatalf("UpsertVisitor failed: %v", err)
			}

			seen := created.Add(time.Hour)
			if err := repo.UpdateLastSeen(ctx, "anon_1", seen); err != nil {
				t.Fatalf("UpdateLastSeen failed: %v", err)
			}

			got, err := repo.GetVisitor(ctx, "anon_1")
			if err != nil || got == nil {
				t.Fatalf("GetVisitor returned %v, %v", got, err)
			}
			if got.LastSeenAt.Unix() != seen.Unix() {
				t.Errorf("expected last seen %v, got %v", seen, got.LastSeenAt)
			}
			if got.CreatedAt.Unix() != created.Unix() {
				t.Errorf("expected created %v, got %v", created, got.CreatedAt)
			}

			missing, err := repo.GetVisitor(ctx, "nobody")
			if err != nil || missing != nil {
				t.Errorf("expected nil, nil for unknown visitor, got %v, %v", missing, err)
			}

			if err := repo.Ping(ctx); err != nil {
				t.Errorf("Ping failed: %v", err)
			}
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", filepath.Join(t.TempDir(), "x.db")); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestIsConflictError(t *testing.T) {
	cases := map[string]bool{
		"SQLITE_BUSY: database busy": true,
		"database is locked (5)":     true,
		"UNIQUE constraint failed":   false,
		"no such table: visitors":    false,
	}
	for msg, want := range cases {
		if got := isConflictError(errString(msg)); got != want {
			t.Errorf("isConflictError(%q) = %v, want %v", msg, got, want)
		}
	}
	if isConflictError(nil) {
		t.Error("nil error is not a conflict")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
