package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// setupTestProgressStore creates a test Redis client and ProgressStore
func setupTestProgressStore(t *testing.T, ttl time.Duration) (*ProgressStore, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewProgressStore(client, ttl)

	return store, mr, func() {
		client.Close()
		mr.Close()
	}
}

func createTestDraft(unitID, coderID string) *domain.Draft {
	return &domain.Draft{
		UnitID:  unitID,
		JobID:   "job-1",
		CoderID: coderID,
		Annotations: []domain.OffsetAnnotation{
			{Variable: "topic", Value: "economy", Field: "text", Offset: 4, Length: 5},
		},
		Version:   3,
		UpdatedAt: time.Now(),
	}
}

func TestNewProgressStore_DefaultTTL(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewProgressStore(client, 0)
	if store.ttl != DefaultDraftTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultDraftTTL, store.ttl)
	}
}

func TestProgressStore_SaveAndGet(t *testing.T) {
	store, mr, cleanup := setupTestProgressStore(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	draft := createTestDraft("unit-1", "coder-1")

	if err := store.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	got, err := store.GetDraft(ctx, "unit-1", "coder-1")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Version != 3 || got.JobID != "job-1" {
		t.Errorf("unexpected draft: %+v", got)
	}
	if len(got.Annotations) != 1 || got.Annotations[0] != draft.Annotations[0] {
		t.Errorf("annotations not preserved: %+v", got.Annotations)
	}

	if ttl := mr.TTL(draftKey("unit-1", "coder-1")); ttl != time.Hour {
		t.Errorf("expected TTL of 1h, got %v", ttl)
	}
	if !mr.Exists(coderIndexKey("coder-1")) {
		t.Error("expected coder index to be created")
	}
}

func TestProgressStore_GetDraft_NotFound(t *testing.T) {
	store, _, cleanup := setupTestProgressStore(t, time.Hour)
	defer cleanup()

	_, err := store.GetDraft(context.Background(), "unit-1", "coder-1")
	if err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProgressStore_Expiry(t *testing.T) {
	store, mr, cleanup := setupTestProgressStore(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	store.SaveDraft(ctx, createTestDraft("unit-1", "coder-1"))

	mr.FastForward(2 * time.Hour)

	if _, err := store.GetDraft(ctx, "unit-1", "coder-1"); err != domain.ErrNotFound {
		t.Errorf("expected draft to expire, got %v", err)
	}
}

func TestProgressStore_DeleteDraft(t *testing.T) {
	store, mr, cleanup := setupTestProgressStore(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	store.SaveDraft(ctx, createTestDraft("unit-1", "coder-1"))
	store.SaveDraft(ctx, createTestDraft("unit-2", "coder-1"))

	if err := store.DeleteDraft(ctx, "unit-1", "coder-1"); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if _, err := store.GetDraft(ctx, "unit-1", "coder-1"); err != domain.ErrNotFound {
		t.Errorf("expected deleted draft to be gone, got %v", err)
	}

	members, _ := mr.Members(coderIndexKey("coder-1"))
	if len(members) != 1 || members[0] != "unit-2" {
		t.Errorf("expected index to hold unit-2 only, got %v", members)
	}

	// deleting twice is fine
	if err := store.DeleteDraft(ctx, "unit-1", "coder-1"); err != nil {
		t.Errorf("expected no error deleting a missing draft, got %v", err)
	}
}

func TestProgressStore_ListByCoder(t *testing.T) {
	store, mr, cleanup := setupTestProgressStore(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	store.SaveDraft(ctx, createTestDraft("unit-1", "coder-1"))
	store.SaveDraft(ctx, createTestDraft("unit-2", "coder-1"))
	store.SaveDraft(ctx, createTestDraft("unit-1", "coder-2"))

	drafts, err := store.ListByCoder(ctx, "coder-1")
	if err != nil {
		t.Fatalf("ListByCoder: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	for _, d := range drafts {
		if d.CoderID != "coder-1" {
			t.Errorf("unexpected coder %s", d.CoderID)
		}
	}

	// an expired draft disappears from the index
	mr.Del(draftKey("unit-2", "coder-1"))

	drafts, _ = store.ListByCoder(ctx, "coder-1")
	if len(drafts) != 1 {
		t.Errorf("expected 1 live draft, got %d", len(drafts))
	}
	members, _ := mr.Members(coderIndexKey("coder-1"))
	if len(members) != 1 {
		t.Errorf("expected stale index entry to be removed, got %v", members)
	}
}

func TestProgressStore_PurgeExpired(t *testing.T) {
	store, _, cleanup := setupTestProgressStore(t, 30*24*time.Hour)
	defer cleanup()

	ctx := context.Background()

	old := createTestDraft("unit-1", "coder-1")
	old.UpdatedAt = time.Now().Add(-10 * 24 * time.Hour)
	store.SaveDraft(ctx, old)

	store.SaveDraft(ctx, createTestDraft("unit-2", "coder-1"))

	other := createTestDraft("unit-3", "coder-2")
	other.UpdatedAt = time.Now().Add(-8 * 24 * time.Hour)
	store.SaveDraft(ctx, other)

	purged, err := store.PurgeExpired(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 2 {
		t.Errorf("expected 2 purged drafts, got %d", purged)
	}

	if _, err := store.GetDraft(ctx, "unit-2", "coder-1"); err != nil {
		t.Errorf("expected recent draft to remain: %v", err)
	}
	if _, err := store.GetDraft(ctx, "unit-1", "coder-1"); err != domain.ErrNotFound {
		t.Errorf("expected old draft to be purged, got %v", err)
	}
}
