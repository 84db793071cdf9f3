package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProgressStore = (*ProgressStore)(nil)

const (
	draftPrefix      = "annotator:draft:"
	draftCoderPrefix = "annotator:drafts:coder:"

	// DefaultDraftTTL is how long an untouched draft survives
	DefaultDraftTTL = 7 * 24 * time.Hour
)

// ProgressStore implements driven.ProgressStore using Redis.
// Drafts expire through key TTL; each save refreshes it. A set per coder
// indexes the units with drafts.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore creates a new Redis-backed ProgressStore.
// A zero ttl uses DefaultDraftTTL.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &ProgressStore{client: client, ttl: ttl}
}

func draftKey(unitID, coderID string) string {
	return draftPrefix + unitID + ":" + coderID
}

func coderIndexKey(coderID string) string {
	return draftCoderPrefix + coderID
}

// SaveDraft stores or replaces a draft and refreshes its TTL
func (s *ProgressStore) SaveDraft(ctx context.Context, draft *domain.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, draftKey(draft.UnitID, draft.CoderID), data, s.ttl)
	pipe.SAdd(ctx, coderIndexKey(draft.CoderID), draft.UnitID)
	pipe.Expire(ctx, coderIndexKey(draft.CoderID), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// GetDraft retrieves the draft of a coder for a unit
func (s *ProgressStore) GetDraft(ctx context.Context, unitID, coderID string) (*domain.Draft, error) {
	data, err := s.client.Get(ctx, draftKey(unitID, coderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	var draft domain.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

// DeleteDraft removes a draft and its index entry
func (s *ProgressStore) DeleteDraft(ctx context.Context, unitID, coderID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, draftKey(unitID, coderID))
	pipe.SRem(ctx, coderIndexKey(coderID), unitID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// ListByCoder lists the live drafts of a coder and drops index entries of
// drafts that have expired
func (s *ProgressStore) ListByCoder(ctx context.Context, coderID string) ([]*domain.Draft, error) {
	unitIDs, err := s.client.SMembers(ctx, coderIndexKey(coderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get coder drafts: %w", err)
	}

	var drafts []*domain.Draft
	var expired []any

	for _, unitID := range unitIDs {
		draft, err := s.GetDraft(ctx, unitID, coderID)
		if errors.Is(err, domain.ErrNotFound) {
			expired = append(expired, unitID)
			continue
		}
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}

	if len(expired) > 0 {
		s.client.SRem(ctx, coderIndexKey(coderID), expired...)
	}

	return drafts, nil
}

// PurgeExpired deletes drafts older than maxAge that are still within their
// TTL, and prunes index entries of drafts Redis already expired. Only the
// explicitly deleted drafts are counted.
func (s *ProgressStore) PurgeExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	purged := 0

	iter := s.client.Scan(ctx, 0, draftCoderPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		coderID := iter.Val()[len(draftCoderPrefix):]

		drafts, err := s.ListByCoder(ctx, coderID)
		if err != nil {
			return purged, err
		}
		for _, draft := range drafts {
			if !draft.UpdatedAt.Before(cutoff) {
				continue
			}
			if err := s.DeleteDraft(ctx, draft.UnitID, draft.CoderID); err != nil {
				return purged, err
			}
			purged++
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("failed to scan coder drafts: %w", err)
	}

	return purged, nil
}
