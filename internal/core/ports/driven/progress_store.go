package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// ProgressStore keeps unsubmitted drafts so coders can resume a unit.
// Redis is preferred; PostgreSQL is the fallback.
type ProgressStore interface {
	// SaveDraft stores or replaces the draft of a coder for a unit
	SaveDraft(ctx context.Context, draft *domain.Draft) error

	// GetDraft retrieves a draft, domain.ErrNotFound if there is none
	GetDraft(ctx context.Context, unitID, coderID string) (*domain.Draft, error)

	// DeleteDraft removes a draft. Deleting a missing draft is not an error.
	DeleteDraft(ctx context.Context, unitID, coderID string) error

	// ListByCoder lists the drafts of a coder
	ListByCoder(ctx context.Context, coderID string) ([]*domain.Draft, error)

	// PurgeExpired deletes drafts not updated within maxAge and returns
	// how many were removed. Stores with native expiry may return 0.
	PurgeExpired(ctx context.Context, maxAge time.Duration) (int, error)
}
