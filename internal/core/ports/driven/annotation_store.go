package driven

import (
	"context"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// AnnotationStore persists submitted annotations.
// It is the destination of the post_annotations task.
type AnnotationStore interface {
	// PostAnnotations stores a submission. Later submissions of the same
	// coder and unit replace earlier ones.
	PostAnnotations(ctx context.Context, sub *domain.Submission) error

	// GetLatest retrieves the last submission of a coder for a unit
	GetLatest(ctx context.Context, unitID, coderID string) (*domain.Submission, error)

	// ListByUnit retrieves the submissions of all coders for a unit
	ListByUnit(ctx context.Context, unitID string) ([]*domain.Submission, error)
}
