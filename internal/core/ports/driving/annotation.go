package driving

import (
	"context"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// AnnotationService drives interactive span annotation of units.
// Each coder has at most one open unit; opening another discards the first.
type AnnotationService interface {
	// OpenUnit loads a unit, its codebook and the coder's starting annotations
	OpenUnit(ctx context.Context, coderID, jobID, unitID string) (*domain.UnitView, error)

	// Toggle adds, removes or replaces one annotation on the open unit
	Toggle(ctx context.Context, coderID, unitID string, req domain.ToggleRequest) (*domain.UnitView, error)

	// Import adds offset annotations to the open unit
	Import(ctx context.Context, coderID, unitID string, annotations []domain.OffsetAnnotation) (*domain.UnitView, error)

	// Annotations exports the open unit's annotations, with covered text and
	// colors when includeText is set
	Annotations(ctx context.Context, coderID, unitID string, includeText bool) ([]domain.DisplayAnnotation, error)

	// Submit hands the exported annotations to the submission queue
	Submit(ctx context.Context, coderID, unitID string, status domain.UnitStatus) (*domain.Task, error)

	// CloseUnit discards the coder's open unit
	CloseUnit(ctx context.Context, coderID, unitID string) error
}
