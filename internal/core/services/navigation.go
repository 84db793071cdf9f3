package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driving"
)

// Ensure navigationService implements NavigationService
var _ driving.NavigationService = (*navigationService)(nil)

type navigationService struct{}

// NewNavigationService creates a new NavigationService
func NewNavigationService() driving.NavigationService {
	return &navigationService{}
}

// Navigate returns the index of the item above or below the selection
func (s *navigationService) Navigate(ctx context.Context, req domain.NavigationRequest) (int, error) {
	if req.Selected < 0 || req.Selected >= len(req.Items) {
		return 0, fmt.Errorf("%w: selected item %d out of range", domain.ErrInvalidInput, req.Selected)
	}
	if req.XRef != nil && (*req.XRef < 0 || *req.XRef >= len(req.Items)) {
		return 0, fmt.Errorf("%w: reference item %d out of range", domain.ErrInvalidInput, *req.XRef)
	}

	layout := domain.Rects(req.Items)
	switch req.Direction {
	case domain.DirectionUp:
		return domain.MoveUp(layout, req.Selected, req.XRef), nil
	case domain.DirectionDown:
		return domain.MoveDown(layout, req.Selected, req.XRef), nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidInput, req.Direction)
	}
}
