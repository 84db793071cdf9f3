package driving

import (
	"context"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// NavigationService moves a keyboard selection over a rendered button grid
type NavigationService interface {
	Navigate(ctx context.Context, req domain.NavigationRequest) (int, error)
}
