package driving

import (
	"context"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
)

// CompiledCodebook is a codebook ready for display
type CompiledCodebook struct {
	Type      domain.CodebookType              `json:"type"`
	Variables domain.VariableMap               `json:"variables"`
	Trees     map[string][]domain.CodeTreeItem `json:"trees"`
	Questions []domain.Question                `json:"questions,omitempty"`
}

// BranchingRequest asks which questions an answer makes irrelevant
type BranchingRequest struct {
	Questions []domain.Question `json:"questions" validate:"required,min=1,dive"`
	Current   int               `json:"current" validate:"gte=0"`
	Selected  []string          `json:"selected"`
}

// CodebookService compiles codebooks
type CodebookService interface {
	// Compile builds the variable map and display trees of a codebook
	Compile(ctx context.Context, codebook domain.Codebook) (*CompiledCodebook, error)

	// Irrelevant returns the names of questions skipped after an answer
	Irrelevant(ctx context.Context, req BranchingRequest) ([]string, error)
}
