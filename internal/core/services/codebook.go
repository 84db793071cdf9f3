package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driving"
	"github.com/custodia-labs/annotator-core/internal/metrics"
)

// Ensure codebookService implements CodebookService
var _ driving.CodebookService = (*codebookService)(nil)

// codebookService implements the CodebookService interface
type codebookService struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCodebookService creates a new CodebookService
func NewCodebookService(m *metrics.Metrics, logger *slog.Logger) driving.CodebookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &codebookService{metrics: m, logger: logger.With("service", "codebook")}
}

// Compile builds the variable map and the display tree of every variable.
// Trees include inactive codes so editors can see the whole hierarchy.
func (s *codebookService) Compile(ctx context.Context, codebook domain.Codebook) (*driving.CompiledCodebook, error) {
	compiled, err := s.compile(codebook)
	s.metrics.RecordCompile(err)
	if err != nil {
		s.logger.Debug("codebook rejected", "error", err)
		return nil, err
	}
	return compiled, nil
}

func (s *codebookService) compile(codebook domain.Codebook) (*driving.CompiledCodebook, error) {
	variables, err := compileCodebookVariables(codebook)
	if err != nil {
		return nil, err
	}

	defs := make(map[string][]domain.CodeDefinition)
	for _, v := range codebook.Variables {
		defs[v.Name] = v.Codes
	}
	for _, q := range codebook.Questions {
		defs[q.Name] = q.Codes
	}

	trees := make(map[string][]domain.CodeTreeItem, len(variables))
	for name := range variables {
		codes, err := domain.CompileCodes(defs[name])
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		trees[name] = domain.CodeTreeArray(codes)
	}

	return &driving.CompiledCodebook{
		Type:      codebookType(codebook),
		Variables: variables,
		Trees:     trees,
		Questions: codebook.Questions,
	}, nil
}

// Irrelevant returns the names of the questions skipped after an answer, in
// question order
func (s *codebookService) Irrelevant(ctx context.Context, req driving.BranchingRequest) ([]string, error) {
	if req.Current < 0 || req.Current >= len(req.Questions) {
		return nil, fmt.Errorf("%w: question %d out of range", domain.ErrInvalidInput, req.Current)
	}

	skipped := domain.IrrelevantQuestions(req.Questions, req.Current, req.Selected)
	indices := make([]int, 0, len(skipped))
	for i := range skipped {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	names := make([]string, len(indices))
	for i, index := range indices {
		names[i] = req.Questions[index].Name
	}
	return names, nil
}
