package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driving"
	"github.com/custodia-labs/annotator-core/internal/metrics"
)

// Ensure annotationService implements AnnotationService
var _ driving.AnnotationService = (*annotationService)(nil)

// openUnit is a coder's working copy of a unit.
// mu serializes edits; the span store itself is not safe for concurrent use.
type openUnit struct {
	mu        sync.Mutex
	jobID     string
	unitID    string
	codebook  domain.Codebook
	tokens    []domain.Token
	variables domain.VariableMap
	store     *domain.SpanStore
}

// annotationService implements the AnnotationService interface
type annotationService struct {
	jobStore        driven.JobStore
	annotationStore driven.AnnotationStore
	progressStore   driven.ProgressStore
	taskQueue       driven.TaskQueue
	metrics         *metrics.Metrics
	logger          *slog.Logger

	mu       sync.Mutex
	sessions map[string]*openUnit // by coder
}

// AnnotationServiceConfig holds the dependencies of the annotation service.
type AnnotationServiceConfig struct {
	JobStore        driven.JobStore
	AnnotationStore driven.AnnotationStore
	ProgressStore   driven.ProgressStore // Optional: drafts are not kept when nil
	TaskQueue       driven.TaskQueue
	Metrics         *metrics.Metrics // Optional
	Logger          *slog.Logger
}

// NewAnnotationService creates a new AnnotationService
func NewAnnotationService(cfg AnnotationServiceConfig) driving.AnnotationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &annotationService{
		jobStore:        cfg.JobStore,
		annotationStore: cfg.AnnotationStore,
		progressStore:   cfg.ProgressStore,
		taskQueue:       cfg.TaskQueue,
		metrics:         cfg.Metrics,
		logger:          logger.With("service", "annotation"),
		sessions:        make(map[string]*openUnit),
	}
}

// OpenUnit loads a unit and makes it the coder's open unit.
// Starting annotations come from the coder's draft, else their last
// submission, else the unit's pre-annotations.
func (s *annotationService) OpenUnit(ctx context.Context, coderID, jobID, unitID string) (*domain.UnitView, error) {
	if coderID == "" || jobID == "" || unitID == "" {
		return nil, domain.ErrInvalidInput
	}

	job, err := s.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	unit, err := s.jobStore.GetUnit(ctx, jobID, unitID)
	if err != nil {
		return nil, err
	}

	variables, err := compileCodebookVariables(job.Codebook)
	if err != nil {
		return nil, err
	}

	tokens := domain.Tokenize(unit.Fields)
	if len(unit.Tokens) > 0 {
		tokens, err = domain.PrepareTokens(unit.Tokens)
		if err != nil {
			return nil, err
		}
	}

	start, source, err := s.startingAnnotations(ctx, unit, coderID)
	if err != nil {
		return nil, err
	}

	session := &openUnit{
		jobID:     jobID,
		unitID:    unitID,
		codebook:  job.Codebook,
		tokens:    tokens,
		variables: variables,
		store:     domain.ImportSpanAnnotations(start, tokens, nil),
	}

	s.mu.Lock()
	_, replaced := s.sessions[coderID]
	s.sessions[coderID] = session
	s.mu.Unlock()

	s.metrics.UnitOpened(replaced)
	s.logger.Info("unit opened",
		"coder_id", coderID,
		"job_id", jobID,
		"unit_id", unitID,
		"tokens", len(tokens),
		"annotations_from", source,
	)

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.view(), nil
}

func (s *annotationService) startingAnnotations(ctx context.Context, unit *domain.Unit, coderID string) ([]domain.OffsetAnnotation, string, error) {
	if s.progressStore != nil {
		draft, err := s.progressStore.GetDraft(ctx, unit.ID, coderID)
		switch {
		case err == nil:
			return draft.Annotations, "draft", nil
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("failed to load draft, falling back to submission",
				"unit_id", unit.ID,
				"coder_id", coderID,
				"error", err,
			)
		}
	}

	sub, err := s.annotationStore.GetLatest(ctx, unit.ID, coderID)
	if err == nil {
		return sub.Annotations, "submission", nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("load submission: %w", err)
	}

	return unit.Annotations, "unit", nil
}

// Toggle applies one annotation edit to the open unit
func (s *annotationService) Toggle(ctx context.Context, coderID, unitID string, req domain.ToggleRequest) (*domain.UnitView, error) {
	session, err := s.session(coderID, unitID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	variable, ok := session.variables[req.Variable]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, req.Variable)
	}
	if req.Value == "" {
		return nil, domain.ErrInvalidInput
	}

	ann, err := domain.AnnotationForSpan(session.tokens, req.Variable, req.Value, req.Span.Normalize())
	if err != nil {
		return nil, err
	}

	action := "add"
	switch {
	case req.Remove:
		session.store.Toggle(ann, true, req.KeepEmpty)
		action = "remove"
	case !variable.Multiple && req.Value != domain.EmptyValue:
		session.store.Replace(ann, req.KeepEmpty)
	default:
		session.store.Toggle(ann, false, req.KeepEmpty)
	}
	s.metrics.RecordToggle(action)

	s.saveDraft(ctx, coderID, session)
	return session.view(), nil
}

// Import adds offset annotations to the open unit
func (s *annotationService) Import(ctx context.Context, coderID, unitID string, annotations []domain.OffsetAnnotation) (*domain.UnitView, error) {
	session, err := s.session(coderID, unitID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	for _, a := range annotations {
		if _, ok := session.variables[a.Variable]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, a.Variable)
		}
	}

	session.store = domain.ImportSpanAnnotations(annotations, session.tokens, session.store)
	s.metrics.RecordImport(len(annotations))

	s.saveDraft(ctx, coderID, session)
	return session.view(), nil
}

// Annotations exports the open unit's annotations
func (s *annotationService) Annotations(ctx context.Context, coderID, unitID string, includeText bool) ([]domain.DisplayAnnotation, error) {
	session, err := s.session(coderID, unitID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if includeText {
		return session.displayAnnotations(), nil
	}

	exported := session.store.Export()
	out := make([]domain.DisplayAnnotation, len(exported))
	for i, a := range exported {
		out[i] = domain.DisplayAnnotation{OffsetAnnotation: a}
	}
	return out, nil
}

// Submit enqueues the exported annotations for persistence.
// Delivery is handled by the worker; the returned task can be polled.
func (s *annotationService) Submit(ctx context.Context, coderID, unitID string, status domain.UnitStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	session, err := s.session(coderID, unitID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	sub := &domain.Submission{
		UnitID:      session.unitID,
		JobID:       session.jobID,
		CoderID:     coderID,
		Status:      status,
		Annotations: session.store.Export(),
		SubmittedAt: time.Now(),
	}
	session.mu.Unlock()

	task, err := domain.NewPostAnnotationsTask(sub)
	if err != nil {
		return nil, err
	}
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue submission: %w", err)
	}

	s.metrics.RecordSubmission(string(status))
	s.logger.Info("submission enqueued",
		"coder_id", coderID,
		"unit_id", unitID,
		"status", status,
		"annotations", len(sub.Annotations),
		"task_id", task.ID,
	)
	return task, nil
}

// CloseUnit discards the coder's open unit
func (s *annotationService) CloseUnit(ctx context.Context, coderID, unitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[coderID]
	if !ok || session.unitID != unitID {
		return domain.ErrUnitNotOpen
	}
	delete(s.sessions, coderID)
	s.metrics.UnitClosed()
	return nil
}

func (s *annotationService) session(coderID, unitID string) (*openUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[coderID]
	if !ok || session.unitID != unitID {
		return nil, domain.ErrUnitNotOpen
	}
	return session, nil
}

// saveDraft stores the current annotations. Failures are logged: the edit
// is kept in memory and the next save retries.
func (s *annotationService) saveDraft(ctx context.Context, coderID string, session *openUnit) {
	if s.progressStore == nil {
		return
	}

	draft := &domain.Draft{
		UnitID:      session.unitID,
		JobID:       session.jobID,
		CoderID:     coderID,
		Annotations: session.store.Export(),
		Version:     session.store.Version(),
		UpdatedAt:   time.Now(),
	}
	if err := s.progressStore.SaveDraft(ctx, draft); err != nil {
		s.logger.Warn("failed to save draft",
			"coder_id", coderID,
			"unit_id", session.unitID,
			"error", err,
		)
	}
}

func (u *openUnit) displayAnnotations() []domain.DisplayAnnotation {
	anns := u.store.ExportWithText(u.tokens)
	domain.ColorAnnotations(anns, u.variables)
	if anns == nil {
		anns = []domain.DisplayAnnotation{}
	}
	return anns
}

func (u *openUnit) view() *domain.UnitView {
	colors := make(map[int]string, u.store.Len())
	for _, index := range u.store.Indices() {
		colors[index] = domain.TokenColor(u.store.At(index), u.variables)
	}

	return &domain.UnitView{
		JobID:        u.jobID,
		UnitID:       u.unitID,
		CodebookType: codebookType(u.codebook),
		Tokens:       u.tokens,
		Variables:    u.variables,
		Questions:    u.codebook.Questions,
		Annotations:  u.displayAnnotations(),
		TokenColors:  colors,
		Version:      u.store.Version(),
	}
}

func codebookType(cb domain.Codebook) domain.CodebookType {
	if cb.Type == "" {
		return domain.CodebookTypeAnnotate
	}
	return cb.Type
}

// compileCodebookVariables compiles the variables a coder can annotate with.
// Questions are single-value variables named after the question.
func compileCodebookVariables(cb domain.Codebook) (domain.VariableMap, error) {
	switch codebookType(cb) {
	case domain.CodebookTypeAnnotate:
		return domain.CompileVariables(cb.Variables)
	case domain.CodebookTypeQuestions:
		variables := make([]domain.Variable, len(cb.Questions))
		for i, q := range cb.Questions {
			variables[i] = domain.Variable{Name: q.Name, Instruction: q.Question, Codes: q.Codes}
		}
		return domain.CompileVariables(variables)
	default:
		return nil, fmt.Errorf("%w: unknown codebook type %q", domain.ErrInvalidInput, cb.Type)
	}
}
