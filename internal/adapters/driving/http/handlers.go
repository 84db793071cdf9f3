package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/swaggo/swag"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports the state of each backend
// @Description Readiness with per-backend checks
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// NavigateResponse is the index of the newly selected item
type NavigateResponse struct {
	Selected int `json:"selected" example:"3"`
}

// BranchingResponse lists questions skipped after an answer
type BranchingResponse struct {
	Irrelevant []string `json:"irrelevant"`
}

// AnnotationsResponse wraps exported annotations
type AnnotationsResponse struct {
	Annotations []domain.DisplayAnnotation `json:"annotations"`
}

// ImportRequest adds offset annotations to an open unit
type ImportRequest struct {
	Annotations []domain.OffsetAnnotation `json:"annotations" validate:"required,dive"`
}

// SubmitRequest hands the open unit's annotations to the worker
type SubmitRequest struct {
	Status domain.UnitStatus `json:"status" validate:"required,oneof=IN_PROGRESS DONE" example:"DONE"`
}

// SubmitResponse identifies the queued submission
type SubmitResponse struct {
	TaskID string            `json:"task_id"`
	Status domain.TaskStatus `json:"status" example:"pending"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL, Redis and the task queue
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			return
		}
		resp.Checks[name] = "ok"
	}
	check("postgres", s.db)
	check("redis", s.redisClient)
	if s.taskQueue != nil {
		check("queue", s.taskQueue)
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Codebook and navigation endpoints

// handleCompileCodebook godoc
// @Summary      Compile a codebook
// @Description  Builds the variable map and display tree of every variable. Cyclic parent chains are rejected.
// @Tags         Codebooks
// @Accept       json
// @Produce      json
// @Param        request  body      domain.Codebook  true  "Codebook"
// @Success      200      {object}  driving.CompiledCodebook
// @Failure      400      {object}  ErrorResponse  "Invalid codebook"
// @Router       /codebooks/compile [post]
func (s *Server) handleCompileCodebook(w http.ResponseWriter, r *http.Request) {
	var codebook domain.Codebook
	if !s.decode(w, r, &codebook) {
		return
	}

	compiled, err := s.codebookService.Compile(r.Context(), codebook)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compiled)
}

// handleBranching godoc
// @Summary      Question branching
// @Description  Returns the questions made irrelevant by the selected answers of the current question
// @Tags         Codebooks
// @Accept       json
// @Produce      json
// @Param        request  body      driving.BranchingRequest  true  "Questions and answers"
// @Success      200      {object}  BranchingResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Router       /codebooks/branching [post]
func (s *Server) handleBranching(w http.ResponseWriter, r *http.Request) {
	var req driving.BranchingRequest
	if !s.decode(w, r, &req) {
		return
	}

	irrelevant, err := s.codebookService.Irrelevant(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BranchingResponse{Irrelevant: irrelevant})
}

// handleNavigate godoc
// @Summary      Grid navigation
// @Description  Moves the keyboard selection up or down over rendered item boxes
// @Tags         Navigation
// @Accept       json
// @Produce      json
// @Param        request  body      domain.NavigationRequest  true  "Item boxes and selection"
// @Success      200      {object}  NavigateResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Router       /navigate [post]
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req domain.NavigationRequest
	if !s.decode(w, r, &req) {
		return
	}

	selected, err := s.navigationService.Navigate(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NavigateResponse{Selected: selected})
}

// Unit session endpoints

// handleOpenUnit godoc
// @Summary      Open a unit
// @Description  Loads a unit with its codebook and the coder's draft, last submission or pre-annotations. Replaces the coder's previously open unit.
// @Tags         Units
// @Produce      json
// @Param        X-Coder-ID  header    string  true  "Coder ID"
// @Param        job         path      string  true  "Job ID"
// @Param        unit        path      string  true  "Unit ID"
// @Success      200         {object}  domain.UnitView
// @Failure      401         {object}  ErrorResponse  "Missing coder"
// @Failure      404         {object}  ErrorResponse  "Job or unit not found"
// @Router       /jobs/{job}/units/{unit} [get]
func (s *Server) handleOpenUnit(w http.ResponseWriter, r *http.Request) {
	view, err := s.annotationService.OpenUnit(r.Context(), GetCoderID(r.Context()), r.PathValue("job"), r.PathValue("unit"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGetAnnotations godoc
// @Summary      Export annotations
// @Description  Exports the open unit's annotations in offset form, with covered text and colors when text=true
// @Tags         Units
// @Produce      json
// @Param        X-Coder-ID  header    string  true   "Coder ID"
// @Param        unit        path      string  true   "Unit ID"
// @Param        text        query     bool    false  "Include covered text"
// @Success      200         {object}  AnnotationsResponse
// @Failure      409         {object}  ErrorResponse  "Unit not open"
// @Router       /units/{unit}/annotations [get]
func (s *Server) handleGetAnnotations(w http.ResponseWriter, r *http.Request) {
	includeText := false
	if raw := r.URL.Query().Get("text"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "text must be a boolean")
			return
		}
		includeText = parsed
	}

	anns, err := s.annotationService.Annotations(r.Context(), GetCoderID(r.Context()), r.PathValue("unit"), includeText)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnotationsResponse{Annotations: anns})
}

// handleToggle godoc
// @Summary      Toggle an annotation
// @Description  Adds, removes or replaces a variable value over a token span of the open unit
// @Tags         Units
// @Accept       json
// @Produce      json
// @Param        X-Coder-ID  header    string                true  "Coder ID"
// @Param        unit        path      string                true  "Unit ID"
// @Param        request     body      domain.ToggleRequest  true  "Toggle"
// @Success      200         {object}  domain.UnitView
// @Failure      400         {object}  ErrorResponse  "Invalid span or variable"
// @Failure      409         {object}  ErrorResponse  "Unit not open"
// @Router       /units/{unit}/annotations/toggle [post]
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req domain.ToggleRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.annotationService.Toggle(r.Context(), GetCoderID(r.Context()), r.PathValue("unit"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleImport godoc
// @Summary      Import annotations
// @Description  Adds offset annotations to the open unit
// @Tags         Units
// @Accept       json
// @Produce      json
// @Param        X-Coder-ID  header    string         true  "Coder ID"
// @Param        unit        path      string         true  "Unit ID"
// @Param        request     body      ImportRequest  true  "Annotations"
// @Success      200         {object}  domain.UnitView
// @Failure      400         {object}  ErrorResponse  "Invalid annotations"
// @Failure      409         {object}  ErrorResponse  "Unit not open"
// @Router       /units/{unit}/annotations/import [post]
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.annotationService.Import(r.Context(), GetCoderID(r.Context()), r.PathValue("unit"), req.Annotations)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSubmit godoc
// @Summary      Submit annotations
// @Description  Queues the open unit's annotations for storage. Poll the returned task for the outcome.
// @Tags         Units
// @Accept       json
// @Produce      json
// @Param        X-Coder-ID  header    string         true  "Coder ID"
// @Param        unit        path      string         true  "Unit ID"
// @Param        request     body      SubmitRequest  true  "Status"
// @Success      202         {object}  SubmitResponse
// @Failure      400         {object}  ErrorResponse  "Invalid status"
// @Failure      409         {object}  ErrorResponse  "Unit not open"
// @Router       /units/{unit}/submit [post]
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}

	task, err := s.annotationService.Submit(r.Context(), GetCoderID(r.Context()), r.PathValue("unit"), req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{TaskID: task.ID, Status: task.Status})
}

// handleCloseUnit godoc
// @Summary      Close a unit
// @Description  Discards the coder's open unit. Drafts are kept.
// @Tags         Units
// @Param        X-Coder-ID  header    string  true  "Coder ID"
// @Param        unit        path      string  true  "Unit ID"
// @Success      204
// @Failure      409         {object}  ErrorResponse  "Unit not open"
// @Router       /units/{unit}/session [delete]
func (s *Server) handleCloseUnit(w http.ResponseWriter, r *http.Request) {
	if err := s.annotationService.CloseUnit(r.Context(), GetCoderID(r.Context()), r.PathValue("unit")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Task endpoints

// handleGetTask godoc
// @Summary      Get task status
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskQueue.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleQueueStats godoc
// @Summary      Queue statistics
// @Tags         Tasks
// @Produce      json
// @Success      200  {object}  driven.QueueStats
// @Router       /queue/stats [get]
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.taskQueue.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// decode reads and validates a JSON body. It writes the error response and
// returns false when the body is unusable.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid "+verrs[0].Namespace()+": failed "+verrs[0].Tag())
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP statuses
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var cyclic *domain.CyclicCodebookError
	switch {
	case errors.As(err, &cyclic):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidSpan),
		errors.Is(err, domain.ErrUnknownVariable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnitNotOpen):
		writeError(w, http.StatusConflict, "unit not open")
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
