// Package api provides HTTP handlers for the API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/glyphsmith/glyphsmith-api/internal/api/shared"
	"github.com/glyphsmith/glyphsmith-api/internal/dispatch"
	"github.com/glyphsmith/glyphsmith-api/internal/pipeline"
	"github.com/glyphsmith/glyphsmith-api/internal/service"
)

// GenerationHandler handles generation and pipeline HTTP requests.
type GenerationHandler struct {
	service  *service.GenerationService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(svc *service.GenerationService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GenerationHandler")
	}

	return &GenerationHandler{
		service:  svc,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "generation_handler")),
	}
}

// Generate handles POST /generate requests: the single-shot path.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	req, err := body.toDomain()
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	artifact, err := h.service.Generate(r.Context(), *req)
	if err != nil {
		h.respondDispatchError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GenerateResponse{
		RequestID: req.ID.String(),
		Artifact:  artifact,
	})
}

// StartPipeline handles POST /pipelines requests.
func (h *GenerationHandler) StartPipeline(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	req, err := body.toDomain()
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.StartPipeline(r.Context(), *req)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to start pipeline", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, StartPipelineResponse{
		PipelineID: id.String(),
	})
}

// GetPipeline handles GET /pipelines/{id} requests.
func (h *GenerationHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.service.GetPipeline(id)
	if errors.Is(err, pipeline.ErrPipelineNotFound) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Pipeline not found")
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to read pipeline", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, snapshot)
}

// ResumePipeline handles POST /pipelines/{id}/resume requests.
func (h *GenerationHandler) ResumePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	var body ResumeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	err := h.service.Resume(id, body.Feedback)
	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Pipeline not found")
	case errors.Is(err, pipeline.ErrNotPaused):
		shared.RespondWithError(w, r, http.StatusConflict, "Pipeline is not paused")
	case err != nil:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to resume pipeline", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// CancelPipeline handles POST /pipelines/{id}/cancel requests.
func (h *GenerationHandler) CancelPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	err := h.service.Cancel(id)
	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Pipeline not found")
	case errors.Is(err, pipeline.ErrAlreadyTerminal):
		shared.RespondWithError(w, r, http.StatusConflict, "Pipeline already finished")
	case err != nil:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to cancel pipeline", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeletePipeline handles DELETE /pipelines/{id} requests, removing a
// finished pipeline from the registry.
func (h *GenerationHandler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	err := h.service.DeletePipeline(id)
	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Pipeline not found")
	case errors.Is(err, pipeline.ErrNotTerminal):
		shared.RespondWithError(w, r, http.StatusConflict, "Pipeline is still active; cancel it first")
	case err != nil:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to delete pipeline", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func (h *GenerationHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

// pipelineID parses the {id} URL parameter.
func (h *GenerationHandler) pipelineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid pipeline ID")
		return uuid.Nil, false
	}
	return id, true
}

// respondDispatchError maps dispatcher failures onto HTTP responses:
// authentication misconfiguration and full exhaustion carry enough detail
// for the caller to decide between fixing credentials and retrying later.
func (h *GenerationHandler) respondDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var exhaustion *dispatch.ExhaustionError

	switch {
	case errors.Is(err, dispatch.ErrAuthentication):
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway,
			"Provider authentication failed; check configured credentials", err)
	case errors.As(err, &exhaustion):
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway,
			"All providers failed: "+exhaustion.Error(), err)
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Generation failed", err)
	}
}
