package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/glyphsmith/glyphsmith-api/internal/api/shared"
	"github.com/glyphsmith/glyphsmith-api/internal/render"
)

// RenderHandler handles render scheduling HTTP requests.
type RenderHandler struct {
	scheduler *render.Scheduler
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewRenderHandler creates a new RenderHandler.
func NewRenderHandler(scheduler *render.Scheduler, logger *slog.Logger) *RenderHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for RenderHandler")
	}

	return &RenderHandler{
		scheduler: scheduler,
		validate:  validator.New(),
		logger:    logger.With(slog.String("component", "render_handler")),
	}
}

// RequestRender handles POST /render requests. The call blocks through the
// debounce window and returns the settled result; render-layer errors are
// always part of the structured response, never swallowed.
func (h *RenderHandler) RequestRender(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(&body); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.scheduler.RequestRender(r.Context(), body.ArtifactID, body.Artifact, body.Options)
	if err != nil {
		// Only context cancellation reaches here; render failures travel
		// inside the result.
		shared.RespondWithErrorAndLog(w, r, http.StatusRequestTimeout,
			"Render request cancelled", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GetStats handles GET /render/{id}/stats requests.
func (h *RenderHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "id")

	stats, ok := h.scheduler.Stats(artifactID)
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "No render state for artifact")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// Clear handles DELETE /render/{id} requests, removing render state for an
// artifact.
func (h *RenderHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Clear(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
