package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glyphsmith/glyphsmith-api/internal/api/shared"
)

// NewRouter assembles the HTTP surface: single-shot generation, pipeline
// lifecycle, and render scheduling.
func NewRouter(generation *GenerationHandler, renders *RenderHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", generation.Generate)

		r.Route("/pipelines", func(r chi.Router) {
			r.Post("/", generation.StartPipeline)
			r.Get("/{id}", generation.GetPipeline)
			r.Post("/{id}/resume", generation.ResumePipeline)
			r.Post("/{id}/cancel", generation.CancelPipeline)
			r.Delete("/{id}", generation.DeletePipeline)
		})

		r.Route("/render", func(r chi.Router) {
			r.Post("/", renders.RequestRender)
			r.Get("/{id}/stats", renders.GetStats)
			r.Delete("/{id}", renders.Clear)
		})
	})

	return r
}

// traceMiddleware attaches a trace ID to every request context for log
// correlation.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
