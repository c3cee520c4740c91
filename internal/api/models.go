package api

import (
	"github.com/glyphsmith/glyphsmith-api/internal/domain"
	"github.com/glyphsmith/glyphsmith-api/internal/render"
)

// GenerateRequest is the request body for single-shot generation and
// pipeline submission.
type GenerateRequest struct {
	Description     string `json:"description" validate:"required"`
	Kind            string `json:"kind" validate:"required,oneof=icon-pack ui-bundle component"`
	StyleHint       string `json:"style_hint,omitempty"`
	ColorHint       string `json:"color_hint,omitempty"`
	Analyze         bool   `json:"analyze,omitempty"`
	IncludeVariants bool   `json:"include_variants,omitempty"`
}

// toDomain converts the request body into a validated domain request.
func (r *GenerateRequest) toDomain() (*domain.GenerationRequest, error) {
	req, err := domain.NewGenerationRequest(r.Description, domain.TargetKind(r.Kind))
	if err != nil {
		return nil, err
	}
	req.StyleHint = r.StyleHint
	req.ColorHint = r.ColorHint
	req.Analyze = r.Analyze
	req.IncludeVariants = r.IncludeVariants
	return req, nil
}

// GenerateResponse wraps a single-shot generation result.
type GenerateResponse struct {
	RequestID string           `json:"request_id"`
	Artifact  *domain.Artifact `json:"artifact"`
}

// StartPipelineResponse reports the id of a newly started pipeline.
type StartPipelineResponse struct {
	PipelineID string `json:"pipeline_id"`
}

// ResumeRequest is the request body for resuming a paused pipeline.
type ResumeRequest struct {
	// Feedback maps step ids to free-text user input.
	Feedback map[string]string `json:"feedback,omitempty"`
}

// RenderRequest is the request body for scheduling a render.
type RenderRequest struct {
	ArtifactID string           `json:"artifact_id" validate:"required"`
	Artifact   *domain.Artifact `json:"artifact" validate:"required"`
	Options    render.Options   `json:"options,omitempty"`
}
