package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/glyphsmith/glyphsmith-api/internal/dispatch"
	"github.com/glyphsmith/glyphsmith-api/internal/domain"
	"github.com/glyphsmith/glyphsmith-api/internal/extract"
	"github.com/glyphsmith/glyphsmith-api/internal/pipeline"
	"github.com/glyphsmith/glyphsmith-api/internal/store"
)

// artifactKeyPrefix namespaces artifact records in the key-value store.
const artifactKeyPrefix = "artifact:"

// GenerationService is the orchestration facade. The single-shot path runs
// analysis, dispatch, and extraction inline; the pipeline path hands the
// request to the step engine for a full multi-stage session.
type GenerationService struct {
	dispatcher *dispatch.Dispatcher
	engine     *pipeline.Engine
	params     pipeline.ModelParams
	artifacts  store.Store
	logger     *slog.Logger
}

// NewGenerationService creates the facade over its collaborators.
func NewGenerationService(
	dispatcher *dispatch.Dispatcher,
	engine *pipeline.Engine,
	params pipeline.ModelParams,
	artifacts store.Store,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		dispatcher: dispatcher,
		engine:     engine,
		params:     params,
		artifacts:  artifacts,
		logger:     logger.With(slog.String("component", "generation_service")),
	}
}

// Generate runs the single-shot path: one dispatch call, normalization,
// extraction. The produced artifact is persisted under the request id;
// persistence failure here is non-fatal and logged, since the caller
// already holds the artifact.
func (s *GenerationService) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Generate a complete %s for this request. Respond with markup only.\n\nRequest: %s",
		req.Kind, req.Description)
	if req.StyleHint != "" {
		prompt += "\nStyle: " + req.StyleHint
	}
	if req.ColorHint != "" {
		prompt += "\nColors: " + req.ColorHint
	}

	result, err := s.dispatcher.Dispatch(ctx, dispatch.GenerationCall{
		Model: s.params.Model,
		Messages: []dispatch.Message{
			{Role: "user", Content: prompt},
		},
		Temperature:     s.params.Temperature,
		MaxOutputTokens: s.params.MaxOutputTokens,
		Stream:          s.params.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("generation dispatch failed: %w", err)
	}

	text := dispatch.Normalize(result.Text, req.Kind)

	artifact, err := extract.Extract(text, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("artifact extraction failed: %w", err)
	}

	if err := s.saveArtifact(ctx, req.ID, 0, artifact); err != nil {
		s.logger.WarnContext(ctx, "failed to persist artifact, continuing",
			"request_id", req.ID,
			"error", err)
	}

	return artifact, nil
}

// StartPipeline begins a full multi-stage generation session and returns
// its pipeline id.
func (s *GenerationService) StartPipeline(ctx context.Context, req domain.GenerationRequest) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}

	p := pipeline.New(req, pipeline.BuildSteps(req))
	if err := s.engine.Start(p); err != nil {
		return uuid.Nil, fmt.Errorf("failed to start pipeline: %w", err)
	}

	s.logger.InfoContext(ctx, "pipeline started",
		"pipeline_id", p.ID,
		"kind", req.Kind)
	return p.ID, nil
}

// GetPipeline returns a snapshot of the pipeline with the given id.
func (s *GenerationService) GetPipeline(id uuid.UUID) (pipeline.Snapshot, error) {
	return s.engine.Get(id)
}

// Resume continues a paused pipeline, merging any feedback keyed by step id.
func (s *GenerationService) Resume(id uuid.UUID, feedback map[string]string) error {
	return s.engine.Resume(id, feedback)
}

// Cancel abandons a running pipeline.
func (s *GenerationService) Cancel(id uuid.UUID) error {
	return s.engine.Cancel(id)
}

// DeletePipeline removes a completed or failed pipeline from the registry.
func (s *GenerationService) DeletePipeline(id uuid.UUID) error {
	return s.engine.Delete(id)
}

// SaveArtifact is the explicit save operation: unlike background
// persistence, its failure is surfaced to the caller.
func (s *GenerationService) SaveArtifact(ctx context.Context, requestID uuid.UUID, index int, artifact *domain.Artifact) error {
	return s.saveArtifact(ctx, requestID, index, artifact)
}

// ListArtifacts returns the store keys of all artifacts saved for a request.
func (s *GenerationService) ListArtifacts(ctx context.Context, requestID uuid.UUID) ([]string, error) {
	return s.artifacts.ListByPrefix(ctx, artifactKeyPrefix+requestID.String()+":")
}

// saveArtifact writes one artifact record, whole-value, last-writer-wins.
func (s *GenerationService) saveArtifact(ctx context.Context, requestID uuid.UUID, index int, artifact *domain.Artifact) error {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	key := fmt.Sprintf("%s%s:%d", artifactKeyPrefix, requestID, index)
	if err := s.artifacts.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}
