package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Pipeline lifecycle event types emitted by the step engine.
const (
	TypePipelineStarted   = "pipeline.started"
	TypePipelinePaused    = "pipeline.paused"
	TypePipelineResumed   = "pipeline.resumed"
	TypePipelineCompleted = "pipeline.completed"
	TypePipelineFailed    = "pipeline.failed"
	TypeStepStarted       = "step.started"
	TypeStepCompleted     = "step.completed"
	TypeStepFailed        = "step.failed"
)

// PipelineEvent describes a pipeline or step lifecycle transition. It
// carries the pipeline identity plus a type-specific JSON payload so
// subscribers have no direct dependency on the pipeline package.
type PipelineEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// PipelineID identifies the pipeline the event belongs to
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Payload contains event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *PipelineEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewPipelineEvent creates a new PipelineEvent with the specified type and payload.
func NewPipelineEvent(eventType string, pipelineID uuid.UUID, payload interface{}) (*PipelineEvent, error) {
	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	return &PipelineEvent{
		ID:         uuid.New(),
		Type:       eventType,
		PipelineID: pipelineID,
		Payload:    payloadBytes,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *PipelineEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the engine to publish events without direct knowledge of
// handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *PipelineEvent) error
}
